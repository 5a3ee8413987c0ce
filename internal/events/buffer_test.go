package events

import "testing"

func numbered(n int) Event {
	return Event{Name: "engine.hour", Fields: map[string]interface{}{"n": n}}
}

func TestBacklogLast(t *testing.T) {
	b := NewBacklog(4)
	for i := 0; i < 6; i++ {
		b.Add(numbered(i))
	}
	if b.Len() != 4 {
		t.Fatalf("expected 4 held, got %d", b.Len())
	}

	tests := []struct {
		n    int
		want []int
	}{
		{0, []int{2, 3, 4, 5}},
		{2, []int{4, 5}},
		{10, []int{2, 3, 4, 5}},
	}
	for _, tt := range tests {
		got := b.Last(tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("Last(%d): expected %d events, got %d", tt.n, len(tt.want), len(got))
			continue
		}
		for i, w := range tt.want {
			if got[i].Fields["n"] != w {
				t.Errorf("Last(%d)[%d]: expected %d, got %v", tt.n, i, w, got[i].Fields["n"])
			}
		}
	}
}

func TestBacklogBeforeWrap(t *testing.T) {
	b := NewBacklog(8)
	b.Add(numbered(0))
	b.Add(numbered(1))

	got := b.Last(0)
	if len(got) != 2 || got[0].Fields["n"] != 0 || got[1].Fields["n"] != 1 {
		t.Errorf("expected events 0,1 in order, got %+v", got)
	}
}

func TestBacklogReset(t *testing.T) {
	b := NewBacklog(2)
	b.Add(numbered(0))
	b.Add(numbered(1))
	b.Add(numbered(2))
	b.Reset()

	if b.Len() != 0 || len(b.Last(0)) != 0 {
		t.Fatalf("expected empty backlog after reset")
	}
	b.Add(numbered(3))
	if got := b.Last(0); len(got) != 1 || got[0].Fields["n"] != 3 {
		t.Errorf("expected only event 3, got %+v", got)
	}
}
