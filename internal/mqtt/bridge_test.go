package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/AaronLay10/SentientJobs/internal/jobs"
	"github.com/AaronLay10/SentientJobs/internal/world"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, payload: payload})
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.topic
	}
	return out
}

func TestBridgePublishesLifecycle(t *testing.T) {
	pub := &fakePublisher{}
	w := world.New()
	b := NewBridge(w, pub, "/sim/")

	id := b.Spawn(&jobs.Spawn{})
	if !w.Exists(id) {
		t.Fatal("expected spawn forwarded to world")
	}
	b.Attach(id, &jobs.Hide{})
	b.Detach(id, jobs.KindHide)
	b.SetPaused(id, true)
	b.Despawn(id)

	if w.Exists(id) {
		t.Error("expected despawn forwarded to world")
	}

	want := []string{
		b.Topic(id, "spawned"),
		b.Topic(id, "task"),
		b.Topic(id, "task"),
		b.Topic(id, "paused"),
		b.Topic(id, "despawned"),
	}
	got := pub.topics()
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: expected topic %s, got %s", i, want[i], got[i])
		}
	}
	if want[0] != "sim/entities/1/spawned" {
		t.Errorf("unexpected topic layout %s", want[0])
	}

	var attach TaskMessage
	if err := json.Unmarshal(pub.msgs[1].payload, &attach); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !attach.Attached || attach.Kind != jobs.KindHide || attach.Task != "hide" {
		t.Errorf("unexpected attach payload %+v", attach)
	}

	var detach TaskMessage
	json.Unmarshal(pub.msgs[2].payload, &detach)
	if detach.Attached {
		t.Error("expected detach payload to report attached=false")
	}

	var paused EntityMessage
	json.Unmarshal(pub.msgs[3].payload, &paused)
	if paused.Paused == nil || !*paused.Paused {
		t.Errorf("expected paused=true, got %+v", paused)
	}
}

func TestBridgeDefaultPrefix(t *testing.T) {
	b := NewBridge(world.New(), &fakePublisher{}, "")
	if got := b.Topic(7, "task"); got != "jobs/entities/7/task" {
		t.Errorf("expected default prefix, got %s", got)
	}
}

func TestBridgeCountsDroppedMessages(t *testing.T) {
	pub := &fakePublisher{err: errors.New("offline")}
	w := world.New()
	b := NewBridge(w, pub, "jobs")

	id := b.Spawn(&jobs.Spawn{})
	b.Attach(id, &jobs.Show{})

	if !w.Exists(id) {
		t.Error("publish failures must not block the host call")
	}
	if b.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", b.Dropped())
	}
}

func TestBridgeDrivesEngine(t *testing.T) {
	pub := &fakePublisher{}
	w := world.New()
	b := NewBridge(w, pub, "jobs")
	engine := jobs.NewEngine(b)
	catalog := jobs.NewCatalog(engine)

	g := jobs.NewTaskGraph()
	g.First(&jobs.Spawn{}, nil)
	g.Then(&jobs.Hide{}, nil)
	tpl := jobs.NewTemplate("blink", g, jobs.FailurePolicy{})
	if err := catalog.Register(tpl); err != nil {
		t.Fatalf("register: %v", err)
	}
	id, err := catalog.StartName("blink")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := engine.Advance(id); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// spawned, attach spawn, detach spawn, attach hide
	if n := len(pub.topics()); n != 4 {
		t.Errorf("expected 4 messages, got %d: %v", n, pub.topics())
	}
}
