package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestJournal(t *testing.T, instance string) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal", "events.db")
	j, err := Open(path, instance)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestOpenCreatesFile(t *testing.T) {
	_, path := newTestJournal(t, "test")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected journal file: %v", err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	j, _ := newTestJournal(t, "a")
	base := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	if err := j.Append(base, "info", "job.started", "", map[string]interface{}{"label": "patrol"}, "s1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(base.Add(time.Second), "warn", "job.failed", "stuck", nil, ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(base.Add(2*time.Second), "info", "job.started", "", nil, "s1"); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := j.Query(10, "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if !rows[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Errorf("expected newest first, got %s", rows[0].Timestamp)
	}
	if rows[1].Message == nil || *rows[1].Message != "stuck" {
		t.Error("expected message on failed event")
	}
	if rows[2].Fields["label"] != "patrol" {
		t.Errorf("expected fields round trip, got %v", rows[2].Fields)
	}
	if rows[2].SessionID == nil || *rows[2].SessionID != "s1" {
		t.Error("expected session id")
	}
	if rows[1].SessionID != nil {
		t.Error("expected empty session stored as NULL")
	}

	started, err := j.Query(10, "job.started")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(started) != 2 {
		t.Errorf("expected 2 job.started rows, got %d", len(started))
	}

	limited, _ := j.Query(1, "")
	if len(limited) != 1 {
		t.Errorf("expected limit 1, got %d", len(limited))
	}
}

func TestQueryIsScopedToInstance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.db")
	a, err := Open(path, "a")
	if err != nil {
		t.Fatal(err)
	}
	a.Append(time.Now(), "info", "job.started", "", nil, "")
	a.Close()

	b, err := Open(path, "b")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	rows, err := b.Query(10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("expected instance b to see no rows, got %d", len(rows))
	}
}
