package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type alertRecorder struct {
	mu   sync.Mutex
	sent []AlertPayload
}

func (r *alertRecorder) send(p AlertPayload) {
	r.mu.Lock()
	r.sent = append(r.sent, p)
	r.mu.Unlock()
}

func newTestAlerter(t *testing.T) (*Alerter, *alertRecorder, *time.Time) {
	t.Helper()
	t.Setenv("SENTIENT_ALERT_WEBHOOK_URL", "")
	t.Setenv("SENTIENT_MQTT_ALERT_DELAY", "30s")
	t.Setenv("SENTIENT_JOURNAL_ALERT_DELAY", "")

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &alertRecorder{}
	a := NewAlerter("test")
	a.now = func() time.Time { return clock }
	a.send = rec.send
	return a, rec, &clock
}

func TestAlerterWaitsForDelay(t *testing.T) {
	a, rec, clock := newTestAlerter(t)

	a.CheckMQTT(false)
	*clock = clock.Add(29 * time.Second)
	a.CheckMQTT(false)
	if len(rec.sent) != 0 {
		t.Fatalf("expected no alert before delay, got %d", len(rec.sent))
	}

	*clock = clock.Add(time.Second)
	a.CheckMQTT(false)
	a.CheckMQTT(false)
	if len(rec.sent) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(rec.sent))
	}
	if rec.sent[0].Event != AlertMQTTDisconnected || rec.sent[0].Severity != SeverityWarning {
		t.Errorf("unexpected alert %+v", rec.sent[0])
	}
	if rec.sent[0].Instance != "test" {
		t.Errorf("expected instance label, got %q", rec.sent[0].Instance)
	}

	a.CheckMQTT(true)
	if len(rec.sent) != 2 || rec.sent[1].Severity != SeverityInfo {
		t.Errorf("expected recovery alert, got %+v", rec.sent)
	}
}

func TestAlerterShortOutageIsSilent(t *testing.T) {
	a, rec, clock := newTestAlerter(t)

	a.CheckMQTT(false)
	*clock = clock.Add(10 * time.Second)
	a.CheckMQTT(true)
	*clock = clock.Add(25 * time.Second)
	a.CheckMQTT(false)

	if len(rec.sent) != 0 {
		t.Errorf("expected no alerts, got %+v", rec.sent)
	}
}

func TestAlerterJournalDefaultDelay(t *testing.T) {
	a, rec, clock := newTestAlerter(t)

	a.CheckJournal(false)
	*clock = clock.Add(5 * time.Second)
	a.CheckJournal(false)

	if len(rec.sent) != 1 || rec.sent[0].Event != AlertJournalUnavailable || rec.sent[0].Severity != SeverityCritical {
		t.Errorf("expected critical journal alert, got %+v", rec.sent)
	}
}

func TestAlerterPostsWebhook(t *testing.T) {
	got := make(chan AlertPayload, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p AlertPayload
		json.NewDecoder(r.Body).Decode(&p)
		got <- p
	}))
	defer hook.Close()

	t.Setenv("SENTIENT_ALERT_WEBHOOK_URL", hook.URL)
	t.Setenv("SENTIENT_JOURNAL_ALERT_DELAY", "0s")
	a := NewAlerter("hooked")

	a.CheckJournal(false)

	select {
	case p := <-got:
		if p.Event != AlertJournalUnavailable || p.Instance != "hooked" {
			t.Errorf("unexpected payload %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}
