package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertMQTTDisconnected   = "mqtt_disconnected"
	AlertJournalUnavailable = "journal_unavailable"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	Instance  string                 `json:"instance"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// watch tracks one dependency's outage.
type watch struct {
	event    string
	severity string
	label    string
	delay    time.Duration
	downAt   time.Time
	alerted  bool
}

// Alerter posts to a webhook when a dependency stays down longer than its
// delay, and again when it recovers. Without a webhook it logs instead.
type Alerter struct {
	mu       sync.Mutex
	webhook  string
	instance string
	client   *http.Client
	mqtt     *watch
	journal  *watch
	now      func() time.Time
	send     func(AlertPayload)
}

// NewAlerter reads SENTIENT_ALERT_WEBHOOK_URL, SENTIENT_MQTT_ALERT_DELAY and
// SENTIENT_JOURNAL_ALERT_DELAY.
func NewAlerter(instance string) *Alerter {
	a := &Alerter{
		webhook:  os.Getenv("SENTIENT_ALERT_WEBHOOK_URL"),
		instance: instance,
		client:   &http.Client{Timeout: 10 * time.Second},
		mqtt: &watch{
			event: AlertMQTTDisconnected, severity: SeverityWarning,
			label: "MQTT broker", delay: envDuration("SENTIENT_MQTT_ALERT_DELAY", 30*time.Second),
		},
		journal: &watch{
			event: AlertJournalUnavailable, severity: SeverityCritical,
			label: "Event journal", delay: envDuration("SENTIENT_JOURNAL_ALERT_DELAY", 5*time.Second),
		},
		now: time.Now,
	}
	a.send = a.post
	if a.webhook != "" {
		log.Printf("Alerts enabled: webhook URL configured (mqtt_delay=%s, journal_delay=%s)",
			a.mqtt.delay, a.journal.delay)
	}
	return a
}

func envDuration(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// CheckMQTT feeds the broker state.
func (a *Alerter) CheckMQTT(connected bool) { a.check(a.mqtt, connected) }

// CheckJournal feeds the journal state.
func (a *Alerter) CheckJournal(connected bool) { a.check(a.journal, connected) }

func (a *Alerter) check(w *watch, up bool) {
	a.mu.Lock()
	now := a.now()
	var payload *AlertPayload
	switch {
	case up:
		if w.alerted {
			payload = a.payload(w.event, SeverityInfo, w.label+" restored", map[string]interface{}{
				"recovered_at": now.UTC().Format(time.RFC3339),
			})
		}
		w.downAt = time.Time{}
		w.alerted = false
	case w.downAt.IsZero():
		w.downAt = now
	}
	if !up && !w.alerted && now.Sub(w.downAt) >= w.delay {
		w.alerted = true
		payload = a.payload(w.event, w.severity, w.label+" unavailable", map[string]interface{}{
			"down_since":   w.downAt.UTC().Format(time.RFC3339),
			"down_seconds": int(now.Sub(w.downAt).Seconds()),
		})
	}
	send := a.send
	a.mu.Unlock()

	if payload != nil {
		send(*payload)
	}
}

func (a *Alerter) payload(event, severity, msg string, details map[string]interface{}) *AlertPayload {
	return &AlertPayload{
		Instance:  a.instance,
		Event:     event,
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Severity:  severity,
		Message:   msg,
		Details:   details,
	}
}

// post delivers the alert without blocking the caller.
func (a *Alerter) post(p AlertPayload) {
	if a.webhook == "" {
		log.Printf("[ALERT] %s severity=%s msg=%q details=%v", p.Event, p.Severity, p.Message, p.Details)
		return
	}
	go func() {
		body, err := json.Marshal(p)
		if err != nil {
			log.Printf("alert: failed to marshal payload: %v", err)
			return
		}
		resp, err := a.client.Post(a.webhook, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("alert: webhook POST failed: %v", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("alert: webhook returned status %d", resp.StatusCode)
		}
	}()
}

// Run checks the readiness state every interval until ctx is done.
func (a *Alerter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			readiness.mu.RLock()
			mqtt, mqttOff := readiness.mqttConnected, readiness.mqttOptional
			journal, journalOff := readiness.journalConnected, readiness.journalOptional
			readiness.mu.RUnlock()
			if !mqttOff {
				a.CheckMQTT(mqtt)
			}
			if !journalOff {
				a.CheckJournal(journal)
			}
		}
	}
}
