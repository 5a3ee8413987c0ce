package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var buffer = NewBacklog(256)

// Journal persists events outside the process. Implementations live under
// internal/storage.
type Journal interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, session string) error
}

var (
	journal       Journal
	session       string
	journalMu     sync.RWMutex
	journalFailed bool

	totalCount atomic.Int64

	listenersMu sync.RWMutex
	listeners   []func(Event)
)

// SetJournal sets the sink events are persisted to. nil disables persistence.
func SetJournal(j Journal) {
	journalMu.Lock()
	journal = j
	journalFailed = false
	journalMu.Unlock()
}

// GetJournal returns the current journal (for API queries).
func GetJournal() Journal {
	journalMu.RLock()
	defer journalMu.RUnlock()
	return journal
}

// SetSession tags every journal row written from now on with id.
func SetSession(id string) {
	journalMu.Lock()
	session = id
	journalMu.Unlock()
}

// Session returns the current journal session id.
func Session() string {
	journalMu.RLock()
	defer journalMu.RUnlock()
	return session
}

// Observe registers fn to be called synchronously for every emitted event.
// fn must not call Emit.
func Observe(fn func(Event)) {
	listenersMu.Lock()
	listeners = append(listeners, fn)
	listenersMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	totalCount.Add(1)
	broadcast(e)
	notify(e)

	journalMu.RLock()
	j := journal
	sess := session
	failed := journalFailed
	journalMu.RUnlock()

	if j != nil {
		if err := j.Append(ts, level, name, msg, fields, sess); err != nil && !failed {
			// Report the first failure straight into the buffer. Going through
			// Emit would append to the failing journal again.
			journalMu.Lock()
			first := !journalFailed
			journalFailed = true
			journalMu.Unlock()
			if first {
				errEvent := Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "journal append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				}
				buffer.Add(errEvent)
				broadcast(errEvent)
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func notify(e Event) {
	listenersMu.RLock()
	defer listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(e)
	}
}

// Snapshot returns every event still held in the backlog, oldest first.
func Snapshot() []Event {
	return buffer.Last(0)
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() int64 {
	return totalCount.Load()
}

// Clear resets the event backlog. Used for testing.
func Clear() {
	buffer.Reset()
}
