// Package storage holds what the event journals share.
package storage

import (
	"context"
	"time"
)

// EventRow is one journalled event.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Instance  string                 `json:"instance"`
	SessionID *string                `json:"session_id,omitempty"`
}

// Journal is an event store that can be appended to and read back.
type Journal interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error
	Query(limit int, event string) ([]EventRow, error)
	Close() error
}

// Pinger is implemented by journals that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClampLimit bounds a history query.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}
