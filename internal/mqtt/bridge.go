package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/AaronLay10/SentientJobs/internal/jobs"
)

// Bridge mirrors entity lifecycle and task changes onto MQTT. It decorates a
// jobs.Host: every call is forwarded first, then published under
// <prefix>/entities/<id>/...
type Bridge struct {
	jobs.Host
	pub     Publisher
	prefix  string
	dropped atomic.Uint64
}

var _ jobs.Host = (*Bridge)(nil)

// TaskMessage is published on <prefix>/entities/<id>/task.
type TaskMessage struct {
	Entity   jobs.EntityID `json:"entity"`
	Kind     jobs.Kind     `json:"kind"`
	Task     string        `json:"task,omitempty"`
	Attached bool          `json:"attached"`
}

// EntityMessage is published on the spawned, despawned and paused topics.
type EntityMessage struct {
	Entity jobs.EntityID `json:"entity"`
	Task   string        `json:"task,omitempty"`
	Paused *bool         `json:"paused,omitempty"`
}

// NewBridge wraps host. prefix defaults to "jobs".
func NewBridge(host jobs.Host, pub Publisher, prefix string) *Bridge {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "jobs"
	}
	return &Bridge{Host: host, pub: pub, prefix: prefix}
}

// Spawn forwards and publishes spawned.
func (b *Bridge) Spawn(task jobs.Task) jobs.EntityID {
	id := b.Host.Spawn(task)
	msg := EntityMessage{Entity: id}
	if task != nil {
		msg.Task = task.Describe()
	}
	b.publish(id, "spawned", msg)
	return id
}

// Despawn forwards and publishes despawned.
func (b *Bridge) Despawn(id jobs.EntityID) {
	b.Host.Despawn(id)
	b.publish(id, "despawned", EntityMessage{Entity: id})
}

// Attach forwards and publishes the new descriptor.
func (b *Bridge) Attach(id jobs.EntityID, task jobs.Task) {
	b.Host.Attach(id, task)
	b.publish(id, "task", TaskMessage{Entity: id, Kind: task.Kind(), Task: task.Describe(), Attached: true})
}

// Detach forwards and publishes the removal.
func (b *Bridge) Detach(id jobs.EntityID, kind jobs.Kind) {
	b.Host.Detach(id, kind)
	b.publish(id, "task", TaskMessage{Entity: id, Kind: kind})
}

// SetPaused forwards and publishes the marker.
func (b *Bridge) SetPaused(id jobs.EntityID, paused bool) {
	b.Host.SetPaused(id, paused)
	b.publish(id, "paused", EntityMessage{Entity: id, Paused: &paused})
}

// Dropped returns the number of messages that could not be published.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Topic returns the topic for an entity sub-path.
func (b *Bridge) Topic(id jobs.EntityID, leaf string) string {
	return fmt.Sprintf("%s/entities/%d/%s", b.prefix, id, leaf)
}

func (b *Bridge) publish(id jobs.EntityID, leaf string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.dropped.Add(1)
		return
	}
	if err := b.pub.Publish(b.Topic(id, leaf), payload); err != nil {
		b.dropped.Add(1)
	}
}
