package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/sim"
)

// Subscriber is the part of *Client the command subscriber needs.
type Subscriber interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// Submitter queues a command for the next tick. *sim.Simulation satisfies it.
type Submitter interface {
	Submit(c sim.Command) error
}

// CommandSubscriber turns messages on <prefix>/commands[/<op>] into queued
// simulation commands. Subscribing is idempotent until Reset.
type CommandSubscriber struct {
	mu         sync.Mutex
	client     Subscriber
	target     Submitter
	prefix     string
	subscribed bool
}

// NewCommandSubscriber creates a subscriber. prefix defaults to "jobs".
func NewCommandSubscriber(client Subscriber, target Submitter, prefix string) *CommandSubscriber {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "jobs"
	}
	return &CommandSubscriber{client: client, target: target, prefix: prefix}
}

// Topic returns the subscription filter.
func (s *CommandSubscriber) Topic() string {
	return s.prefix + "/commands/#"
}

// Subscribe subscribes once. Safe to call on every reconnect after Reset.
func (s *CommandSubscriber) Subscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		return nil
	}
	if err := s.client.Subscribe(s.Topic(), s.handle); err != nil {
		events.Emit("error", "system.error", "mqtt subscribe failed", map[string]interface{}{
			"topic": s.Topic(),
			"error": err.Error(),
		})
		return err
	}
	s.subscribed = true
	return nil
}

// IsSubscribed reports whether the command topic is subscribed.
func (s *CommandSubscriber) IsSubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

// Reset clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (s *CommandSubscriber) Reset() {
	s.mu.Lock()
	s.subscribed = false
	s.mu.Unlock()
}

func (s *CommandSubscriber) handle(_ paho.Client, msg paho.Message) {
	_ = s.HandleMessage(msg.Topic(), msg.Payload())
}

// HandleMessage parses one command message and queues it. A trailing topic
// segment names the op when the payload does not.
func (s *CommandSubscriber) HandleMessage(topic string, payload []byte) error {
	cmd, err := ParseCommand(s.prefix, topic, payload)
	if err == nil {
		err = s.target.Submit(cmd)
	}
	if err != nil {
		events.Emit("warn", "operator.rejected", err.Error(), map[string]interface{}{
			"source": "mqtt",
			"topic":  topic,
		})
	}
	return err
}

// ParseCommand decodes a command payload received on topic.
func ParseCommand(prefix, topic string, payload []byte) (sim.Command, error) {
	var cmd sim.Command
	if len(strings.TrimSpace(string(payload))) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return cmd, fmt.Errorf("invalid command JSON: %w", err)
		}
	}
	if cmd.Op == "" {
		base := strings.Trim(prefix, "/") + "/commands/"
		if op, ok := strings.CutPrefix(topic, base); ok && op != "" && !strings.Contains(op, "/") {
			cmd.Op = sim.Op(op)
		}
	}
	if err := cmd.Validate(); err != nil {
		return cmd, err
	}
	return cmd, nil
}
