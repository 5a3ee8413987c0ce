package mqtt

import (
	"errors"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/sim"
)

// MockMQTTClient records subscriptions and replays messages into them.
type MockMQTTClient struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	calls         int
	err           error
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{subscriptions: make(map[string]paho.MessageHandler)}
}

func (m *MockMQTTClient) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.subscriptions[topic] = handler
	return nil
}

func (m *MockMQTTClient) SimulateMessage(filter, topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.subscriptions[filter]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

type fakeSubmitter struct {
	mu   sync.Mutex
	cmds []sim.Command
	err  error
}

func (f *fakeSubmitter) Submit(c sim.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cmds = append(f.cmds, c)
	return nil
}

func TestCommandSubscriberIdempotent(t *testing.T) {
	client := NewMockMQTTClient()
	s := NewCommandSubscriber(client, &fakeSubmitter{}, "jobs")

	if err := s.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := s.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 subscribe call, got %d", client.calls)
	}
	if !s.IsSubscribed() {
		t.Error("expected subscribed")
	}

	s.Reset()
	if s.IsSubscribed() {
		t.Error("expected reset to clear tracking")
	}
	s.Subscribe()
	if client.calls != 2 {
		t.Errorf("expected resubscribe after reset, got %d calls", client.calls)
	}
}

func TestCommandSubscriberSubscribeError(t *testing.T) {
	client := NewMockMQTTClient()
	client.err = errors.New("broker gone")
	s := NewCommandSubscriber(client, &fakeSubmitter{}, "jobs")

	if err := s.Subscribe(); err == nil {
		t.Fatal("expected error")
	}
	if s.IsSubscribed() {
		t.Error("failed subscribe must not be tracked")
	}
}

func TestCommandSubscriberQueuesCommands(t *testing.T) {
	client := NewMockMQTTClient()
	target := &fakeSubmitter{}
	s := NewCommandSubscriber(client, target, "jobs")
	s.Subscribe()

	client.SimulateMessage(s.Topic(), "jobs/commands", []byte(`{"op":"start","job":"patrol"}`))
	client.SimulateMessage(s.Topic(), "jobs/commands/advance", []byte(`{"entity":3}`))
	client.SimulateMessage(s.Topic(), "jobs/commands/skip_hour", nil)

	if len(target.cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(target.cmds))
	}
	if target.cmds[0].Op != sim.OpStart || target.cmds[0].Job != "patrol" {
		t.Errorf("unexpected first command %+v", target.cmds[0])
	}
	if target.cmds[1].Op != sim.OpAdvance || target.cmds[1].Entity != 3 {
		t.Errorf("expected op from topic, got %+v", target.cmds[1])
	}
	if target.cmds[2].Op != sim.OpSkipHour {
		t.Errorf("expected skip_hour, got %+v", target.cmds[2])
	}
}

func TestCommandSubscriberRejects(t *testing.T) {
	events.Clear()
	target := &fakeSubmitter{}
	s := NewCommandSubscriber(NewMockMQTTClient(), target, "jobs")

	cases := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad json", "jobs/commands", `{not json`},
		{"missing op", "jobs/commands", `{"entity":1}`},
		{"unknown op", "jobs/commands/explode", ``},
		{"missing entity", "jobs/commands/advance", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.HandleMessage(tc.topic, []byte(tc.payload)); err == nil {
				t.Error("expected rejection")
			}
		})
	}
	if len(target.cmds) != 0 {
		t.Errorf("expected nothing queued, got %d", len(target.cmds))
	}

	rejected := 0
	for _, e := range events.Snapshot() {
		if e.Name == "operator.rejected" {
			rejected++
		}
	}
	if rejected != len(cases) {
		t.Errorf("expected %d operator.rejected events, got %d", len(cases), rejected)
	}
}

func TestCommandSubscriberQueueFull(t *testing.T) {
	target := &fakeSubmitter{err: sim.ErrQueueFull}
	s := NewCommandSubscriber(NewMockMQTTClient(), target, "jobs")

	err := s.HandleMessage("jobs/commands", []byte(`{"op":"spawn"}`))
	if !errors.Is(err, sim.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}
