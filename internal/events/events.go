package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

type EventType string

const (
	// Terminal lifecycle events
	EventTerminalOpened EventType = "terminal.opened"
	EventTerminalExited EventType = "terminal.exited"

	// Dock events
	EventDockRan EventType = "dock.ran"
)

// Event carries session metadata only. Raw terminal output stays on the
// websocket feed and never crosses the bus.
type Event struct {
	Type           EventType `json:"type"`
	SessionID      string    `json:"session_id,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	EnvironmentTag string    `json:"environment_tag,omitempty"`
	Scope          string    `json:"scope,omitempty"`
	CommandTitle   string    `json:"command_title,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type Bus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	subs   []*nats.Subscription
	active bool
}

func NewBus(natsURL string) (*Bus, error) {
	if natsURL == "" {
		// No NATS configured, return inactive bus
		return &Bus{active: false}, nil
	}

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	bus := &Bus{
		nc:     nc,
		js:     js,
		active: true,
	}

	// Create streams
	if err := bus.createStreams(); err != nil {
		nc.Close()
		return nil, err
	}

	return bus, nil
}

func (b *Bus) createStreams() error {
	streams := []struct {
		name     string
		subjects []string
	}{
		{"OPSPAD_TERMINALS", []string{"opspad.terminal.>"}},
		{"OPSPAD_DOCK", []string{"opspad.dock.>"}},
	}

	for _, s := range streams {
		_, err := b.js.AddStream(&nats.StreamConfig{
			Name:      s.name,
			Subjects:  s.subjects,
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour, // Keep events for 24 hours
			Storage:   nats.FileStorage,
		})
		if err != nil && err != nats.ErrStreamNameAlreadyInUse {
			return fmt.Errorf("failed to create stream %s: %w", s.name, err)
		}
	}

	return nil
}

func (b *Bus) Publish(event Event) error {
	if !b.active {
		return nil // Silently ignore if NATS not configured
	}

	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := b.subjectFor(event)
	_, err = b.js.Publish(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (b *Bus) subjectFor(event Event) string {
	// Subject format: opspad.<family>.<key>.<event>
	switch event.Type {
	case EventTerminalOpened, EventTerminalExited:
		return fmt.Sprintf("opspad.terminal.%s.%s", event.SessionID, event.Type)
	case EventDockRan:
		return fmt.Sprintf("opspad.dock.%s.%s", scopeKey(event.Scope), event.Type)
	default:
		return fmt.Sprintf("opspad.unknown.%s", event.Type)
	}
}

// scopeKey rewrites a session scope into valid NATS subject tokens.
// "ssh:deploy@db-1:2222" becomes "ssh.deploy.db-1.2222".
func scopeKey(scope string) string {
	return strings.NewReplacer(":", ".", "@", ".").Replace(scope)
}

// Subscribe to events matching a subject pattern. Returns unsubscribe function.
func (b *Bus) Subscribe(subject string, handler func(Event)) (func(), error) {
	if !b.active {
		return func() {}, nil
	}

	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return // Skip malformed events
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	// Track subscription for cleanup on Close()
	b.subs = append(b.subs, sub)

	return func() { sub.Unsubscribe() }, nil
}

// SubscribeSession subscribes to all lifecycle events for one terminal
// session. Returns unsubscribe function.
func (b *Bus) SubscribeSession(sessionID string, handler func(Event)) (func(), error) {
	return b.Subscribe(fmt.Sprintf("opspad.terminal.%s.>", sessionID), handler)
}

func (b *Bus) Close() error {
	if !b.active {
		return nil
	}

	for _, sub := range b.subs {
		sub.Unsubscribe()
	}

	b.nc.Close()
	return nil
}

func (b *Bus) IsActive() bool {
	return b.active
}
