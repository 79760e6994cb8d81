package mqtt

import (
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// Message is a publish recorded by MemoryBroker.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// MemoryBroker is an in-process Client used in tests and dry runs.
// Publishes are recorded and delivered synchronously to matching subscribers.
// Retained messages are replayed to new subscribers.
type MemoryBroker struct {
	mu       sync.Mutex
	messages []Message
	retained map[string]Message
	subs     map[string]coremqtt.Handler
	FailOn   map[string]bool
}

var _ coremqtt.Client = (*MemoryBroker)(nil)

// NewMemoryBroker creates an empty MemoryBroker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		retained: make(map[string]Message),
		subs:     make(map[string]coremqtt.Handler),
		FailOn:   make(map[string]bool),
	}
}

// Publish records the message or returns an error if the topic is configured to fail.
func (b *MemoryBroker) Publish(topic string, qos byte, retained bool, payload []byte) error {
	b.mu.Lock()
	if b.FailOn[topic] {
		b.mu.Unlock()
		return fmt.Errorf("publish %s failed", topic)
	}
	msg := Message{Topic: topic, QoS: qos, Retained: retained, Payload: append([]byte(nil), payload...)}
	b.messages = append(b.messages, msg)
	if retained {
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = msg
		}
	}
	var handlers []coremqtt.Handler
	for f, h := range b.subs {
		if coremqtt.Match(f, topic) {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(topic, msg.Payload)
	}
	return nil
}

// Subscribe registers h and replays matching retained messages.
func (b *MemoryBroker) Subscribe(filter string, _ byte, h coremqtt.Handler) error {
	b.mu.Lock()
	b.subs[filter] = h
	var replay []Message
	for t, m := range b.retained {
		if coremqtt.Match(filter, t) {
			replay = append(replay, m)
		}
	}
	b.mu.Unlock()
	for _, m := range replay {
		h(m.Topic, m.Payload)
	}
	return nil
}

// Unsubscribe removes the handlers for filters.
func (b *MemoryBroker) Unsubscribe(filters ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range filters {
		delete(b.subs, f)
	}
	return nil
}

// Messages returns every recorded publish in order.
func (b *MemoryBroker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Published returns the recorded publishes on topic.
func (b *MemoryBroker) Published(topic string) []Message {
	var out []Message
	for _, m := range b.Messages() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Retained returns the retained message for topic, if any.
func (b *MemoryBroker) Retained(topic string) (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.retained[topic]
	return m, ok
}

// Subscriptions returns the number of active subscriptions.
func (b *MemoryBroker) Subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
