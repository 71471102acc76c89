// Package memory keeps progress notifications in process. Dry runs use it in
// place of Pub/Sub so the messages a real run would send can be inspected.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one notification as the Pub/Sub publisher would have sent it.
type Message struct {
	ID    string
	Topic string
	Data  []byte
}

// Decode unmarshals the JSON body of m.
func (m Message) Decode() (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(m.Data, &body); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", m.ID, err)
	}
	return body, nil
}

// Publisher records notifications per topic.
type Publisher struct {
	mu     sync.RWMutex
	seq    int
	topics map[string][]Message
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{topics: make(map[string][]Message)}
}

// Publish JSON-encodes payload like the Pub/Sub publisher and stores it under
// topic. IDs are unique across topics.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	msg := Message{ID: fmt.Sprintf("%s/%d", topic, p.seq), Topic: topic, Data: data}
	p.topics[topic] = append(p.topics[topic], msg)
	return msg.ID, nil
}

// Messages returns a copy of what was published to topic, oldest first.
func (p *Publisher) Messages(topic string) []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Message(nil), p.topics[topic]...)
}
