package chat

import (
	"log/slog"
	"sync"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
)

// Subscriber receives frames published to the topics it joined. Deliver must
// not block; returning false drops the subscriber from every topic.
type Subscriber interface {
	Deliver(f Frame) bool
}

// Broker fans frames out to topic subscribers in-process.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
	log    *slog.Logger
}

func NewBroker(log *slog.Logger) *Broker {
	return &Broker{topics: make(map[string]map[Subscriber]struct{}), log: log}
}

// Subscribe adds sub to topic. Subscribing twice has no effect.
func (b *Broker) Subscribe(topic string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		b.topics[topic] = subs
	}

	subs[sub] = struct{}{}
}

func (b *Broker) Unsubscribe(topic string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unsubscribeLocked(topic, sub)
}

// Remove drops sub from every topic.
func (b *Broker) Remove(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic := range b.topics {
		b.unsubscribeLocked(topic, sub)
	}
}

func (b *Broker) unsubscribeLocked(topic string, sub Subscriber) {
	subs, ok := b.topics[topic]
	if !ok {
		return
	}

	delete(subs, sub)

	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Subscribers reports how many subscribers topic has.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.topics[topic])
}

// Publish delivers f to every subscriber of topic, sender included.
func (b *Broker) Publish(topic string, f Frame) {
	b.mu.RLock()

	subs := make([]Subscriber, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}

	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.Deliver(f) {
			b.log.Warn("dropping slow subscriber", "topic", topic)
			b.Remove(sub)
		}
	}
}

// PublishMessage sends msg to its transaction's topic.
func (b *Broker) PublishMessage(msg *Message) {
	topic := TopicFor(msg.TransactionID)

	f, err := NewFrame(FrameMessage, topic, msg)
	if err != nil {
		b.log.Error("failed to encode message", "error", err, "transaction_id", msg.TransactionID)
		return
	}

	b.Publish(topic, f)
}

// TransactionChanged announces a state change to the transaction's topic.
func (b *Broker) TransactionChanged(tx *transaction.Transaction) {
	topic := TopicFor(tx.ID)

	f, err := NewFrame(FrameEvent, topic, Event{TransactionID: tx.ID, State: string(tx.State)})
	if err != nil {
		b.log.Error("failed to encode event", "error", err, "transaction_id", tx.ID)
		return
	}

	b.Publish(topic, f)
}
