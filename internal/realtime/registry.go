package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
)

// Sink stores the messages received for each transaction.
type Sink interface {
	Append(transactionID int64, msg chat.Message) bool
	AppendError(transactionID int64, description string)
	Clear(transactionID int64)
}

// entry is replaced, never reused, whenever its transport handle changes so
// handlers bound to an older entry can tell they are stale.
type entry struct {
	id  int64
	sub Subscription
}

// Registry tracks which transaction chats are open and keeps them attached
// to the current session.
type Registry struct {
	sink Sink
	log  *slog.Logger
	now  func() time.Time

	mu      sync.Mutex
	conn    Conn
	entries map[int64]*entry
	err     error
	onEvent func(chat.Event)
}

func NewRegistry(sink Sink, log *slog.Logger) *Registry {
	return &Registry{
		sink:    sink,
		log:     log,
		now:     time.Now,
		entries: make(map[int64]*entry),
	}
}

// OnEvent registers fn to be called for transaction state events.
func (r *Registry) OnEvent(fn func(chat.Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onEvent = fn
}

// Subscribe attaches the transaction's topic to the current session. Without
// a session nothing is recorded and ErrNotConnected is returned; callers
// subscribe again once connected.
func (r *Registry) Subscribe(transactionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[transactionID]

	if r.conn == nil {
		if ok {
			return nil
		}

		return ErrNotConnected
	}

	if ok && e.sub != nil {
		return nil
	}

	return r.attachLocked(r.conn, transactionID)
}

func (r *Registry) attachLocked(conn Conn, transactionID int64) error {
	e := &entry{id: transactionID}
	r.entries[transactionID] = e

	sub, err := conn.Subscribe(chat.TopicFor(transactionID), r.handler(e))
	if err != nil {
		r.err = fmt.Errorf("subscribing to transaction %d: %w", transactionID, err)
		return r.err
	}

	e.sub = sub

	return nil
}

// Unsubscribe detaches the transaction and discards its messages.
func (r *Registry) Unsubscribe(transactionID int64) {
	r.mu.Lock()
	e, ok := r.entries[transactionID]
	delete(r.entries, transactionID)
	r.mu.Unlock()

	if ok && e.sub != nil {
		if err := e.sub.Unsubscribe(); err != nil {
			r.log.Debug("failed to unsubscribe", "error", err, "transaction_id", transactionID)
		}
	}

	r.sink.Clear(transactionID)
}

// Drop forgets conn's handles but keeps every transaction open.
func (r *Registry) Drop(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != conn {
		return
	}

	r.conn = nil

	for id := range r.entries {
		r.entries[id] = &entry{id: id}
	}
}

// Restore makes conn the current session and re-attaches every open
// transaction. It does nothing once ctx is cancelled.
func (r *Registry) Restore(ctx context.Context, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	r.conn = conn
	r.err = nil

	for _, id := range r.idsLocked() {
		if err := r.attachLocked(conn, id); err != nil {
			r.log.Warn("failed to restore subscription", "error", err, "transaction_id", id)
		}
	}
}

// Reset forgets every transaction and its messages.
func (r *Registry) Reset() {
	r.mu.Lock()
	ids := r.idsLocked()
	r.entries = make(map[int64]*entry)
	r.conn = nil
	r.mu.Unlock()

	for _, id := range ids {
		r.sink.Clear(id)
	}
}

// IDs returns the open transactions in ascending order.
func (r *Registry) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.idsLocked()
}

// Attached reports whether the transaction has a live handle.
func (r *Registry) Attached(transactionID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[transactionID]

	return ok && e.sub != nil
}

func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

func (r *Registry) idsLocked() []int64 {
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

func (r *Registry) handler(e *entry) Handler {
	return func(f chat.Frame) {
		r.mu.Lock()
		live := r.entries[e.id] == e
		onEvent := r.onEvent
		r.mu.Unlock()

		if !live {
			return
		}

		switch f.Type {
		case chat.FrameMessage:
			r.deliver(e.id, f.Body)
		case chat.FrameEvent:
			var ev chat.Event
			if err := json.Unmarshal(f.Body, &ev); err != nil {
				r.fail(fmt.Errorf("decoding event: %w", err))
				return
			}

			if onEvent != nil {
				onEvent(ev)
			}
		case chat.FrameError:
			r.fail(fmt.Errorf("chat server: %s", f.Message))
			r.sink.AppendError(e.id, f.Message)
		}
	}
}

func (r *Registry) deliver(transactionID int64, body []byte) {
	msg, err := chat.DecodeMessage(body)
	if err != nil {
		r.fail(err)
		r.sink.AppendError(transactionID, "received an unreadable message")

		return
	}

	if msg.TransactionID == 0 {
		msg.TransactionID = transactionID
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = r.now()
	}

	r.sink.Append(transactionID, msg)
}

func (r *Registry) fail(err error) {
	r.log.Warn("chat frame rejected", "error", err)

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}
