// Package chatlog keeps the ordered message stream of every open chat.
package chatlog

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
)

// Aggregator holds one timestamp-ordered sequence per transaction. Messages
// with equal timestamps keep their arrival order.
type Aggregator struct {
	mu        sync.RWMutex
	seqs      map[int64][]chat.Message
	nextLocal int64

	notify func(transactionID int64)
	now    func() time.Time
}

type Option func(*Aggregator)

// WithNotify registers fn to be called after a transaction's sequence changes.
func WithNotify(fn func(transactionID int64)) Option {
	return func(a *Aggregator) {
		a.notify = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		seqs: make(map[int64][]chat.Message),
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Append inserts msg in timestamp order. A message whose server id is
// already present is ignored and Append reports false. A message without a
// timestamp is stamped with the time it was received.
func (a *Aggregator) Append(transactionID int64, msg chat.Message) bool {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = a.now()
	}

	a.mu.Lock()

	seq := a.seqs[transactionID]

	if msg.ID > 0 {
		for _, m := range seq {
			if m.ID == msg.ID {
				a.mu.Unlock()
				return false
			}
		}
	}

	a.insertLocked(transactionID, msg)
	a.mu.Unlock()

	a.changed(transactionID)

	return true
}

// AppendError adds a local placeholder describing a failure.
func (a *Aggregator) AppendError(transactionID int64, description string) {
	a.mu.Lock()

	a.nextLocal--

	a.insertLocked(transactionID, chat.Message{
		ID:            a.nextLocal,
		TransactionID: transactionID,
		Timestamp:     a.now(),
		Error:         true,
		Description:   description,
	})
	a.mu.Unlock()

	a.changed(transactionID)
}

func (a *Aggregator) insertLocked(transactionID int64, msg chat.Message) {
	seq := a.seqs[transactionID]

	i := sort.Search(len(seq), func(i int) bool {
		return seq[i].Timestamp.After(msg.Timestamp)
	})

	a.seqs[transactionID] = slices.Insert(seq, i, msg)
}

// Clear discards the transaction's sequence.
func (a *Aggregator) Clear(transactionID int64) {
	a.mu.Lock()
	_, ok := a.seqs[transactionID]
	delete(a.seqs, transactionID)
	a.mu.Unlock()

	if ok {
		a.changed(transactionID)
	}
}

// MessagesFor returns a copy of the transaction's sequence, empty but never
// nil when there is none.
func (a *Aggregator) MessagesFor(transactionID int64) []chat.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]chat.Message, len(a.seqs[transactionID]))
	copy(out, a.seqs[transactionID])

	return out
}

func (a *Aggregator) changed(transactionID int64) {
	if a.notify != nil {
		a.notify(transactionID)
	}
}
