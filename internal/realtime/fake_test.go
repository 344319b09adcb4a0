package realtime_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/realtime"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type published struct {
	destination string
	body        any
}

type fakeConn struct {
	mu         sync.Mutex
	handlers   map[string]realtime.Handler
	subscribes map[string]int
	published  []published

	done chan struct{}
	once sync.Once
	err  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		handlers:   make(map[string]realtime.Handler),
		subscribes: make(map[string]int),
		done:       make(chan struct{}),
	}
}

type fakeSub struct {
	conn  *fakeConn
	topic string
}

func (s *fakeSub) Unsubscribe() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	delete(s.conn.handlers, s.topic)

	return nil
}

func (c *fakeConn) Subscribe(topic string, h realtime.Handler) (realtime.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[topic] = h
	c.subscribes[topic]++

	return &fakeSub{conn: c, topic: topic}, nil
}

func (c *fakeConn) Publish(destination string, body any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.published = append(c.published, published{destination: destination, body: body})

	return nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// drop simulates the server going away.
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	c.Close()
}

func (c *fakeConn) subscribeCount(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subscribes[topic]
}

// deliver hands f to whichever handler is registered for its destination.
func (c *fakeConn) deliver(f chat.Frame) {
	c.mu.Lock()
	h := c.handlers[f.Destination]
	c.mu.Unlock()

	if h != nil {
		h(f)
	}
}

func (c *fakeConn) handlerFor(topic string) realtime.Handler {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.handlers[topic]
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  error
	creds []string
}

func (d *fakeDialer) Dial(ctx context.Context, credential string) (realtime.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.creds = append(d.creds, credential)

	if d.fail != nil {
		return nil, d.fail
	}

	c := newFakeConn()
	d.conns = append(d.conns, c)

	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.creds)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i >= len(d.conns) {
		return nil
	}

	return d.conns[i]
}

func messageFrame(transactionID, id int64, content string, ts time.Time) chat.Frame {
	body, _ := json.Marshal(chat.Message{
		ID:            id,
		TransactionID: transactionID,
		Content:       content,
		Timestamp:     ts,
	})

	return chat.Frame{Type: chat.FrameMessage, Destination: chat.TopicFor(transactionID), Body: body}
}
