package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
)

// WebSocketDialer connects to the chat endpoint with gorilla/websocket.
type WebSocketDialer struct {
	URL          string
	WriteTimeout time.Duration
	Log          *slog.Logger
}

func NewWebSocketDialer(url string, writeTimeout time.Duration, log *slog.Logger) *WebSocketDialer {
	return &WebSocketDialer{URL: url, WriteTimeout: writeTimeout, Log: log}
}

func (d *WebSocketDialer) Dial(ctx context.Context, credential string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	ws, resp, err := dialer.DialContext(ctx, d.URL, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, fmt.Errorf("%w: %s", ErrHandshake, resp.Status)
		}

		return nil, fmt.Errorf("dialing chat: %w", err)
	}

	c := &wsConn{
		ws:           ws,
		handlers:     make(map[string]binding),
		done:         make(chan struct{}),
		writeTimeout: d.WriteTimeout,
		log:          d.Log,
	}

	go c.readLoop()

	return c, nil
}

type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[string]binding
	nextID   uint64
	err      error

	done      chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
	log          *slog.Logger
}

// binding is the handler installed for a topic. The id tells a subscription
// whether its handler was since replaced by a newer one.
type binding struct {
	id      uint64
	handler Handler
}

type wsSubscription struct {
	conn  *wsConn
	topic string
	id    uint64
	once  sync.Once
}

// Unsubscribe is a no-op once a newer subscription took over the topic.
func (s *wsSubscription) Unsubscribe() error {
	var err error

	s.once.Do(func() {
		if !s.conn.unbind(s.topic, s.id) {
			return
		}

		err = s.conn.write(chat.Frame{Type: chat.FrameUnsubscribe, Destination: s.topic})
	})

	return err
}

func (c *wsConn) Subscribe(topic string, h Handler) (Subscription, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[topic] = binding{id: id, handler: h}
	c.mu.Unlock()

	if err := c.write(chat.Frame{Type: chat.FrameSubscribe, Destination: topic}); err != nil {
		c.unbind(topic, id)
		return nil, err
	}

	return &wsSubscription{conn: c, topic: topic, id: id}, nil
}

// unbind removes the topic's handler if it is still the one installed as id.
func (c *wsConn) unbind(topic string, id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.handlers[topic]; !ok || b.id != id {
		return false
	}

	delete(c.handlers, topic)

	return true
}

func (c *wsConn) Publish(destination string, body any) error {
	f, err := chat.NewFrame(chat.FrameSend, destination, body)
	if err != nil {
		return err
	}

	return c.write(f)
}

func (c *wsConn) Done() <-chan struct{} {
	return c.done
}

func (c *wsConn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.err
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.shutdown(nil)

	return nil
}

func (c *wsConn) write(f chat.Frame) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	if err := c.ws.WriteJSON(f); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}

	return nil
}

func (c *wsConn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(fmt.Errorf("reading frame: %w", err))
			return
		}

		var f chat.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("dropping malformed frame", "error", err)
			continue
		}

		c.mu.RLock()
		b, ok := c.handlers[f.Destination]
		c.mu.RUnlock()

		if !ok {
			if f.Type == chat.FrameError {
				c.log.Warn("chat server error", "message", f.Message)
			}

			continue
		}

		b.handler(f)
	}
}

func (c *wsConn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		close(c.done)
		_ = c.ws.Close()
	})
}
