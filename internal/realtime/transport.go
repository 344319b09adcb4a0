package realtime

import (
	"context"
	"errors"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
)

var (
	ErrNotConnected = errors.New("chat is not connected")
	ErrHandshake    = errors.New("chat handshake rejected")
)

// Handler receives every frame addressed to a subscribed topic.
type Handler func(f chat.Frame)

type Subscription interface {
	Unsubscribe() error
}

// Conn is one live session with the chat server. Done is closed when the
// session ends for any reason; Err then reports why.
type Conn interface {
	Subscribe(topic string, h Handler) (Subscription, error)
	Publish(destination string, body any) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Dialer opens sessions authenticated with a bearer credential.
type Dialer interface {
	Dial(ctx context.Context, credential string) (Conn, error)
}
