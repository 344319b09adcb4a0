package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/http/render"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 16 << 10
	sendBuffer   = 64

	defaultWriteTimeout = 10 * time.Second
)

type Handler struct {
	svc          *chat.Service
	broker       *chat.Broker
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// NewHandler builds the chat endpoints. An empty origins list accepts any
// origin; otherwise browsers must present one of them.
func NewHandler(svc *chat.Service, broker *chat.Broker, origins []string, writeTimeout time.Duration) *Handler {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Handler{
		svc:          svc,
		broker:       broker,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || slices.Contains(origins, origin)
			},
		},
	}
}

// History returns the stored messages of a transaction.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	render.WithActor(h.history)(w, r)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, actor *user.User) {
	id, err := render.ID(r, "id")
	if err != nil {
		render.Error(w, err)
		return
	}

	msgs, err := h.svc.History(r.Context(), actor, id)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, msgs)
}

// Serve upgrades the request and runs the chat session until either side
// closes it.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	render.WithActor(h.serve)(w, r)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, actor *user.User) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade chat connection", "error", err)
		return
	}

	s := &session{
		ws:    ws,
		actor: actor,
		send:  make(chan chat.Frame, sendBuffer),
		done:  make(chan struct{}),
		log:   slog.With("user_id", actor.ID),
	}

	go s.writeLoop(h.writeTimeout)

	h.readLoop(context.WithoutCancel(r.Context()), s)
}

func (h *Handler) readLoop(ctx context.Context, s *session) {
	defer func() {
		h.broker.Remove(s)
		s.close()
	}()

	s.ws.SetReadLimit(maxFrameSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f chat.Frame
		if err := s.ws.ReadJSON(&f); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)

			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				s.Deliver(chat.ErrorFrame("", "malformed frame"))
				continue
			}

			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("chat connection closed", "error", err)
			}

			return
		}

		h.handle(ctx, s, f)
	}
}

func (h *Handler) handle(ctx context.Context, s *session, f chat.Frame) {
	switch f.Type {
	case chat.FrameSubscribe:
		id, err := chat.ParseTopic(f.Destination)
		if err != nil {
			s.Deliver(chat.ErrorFrame(f.Destination, err.Error()))
			return
		}

		if _, err := h.svc.Authorize(ctx, s.actor, id); err != nil {
			s.Deliver(chat.ErrorFrame(f.Destination, errorText(err)))
			return
		}

		h.broker.Subscribe(f.Destination, s)
	case chat.FrameUnsubscribe:
		h.broker.Unsubscribe(f.Destination, s)
	case chat.FrameSend:
		id, err := chat.ParseSendAddress(f.Destination)
		if err != nil {
			s.Deliver(chat.ErrorFrame(f.Destination, err.Error()))
			return
		}

		var payload chat.SendPayload
		if err := json.Unmarshal(f.Body, &payload); err != nil {
			s.Deliver(chat.ErrorFrame(chat.TopicFor(id), "malformed message body"))
			return
		}

		msg, err := h.svc.Post(ctx, s.actor, id, payload.Content)
		if err != nil {
			s.Deliver(chat.ErrorFrame(chat.TopicFor(id), errorText(err)))
			return
		}

		h.broker.PublishMessage(msg)
	default:
		s.Deliver(chat.ErrorFrame(f.Destination, "unsupported frame type"))
	}
}

// errorText hides unexpected failures from clients.
func errorText(err error) string {
	if render.Status(err) == http.StatusInternalServerError {
		slog.Error("chat request failed", "error", err)
		return "internal error"
	}

	return err.Error()
}

// session is one connected client. It implements chat.Subscriber.
type session struct {
	ws        *websocket.Conn
	actor     *user.User
	send      chan chat.Frame
	done      chan struct{}
	once      sync.Once
	closeCode int
	log       *slog.Logger
}

// Deliver queues f for the writer. A client that cannot keep up is
// disconnected so that it reconnects and subscribes again.
func (s *session) Deliver(f chat.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- f:
		return true
	default:
		s.log.Warn("chat client too slow, closing connection")
		s.closeWith(websocket.CloseTryAgainLater)

		return false
	}
}

func (s *session) close() {
	s.closeWith(websocket.CloseNormalClosure)
}

func (s *session) closeWith(code int) {
	s.once.Do(func() {
		s.closeCode = code
		close(s.done)
	})
}

func (s *session) writeLoop(writeTimeout time.Duration) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = s.ws.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(s.closeCode, ""),
				time.Now().Add(writeTimeout))

			return
		case f := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := s.ws.WriteJSON(f); err != nil {
				s.log.Debug("failed to write chat frame", "error", err)
				s.close()

				return
			}
		case <-ticker.C:
			if err := s.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.close()
				return
			}
		}
	}
}
