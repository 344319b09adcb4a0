package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/realtime"
)

// echoServer answers every subscribe with one message on that topic and
// every send with the sent content on the matching topic.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		if r.URL.Query().Has("drop") {
			return
		}

		for {
			var f chat.Frame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}

			switch f.Type {
			case chat.FrameSubscribe:
				id, _ := chat.ParseTopic(f.Destination)
				_ = ws.WriteJSON(messageFrame(id, 1, "welcome", time.Now()))
			case chat.FrameSend:
				id, _ := chat.ParseSendAddress(f.Destination)
				_ = ws.WriteJSON(chat.Frame{Type: chat.FrameMessage, Destination: chat.TopicFor(id), Body: f.Body})
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDialer_RoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	d := realtime.NewWebSocketDialer(wsURL(srv), time.Second, discard)

	conn, err := d.Dial(context.Background(), "good")
	require.NoError(t, err)
	defer conn.Close()

	frames := make(chan chat.Frame, 4)

	_, err = conn.Subscribe(chat.TopicFor(42), func(f chat.Frame) { frames <- f })
	require.NoError(t, err)

	select {
	case f := <-frames:
		msg, err := chat.DecodeMessage(f.Body)
		require.NoError(t, err)
		assert.Equal(t, "welcome", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("no welcome frame")
	}

	require.NoError(t, conn.Publish(chat.SendAddressFor(42), chat.SendPayload{Content: "hola"}))

	select {
	case f := <-frames:
		msg, err := chat.DecodeMessage(f.Body)
		require.NoError(t, err)
		assert.Equal(t, "hola", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("no echo frame")
	}
}

func TestWebSocketDialer_Rejected(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	d := realtime.NewWebSocketDialer(wsURL(srv), time.Second, discard)

	_, err := d.Dial(context.Background(), "bad")
	require.ErrorIs(t, err, realtime.ErrHandshake)
}

func TestWebSocketDialer_ServerGone(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	d := realtime.NewWebSocketDialer(wsURL(srv)+"?drop=1", time.Second, discard)

	conn, err := d.Dial(context.Background(), "good")
	require.NoError(t, err)

	select {
	case <-conn.Done():
		assert.Error(t, conn.Err())
	case <-time.After(time.Second):
		t.Fatal("connection did not notice the server going away")
	}

	assert.ErrorIs(t, conn.Publish(chat.SendAddressFor(1), chat.SendPayload{}), realtime.ErrNotConnected)
}

func TestWebSocketDialer_StaleUnsubscribeKeepsNewerHandler(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	d := realtime.NewWebSocketDialer(wsURL(srv), time.Second, discard)

	conn, err := d.Dial(context.Background(), "good")
	require.NoError(t, err)
	defer conn.Close()

	topic := chat.TopicFor(42)
	older := make(chan chat.Frame, 4)
	newer := make(chan chat.Frame, 4)

	receive := func(frames <-chan chat.Frame) chat.Message {
		t.Helper()

		select {
		case f := <-frames:
			msg, err := chat.DecodeMessage(f.Body)
			require.NoError(t, err)

			return msg
		case <-time.After(time.Second):
			t.Fatal("no frame")
		}

		return chat.Message{}
	}

	first, err := conn.Subscribe(topic, func(f chat.Frame) { older <- f })
	require.NoError(t, err)
	assert.Equal(t, "welcome", receive(older).Content)

	_, err = conn.Subscribe(topic, func(f chat.Frame) { newer <- f })
	require.NoError(t, err)
	assert.Equal(t, "welcome", receive(newer).Content)

	require.NoError(t, first.Unsubscribe())

	require.NoError(t, conn.Publish(chat.SendAddressFor(42), chat.SendPayload{Content: "hola"}))
	assert.Equal(t, "hola", receive(newer).Content)
	assert.Empty(t, older)
}
