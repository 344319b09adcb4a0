package view

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/realtime"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type memLog map[int64][]chat.Message

func (l memLog) Append(id int64, msg chat.Message) bool {
	l[id] = append(l[id], msg)
	return true
}

func (l memLog) MessagesFor(id int64) []chat.Message {
	return l[id]
}

// memConn clears the log on Unsubscribe, like the real registry does.
type memConn struct {
	log          memLog
	unsubscribed []int64
}

func (c *memConn) Subscribe(int64) error { return nil }

func (c *memConn) Unsubscribe(id int64) {
	c.unsubscribed = append(c.unsubscribed, id)
	delete(c.log, id)
}

func (c *memConn) Send(int64, string) error { return nil }

func (c *memConn) State() realtime.State { return realtime.StateConnected }

type staticHistory []chat.Message

func (h staticHistory) History(context.Context, int64) ([]chat.Message, error) {
	return h, nil
}

func TestChatModel_HistoryAfterClose(t *testing.T) {
	me := &user.User{ID: 1, FullName: "Sofía", Role: user.RoleSeller}
	tx := &transaction.Transaction{ID: 42, Seller: me, State: transaction.StateAccepted}
	history := staticHistory{{ID: 1, TransactionID: 42, Content: "hola", Timestamp: time.Now()}}

	log := memLog{}
	conn := &memConn{log: log}
	m := NewChatModel(tx, me, conn, log, history)

	msg := m.historyCmd()()
	require.IsType(t, historyMsg{}, msg)
	assert.Empty(t, log.MessagesFor(42), "loading alone must not write to the log")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, []int64{42}, conn.unsubscribed)

	assert.Empty(t, log.MessagesFor(42))

	// A chat reopened on another transaction ignores it too.
	other := NewChatModel(&transaction.Transaction{ID: 7, Seller: me, State: transaction.StateAccepted}, me, conn, log, history)
	other.Update(msg)
	assert.Empty(t, log.MessagesFor(42))
	assert.Empty(t, log.MessagesFor(7))

	// The chat that is open for the transaction merges it.
	reopened := NewChatModel(tx, me, conn, log, history)
	reopened.Update(msg)
	require.Len(t, log.MessagesFor(42), 1)
	assert.Equal(t, "hola", log.MessagesFor(42)[0].Content)
}
