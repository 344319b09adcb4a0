package view

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/realtime"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

// ChatConn is the live side of the chat.
type ChatConn interface {
	Subscribe(transactionID int64) error
	Unsubscribe(transactionID int64)
	Send(transactionID int64, content string) error
	State() realtime.State
}

// ChatLog holds the messages received so far.
type ChatLog interface {
	Append(transactionID int64, msg chat.Message) bool
	MessagesFor(transactionID int64) []chat.Message
}

// ChatHistory loads what was said before the chat was opened.
type ChatHistory interface {
	History(ctx context.Context, transactionID int64) ([]chat.Message, error)
}

var (
	mineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	theirsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

type ChatModel struct {
	CommonModel
	tx      *transaction.Transaction
	me      *user.User
	conn    ChatConn
	log     ChatLog
	history ChatHistory

	viewport viewport.Model
	input    textinput.Model
	status   string
}

func NewChatModel(tx *transaction.Transaction, me *user.User, conn ChatConn, log ChatLog, history ChatHistory) ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Write a message"
	ti.CharLimit = 2000
	ti.Prompt = "> "
	ti.Focus()

	vp := viewport.New(80, 15)

	m := ChatModel{
		tx:       tx,
		me:       me,
		conn:     conn,
		log:      log,
		history:  history,
		viewport: vp,
		input:    ti,
	}
	m.renderMessages()

	return m
}

func (m ChatModel) Title() string { return fmt.Sprintf("Chat #%d", m.tx.ID) }

func (m ChatModel) ShortHelp() string {
	return "Enter: send | PgUp/PgDn: scroll | Esc: back"
}

// TransactionID is the transaction whose chat is open.
func (m ChatModel) TransactionID() int64 {
	return m.tx.ID
}

func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.subscribeCmd(), m.historyCmd())
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.conn.Unsubscribe(m.tx.ID)
			return m, Back
		case "enter":
			return m.send()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)

			return m, cmd
		}

	case ChatUpdatedMsg:
		if msg.TransactionID == m.tx.ID {
			m.renderMessages()
		}

		return m, nil

	case ConnStateMsg:
		if msg.State == realtime.StateConnected {
			m.status = ""
			return m, m.subscribeCmd()
		}

		m.status = "Offline. Messages will resume when the connection is back."

		return m, nil

	case chatSubscribedMsg:
		if msg.err != nil {
			m.status = chatFailure(msg.err)
		}

		return m, nil

	case historyMsg:
		if msg.transactionID != m.tx.ID {
			return m, nil
		}

		if msg.err != nil {
			m.status = chatFailure(msg.err)
			return m, nil
		}

		for _, cm := range msg.msgs {
			m.log.Append(m.tx.ID, cm)
		}

		m.renderMessages()

		return m, nil

	case chatSentMsg:
		if msg.err != nil {
			m.status = chatFailure(msg.err)
		}

		return m, nil

	case TxEventMsg:
		if msg.Event.TransactionID == m.tx.ID {
			m.status = fmt.Sprintf("Transaction is now %s.", StateLabel(transaction.State(msg.Event.State)))
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-6, 20)
		m.viewport.Height = max(msg.Height-12, 5)
		m.input.Width = max(msg.Width-10, 20)
		m.renderMessages()

		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m ChatModel) send() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}

	if m.conn.State() != realtime.StateConnected {
		m.status = chatFailure(realtime.ErrNotConnected)
		return m, nil
	}

	m.input.Reset()
	m.status = ""

	conn, id := m.conn, m.tx.ID

	return m, func() tea.Msg {
		return chatSentMsg{err: conn.Send(id, content)}
	}
}

func (m *ChatModel) renderMessages() {
	msgs := m.log.MessagesFor(m.tx.ID)
	if len(msgs) == 0 {
		m.viewport.SetContent(faintStyle.Render("No messages yet."))
		return
	}

	var b strings.Builder

	for i, cm := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}

		b.WriteString(m.renderMessage(cm))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m ChatModel) renderMessage(cm chat.Message) string {
	stamp := faintStyle.Render(cm.Timestamp.Local().Format("15:04"))

	if cm.Error {
		return fmt.Sprintf("%s %s", stamp, errorStyle.Render("! "+cm.Description))
	}

	name := theirsStyle.Render(cm.Sender.FullName)
	if m.me != nil && cm.Sender.ID == m.me.ID {
		name = mineStyle.Render("You")
	}

	if cm.Sender.Role != "" && cm.Sender.Role != string(user.RoleSeller) && cm.Sender.Role != string(user.RoleCashier) {
		name += faintStyle.Render(" (" + cm.Sender.Role + ")")
	}

	return fmt.Sprintf("%s %s: %s", stamp, name, cm.Content)
}

func (m ChatModel) View() string {
	header := fmt.Sprintf("%s  %s  %s",
		accentStyle.Render(m.Title()),
		StateLabel(m.tx.State),
		ConnIndicator(m.conn.State()),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		panelStyle.Padding(0, 1).Render(m.viewport.View()),
		m.input.View(),
	)

	if m.status != "" {
		content += "\n" + faintStyle.Render(m.status)
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func chatFailure(err error) string {
	switch {
	case errors.Is(err, realtime.ErrNotConnected):
		return "Not connected to the chat server."
	case errors.Is(err, transaction.ErrForbidden):
		return "This chat is closed to you."
	}

	return fmt.Sprintf("Error: %v", err)
}

// Messages

type chatSubscribedMsg struct {
	err error
}

func (m ChatModel) subscribeCmd() tea.Cmd {
	conn, id := m.conn, m.tx.ID

	return func() tea.Msg {
		return chatSubscribedMsg{err: conn.Subscribe(id)}
	}
}

type historyMsg struct {
	transactionID int64
	msgs          []chat.Message
	err           error
}

// historyCmd loads the stored messages. They are merged into the log by the
// open chat only, so a response arriving after Esc is dropped.
func (m ChatModel) historyCmd() tea.Cmd {
	history, id := m.history, m.tx.ID

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		msgs, err := history.History(ctx, id)

		return historyMsg{transactionID: id, msgs: msgs, err: err}
	}
}

type chatSentMsg struct {
	err error
}
