package view

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/realtime"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
)

type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct {
	// Status is shown on the screen the user returns to.
	Status string
}

func Back() tea.Msg {
	return BackMsg{}
}

func BackWith(status string) tea.Cmd {
	return func() tea.Msg {
		return BackMsg{Status: status}
	}
}

// RefreshMsg asks the dashboard to reload its lists.
type RefreshMsg struct{}

// ConnStateMsg reports a change of the chat connection.
type ConnStateMsg struct {
	State realtime.State
}

// ChatUpdatedMsg is sent when messages of a transaction changed.
type ChatUpdatedMsg struct {
	TransactionID int64
}

// TxEventMsg carries a state change pushed by the server.
type TxEventMsg struct {
	Event chat.Event
}

// OpenChatMsg asks the app to open the chat of a transaction.
type OpenChatMsg struct {
	Transaction *transaction.Transaction
}

// NewRequestMsg asks the app to open the request form.
type NewRequestMsg struct{}
