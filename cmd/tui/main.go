package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/cambio/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/cambio/internal/apiclient"
	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/chatlog"
	"github.com/MrJamesThe3rd/cambio/internal/config"
	"github.com/MrJamesThe3rd/cambio/internal/logging"
	"github.com/MrJamesThe3rd/cambio/internal/realtime"
	"github.com/MrJamesThe3rd/cambio/internal/txview"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type View int

const (
	ViewDashboard View = 0
	ViewRequest   View = 1
	ViewChat      View = 2
)

type model struct {
	client  *apiclient.Client
	ctrl    *txview.Controller
	manager *realtime.Manager
	chatlog *chatlog.Aggregator

	currentView View
	width       int
	height      int

	dashboardView view.DashboardModel
	requestView   view.RequestModel
	chatView      view.ChatModel
}

func (m model) Init() tea.Cmd {
	return m.dashboardView.Init()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.currentView == ViewDashboard {
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case view.NewRequestMsg:
		m.currentView = ViewRequest
		m.requestView = view.NewRequestModel(m.ctrl, m.client)

		return m, m.resized(m.requestView.Init())

	case view.OpenChatMsg:
		m.currentView = ViewChat
		m.chatView = view.NewChatModel(msg.Transaction, m.ctrl.User(), m.manager, m.chatlog, m.client)

		return m, m.resized(m.chatView.Init())

	case view.BackMsg:
		m.currentView = ViewDashboard

		next, cmd := m.dashboardView.Update(view.RefreshMsg{})
		m.dashboardView = next.(view.DashboardModel)

		if msg.Status != "" {
			m.dashboardView = m.dashboardView.WithStatus(msg.Status)
		}

		return m, cmd

	case view.TxEventMsg:
		// Lists refresh in the background whatever the current screen is.
		next, cmd := m.dashboardView.Update(view.RefreshMsg{})
		m.dashboardView = next.(view.DashboardModel)

		if m.currentView != ViewChat {
			return m, cmd
		}

		chatNext, chatCmd := m.chatView.Update(msg)
		m.chatView = chatNext.(view.ChatModel)

		return m, tea.Batch(cmd, chatCmd)

	case view.ConnStateMsg:
		if m.currentView != ViewChat {
			return m, nil
		}
	}

	var cmd tea.Cmd

	switch m.currentView {
	case ViewDashboard:
		var next tea.Model
		next, cmd = m.dashboardView.Update(msg)
		m.dashboardView = next.(view.DashboardModel)
	case ViewRequest:
		var next tea.Model
		next, cmd = m.requestView.Update(msg)
		m.requestView = next.(view.RequestModel)
	case ViewChat:
		var next tea.Model
		next, cmd = m.chatView.Update(msg)
		m.chatView = next.(view.ChatModel)
	}

	return m, cmd
}

// resized replays the last window size so a freshly built view lays itself out.
func (m model) resized(cmd tea.Cmd) tea.Cmd {
	if m.width == 0 {
		return cmd
	}

	size := tea.WindowSizeMsg{Width: m.width, Height: m.height}

	return tea.Batch(cmd, func() tea.Msg { return size })
}

func (m model) View() string {
	me := m.ctrl.User()

	header := lipgloss.NewStyle().Bold(true).Render("Cambio") +
		fmt.Sprintf("  %s (%s)", me.FullName, me.Role)

	if me.Role == user.RoleCashier {
		if me.Available {
			header += "  available"
		} else {
			header += "  unavailable"
		}
	}

	header += "  " + view.ConnIndicator(m.manager.State())

	var (
		body string
		help string
	)

	switch m.currentView {
	case ViewDashboard:
		body, help = m.dashboardView.View(), m.dashboardView.ShortHelp()
	case ViewRequest:
		body, help = m.requestView.View(), m.requestView.ShortHelp()
	case ViewChat:
		body, help = m.chatView.View(), m.chatView.ShortHelp()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(header),
		body,
		lipgloss.NewStyle().Faint(true).Padding(0, 1).Render(help),
	)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logFile, err := os.OpenFile(cfg.Client.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	log := logging.New(logFile, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	view.SetLocale(cfg.Client.Locale)

	if cfg.Client.Token == "" {
		return fmt.Errorf("CAMBIO_TOKEN is required")
	}

	client, err := apiclient.New(cfg.Client.BaseURL, cfg.Client.Token)
	if err != nil {
		return err
	}

	ctx, cancel := view.APICtx()
	me, err := client.Me(ctx)
	cancel()

	if err != nil {
		return fmt.Errorf("loading account: %w", err)
	}

	// The program reads its message channel on the same goroutine that runs
	// Update, so callbacks that may fire from inside Update send from a
	// goroutine of their own.
	var p *tea.Program

	send := func(msg tea.Msg) {
		go p.Send(msg)
	}

	messages := chatlog.New(chatlog.WithNotify(func(id int64) {
		send(view.ChatUpdatedMsg{TransactionID: id})
	}))

	registry := realtime.NewRegistry(messages, log)
	registry.OnEvent(func(ev chat.Event) {
		send(view.TxEventMsg{Event: ev})
	})

	manager := realtime.NewManager(
		realtime.NewWebSocketDialer(client.WebSocketURL(), cfg.Chat.WriteTimeout, log),
		registry,
		realtime.WithReconnectDelay(cfg.Chat.ReconnectDelay),
		realtime.WithLogger(log),
	)
	manager.OnStateChange(func(s realtime.State) {
		send(view.ConnStateMsg{State: s})
	})

	ctrl := txview.New(client, me, log)

	p = tea.NewProgram(model{
		client:        client,
		ctrl:          ctrl,
		manager:       manager,
		chatlog:       messages,
		currentView:   ViewDashboard,
		dashboardView: view.NewDashboardModel(ctrl, client),
	}, tea.WithAltScreen())

	manager.Connect(client.Token())
	defer manager.Disconnect()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}

	return nil
}
