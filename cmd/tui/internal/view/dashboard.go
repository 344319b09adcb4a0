package view

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/txview"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

const pollInterval = 30 * time.Second

// Account is the part of the API that concerns the signed-in user.
type Account interface {
	SetAvailability(ctx context.Context, available bool) (*user.User, error)
	PaymentMethods(ctx context.Context) ([]*user.PaymentMethod, error)
}

type dashState int

const (
	dashStateBrowse dashState = iota
	dashStatePickAction
	dashStateInput
)

// stateFilters are cycled with the s key; the empty state shows everything.
var stateFilters = []transaction.State{
	"",
	transaction.StatePending,
	transaction.StateAccepted,
	transaction.StatePaymentStarted,
	transaction.StateDisputed,
	transaction.StateCompleted,
	transaction.StateCancelled,
}

type DashboardModel struct {
	CommonModel
	ctrl    *txview.Controller
	account Account

	state     dashState
	table     table.Model
	txs       []*transaction.Transaction
	filterIdx int

	form     *huh.Form
	bindings *actionForm
	selected *transaction.Transaction
	methods  []*user.PaymentMethod

	loading bool
	status  string
}

func NewDashboardModel(ctrl *txview.Controller, account Account) DashboardModel {
	columns := []table.Column{
		{Title: "#", Width: 6},
		{Title: "Operation", Width: 11},
		{Title: "Amount", Width: 16},
		{Title: "Net", Width: 16},
		{Title: "State", Width: 22},
		{Title: "Counterparty", Width: 22},
		{Title: "Requested", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return DashboardModel{
		ctrl:    ctrl,
		account: account,
		table:   t,
		loading: true,
	}
}

func (m DashboardModel) Title() string { return "Transactions" }

// WithStatus returns the model showing status on its status line.
func (m DashboardModel) WithStatus(status string) DashboardModel {
	m.status = status
	return m
}

func (m DashboardModel) ShortHelp() string {
	if m.state != dashStateBrowse {
		return "Navigate form | Esc: cancel"
	}

	help := "Enter: actions | c: chat | s: state filter | r: refresh | q: quit"

	switch m.ctrl.User().Role {
	case user.RoleSeller:
		help = "n: new request | " + help
	case user.RoleCashier:
		help = "v: toggle availability | " + help
	}

	return help
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), pollCmd(), m.loadMethodsCmd())
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshMsg:
		return m, m.loadCmd()

	case pollMsg:
		if m.state != dashStateBrowse {
			return m, pollCmd()
		}

		return m, tea.Batch(m.loadCmd(), pollCmd())

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.status = failureText(msg.err)
		}

		m.refreshTable()

		return m, nil

	case methodsMsg:
		if msg.err == nil {
			m.methods = msg.methods
		}

		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.status = failureText(msg.err)
		} else {
			m.status = actionOutcome(msg.action, msg.tx)
		}

		m.refreshTable()

		if msg.action == transaction.ActionOpenDispute || msg.action == transaction.ActionResolveDispute {
			return m, m.disputesCmd()
		}

		return m, nil

	case availabilityMsg:
		if msg.err != nil {
			m.status = failureText(msg.err)
			return m, nil
		}

		m.ctrl.SetUser(msg.user)
		m.status = "You are now unavailable."

		if msg.user.Available {
			m.status = "You are now available for new requests."
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-10, 5))

		return m, nil
	}

	switch m.state {
	case dashStateBrowse:
		return m.updateBrowse(msg)
	case dashStatePickAction, dashStateInput:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m DashboardModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		me := m.ctrl.User()

		switch keyMsg.String() {
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "s":
			m.filterIdx = (m.filterIdx + 1) % len(stateFilters)
			m.refreshTable()

			return m, nil
		case "n":
			if me.Role == user.RoleSeller {
				return m, func() tea.Msg { return NewRequestMsg{} }
			}
		case "v":
			if me.Role == user.RoleCashier {
				return m, m.toggleAvailabilityCmd(!me.Available)
			}
		case "c":
			return m.openChat()
		case "enter":
			return m.startAction()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m DashboardModel) current() *transaction.Transaction {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return nil
	}

	return m.txs[idx]
}

func (m DashboardModel) openChat() (tea.Model, tea.Cmd) {
	tx := m.current()
	if tx == nil {
		return m, nil
	}

	if !transaction.CanChat(tx, m.ctrl.User()) {
		m.status = "Chat opens once a cashier has accepted the request."
		return m, nil
	}

	return m, func() tea.Msg { return OpenChatMsg{Transaction: tx} }
}

func (m DashboardModel) startAction() (tea.Model, tea.Cmd) {
	tx := m.current()
	if tx == nil {
		return m, nil
	}

	if m.ctrl.Busy(tx.ID) {
		m.status = failureText(txview.ErrInFlight)
		return m, nil
	}

	actions := m.ctrl.Actions(tx)
	if len(actions) == 0 {
		m.status = fmt.Sprintf("No actions available on #%d while it is %s.", tx.ID, StateLabel(tx.State))
		return m, nil
	}

	m.selected = tx
	m.bindings = &actionForm{action: actions[0]}
	m.status = ""

	if len(actions) == 1 {
		return m.startInput()
	}

	m.form = newPickActionForm(m.bindings, actions)
	m.state = dashStatePickAction
	m.table.Blur()

	return m, m.form.Init()
}

func (m DashboardModel) startInput() (tea.Model, tea.Cmd) {
	m.form = newInputForm(m.bindings, m.selected, m.ctrl.Dispute(m.selected.ID), m.methods)
	m.state = dashStateInput
	m.table.Blur()

	return m, m.form.Init()
}

func (m DashboardModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return m.closeForm(), nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		return m.closeForm(), nil
	case huh.StateCompleted:
	default:
		return m, cmd
	}

	if m.state == dashStatePickAction {
		return m.startInput()
	}

	tx, bindings := m.selected, m.bindings
	m = m.closeForm()

	if !bindings.confirm {
		return m, nil
	}

	m.status = fmt.Sprintf("%s #%d...", ActionLabel(bindings.action), tx.ID)

	return m, m.invokeCmd(tx, bindings.action, bindings.input())
}

func (m DashboardModel) closeForm() DashboardModel {
	m.state = dashStateBrowse
	m.form = nil
	m.bindings = nil
	m.selected = nil
	m.table.Focus()

	return m
}

func (m DashboardModel) View() string {
	if m.loading && len(m.txs) == 0 {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	filter := "All"
	if s := stateFilters[m.filterIdx]; s != "" {
		filter = StateLabel(s)
	}

	header := fmt.Sprintf("[s] State: %s", accentStyle.Render(filter))

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state != dashStateBrowse && m.form != nil && m.selected != nil {
		panel := panelStyle.Width(54).Render(
			fmt.Sprintf("%s\n\n%s", m.detail(m.selected), m.form.View()),
		)
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	} else if tx := m.current(); tx != nil {
		content = lipgloss.JoinVertical(lipgloss.Left, content, faintStyle.Render(m.detail(tx)))
	}

	if m.status != "" {
		content = faintStyle.Render(m.status) + "\n" + content
	}

	if err := m.ctrl.Err(); err != nil && m.status == "" {
		content = errorStyle.Render(failureText(err)) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m DashboardModel) detail(tx *transaction.Transaction) string {
	s := fmt.Sprintf("#%d %s | %s | fee %s | net %s",
		tx.ID,
		tx.Operation,
		FormatAmount(tx.Amount, tx.Currency),
		FormatAmount(tx.GrossFee, tx.Currency),
		FormatAmount(tx.NetAmount, tx.Currency),
	)

	if tx.SellerMethod != nil {
		s += "\nSeller account: " + methodLabel(tx.SellerMethod)
	}

	if tx.CashierMethod != nil {
		s += "\nCashier account: " + methodLabel(tx.CashierMethod)
	}

	if tx.ProofRef != "" {
		s += "\nProof: " + tx.ProofRef
	}

	if tx.Notes != "" {
		s += "\nNotes: " + tx.Notes
	}

	if d := m.ctrl.Dispute(tx.ID); d != nil {
		s += "\nDispute. " + DisputeSummary(tx, d)
	}

	return s
}

func (m *DashboardModel) refreshTable() {
	me := m.ctrl.User()
	filter := stateFilters[m.filterIdx]
	now := time.Now()

	m.txs = m.txs[:0:0]
	rows := make([]table.Row, 0)

	for _, tx := range m.ctrl.Visible() {
		if filter != "" && tx.State != filter {
			continue
		}

		state := StateLabel(tx.State)
		if m.ctrl.Busy(tx.ID) {
			state += " …"
		}

		m.txs = append(m.txs, tx)
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", tx.ID),
			string(tx.Operation),
			FormatAmount(tx.Amount, tx.Currency),
			FormatAmount(tx.NetAmount, tx.Currency),
			state,
			counterparty(tx, me),
			FormatAge(tx.RequestedAt, now),
		})
	}

	m.table.SetRows(rows)
}

func counterparty(tx *transaction.Transaction, me *user.User) string {
	other := tx.Cashier
	if me != nil && tx.Cashier != nil && tx.Cashier.ID == me.ID {
		other = tx.Seller
	}

	if me != nil && me.Role == user.RoleAdmin && tx.Seller != nil {
		other = tx.Seller
	}

	if other == nil {
		return "-"
	}

	return other.FullName
}

// Messages

type pollMsg struct{}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

type loadedMsg struct {
	err error
}

func (m DashboardModel) loadCmd() tea.Cmd {
	ctrl := m.ctrl

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		if err := ctrl.Refresh(ctx); err != nil {
			return loadedMsg{err: err}
		}

		return loadedMsg{err: ctrl.RefreshDisputes(ctx)}
	}
}

func (m DashboardModel) disputesCmd() tea.Cmd {
	ctrl := m.ctrl

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		return loadedMsg{err: ctrl.RefreshDisputes(ctx)}
	}
}

type methodsMsg struct {
	methods []*user.PaymentMethod
	err     error
}

func (m DashboardModel) loadMethodsCmd() tea.Cmd {
	account := m.account

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		methods, err := account.PaymentMethods(ctx)

		return methodsMsg{methods: methods, err: err}
	}
}

type actionDoneMsg struct {
	action transaction.Action
	tx     *transaction.Transaction
	err    error
}

func (m DashboardModel) invokeCmd(tx *transaction.Transaction, action transaction.Action, in txview.Input) tea.Cmd {
	ctrl := m.ctrl

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		updated, err := ctrl.Invoke(ctx, tx, action, in)

		return actionDoneMsg{action: action, tx: updated, err: err}
	}
}

type availabilityMsg struct {
	user *user.User
	err  error
}

func (m DashboardModel) toggleAvailabilityCmd(available bool) tea.Cmd {
	account := m.account

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		u, err := account.SetAvailability(ctx, available)

		return availabilityMsg{user: u, err: err}
	}
}
