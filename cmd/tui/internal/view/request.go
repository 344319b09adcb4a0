package view

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/txview"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type requestState int

const (
	requestStateLoading requestState = iota
	requestStateForm
	requestStateSubmitting
	requestStateNoMethods
)

// requestForm holds the bindings of the request form.
type requestForm struct {
	operation transaction.Operation
	amount    string
	currency  string
	methodID  int64
	feeOption transaction.FeeOption
	notes     string
}

func (f *requestForm) params() (transaction.RequestParams, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(f.amount))
	if err != nil {
		return transaction.RequestParams{}, fmt.Errorf("invalid amount: %w", err)
	}

	return transaction.RequestParams{
		Operation:       f.operation,
		Amount:          amount,
		Currency:        strings.ToUpper(strings.TrimSpace(f.currency)),
		PaymentMethodID: f.methodID,
		FeeOption:       f.feeOption,
		Notes:           strings.TrimSpace(f.notes),
	}, nil
}

// RequestModel lets a seller open a new deposit or withdrawal request.
type RequestModel struct {
	CommonModel
	ctrl    *txview.Controller
	account Account

	state    requestState
	form     *huh.Form
	bindings *requestForm
	methods  []*user.PaymentMethod
	err      error
}

func NewRequestModel(ctrl *txview.Controller, account Account) RequestModel {
	return RequestModel{
		ctrl:    ctrl,
		account: account,
		bindings: &requestForm{
			operation: transaction.OperationDeposit,
			currency:  "USD",
			feeOption: transaction.FeeSubtract,
		},
	}
}

func (m RequestModel) Title() string { return "New Request" }

func (m RequestModel) ShortHelp() string {
	return "Tab/Enter: navigate form | Esc: back"
}

func (m RequestModel) Init() tea.Cmd {
	account := m.account

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		methods, err := account.PaymentMethods(ctx)

		return methodsMsg{methods: methods, err: err}
	}
}

func (m RequestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc && m.state != requestStateSubmitting {
			return m, Back
		}

	case methodsMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = requestStateNoMethods

			return m, nil
		}

		if len(msg.methods) == 0 {
			m.state = requestStateNoMethods
			return m, nil
		}

		m.methods = msg.methods
		m.bindings.methodID = msg.methods[0].ID
		m.form = newRequestForm(m.bindings, msg.methods)
		m.state = requestStateForm

		return m, m.form.Init()

	case requestDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = requestStateForm
			m.form = newRequestForm(m.bindings, m.methods)

			return m, m.form.Init()
		}

		return m, BackWith(fmt.Sprintf("Request #%d created. Waiting for a cashier.", msg.tx.ID))
	}

	if m.state != requestStateForm {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		return m, Back
	case huh.StateCompleted:
		params, err := m.bindings.params()
		if err != nil {
			m.err = err
			m.form = newRequestForm(m.bindings, m.methods)

			return m, m.form.Init()
		}

		m.state = requestStateSubmitting
		m.err = nil

		return m, m.submitCmd(params)
	}

	return m, cmd
}

func (m RequestModel) View() string {
	var body string

	switch m.state {
	case requestStateLoading:
		body = "Loading payment methods..."
	case requestStateNoMethods:
		body = "You need a registered payment method before requesting a transaction.\n\n(Esc to go back)"
	case requestStateSubmitting:
		body = "Sending request..."
	case requestStateForm:
		body = m.form.View()
	}

	if m.err != nil {
		body += "\n\n" + errorStyle.Render(failureText(m.err))
	}

	return lipgloss.NewStyle().Padding(1).Render(
		accentStyle.Render(m.Title()) + "\n\n" + panelStyle.Width(60).Render(body),
	)
}

func newRequestForm(f *requestForm, methods []*user.PaymentMethod) *huh.Form {
	methodOptions := make([]huh.Option[int64], len(methods))
	for i, pm := range methods {
		methodOptions[i] = huh.NewOption(methodLabel(pm), pm.ID)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[transaction.Operation]().
				Title("Operation").
				Options(
					huh.NewOption("Deposit (I pay the cashier)", transaction.OperationDeposit),
					huh.NewOption("Withdrawal (the cashier pays me)", transaction.OperationWithdrawal),
				).
				Value(&f.operation),

			huh.NewInput().
				Title("Amount").
				Placeholder("100.00").
				Value(&f.amount).
				Validate(func(s string) error {
					d, err := decimal.NewFromString(strings.TrimSpace(s))
					if err != nil || !d.IsPositive() {
						return errors.New("enter a positive amount")
					}

					return nil
				}),

			huh.NewInput().
				Title("Currency").
				CharLimit(3).
				Value(&f.currency).
				Validate(func(s string) error {
					if err := validate.Var(strings.TrimSpace(s), "len=3,alpha"); err != nil {
						return errors.New("use a 3-letter currency code")
					}

					return nil
				}),

			huh.NewSelect[int64]().
				Title("Payment method").
				Options(methodOptions...).
				Value(&f.methodID),

			huh.NewSelect[transaction.FeeOption]().
				Title("Fee").
				Options(
					huh.NewOption("Subtract from the amount", transaction.FeeSubtract),
					huh.NewOption("Add on top", transaction.FeeAdd),
				).
				Value(&f.feeOption),

			huh.NewText().
				Title("Notes (optional)").
				CharLimit(500).
				Value(&f.notes),
		),
	).WithWidth(55).WithShowHelp(false)
}

// Messages

type requestDoneMsg struct {
	tx  *transaction.Transaction
	err error
}

func (m RequestModel) submitCmd(params transaction.RequestParams) tea.Cmd {
	ctrl := m.ctrl

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		tx, err := ctrl.Request(ctx, params)

		return requestDoneMsg{tx: tx, err: err}
	}
}
