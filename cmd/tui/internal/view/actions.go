package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-playground/validator/v10"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/txview"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

var validate = validator.New()

// actionForm holds the bindings of the action forms. It lives on the heap so
// huh keeps writing to the same fields while the model is copied around.
type actionForm struct {
	action     transaction.Action
	methodID   int64
	proofRef   string
	reason     string
	evidence   string
	resolution transaction.State
	decision   string
	confirm    bool
}

func (f *actionForm) input() txview.Input {
	in := txview.Input{
		ProofRef:    strings.TrimSpace(f.proofRef),
		Reason:      strings.TrimSpace(f.reason),
		EvidenceURL: strings.TrimSpace(f.evidence),
		Resolution:  f.resolution,
		Decision:    strings.TrimSpace(f.decision),
	}

	if f.methodID > 0 {
		in.CashierMethodID = new(f.methodID)
	}

	return in
}

func newPickActionForm(f *actionForm, actions []transaction.Action) *huh.Form {
	options := make([]huh.Option[transaction.Action], len(actions))
	for i, a := range actions {
		options[i] = huh.NewOption(ActionLabel(a), a)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[transaction.Action]().
				Title("Action").
				Options(options...).
				Value(&f.action),
		),
	).WithWidth(45).WithShowHelp(false)
}

// newInputForm asks for whatever the chosen action needs. Every action ends
// with an explicit confirmation.
func newInputForm(f *actionForm, tx *transaction.Transaction, dispute *transaction.Dispute, methods []*user.PaymentMethod) *huh.Form {
	var fields []huh.Field

	switch f.action {
	case transaction.ActionAccept:
		if len(methods) > 0 {
			options := []huh.Option[int64]{huh.NewOption("None", int64(0))}
			for _, pm := range methods {
				options = append(options, huh.NewOption(methodLabel(pm), pm.ID))
			}

			fields = append(fields, huh.NewSelect[int64]().
				Title("Your payment method").
				Options(options...).
				Value(&f.methodID))
		}
	case transaction.ActionMarkPaymentStarted:
		fields = append(fields, huh.NewInput().
			Title("Proof of payment URL (optional)").
			Placeholder("https://...").
			Value(&f.proofRef).
			Validate(optionalURL))
	case transaction.ActionOpenDispute:
		fields = append(fields,
			huh.NewText().
				Title("Reason").
				CharLimit(1000).
				Value(&f.reason).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("a reason is required")
					}

					return nil
				}),
			huh.NewInput().
				Title("Evidence URL (optional)").
				Placeholder("https://...").
				Value(&f.evidence).
				Validate(optionalURL),
		)
	case transaction.ActionResolveDispute:
		f.resolution = transaction.StateCompleted

		if dispute != nil {
			fields = append(fields, huh.NewNote().
				Title("Dispute").
				Description(DisputeSummary(tx, dispute)))
		}

		fields = append(fields,
			huh.NewSelect[transaction.State]().
				Title("Resolution").
				Options(
					huh.NewOption(StateLabel(transaction.StateCompleted), transaction.StateCompleted),
					huh.NewOption(StateLabel(transaction.StateCancelled), transaction.StateCancelled),
				).
				Value(&f.resolution),
			huh.NewText().
				Title("Decision").
				CharLimit(1000).
				Value(&f.decision),
		)
	}

	fields = append(fields, huh.NewConfirm().
		Title(fmt.Sprintf("%s transaction #%d?", ActionLabel(f.action), tx.ID)).
		Affirmative("Yes").
		Negative("No").
		Value(&f.confirm))

	return huh.NewForm(huh.NewGroup(fields...)).WithWidth(50).WithShowHelp(false)
}

func optionalURL(s string) error {
	if err := validate.Var(strings.TrimSpace(s), "omitempty,url"); err != nil {
		return errors.New("must be a valid URL")
	}

	return nil
}

func methodLabel(pm *user.PaymentMethod) string {
	if pm.Alias != "" {
		return fmt.Sprintf("%s (%s %s)", pm.Alias, pm.AccountType, pm.AccountNumber)
	}

	return fmt.Sprintf("%s %s - %s", pm.AccountType, pm.AccountNumber, pm.HolderName)
}

// DisputeSummary names who raised the dispute and why, with the evidence
// and the decision once there is one.
func DisputeSummary(tx *transaction.Transaction, d *transaction.Dispute) string {
	reporter := "Seller"
	if tx.Cashier != nil && d.ReporterID == tx.Cashier.ID {
		reporter = "Cashier"
	}

	s := fmt.Sprintf("%s: %s", reporter, d.Reason)

	if d.EvidenceURL != "" {
		s += "\nEvidence: " + d.EvidenceURL
	}

	if d.Resolution != nil {
		s += "\nResolved as " + StateLabel(*d.Resolution)

		if d.Decision != "" {
			s += ": " + d.Decision
		}
	}

	return s
}

// actionOutcome is the status line shown after a successful action.
func actionOutcome(a transaction.Action, tx *transaction.Transaction) string {
	return fmt.Sprintf("%s done. Transaction #%d is now %s.", ActionLabel(a), tx.ID, StateLabel(tx.State))
}

// failureText explains a failed action in user terms.
func failureText(err error) string {
	switch {
	case errors.Is(err, txview.ErrActionNotAllowed):
		return "That action is not available for this transaction."
	case errors.Is(err, txview.ErrInFlight):
		return "Still waiting for the previous request on this transaction."
	case errors.Is(err, transaction.ErrConflict):
		return "Someone else got there first. The list was refreshed."
	case errors.Is(err, transaction.ErrForbidden):
		return "You are not allowed to do that. The list was refreshed."
	case errors.Is(err, transaction.ErrInvalidTransition):
		return "The transaction changed in the meantime. The list was refreshed."
	case errors.Is(err, transaction.ErrNotFound):
		return "That transaction no longer exists. The list was refreshed."
	}

	return fmt.Sprintf("Error: %v", err)
}
