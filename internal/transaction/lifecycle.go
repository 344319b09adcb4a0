package transaction

import (
	"fmt"

	"github.com/MrJamesThe3rd/cambio/internal/user"
)

// Action is a state-changing request a user can make on a transaction.
type Action string

const (
	ActionAccept             Action = "accept"
	ActionCancel             Action = "cancel"
	ActionMarkPaymentStarted Action = "mark_payment_started"
	ActionMarkCompleted      Action = "mark_completed"
	ActionOpenDispute        Action = "open_dispute"
	ActionResolveDispute     Action = "resolve_dispute"
)

// Actor describes who, relative to a transaction, may fire a rule.
type Actor int

const (
	ActorAnyCashier Actor = iota + 1 // any available cashier
	ActorSeller                      // the seller who requested it
	ActorCashier                     // the cashier assigned to it
	ActorParty                       // seller or assigned cashier
	ActorAdmin
)

func (a Actor) String() string {
	switch a {
	case ActorAnyCashier:
		return "any available cashier"
	case ActorSeller:
		return "seller"
	case ActorCashier:
		return "assigned cashier"
	case ActorParty:
		return "seller or assigned cashier"
	case ActorAdmin:
		return "administrator"
	}

	return "unknown"
}

// Rule is one edge of the lifecycle. An empty Operation matches both.
// Rules for ActionResolveDispute leave To empty; the administrator picks one
// of Resolutions.
type Rule struct {
	Action    Action
	From      State
	To        State
	Actor     Actor
	Operation Operation
}

// rules is the single source of truth for who may move a transaction where.
// The payer acts first and the payee confirms, so the acting role for
// payment steps flips with the operation.
var rules = []Rule{
	{ActionAccept, StatePending, StateAccepted, ActorAnyCashier, ""},
	{ActionCancel, StatePending, StateCancelled, ActorSeller, ""},

	{ActionMarkPaymentStarted, StateAccepted, StatePaymentStarted, ActorSeller, OperationDeposit},
	{ActionMarkPaymentStarted, StateAccepted, StatePaymentStarted, ActorCashier, OperationWithdrawal},

	{ActionMarkCompleted, StatePaymentStarted, StateCompleted, ActorCashier, OperationDeposit},
	{ActionMarkCompleted, StateConfirmationPending, StateCompleted, ActorCashier, OperationDeposit},
	{ActionMarkCompleted, StatePaymentStarted, StateCompleted, ActorSeller, OperationWithdrawal},
	{ActionMarkCompleted, StateConfirmationPending, StateCompleted, ActorSeller, OperationWithdrawal},

	{ActionOpenDispute, StateAccepted, StateDisputed, ActorParty, ""},
	{ActionOpenDispute, StatePaymentStarted, StateDisputed, ActorParty, ""},
	{ActionOpenDispute, StateConfirmationPending, StateDisputed, ActorParty, ""},

	{ActionResolveDispute, StateDisputed, "", ActorAdmin, ""},
}

// Resolutions are the states an administrator may close a dispute with.
var Resolutions = []State{StateCompleted, StateCancelled}

// actionOrder is the order controls are presented in.
var actionOrder = []Action{
	ActionAccept,
	ActionCancel,
	ActionMarkPaymentStarted,
	ActionMarkCompleted,
	ActionOpenDispute,
	ActionResolveDispute,
}

// Rules returns a copy of the lifecycle table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)

	return out
}

// Lookup finds the rule for action on a transaction of the given operation
// in state from.
func Lookup(action Action, op Operation, from State) (Rule, bool) {
	for _, r := range rules {
		if r.Action != action || r.From != from {
			continue
		}

		if r.Operation != "" && r.Operation != op {
			continue
		}

		return r, true
	}

	return Rule{}, false
}

// Authorize checks that u may perform action on tx right now and returns the
// matching rule. It never modifies tx.
func Authorize(tx *Transaction, u *user.User, action Action) (Rule, error) {
	if tx == nil || u == nil {
		return Rule{}, ErrForbidden
	}

	rule, ok := Lookup(action, tx.Operation, tx.State)
	if !ok {
		return Rule{}, fmt.Errorf("%w: cannot %s a %s transaction in state %s",
			ErrInvalidTransition, action, tx.Operation, tx.State)
	}

	if !rule.Actor.admits(tx, u) {
		return Rule{}, fmt.Errorf("%w: %s requires the %s", ErrForbidden, action, rule.Actor)
	}

	return rule, nil
}

// AllowedActions lists, in presentation order, every action u may take on tx.
func AllowedActions(tx *Transaction, u *user.User) []Action {
	var out []Action

	for _, a := range actionOrder {
		if _, err := Authorize(tx, u, a); err == nil {
			out = append(out, a)
		}
	}

	return out
}

// CanResolve reports whether a dispute in state from may be closed as to.
func CanResolve(from, to State) bool {
	if from != StateDisputed {
		return false
	}

	for _, s := range Resolutions {
		if s == to {
			return true
		}
	}

	return false
}

// CanChat reports whether u may read and post in the transaction's channel.
func CanChat(tx *Transaction, u *user.User) bool {
	if tx == nil || u == nil || !tx.State.ChatEligible() {
		return false
	}

	return u.Role == user.RoleAdmin || isSeller(tx, u) || isCashier(tx, u)
}

// CanView reports whether u may read the transaction snapshot. Pending
// requests are visible to every cashier so they can be accepted.
func CanView(tx *Transaction, u *user.User) bool {
	if tx == nil || u == nil {
		return false
	}

	switch {
	case u.Role == user.RoleAdmin, isSeller(tx, u), isCashier(tx, u):
		return true
	case u.Role == user.RoleCashier && tx.State == StatePending:
		return true
	}

	return false
}

func (a Actor) admits(tx *Transaction, u *user.User) bool {
	switch a {
	case ActorAnyCashier:
		return u.Role == user.RoleCashier && u.Available
	case ActorSeller:
		return isSeller(tx, u)
	case ActorCashier:
		return isCashier(tx, u)
	case ActorParty:
		return isSeller(tx, u) || isCashier(tx, u)
	case ActorAdmin:
		return u.Role == user.RoleAdmin
	}

	return false
}

func isSeller(tx *Transaction, u *user.User) bool {
	return u.Role == user.RoleSeller && tx.Seller != nil && tx.Seller.ID == u.ID
}

func isCashier(tx *Transaction, u *user.User) bool {
	return u.Role == user.RoleCashier && tx.Cashier != nil && tx.Cashier.ID == u.ID
}
