// Package txview drives the transaction screens of a client: it decides
// which actions to offer, forwards them to the service and keeps the lists
// in sync with the server's answers.
package txview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

var (
	ErrActionNotAllowed = errors.New("action not allowed")
	ErrInFlight         = errors.New("a request for this transaction is already running")
)

// Service is the transaction API as seen by the signed-in user.
//
//go:generate mockgen -source=controller.go -destination=service_mock.go -package=txview
type Service interface {
	Request(ctx context.Context, params transaction.RequestParams) (*transaction.Transaction, error)
	ListMine(ctx context.Context) ([]*transaction.Transaction, error)
	ListPending(ctx context.Context) ([]*transaction.Transaction, error)
	ListAssigned(ctx context.Context) ([]*transaction.Transaction, error)
	ListAll(ctx context.Context) ([]*transaction.Transaction, error)
	Accept(ctx context.Context, id int64, cashierMethodID *int64) (*transaction.Transaction, error)
	MarkPaymentStarted(ctx context.Context, id int64, proofRef string) (*transaction.Transaction, error)
	MarkCompleted(ctx context.Context, id int64) (*transaction.Transaction, error)
	Cancel(ctx context.Context, id int64) (*transaction.Transaction, error)
	OpenDispute(ctx context.Context, id int64, reason, evidenceURL string) (*transaction.Transaction, error)
	ResolveDispute(ctx context.Context, id int64, to transaction.State, decision string) (*transaction.Transaction, error)
	ListMyDisputes(ctx context.Context) ([]*transaction.Dispute, error)
	ListAllDisputes(ctx context.Context, openOnly bool) ([]*transaction.Dispute, error)
}

// Input carries the extra fields some actions need.
type Input struct {
	CashierMethodID *int64
	ProofRef        string
	Reason          string
	EvidenceURL     string
	Resolution      transaction.State
	Decision        string
}

type Controller struct {
	svc Service
	log *slog.Logger

	mu       sync.Mutex
	me       *user.User
	mine     []*transaction.Transaction
	pending  []*transaction.Transaction
	assigned []*transaction.Transaction
	all      []*transaction.Transaction
	disputes map[int64]*transaction.Dispute
	inflight map[int64]struct{}
	err      error
}

func New(svc Service, me *user.User, log *slog.Logger) *Controller {
	return &Controller{
		svc:      svc,
		me:       me,
		log:      log,
		inflight: make(map[int64]struct{}),
	}
}

func (c *Controller) User() *user.User {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.me
}

// SetUser replaces the signed-in user, for example after an availability change.
func (c *Controller) SetUser(u *user.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.me = u
}

// Actions lists the actions the signed-in user may take on tx.
func (c *Controller) Actions(tx *transaction.Transaction) []transaction.Action {
	return transaction.AllowedActions(tx, c.User())
}

// Invoke runs action against the service. Nothing local changes unless the
// service accepts it; the returned snapshot replaces the old one.
func (c *Controller) Invoke(ctx context.Context, tx *transaction.Transaction, action transaction.Action, in Input) (*transaction.Transaction, error) {
	if _, err := transaction.Authorize(tx, c.User(), action); err != nil {
		err = fmt.Errorf("%w: %w", ErrActionNotAllowed, err)
		c.setErr(err)

		return nil, err
	}

	if !c.begin(tx.ID) {
		return nil, ErrInFlight
	}
	defer c.end(tx.ID)

	updated, err := c.call(ctx, tx.ID, action, in)
	if err != nil {
		c.log.Warn("transaction action failed", "error", err, "action", action, "transaction_id", tx.ID)

		// The server disagreed with our snapshot: reload before reporting.
		if stale(err) {
			if action == transaction.ActionAccept && errors.Is(err, transaction.ErrConflict) {
				c.dropPending(tx.ID)
			}

			if rerr := c.Refresh(ctx); rerr != nil {
				c.log.Warn("failed to refresh after rejection", "error", rerr)
			}
		}

		c.setErr(err)

		return nil, err
	}

	c.replace(updated)

	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("failed to refresh transactions", "error", err)
	}

	c.setErr(nil)

	return updated, nil
}

// Request creates a new transaction and refreshes the lists.
func (c *Controller) Request(ctx context.Context, params transaction.RequestParams) (*transaction.Transaction, error) {
	tx, err := c.svc.Request(ctx, params)
	if err != nil {
		c.setErr(err)
		return nil, err
	}

	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("failed to refresh transactions", "error", err)
	}

	return tx, nil
}

// stale reports whether err means the server's view of the transaction
// differs from the cached one.
func stale(err error) bool {
	return errors.Is(err, transaction.ErrConflict) ||
		errors.Is(err, transaction.ErrInvalidTransition) ||
		errors.Is(err, transaction.ErrForbidden) ||
		errors.Is(err, transaction.ErrNotFound)
}

func (c *Controller) call(ctx context.Context, id int64, action transaction.Action, in Input) (*transaction.Transaction, error) {
	switch action {
	case transaction.ActionAccept:
		return c.svc.Accept(ctx, id, in.CashierMethodID)
	case transaction.ActionMarkPaymentStarted:
		return c.svc.MarkPaymentStarted(ctx, id, in.ProofRef)
	case transaction.ActionMarkCompleted:
		return c.svc.MarkCompleted(ctx, id)
	case transaction.ActionCancel:
		return c.svc.Cancel(ctx, id)
	case transaction.ActionOpenDispute:
		return c.svc.OpenDispute(ctx, id, in.Reason, in.EvidenceURL)
	case transaction.ActionResolveDispute:
		return c.svc.ResolveDispute(ctx, id, in.Resolution, in.Decision)
	}

	return nil, fmt.Errorf("%w: unknown action %q", ErrActionNotAllowed, action)
}

// Refresh reloads the lists relevant to the signed-in user's role.
func (c *Controller) Refresh(ctx context.Context) error {
	me := c.User()
	if me == nil {
		return nil
	}

	var err error

	switch me.Role {
	case user.RoleSeller:
		var mine []*transaction.Transaction
		if mine, err = c.svc.ListMine(ctx); err == nil {
			c.mu.Lock()
			c.mine = mine
			c.mu.Unlock()
		}
	case user.RoleCashier:
		var pending, assigned []*transaction.Transaction
		if pending, err = c.svc.ListPending(ctx); err != nil {
			break
		}

		if assigned, err = c.svc.ListAssigned(ctx); err == nil {
			c.mu.Lock()
			c.pending, c.assigned = pending, assigned
			c.mu.Unlock()
		}
	case user.RoleAdmin:
		var all []*transaction.Transaction
		if all, err = c.svc.ListAll(ctx); err == nil {
			c.mu.Lock()
			c.all = all
			c.mu.Unlock()
		}
	}

	if err != nil {
		err = fmt.Errorf("refreshing transactions: %w", err)
		c.setErr(err)
	}

	return err
}

// RefreshDisputes reloads the disputes the signed-in user can see:
// every dispute for an administrator, their own for everyone else.
func (c *Controller) RefreshDisputes(ctx context.Context) error {
	me := c.User()
	if me == nil {
		return nil
	}

	var (
		disputes []*transaction.Dispute
		err      error
	)

	if me.Role == user.RoleAdmin {
		disputes, err = c.svc.ListAllDisputes(ctx, false)
	} else {
		disputes, err = c.svc.ListMyDisputes(ctx)
	}

	if err != nil {
		err = fmt.Errorf("refreshing disputes: %w", err)
		c.setErr(err)

		return err
	}

	byTx := make(map[int64]*transaction.Dispute, len(disputes))
	for _, d := range disputes {
		byTx[d.TransactionID] = d
	}

	c.mu.Lock()
	c.disputes = byTx
	c.mu.Unlock()

	return nil
}

// Dispute returns the dispute raised on the transaction, or nil.
func (c *Controller) Dispute(transactionID int64) *transaction.Dispute {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.disputes[transactionID]
}

// Busy reports whether a request for the transaction is running.
func (c *Controller) Busy(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.inflight[id]

	return ok
}

// Err is the last failure seen, or nil after a successful action.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *Controller) Mine() []*transaction.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*transaction.Transaction(nil), c.mine...)
}

func (c *Controller) Pending() []*transaction.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*transaction.Transaction(nil), c.pending...)
}

func (c *Controller) Assigned() []*transaction.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*transaction.Transaction(nil), c.assigned...)
}

func (c *Controller) All() []*transaction.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*transaction.Transaction(nil), c.all...)
}

// Visible is the list the signed-in user works from.
func (c *Controller) Visible() []*transaction.Transaction {
	me := c.User()
	if me == nil {
		return nil
	}

	switch me.Role {
	case user.RoleSeller:
		return c.Mine()
	case user.RoleCashier:
		return append(c.Pending(), c.Assigned()...)
	}

	return c.All()
}

func (c *Controller) begin(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.inflight[id]; ok {
		return false
	}

	c.inflight[id] = struct{}{}

	return true
}

func (c *Controller) end(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inflight, id)
}

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.err = err
}

// replace swaps every cached snapshot of tx for the new one.
func (c *Controller) replace(tx *transaction.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, list := range [][]*transaction.Transaction{c.mine, c.pending, c.assigned, c.all} {
		for i, old := range list {
			if old.ID == tx.ID {
				list[i] = tx
			}
		}
	}
}

func (c *Controller) dropPending(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.pending[:0:0]

	for _, tx := range c.pending {
		if tx.ID != id {
			out = append(out, tx)
		}
	}

	c.pending = out
}
