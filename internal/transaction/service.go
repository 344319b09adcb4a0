package transaction

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/cambio/internal/user"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)

	// Transition moves the transaction from change.From to change.To. It must
	// fail with ErrConflict when the stored state is no longer change.From.
	Transition(ctx context.Context, change Change) error

	ListDisputes(ctx context.Context, filter DisputeFilter) ([]*Dispute, error)
}

// PaymentMethods resolves payment methods owned by users.
type PaymentMethods interface {
	PaymentMethod(ctx context.Context, id int64) (*user.PaymentMethod, error)
}

// Notifier is told about every committed state change.
type Notifier interface {
	TransactionChanged(tx *Transaction)
}

type Service struct {
	repo     Repository
	methods  PaymentMethods
	feeRate  decimal.Decimal
	notifier Notifier
}

func NewService(repo Repository, methods PaymentMethods, feeRate decimal.Decimal) *Service {
	return &Service{repo: repo, methods: methods, feeRate: feeRate}
}

// SetNotifier registers n to be called after each successful transition.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

type RequestParams struct {
	Operation       Operation
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID int64
	FeeOption       FeeOption
	Notes           string
}

type ListFilter struct {
	SellerID  *int64
	CashierID *int64
	State     *State
}

// DisputeFilter narrows ListDisputes. PartyID matches the seller or the
// cashier of the disputed transaction.
type DisputeFilter struct {
	PartyID  *int64
	OpenOnly bool
}

// Change is a compare-and-set state update with the fields that travel with it.
type Change struct {
	ID              int64
	From            State
	To              State
	CashierID       *int64
	CashierMethodID *int64
	ProofRef        *string
	Dispute         *Dispute
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Request creates a pending transaction on behalf of a seller.
func (s *Service) Request(ctx context.Context, actor *user.User, params RequestParams) (*Transaction, error) {
	if actor.Role != user.RoleSeller {
		return nil, fmt.Errorf("%w: only sellers can request transactions", ErrForbidden)
	}

	if err := params.validate(); err != nil {
		return nil, err
	}

	method, err := s.ownedMethod(ctx, actor, params.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	fee, net := ComputeFee(params.Amount, s.feeRate, params.FeeOption)

	tx := &Transaction{
		UUID:         uuid.New(),
		Seller:       actor,
		Operation:    params.Operation,
		Amount:       params.Amount.Round(2),
		Currency:     strings.ToUpper(params.Currency),
		GrossFee:     fee,
		NetAmount:    net,
		State:        StatePending,
		SellerMethod: method,
		Notes:        strings.TrimSpace(params.Notes),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

func (p RequestParams) validate() error {
	switch {
	case !p.Operation.Valid():
		return fmt.Errorf("%w: unknown operation %q", ErrValidation, p.Operation)
	case !p.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	case !currencyPattern.MatchString(strings.ToUpper(p.Currency)):
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	case !p.FeeOption.Valid():
		return fmt.Errorf("%w: unknown fee option %q", ErrValidation, p.FeeOption)
	case p.PaymentMethodID <= 0:
		return fmt.Errorf("%w: a payment method is required", ErrValidation)
	}

	return nil
}

// ComputeFee returns the gross fee and the net amount owed to the seller.
func ComputeFee(amount, rate decimal.Decimal, option FeeOption) (fee, net decimal.Decimal) {
	amount = amount.Round(2)
	fee = amount.Mul(rate).Round(2)

	if option == FeeSubtract {
		return fee, amount.Sub(fee)
	}

	return fee, amount
}

func (s *Service) ownedMethod(ctx context.Context, owner *user.User, id int64) (*user.PaymentMethod, error) {
	method, err := s.methods.PaymentMethod(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("%w: payment method %d not found", ErrValidation, id)
		}

		return nil, fmt.Errorf("loading payment method: %w", err)
	}

	if method.OwnerID != owner.ID {
		return nil, fmt.Errorf("%w: payment method %d not found", ErrValidation, id)
	}

	return method, nil
}

func (s *Service) Get(ctx context.Context, actor *user.User, id int64) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanView(tx, actor) {
		return nil, ErrForbidden
	}

	return tx, nil
}

// ListMine returns the seller's own requests.
func (s *Service) ListMine(ctx context.Context, actor *user.User) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, ListFilter{SellerID: &actor.ID})
}

// ListPending returns the requests waiting for a cashier.
func (s *Service) ListPending(ctx context.Context, actor *user.User) ([]*Transaction, error) {
	if actor.Role != user.RoleCashier && actor.Role != user.RoleAdmin {
		return nil, ErrForbidden
	}

	return s.repo.ListTransactions(ctx, ListFilter{State: new(StatePending)})
}

// ListAssigned returns the transactions the cashier has accepted.
func (s *Service) ListAssigned(ctx context.Context, actor *user.User) ([]*Transaction, error) {
	if actor.Role != user.RoleCashier {
		return nil, ErrForbidden
	}

	return s.repo.ListTransactions(ctx, ListFilter{CashierID: &actor.ID})
}

func (s *Service) ListAll(ctx context.Context, actor *user.User) ([]*Transaction, error) {
	if actor.Role != user.RoleAdmin {
		return nil, ErrForbidden
	}

	return s.repo.ListTransactions(ctx, ListFilter{})
}

// Accept assigns the calling cashier. Only the first acceptor wins; everyone
// else gets ErrConflict.
func (s *Service) Accept(ctx context.Context, actor *user.User, id int64, cashierMethodID *int64) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.State != StatePending && actor.Role == user.RoleCashier {
		return nil, fmt.Errorf("%w: transaction %d is already %s", ErrConflict, id, tx.State)
	}

	change := Change{CashierID: &actor.ID}

	if cashierMethodID != nil {
		if _, err := s.ownedMethod(ctx, actor, *cashierMethodID); err != nil {
			return nil, err
		}

		change.CashierMethodID = cashierMethodID
	}

	return s.apply(ctx, actor, tx, ActionAccept, change)
}

// MarkPaymentStarted records that the payer sent the money.
func (s *Service) MarkPaymentStarted(ctx context.Context, actor *user.User, id int64, proofRef string) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	change := Change{}
	if ref := strings.TrimSpace(proofRef); ref != "" {
		change.ProofRef = &ref
	}

	return s.apply(ctx, actor, tx, ActionMarkPaymentStarted, change)
}

// MarkCompleted records that the payee confirmed receipt.
func (s *Service) MarkCompleted(ctx context.Context, actor *user.User, id int64) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, actor, tx, ActionMarkCompleted, Change{})
}

func (s *Service) Cancel(ctx context.Context, actor *user.User, id int64) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, actor, tx, ActionCancel, Change{})
}

// OpenDispute freezes the transaction until an administrator resolves it.
func (s *Service) OpenDispute(ctx context.Context, actor *user.User, id int64, reason, evidenceURL string) (*Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a dispute needs a reason", ErrValidation)
	}

	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, actor, tx, ActionOpenDispute, Change{
		Dispute: &Dispute{
			TransactionID: id,
			ReporterID:    actor.ID,
			Reason:        reason,
			EvidenceURL:   strings.TrimSpace(evidenceURL),
		},
	})
}

// ResolveDispute closes a dispute as completed or cancelled.
func (s *Service) ResolveDispute(ctx context.Context, actor *user.User, id int64, to State, decision string) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.State == StateDisputed && !CanResolve(tx.State, to) {
		return nil, fmt.Errorf("%w: a dispute resolves to completed or cancelled, not %s", ErrValidation, to)
	}

	return s.apply(ctx, actor, tx, ActionResolveDispute, Change{
		To: to,
		Dispute: &Dispute{
			TransactionID: id,
			Resolution:    &to,
			ResolverID:    &actor.ID,
			Decision:      strings.TrimSpace(decision),
		},
	})
}

func (s *Service) apply(ctx context.Context, actor *user.User, tx *Transaction, action Action, change Change) (*Transaction, error) {
	rule, err := Authorize(tx, actor, action)
	if err != nil {
		return nil, err
	}

	change.ID = tx.ID
	change.From = tx.State

	if rule.To != "" {
		change.To = rule.To
	}

	if err := s.repo.Transition(ctx, change); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading transaction: %w", err)
	}

	if s.notifier != nil {
		s.notifier.TransactionChanged(updated)
	}

	return updated, nil
}

// ListMyDisputes returns the disputes on transactions the actor is a party to.
func (s *Service) ListMyDisputes(ctx context.Context, actor *user.User) ([]*Dispute, error) {
	return s.repo.ListDisputes(ctx, DisputeFilter{PartyID: &actor.ID})
}

// ListAllDisputes returns every dispute, newest first. Administrators only.
func (s *Service) ListAllDisputes(ctx context.Context, actor *user.User, openOnly bool) ([]*Dispute, error) {
	if actor.Role != user.RoleAdmin {
		return nil, ErrForbidden
	}

	return s.repo.ListDisputes(ctx, DisputeFilter{OpenOnly: openOnly})
}
