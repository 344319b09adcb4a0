package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/cambio/internal/user"
)

// Operation is the direction of a transaction from the seller's point of view.
type Operation string

const (
	// OperationDeposit: the seller pays the cashier, the cashier confirms receipt.
	OperationDeposit Operation = "deposit"
	// OperationWithdrawal: the cashier pays the seller, the seller confirms receipt.
	OperationWithdrawal Operation = "withdrawal"
)

func (o Operation) Valid() bool {
	return o == OperationDeposit || o == OperationWithdrawal
}

// State represents the lifecycle state of a transaction.
type State string

const (
	StatePending             State = "pending"
	StateAccepted            State = "accepted"
	StatePaymentStarted      State = "payment_started"
	StateConfirmationPending State = "confirmation_pending"
	StateCompleted           State = "completed"
	StateCancelled           State = "cancelled"
	StateDisputed            State = "disputed"
)

func (s State) Valid() bool {
	switch s {
	case StatePending, StateAccepted, StatePaymentStarted, StateConfirmationPending,
		StateCompleted, StateCancelled, StateDisputed:
		return true
	}

	return false
}

// Terminal reports whether no party action can move the transaction further.
// Disputed transactions are not terminal: an administrator still resolves them.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// ChatEligible reports whether the transaction has a counterparty to talk to.
func (s State) ChatEligible() bool {
	return s != StatePending && s != StateCancelled
}

// CashierConsistent reports whether a transaction in s may have the given
// cashier assignment. A seller cancels before anyone accepts while an
// administrator cancels a dispute, so cancelled admits both.
func (s State) CashierConsistent(hasCashier bool) bool {
	switch s {
	case StatePending:
		return !hasCashier
	case StateCancelled:
		return true
	}

	return hasCashier
}

// FeeOption decides who carries the platform fee.
type FeeOption string

const (
	// FeeSubtract takes the fee out of the amount owed to the seller.
	FeeSubtract FeeOption = "subtract"
	// FeeAdd charges the fee on top, the seller receives the full amount.
	FeeAdd FeeOption = "add"
)

func (f FeeOption) Valid() bool {
	return f == FeeSubtract || f == FeeAdd
}

// Transaction is an immutable snapshot of an exchange request. Callers replace
// snapshots wholesale; nothing mutates one after it is returned.
type Transaction struct {
	ID        int64
	UUID      uuid.UUID
	Seller    *user.User
	Cashier   *user.User // nil while pending
	Operation Operation
	Amount    decimal.Decimal
	Currency  string
	GrossFee  decimal.Decimal
	NetAmount decimal.Decimal
	State     State

	SellerMethod  *user.PaymentMethod
	CashierMethod *user.PaymentMethod
	ProofRef      string
	Notes         string

	RequestedAt      time.Time
	AcceptedAt       *time.Time
	PaymentStartedAt *time.Time
	ConfirmedAt      *time.Time
}

// Dispute is raised by a party and closed by an administrator.
type Dispute struct {
	ID            int64
	TransactionID int64
	ReporterID    int64
	Reason        string
	EvidenceURL   string
	OpenedAt      time.Time
	Resolution    *State
	ResolverID    *int64
	Decision      string
	ResolvedAt    *time.Time
}
