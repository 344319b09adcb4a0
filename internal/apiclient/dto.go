package apiclient

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type requestDTO struct {
	Operation       transaction.Operation `json:"operation"`
	Amount          decimal.Decimal       `json:"amount"`
	Currency        string                `json:"currency"`
	PaymentMethodID int64                 `json:"payment_method_id"`
	FeeOption       transaction.FeeOption `json:"fee_option"`
	Notes           string                `json:"notes,omitempty"`
}

type userDTO struct {
	ID           int64       `json:"id"`
	FullName     string      `json:"full_name"`
	Email        string      `json:"email"`
	Role         user.Role   `json:"role"`
	Status       user.Status `json:"status"`
	Available    bool        `json:"available"`
	RegisteredAt time.Time   `json:"registered_at"`
}

func (d *userDTO) toUser() *user.User {
	return &user.User{
		ID:           d.ID,
		FullName:     d.FullName,
		Email:        d.Email,
		Role:         d.Role,
		Status:       d.Status,
		Available:    d.Available,
		RegisteredAt: d.RegisteredAt,
	}
}

type paymentMethodDTO struct {
	ID            int64  `json:"id"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
	Alias         string `json:"alias"`
}

func (d *paymentMethodDTO) toPaymentMethod() *user.PaymentMethod {
	if d == nil {
		return nil
	}

	return &user.PaymentMethod{
		ID:            d.ID,
		AccountType:   d.AccountType,
		AccountNumber: d.AccountNumber,
		HolderName:    d.HolderName,
		Alias:         d.Alias,
	}
}

type transactionDTO struct {
	ID                   int64                 `json:"id"`
	UUID                 uuid.UUID             `json:"uuid"`
	Operation            transaction.Operation `json:"operation"`
	Amount               decimal.Decimal       `json:"amount"`
	Currency             string                `json:"currency"`
	GrossFee             decimal.Decimal       `json:"gross_fee"`
	NetAmount            decimal.Decimal       `json:"net_amount"`
	State                transaction.State     `json:"state"`
	Seller               userDTO               `json:"seller"`
	Cashier              *userDTO              `json:"cashier"`
	SellerPaymentMethod  *paymentMethodDTO     `json:"seller_payment_method"`
	CashierPaymentMethod *paymentMethodDTO     `json:"cashier_payment_method"`
	ProofRef             string                `json:"proof_ref"`
	Notes                string                `json:"notes"`
	RequestedAt          time.Time             `json:"requested_at"`
	AcceptedAt           *time.Time            `json:"accepted_at"`
	PaymentStartedAt     *time.Time            `json:"payment_started_at"`
	ConfirmedAt          *time.Time            `json:"confirmed_at"`
}

func (d *transactionDTO) toTransaction() *transaction.Transaction {
	tx := &transaction.Transaction{
		ID:               d.ID,
		UUID:             d.UUID,
		Seller:           d.Seller.toUser(),
		Operation:        d.Operation,
		Amount:           d.Amount,
		Currency:         d.Currency,
		GrossFee:         d.GrossFee,
		NetAmount:        d.NetAmount,
		State:            d.State,
		SellerMethod:     d.SellerPaymentMethod.toPaymentMethod(),
		CashierMethod:    d.CashierPaymentMethod.toPaymentMethod(),
		ProofRef:         d.ProofRef,
		Notes:            d.Notes,
		RequestedAt:      d.RequestedAt,
		AcceptedAt:       d.AcceptedAt,
		PaymentStartedAt: d.PaymentStartedAt,
		ConfirmedAt:      d.ConfirmedAt,
	}

	if d.Cashier != nil {
		tx.Cashier = d.Cashier.toUser()
	}

	return tx
}

type disputeDTO struct {
	ID            int64              `json:"id"`
	TransactionID int64              `json:"transaction_id"`
	ReporterID    int64              `json:"reporter_id"`
	Reason        string             `json:"reason"`
	EvidenceURL   string             `json:"evidence_url"`
	OpenedAt      time.Time          `json:"opened_at"`
	Resolution    *transaction.State `json:"resolution"`
	ResolverID    *int64             `json:"resolver_id"`
	Decision      string             `json:"decision"`
	ResolvedAt    *time.Time         `json:"resolved_at"`
}

func (d *disputeDTO) toDispute() *transaction.Dispute {
	return &transaction.Dispute{
		ID:            d.ID,
		TransactionID: d.TransactionID,
		ReporterID:    d.ReporterID,
		Reason:        d.Reason,
		EvidenceURL:   d.EvidenceURL,
		OpenedAt:      d.OpenedAt,
		Resolution:    d.Resolution,
		ResolverID:    d.ResolverID,
		Decision:      d.Decision,
		ResolvedAt:    d.ResolvedAt,
	}
}
