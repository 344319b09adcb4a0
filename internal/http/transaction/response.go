package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type transactionResponse struct {
	ID                   int64                  `json:"id"`
	UUID                 uuid.UUID              `json:"uuid"`
	Operation            transaction.Operation  `json:"operation"`
	Amount               decimal.Decimal        `json:"amount"`
	Currency             string                 `json:"currency"`
	GrossFee             decimal.Decimal        `json:"gross_fee"`
	NetAmount            decimal.Decimal        `json:"net_amount"`
	State                transaction.State      `json:"state"`
	Seller               userResponse           `json:"seller"`
	Cashier              *userResponse          `json:"cashier,omitempty"`
	SellerPaymentMethod  *paymentMethodResponse `json:"seller_payment_method,omitempty"`
	CashierPaymentMethod *paymentMethodResponse `json:"cashier_payment_method,omitempty"`
	ProofRef             string                 `json:"proof_ref,omitempty"`
	Notes                string                 `json:"notes,omitempty"`
	RequestedAt          time.Time              `json:"requested_at"`
	AcceptedAt           *time.Time             `json:"accepted_at,omitempty"`
	PaymentStartedAt     *time.Time             `json:"payment_started_at,omitempty"`
	ConfirmedAt          *time.Time             `json:"confirmed_at,omitempty"`
}

type disputeResponse struct {
	ID            int64              `json:"id"`
	TransactionID int64              `json:"transaction_id"`
	ReporterID    int64              `json:"reporter_id"`
	Reason        string             `json:"reason"`
	EvidenceURL   string             `json:"evidence_url,omitempty"`
	OpenedAt      time.Time          `json:"opened_at"`
	Resolution    *transaction.State `json:"resolution,omitempty"`
	ResolverID    *int64             `json:"resolver_id,omitempty"`
	Decision      string             `json:"decision,omitempty"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
}

type userResponse struct {
	ID       int64     `json:"id"`
	FullName string    `json:"full_name"`
	Role     user.Role `json:"role"`
}

type paymentMethodResponse struct {
	ID            int64  `json:"id"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
	Alias         string `json:"alias,omitempty"`
}

func toResponse(tx *transaction.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                   tx.ID,
		UUID:                 tx.UUID,
		Operation:            tx.Operation,
		Amount:               tx.Amount,
		Currency:             tx.Currency,
		GrossFee:             tx.GrossFee,
		NetAmount:            tx.NetAmount,
		State:                tx.State,
		SellerPaymentMethod:  toPaymentMethod(tx.SellerMethod),
		CashierPaymentMethod: toPaymentMethod(tx.CashierMethod),
		ProofRef:             tx.ProofRef,
		Notes:                tx.Notes,
		RequestedAt:          tx.RequestedAt,
		AcceptedAt:           tx.AcceptedAt,
		PaymentStartedAt:     tx.PaymentStartedAt,
		ConfirmedAt:          tx.ConfirmedAt,
	}

	if tx.Seller != nil {
		resp.Seller = toUser(tx.Seller)
	}

	if tx.Cashier != nil {
		resp.Cashier = new(toUser(tx.Cashier))
	}

	return resp
}

func toResponseList(txs []*transaction.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}

func toUser(u *user.User) userResponse {
	return userResponse{ID: u.ID, FullName: u.FullName, Role: u.Role}
}

func toPaymentMethod(pm *user.PaymentMethod) *paymentMethodResponse {
	if pm == nil {
		return nil
	}

	return &paymentMethodResponse{
		ID:            pm.ID,
		AccountType:   pm.AccountType,
		AccountNumber: pm.AccountNumber,
		HolderName:    pm.HolderName,
		Alias:         pm.Alias,
	}
}

func toDispute(d *transaction.Dispute) disputeResponse {
	return disputeResponse{
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
