package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectTransactionColumns = `
	t.id, t.uuid, t.operation, t.amount, t.currency, t.gross_fee, t.net_amount, t.state,
	t.proof_ref, t.notes, t.requested_at, t.accepted_at, t.payment_started_at, t.confirmed_at,
	s.id, s.full_name, s.email, s.role,
	c.id, c.full_name, c.email, c.role,
	sm.id, sm.owner_id, sm.account_type, sm.account_number, sm.holder_name, sm.alias,
	cm.id, cm.owner_id, cm.account_type, cm.account_number, cm.holder_name, cm.alias
`

const fromTransactions = `
	FROM transactions t
	JOIN users s ON s.id = t.seller_id
	LEFT JOIN users c ON c.id = t.cashier_id
	JOIN payment_methods sm ON sm.id = t.seller_payment_method_id
	LEFT JOIN payment_methods cm ON cm.id = t.cashier_payment_method_id
`

// scanTransaction reads a row laid out as selectTransactionColumns.
func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var (
		tx                      transaction.Transaction
		operation, state        string
		proofRef, notes         sql.NullString
		seller                  user.User
		sellerRole              string
		cashierID               sql.NullInt64
		cashierName, cashierEml sql.NullString
		cashierRole             sql.NullString
		sellerMethod            user.PaymentMethod
		sellerAlias             sql.NullString
		cmID, cmOwner           sql.NullInt64
		cmType, cmNumber        sql.NullString
		cmHolder, cmAlias       sql.NullString
	)

	if err := s.Scan(
		&tx.ID, &tx.UUID, &operation, &tx.Amount, &tx.Currency, &tx.GrossFee, &tx.NetAmount, &state,
		&proofRef, &notes, &tx.RequestedAt, &tx.AcceptedAt, &tx.PaymentStartedAt, &tx.ConfirmedAt,
		&seller.ID, &seller.FullName, &seller.Email, &sellerRole,
		&cashierID, &cashierName, &cashierEml, &cashierRole,
		&sellerMethod.ID, &sellerMethod.OwnerID, &sellerMethod.AccountType, &sellerMethod.AccountNumber,
		&sellerMethod.HolderName, &sellerAlias,
		&cmID, &cmOwner, &cmType, &cmNumber, &cmHolder, &cmAlias,
	); err != nil {
		return nil, err
	}

	tx.Operation = transaction.Operation(operation)
	tx.State = transaction.State(state)
	tx.ProofRef = proofRef.String
	tx.Notes = notes.String

	seller.Role = user.Role(sellerRole)
	tx.Seller = &seller

	sellerMethod.Alias = sellerAlias.String
	tx.SellerMethod = &sellerMethod

	if cashierID.Valid {
		tx.Cashier = &user.User{
			ID:       cashierID.Int64,
			FullName: cashierName.String,
			Email:    cashierEml.String,
			Role:     user.Role(cashierRole.String),
		}
	}

	if cmID.Valid {
		tx.CashierMethod = &user.PaymentMethod{
			ID:            cmID.Int64,
			OwnerID:       cmOwner.Int64,
			AccountType:   cmType.String,
			AccountNumber: cmNumber.String,
			HolderName:    cmHolder.String,
			Alias:         cmAlias.String,
		}
	}

	return &tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (
			uuid, seller_id, operation, amount, currency, gross_fee, net_amount,
			seller_payment_method_id, state, notes, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NOW())
		RETURNING id, requested_at
	`

	err := s.db.QueryRowContext(ctx, query,
		tx.UUID,
		tx.Seller.ID,
		tx.Operation,
		tx.Amount,
		tx.Currency,
		tx.GrossFee,
		tx.NetAmount,
		tx.SellerMethod.ID,
		tx.State,
		tx.Notes,
	).Scan(&tx.ID, &tx.RequestedAt)
	if err != nil {
		return fmt.Errorf("creating transaction: %w", err)
	}

	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + fromTransactions + `WHERE t.id = $1`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + fromTransactions + `WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.SellerID != nil {
		query += fmt.Sprintf(" AND t.seller_id = $%d", argIdx)

		args = append(args, *filter.SellerID)
		argIdx++
	}

	if filter.CashierID != nil {
		query += fmt.Sprintf(" AND t.cashier_id = $%d", argIdx)

		args = append(args, *filter.CashierID)
		argIdx++
	}

	if filter.State != nil {
		query += fmt.Sprintf(" AND t.state = $%d", argIdx)

		args = append(args, *filter.State)
		argIdx++
	}

	query += " ORDER BY t.requested_at DESC, t.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}

// Transition applies change only if the row is still in change.From. The
// cashier and every timestamp are written at most once.
func (s *Store) Transition(ctx context.Context, change transaction.Change) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		UPDATE transactions
		SET state = $1,
			cashier_id = COALESCE(cashier_id, $2),
			cashier_payment_method_id = COALESCE(cashier_payment_method_id, $3),
			proof_ref = COALESCE($4, proof_ref),
			accepted_at = CASE WHEN $1 = 'accepted' THEN COALESCE(accepted_at, NOW()) ELSE accepted_at END,
			payment_started_at = CASE WHEN $1 = 'payment_started' THEN COALESCE(payment_started_at, NOW()) ELSE payment_started_at END,
			confirmed_at = CASE WHEN $1 = 'completed' THEN COALESCE(confirmed_at, NOW()) ELSE confirmed_at END
		WHERE id = $5 AND state = $6
	`

	res, err := dbTx.ExecContext(ctx, query,
		change.To,
		change.CashierID,
		change.CashierMethodID,
		change.ProofRef,
		change.ID,
		change.From,
	)
	if err != nil {
		return fmt.Errorf("updating state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating state: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: transaction %d is no longer %s", transaction.ErrConflict, change.ID, change.From)
	}

	if change.Dispute != nil {
		if err := writeDispute(ctx, dbTx, change.Dispute); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func writeDispute(ctx context.Context, dbTx *sql.Tx, d *transaction.Dispute) error {
	if d.Resolution == nil {
		query := `
			INSERT INTO disputes (transaction_id, reporter_id, reason, evidence_url, opened_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
			RETURNING id, opened_at
		`

		err := dbTx.QueryRowContext(ctx, query, d.TransactionID, d.ReporterID, d.Reason, d.EvidenceURL).
			Scan(&d.ID, &d.OpenedAt)
		if err != nil {
			return fmt.Errorf("opening dispute: %w", err)
		}

		return nil
	}

	query := `
		UPDATE disputes
		SET resolution = $1, resolver_id = $2, decision = NULLIF($3, ''), resolved_at = NOW()
		WHERE transaction_id = $4 AND resolved_at IS NULL
	`

	if _, err := dbTx.ExecContext(ctx, query, *d.Resolution, d.ResolverID, d.Decision, d.TransactionID); err != nil {
		return fmt.Errorf("resolving dispute: %w", err)
	}

	return nil
}

func (s *Store) ListDisputes(ctx context.Context, filter transaction.DisputeFilter) ([]*transaction.Dispute, error) {
	query := `
		SELECT d.id, d.transaction_id, d.reporter_id, d.reason, d.evidence_url, d.opened_at,
			d.resolution, d.resolver_id, d.decision, d.resolved_at
		FROM disputes d
		JOIN transactions t ON t.id = d.transaction_id
		WHERE TRUE`

	var args []any

	if filter.PartyID != nil {
		args = append(args, *filter.PartyID)
		query += fmt.Sprintf(" AND (t.seller_id = $%d OR t.cashier_id = $%d)", len(args), len(args))
	}

	if filter.OpenOnly {
		query += " AND d.resolved_at IS NULL"
	}

	query += " ORDER BY d.opened_at DESC, d.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing disputes: %w", err)
	}
	defer rows.Close()

	var disputes []*transaction.Dispute

	for rows.Next() {
		var (
			d                  transaction.Dispute
			evidence, decision sql.NullString
			resolution         sql.NullString
			resolverID         sql.NullInt64
		)

		if err := rows.Scan(
			&d.ID, &d.TransactionID, &d.ReporterID, &d.Reason, &evidence, &d.OpenedAt,
			&resolution, &resolverID, &decision, &d.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning dispute: %w", err)
		}

		d.EvidenceURL = evidence.String
		d.Decision = decision.String

		if resolution.Valid {
			d.Resolution = new(transaction.State(resolution.String))
		}

		if resolverID.Valid {
			d.ResolverID = &resolverID.Int64
		}

		disputes = append(disputes, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating disputes: %w", err)
	}

	return disputes, nil
}
