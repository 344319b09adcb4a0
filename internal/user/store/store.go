package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/cambio/internal/user"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetUser(ctx context.Context, id int64) (*user.User, error) {
	query := `
		SELECT id, full_name, email, role, phone, status, available, registered_at, last_login_at
		FROM users
		WHERE id = $1
	`

	var (
		u            user.User
		role, status string
		phone        sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.FullName, &u.Email, &role, &phone, &status, &u.Available, &u.RegisteredAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}

		return nil, fmt.Errorf("getting user: %w", err)
	}

	u.Role = user.Role(role)
	u.Status = user.Status(status)
	u.Phone = phone.String

	return &u, nil
}

func (s *Store) SetAvailability(ctx context.Context, id int64, available bool) error {
	query := `UPDATE users SET available = $1 WHERE id = $2 AND role = 'cashier'`

	res, err := s.db.ExecContext(ctx, query, available, id)
	if err != nil {
		return fmt.Errorf("updating availability: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating availability: %w", err)
	}

	if n == 0 {
		return user.ErrNotFound
	}

	return nil
}

const selectPaymentMethodColumns = `
	id, owner_id, account_type, account_number, holder_name, holder_id, alias, status, created_at, updated_at
`

func scanPaymentMethod(s interface{ Scan(dest ...any) error }) (*user.PaymentMethod, error) {
	var (
		pm              user.PaymentMethod
		holderID, alias sql.NullString
	)

	if err := s.Scan(
		&pm.ID, &pm.OwnerID, &pm.AccountType, &pm.AccountNumber, &pm.HolderName,
		&holderID, &alias, &pm.Status, &pm.CreatedAt, &pm.UpdatedAt,
	); err != nil {
		return nil, err
	}

	pm.HolderID = holderID.String
	pm.Alias = alias.String

	return &pm, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context, ownerID int64) ([]*user.PaymentMethod, error) {
	query := `SELECT ` + selectPaymentMethodColumns + `
		FROM payment_methods
		WHERE owner_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*user.PaymentMethod

	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment method: %w", err)
		}

		methods = append(methods, pm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment methods: %w", err)
	}

	return methods, nil
}

func (s *Store) GetPaymentMethod(ctx context.Context, id int64) (*user.PaymentMethod, error) {
	query := `SELECT ` + selectPaymentMethodColumns + ` FROM payment_methods WHERE id = $1`

	pm, err := scanPaymentMethod(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}

		return nil, fmt.Errorf("getting payment method: %w", err)
	}

	return pm, nil
}
