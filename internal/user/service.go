package user

import (
	"context"
	"fmt"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=user
type Repository interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	SetAvailability(ctx context.Context, id int64, available bool) error
	ListPaymentMethods(ctx context.Context, ownerID int64) ([]*PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (*PaymentMethod, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user only if the account is active.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Status != StatusActive {
		return nil, ErrInactive
	}

	return u, nil
}

// SetAvailability toggles whether a cashier is offered pending requests.
func (s *Service) SetAvailability(ctx context.Context, u *User, available bool) (*User, error) {
	if u.Role != RoleCashier {
		return nil, ErrNotCashier
	}

	if err := s.repo.SetAvailability(ctx, u.ID, available); err != nil {
		return nil, fmt.Errorf("setting availability: %w", err)
	}

	updated := *u
	updated.Available = available

	return &updated, nil
}

func (s *Service) PaymentMethods(ctx context.Context, ownerID int64) ([]*PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx, ownerID)
}

func (s *Service) PaymentMethod(ctx context.Context, id int64) (*PaymentMethod, error) {
	return s.repo.GetPaymentMethod(ctx, id)
}
