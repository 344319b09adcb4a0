package user

import (
	"errors"
	"time"
)

// Role is the part a user plays on the platform.
type Role string

const (
	RoleSeller  Role = "seller"
	RoleCashier Role = "cashier"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSeller, RoleCashier, RoleAdmin:
		return true
	}

	return false
}

// Status is the account standing of a user.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrNotCashier = errors.New("only cashiers have an availability flag")
	ErrInactive   = errors.New("user is not active")
)

// User is a platform account.
type User struct {
	ID           int64
	FullName     string
	Email        string
	Role         Role
	Phone        string
	Status       Status
	Available    bool // cashiers only
	RegisteredAt time.Time
	LastLoginAt  *time.Time
}

// PaymentMethod is an account a user receives or sends money with.
type PaymentMethod struct {
	ID            int64
	OwnerID       int64
	AccountType   string
	AccountNumber string
	HolderName    string
	HolderID      string
	Alias         string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
