package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=chat
type Repository interface {
	CreateMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, transactionID int64) ([]Message, error)
}

// Transactions loads a transaction on behalf of a user.
type Transactions interface {
	Get(ctx context.Context, actor *user.User, id int64) (*transaction.Transaction, error)
}

type Service struct {
	repo   Repository
	txs    Transactions
	maxLen int
}

func NewService(repo Repository, txs Transactions, maxLen int) *Service {
	return &Service{repo: repo, txs: txs, maxLen: maxLen}
}

// Authorize returns the transaction if actor may take part in its chat.
func (s *Service) Authorize(ctx context.Context, actor *user.User, transactionID int64) (*transaction.Transaction, error) {
	tx, err := s.txs.Get(ctx, actor, transactionID)
	if err != nil {
		return nil, err
	}

	if !transaction.CanChat(tx, actor) {
		return nil, fmt.Errorf("%w: chat is closed for transaction %d", transaction.ErrForbidden, transactionID)
	}

	return tx, nil
}

// Post stores a message and returns it with its server id and timestamp.
func (s *Service) Post(ctx context.Context, actor *user.User, transactionID int64, content string) (*Message, error) {
	content = strings.TrimSpace(content)

	switch {
	case content == "":
		return nil, fmt.Errorf("%w: message is empty", transaction.ErrValidation)
	case s.maxLen > 0 && utf8.RuneCountInString(content) > s.maxLen:
		return nil, fmt.Errorf("%w: message is longer than %d characters", transaction.ErrValidation, s.maxLen)
	}

	if _, err := s.Authorize(ctx, actor, transactionID); err != nil {
		return nil, err
	}

	msg := &Message{
		TransactionID: transactionID,
		Content:       content,
		Sender: Sender{
			ID:       actor.ID,
			FullName: actor.FullName,
			Role:     string(actor.Role),
		},
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	return msg, nil
}

// History returns the stored conversation in timestamp order.
func (s *Service) History(ctx context.Context, actor *user.User, transactionID int64) ([]Message, error) {
	if _, err := s.Authorize(ctx, actor, transactionID); err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	if msgs == nil {
		msgs = []Message{}
	}

	return msgs, nil
}
