package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateMessage(ctx context.Context, msg *chat.Message) error {
	query := `
		INSERT INTO chat_messages (transaction_id, sender_id, content, sent_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, sent_at
	`

	err := s.db.QueryRowContext(ctx, query, msg.TransactionID, msg.Sender.ID, msg.Content).
		Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return fmt.Errorf("creating message: %w", err)
	}

	return nil
}

func (s *Store) ListMessages(ctx context.Context, transactionID int64) ([]chat.Message, error) {
	query := `
		SELECT m.id, m.transaction_id, m.content, m.sent_at, u.id, u.full_name, u.role
		FROM chat_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.transaction_id = $1
		ORDER BY m.sent_at, m.id
	`

	rows, err := s.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message

	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.TransactionID, &m.Content, &m.Timestamp,
			&m.Sender.ID, &m.Sender.FullName, &m.Sender.Role); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return msgs, nil
}
