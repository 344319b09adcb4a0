package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sender identifies who wrote a message.
type Sender struct {
	ID       int64  `json:"id"`
	FullName string `json:"nombreCompleto"`
	Role     string `json:"rol"`
}

// Message is one entry of a transaction's conversation. Error placeholders
// are produced locally, carry a negative ID and are never persisted.
type Message struct {
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaccionId"`
	Content       string    `json:"contenido"`
	Sender        Sender    `json:"remitente"`
	Timestamp     time.Time `json:"timestamp"`
	Error         bool      `json:"error,omitempty"`
	Description   string    `json:"mensaje,omitempty"`
}

// SendPayload is the body published to a send address.
type SendPayload struct {
	Content string `json:"contenido"`
}

// Event tells subscribers that a transaction changed state.
type Event struct {
	TransactionID int64  `json:"transaccionId"`
	State         string `json:"estado"`
}

// localLayouts are accepted for timestamps that carry no zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// DecodeMessage parses a message body. A missing timestamp decodes to the
// zero time; zone-less timestamps are read in the local zone.
func DecodeMessage(data []byte) (Message, error) {
	var raw struct {
		Message
		Timestamp string `json:"timestamp"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}

	msg := raw.Message

	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return Message{}, err
	}

	msg.Timestamp = ts

	return msg, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}

	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("decoding message: unrecognised timestamp %q", s)
}
