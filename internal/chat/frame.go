package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type FrameType string

const (
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FrameSend        FrameType = "send"
	FrameMessage     FrameType = "message"
	FrameEvent       FrameType = "event"
	FrameError       FrameType = "error"
)

// Frame is the envelope exchanged over the socket in both directions.
type Frame struct {
	Type        FrameType       `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Message     string          `json:"message,omitempty"`
}

const (
	topicPrefix = "/topic/chat/"
	sendPrefix  = "/app/chat/"
)

// TopicFor is the destination a client subscribes to for a transaction.
func TopicFor(transactionID int64) string {
	return topicPrefix + strconv.FormatInt(transactionID, 10)
}

// SendAddressFor is the destination a client publishes messages to.
func SendAddressFor(transactionID int64) string {
	return sendPrefix + strconv.FormatInt(transactionID, 10)
}

func ParseTopic(destination string) (int64, error) {
	return parseDestination(destination, topicPrefix)
}

func ParseSendAddress(destination string) (int64, error) {
	return parseDestination(destination, sendPrefix)
}

func parseDestination(destination, prefix string) (int64, error) {
	rest, ok := strings.CutPrefix(destination, prefix)
	if !ok {
		return 0, fmt.Errorf("unknown destination %q", destination)
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid transaction id in destination %q", destination)
	}

	return id, nil
}

// NewFrame builds a frame whose body is v encoded as JSON.
func NewFrame(t FrameType, destination string, v any) (Frame, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding frame body: %w", err)
	}

	return Frame{Type: t, Destination: destination, Body: body}, nil
}

func ErrorFrame(destination, message string) Frame {
	return Frame{Type: FrameError, Destination: destination, Message: message}
}
