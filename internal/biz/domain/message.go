package domain

import (
	"strings"
	"time"
)

// InboundMessage represents one delivered chat message
type InboundMessage struct {
	SenderID   string // Canonical digit string of the sender's phone number
	MessageID  string // Transport-assigned identifier, used for deduplication
	Text       string
	ReceivedAt time.Time
}

// IsEmpty checks if the message carries no usable text
func (m *InboundMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == ""
}

// Valid checks the fields the pipeline relies on
func (m *InboundMessage) Valid() bool {
	return m.SenderID != "" && m.MessageID != ""
}
