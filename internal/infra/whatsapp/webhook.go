package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// WebhookPayload is the body WhatsApp posts for message events
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes of one business account
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one webhook field update
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries inbound messages; status updates are ignored
type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []InboundMessage `json:"messages"`
}

// InboundMessage is one user message
type InboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // Unix seconds as a string
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// Body returns the text body, or "" for non-text messages
func (m *InboundMessage) Body() string {
	if m.Type != "text" || m.Text == nil {
		return ""
	}
	return m.Text.Body
}

// SentAt returns the message timestamp, or fallback when it is missing
func (m *InboundMessage) SentAt(fallback time.Time) time.Time {
	sec, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil || sec <= 0 {
		return fallback
	}
	return time.Unix(sec, 0)
}

// Messages flattens every inbound message in the payload
func (p *WebhookPayload) Messages() []InboundMessage {
	var out []InboundMessage
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			if ch.Field != "" && ch.Field != "messages" {
				continue
			}
			out = append(out, ch.Value.Messages...)
		}
	}
	return out
}

// VerifySignature checks the X-Hub-Signature-256 header against body
func VerifySignature(appSecret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign computes the X-Hub-Signature-256 header value for body
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
