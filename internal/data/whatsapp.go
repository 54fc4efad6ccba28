package data

import (
	"context"
	"fmt"

	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
)

// WhatsAppClient is the part of the WhatsApp client the transport uses
type WhatsAppClient interface {
	SendText(ctx context.Context, to, body string) error
}

// whatsAppRepo implements the message repository over WhatsApp Cloud
type whatsAppRepo struct {
	client WhatsAppClient
}

// NewWhatsAppRepo creates a new WhatsApp repository
func NewWhatsAppRepo(client WhatsAppClient) repo.MessageRepo {
	return &whatsAppRepo{client: client}
}

// SendText sends a text message; WhatsApp addresses users by their digits
func (r *whatsAppRepo) SendText(ctx context.Context, recipient, text string) error {
	if err := r.client.SendText(ctx, recipient, text); err != nil {
		return fmt.Errorf("whatsapp send to %s: %w", recipient, err)
	}
	return nil
}
