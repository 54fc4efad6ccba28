package data

import (
	"context"
	"fmt"
	"sync"

	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
)

// FeishuClient is the part of the Feishu client the transport uses
type FeishuClient interface {
	OpenIDOf(ctx context.Context, mobile string) (string, error)
	SendText(ctx context.Context, openID, text string) error
}

// FeishuRepo addresses Feishu users by phone number. Open IDs learned
// from inbound messages are cached so replies skip the contact lookup.
type FeishuRepo struct {
	client  FeishuClient
	openIDs sync.Map // canonical digits -> open_id
}

var _ repo.MessageRepo = (*FeishuRepo)(nil)

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client FeishuClient) *FeishuRepo {
	return &FeishuRepo{client: client}
}

// Remember records the open_id a phone number writes from
func (r *FeishuRepo) Remember(phone, openID string) {
	if phone != "" && openID != "" {
		r.openIDs.Store(phone, openID)
	}
}

// SendText sends a text message to the Feishu user registered with recipient
func (r *FeishuRepo) SendText(ctx context.Context, recipient, text string) error {
	openID, err := r.resolve(ctx, recipient)
	if err != nil {
		return err
	}
	return r.client.SendText(ctx, openID, text)
}

func (r *FeishuRepo) resolve(ctx context.Context, phone string) (string, error) {
	if v, ok := r.openIDs.Load(phone); ok {
		return v.(string), nil
	}
	openID, err := r.client.OpenIDOf(ctx, "+"+phone)
	if err != nil {
		return "", fmt.Errorf("resolve feishu user: %w", err)
	}
	r.openIDs.Store(phone, openID)
	return openID, nil
}
