package repo

import (
	"context"
)

// MessageRepo is the chat transport interface
// Recipients are canonical phone digit strings; each transport maps them to
// its own addressing
type MessageRepo interface {
	// SendText sends a text message
	SendText(ctx context.Context, recipient, text string) error
}
