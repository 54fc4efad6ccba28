package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/infra/feishu"
	"github.com/mateodaza/sippy-sub000/internal/metrics"
	"github.com/rs/zerolog"
)

var errInvalidMobile = errors.New("contact mobile is not a phone number")

// FeishuClient is the part of the Feishu client the server uses
type FeishuClient interface {
	OnMessage(handler feishu.MessageHandler)
	Start(ctx context.Context) error
	MobileOf(ctx context.Context, openID string) (string, error)
}

// AddressBook records which open_id a phone number writes from
type AddressBook interface {
	Remember(phone, openID string)
}

// FeishuServer feeds Feishu direct messages into the interpreter. Senders
// are identified by the mobile number on their contact record.
type FeishuServer struct {
	client  FeishuClient
	handler MessageHandler
	book    AddressBook
	phones  *domain.PhoneNormalizer
	logger  zerolog.Logger

	senders sync.Map // open_id -> canonical phone
	wg      sync.WaitGroup
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(
	client FeishuClient,
	handler MessageHandler,
	book AddressBook,
	phones *domain.PhoneNormalizer,
	logger zerolog.Logger,
) *FeishuServer {
	return &FeishuServer{
		client:  client,
		handler: handler,
		book:    book,
		phones:  phones,
		logger:  logger.With().Str("component", "feishu-server").Logger(),
	}
}

// Run receives messages until ctx is done
func (s *FeishuServer) Run(ctx context.Context) error {
	s.client.OnMessage(func(msg *feishu.Message) {
		s.wg.Add(1)
		defer s.wg.Done()
		s.handleMessage(ctx, msg)
	})
	// The websocket client keeps blocking after ctx is cancelled
	errCh := make(chan error, 1)
	go func() { errCh <- s.client.Start(ctx) }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	s.wg.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *FeishuServer) handleMessage(ctx context.Context, msg *feishu.Message) {
	if msg.ChatType != "p2p" {
		metrics.WebhookDeliveries.WithLabelValues("feishu", "ignored").Inc()
		return
	}
	metrics.WebhookDeliveries.WithLabelValues("feishu", "accepted").Inc()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
	defer cancel()

	sender, err := s.senderPhone(ctx, msg.SenderOpenID)
	if err != nil {
		s.logger.Warn().Err(err).Str("open_id", msg.SenderOpenID).Msg("cannot identify sender")
		return
	}

	receivedAt := time.Now()
	if msg.CreateTime > 0 {
		receivedAt = time.UnixMilli(msg.CreateTime)
	}

	s.handler.HandleMessage(ctx, domain.InboundMessage{
		SenderID:   sender,
		MessageID:  msg.MsgID,
		Text:       msg.Content,
		ReceivedAt: receivedAt,
	})
}

// senderPhone resolves and caches the canonical phone of openID
func (s *FeishuServer) senderPhone(ctx context.Context, openID string) (string, error) {
	if v, ok := s.senders.Load(openID); ok {
		return v.(string), nil
	}

	mobile, err := s.client.MobileOf(ctx, openID)
	if err != nil {
		return "", err
	}
	// Contact mobiles carry an explicit "+<country>" prefix
	phone, ok := s.phones.Normalize(mobile, mobile)
	if !ok {
		return "", errInvalidMobile
	}

	s.senders.Store(openID, phone)
	s.book.Remember(phone, openID)
	return phone, nil
}
