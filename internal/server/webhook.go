package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/infra/whatsapp"
	"github.com/mateodaza/sippy-sub000/internal/metrics"
	"github.com/mateodaza/sippy-sub000/internal/service"
	"github.com/rs/zerolog"
)

// processTimeout bounds the asynchronous handling of one delivered message
const processTimeout = 30 * time.Second

// MessageHandler processes one inbound message
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg domain.InboundMessage) service.Outcome
}

// WhatsAppWebhook receives WhatsApp Cloud webhook deliveries. Deliveries are
// acknowledged before processing so the platform never retries because of
// a slow pipeline.
type WhatsAppWebhook struct {
	handler     MessageHandler
	phones      *domain.PhoneNormalizer
	verifyToken string
	appSecret   string
	logger      zerolog.Logger

	wg sync.WaitGroup
}

// NewWhatsAppWebhook creates a new webhook handler. An empty appSecret
// disables signature checks.
func NewWhatsAppWebhook(
	handler MessageHandler,
	phones *domain.PhoneNormalizer,
	verifyToken, appSecret string,
	logger zerolog.Logger,
) *WhatsAppWebhook {
	return &WhatsAppWebhook{
		handler:     handler,
		phones:      phones,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		logger:      logger.With().Str("component", "webhook").Logger(),
	}
}

// Verify answers the subscription handshake
func (h *WhatsAppWebhook) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.verifyToken == "" || q.Get("hub.verify_token") != h.verifyToken {
		h.logger.Warn().Str("mode", q.Get("hub.mode")).Msg("webhook verification rejected")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	h.logger.Info().Msg("webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, q.Get("hub.challenge"))
}

// Receive acknowledges a delivery and processes its messages in the background
func (h *WhatsAppWebhook) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if h.appSecret != "" && !whatsapp.VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		metrics.WebhookDeliveries.WithLabelValues("whatsapp", "unauthorized").Inc()
		h.logger.Warn().Msg("webhook signature mismatch")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Acknowledge everything else, malformed payloads included, so the
	// platform does not redeliver noise
	w.WriteHeader(http.StatusOK)

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookDeliveries.WithLabelValues("whatsapp", "malformed").Inc()
		h.logger.Warn().Err(err).Msg("malformed webhook payload")
		return
	}

	messages := payload.Messages()
	if len(messages) == 0 {
		metrics.WebhookDeliveries.WithLabelValues("whatsapp", "ignored").Inc()
		return
	}
	metrics.WebhookDeliveries.WithLabelValues("whatsapp", "accepted").Inc()

	now := time.Now()
	ctx := context.WithoutCancel(r.Context())
	for _, m := range messages {
		msg, ok := h.inbound(m, now)
		if !ok {
			continue
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ctx, cancel := context.WithTimeout(ctx, processTimeout)
			defer cancel()
			h.handler.HandleMessage(ctx, msg)
		}()
	}
}

// inbound converts a webhook message. Non-text messages are dropped.
func (h *WhatsAppWebhook) inbound(m whatsapp.InboundMessage, now time.Time) (domain.InboundMessage, bool) {
	text := m.Body()
	if text == "" {
		h.logger.Debug().Str("type", m.Type).Str("message_id", m.ID).Msg("non-text message ignored")
		return domain.InboundMessage{}, false
	}

	// WhatsApp already sends full international digits
	sender, ok := h.phones.Normalize("+"+m.From, "")
	if !ok {
		h.logger.Warn().Str("from", m.From).Msg("sender without a phone number")
		return domain.InboundMessage{}, false
	}

	return domain.InboundMessage{
		SenderID:   sender,
		MessageID:  m.ID,
		Text:       text,
		ReceivedAt: m.SentAt(now),
	}, true
}

// Wait blocks until every accepted message has been processed
func (h *WhatsAppWebhook) Wait() {
	h.wg.Wait()
}
