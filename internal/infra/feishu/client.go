package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"
)

// Message represents a received Feishu direct message
type Message struct {
	MsgID        string
	ChatType     string // p2p (private), group
	Content      string // Text content
	SenderOpenID string
	CreateTime   int64 // Milliseconds Unix timestamp from Feishu
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	logger    zerolog.Logger
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, logger zerolog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		logger:    logger.With().Str("component", "feishu").Logger(),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and listens until ctx is done
func (c *Client) Start(ctx context.Context) error {
	// Must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.logger.Info().Msg("starting websocket connection")

	// Start WebSocket (blocking)
	return c.wsCli.Start(ctx)
}

// handleMessage converts a receive event and hands it to the handler
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message

	// Ignore the bot's own messages
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil && *event.Event.Sender.SenderType == "app" {
		return
	}

	msg := &Message{
		MsgID:    deref(rawMsg.MessageId),
		ChatType: deref(rawMsg.ChatType),
	}
	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}
	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil {
		msg.SenderOpenID = deref(event.Event.Sender.SenderId.OpenId)
	}

	if deref(rawMsg.MessageType) != "text" {
		c.logger.Debug().Str("type", deref(rawMsg.MessageType)).Msg("unsupported message type ignored")
		return
	}
	msg.Content = parseTextContent(deref(rawMsg.Content))

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// parseTextContent extracts text from a text message body
func parseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return parsed.Text
}

// MobileOf returns the mobile number on the contact record of openID
func (c *Client) MobileOf(ctx context.Context, openID string) (string, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType("open_id").
		Build()

	resp, err := c.larkCli.Contact.User.Get(ctx, req)
	if err != nil {
		return "", fmt.Errorf("get user failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("get user error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.User == nil || deref(resp.Data.User.Mobile) == "" {
		return "", fmt.Errorf("user %s has no mobile on record", openID)
	}
	return *resp.Data.User.Mobile, nil
}

// OpenIDOf resolves a mobile number (with country code) to an open_id
func (c *Client) OpenIDOf(ctx context.Context, mobile string) (string, error) {
	req := larkcontact.NewBatchGetIdUserReqBuilder().
		UserIdType("open_id").
		Body(larkcontact.NewBatchGetIdUserReqBodyBuilder().
			Mobiles([]string{mobile}).
			Build()).
		Build()

	resp, err := c.larkCli.Contact.User.BatchGetId(ctx, req)
	if err != nil {
		return "", fmt.Errorf("batch get id failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("batch get id error: %s", resp.Msg)
	}
	if resp.Data != nil {
		for _, u := range resp.Data.UserList {
			if id := deref(u.UserId); id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("no feishu user for mobile %s", mobile)
}

// SendText sends a text message to a user by open_id
func (c *Client) SendText(ctx context.Context, openID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeOpenId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.logger.Debug().Str("open_id", openID).Str("text", truncate(text, 50)).Msg("message sent")
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
