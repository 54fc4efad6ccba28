package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

// Client is a chat-completions client for any OpenAI-compatible endpoint
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new client. An empty baseURL targets the OpenAI API.
func NewClient(apiKey, baseURL, model string) *Client {
	if model == "" {
		model = defaultModel
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Model returns the model name requests are sent to
func (c *Client) Model() string {
	return c.model
}

// ChatOptions tunes one completion request
type ChatOptions struct {
	JSON      bool // Ask for a single JSON object
	MaxTokens int
}

// Chat sends a system and a user message and returns the first choice. The
// caller owns the deadline.
func (c *Client) Chat(ctx context.Context, systemPrompt, userMessage string, opts ChatOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: 0.1, // Low temperature for deterministic responses
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}
