package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/infra/openai"
)

// ChatClient is the completion surface the classifier needs
type ChatClient interface {
	Chat(ctx context.Context, systemPrompt, userMessage string, opts openai.ChatOptions) (string, error)
}

// classifierRepo implements the text-classification model over a chat-completions API
type classifierRepo struct {
	client        ChatClient
	systemPrompt  string
	explainPrompt string
}

// NewClassifierRepo creates a classifier repository
func NewClassifierRepo(client ChatClient, systemPrompt, explainPrompt string) repo.ClassifierRepo {
	if client == nil {
		return nil
	}
	return &classifierRepo{
		client:        client,
		systemPrompt:  systemPrompt,
		explainPrompt: explainPrompt,
	}
}

// classifierAnswer is the JSON object the model is asked for. Amount and
// recipient are kept raw since models emit them as numbers or strings.
type classifierAnswer struct {
	Command    string          `json:"command"`
	Amount     json.RawMessage `json:"amount"`
	Recipient  json.RawMessage `json:"recipient"`
	Confidence float64         `json:"confidence"`
}

// Classify asks the model for a structured reading of text
func (r *classifierRepo) Classify(ctx context.Context, text string) (*repo.Classification, error) {
	resp, err := r.client.Chat(ctx, r.systemPrompt, text, openai.ChatOptions{JSON: true, MaxTokens: 120})
	if err != nil {
		return nil, err
	}
	return parseClassification(resp)
}

// Explain asks the model for a short reply to an unresolved message
func (r *classifierRepo) Explain(ctx context.Context, text string) (string, error) {
	resp, err := r.client.Chat(ctx, r.explainPrompt, text, openai.ChatOptions{MaxTokens: 120})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// parseClassification decodes the model output. Structural problems are
// errors; implausible values are left for the augmenter to judge.
func parseClassification(raw string) (*repo.Classification, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var answer classifierAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &answer); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}

	result := &repo.Classification{
		Command:    answer.Command,
		Recipient:  rawString(answer.Recipient),
		Confidence: answer.Confidence,
	}

	if amount := rawString(answer.Amount); amount != "" {
		amount = strings.TrimPrefix(amount, "$")
		amount = strings.ReplaceAll(amount, ",", "")
		value, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", amount, err)
		}
		result.Amount = &value
	}

	return result, nil
}

// rawString returns a JSON string or number as text, and "" for null
func rawString(v json.RawMessage) string {
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(v))
}
