package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// PromptsConfig contains the model prompts and user-facing copy loaded from YAML
type PromptsConfig struct {
	Classifier ClassifierPrompts `yaml:"classifier"`
	Replies    Replies           `yaml:"replies"`
}

// ClassifierPrompts contains the text-classification model prompts
type ClassifierPrompts struct {
	SystemPrompt  string `yaml:"system_prompt"`
	ExplainPrompt string `yaml:"explain_prompt"`
}

// Replies contains every message the bot sends. Placeholders use the
// {{name}} form.
type Replies struct {
	Welcome         string `yaml:"welcome"`
	WelcomeBack     string `yaml:"welcome_back"`
	Help            string `yaml:"help"`
	About           string `yaml:"about"`
	Balance         string `yaml:"balance"`
	HistoryHeader   string `yaml:"history_header"`
	HistoryLine     string `yaml:"history_line"`
	HistoryEmpty    string `yaml:"history_empty"`
	SendSuccess     string `yaml:"send_success"`
	SendReceived    string `yaml:"send_received"`
	SendToSelf      string `yaml:"send_to_self"`
	Unknown         string `yaml:"unknown"`
	NoWallet        string `yaml:"no_wallet"`
	SessionExpired  string `yaml:"session_expired"`
	TxLimit         string `yaml:"transaction_limit"`
	DailyLimit      string `yaml:"daily_limit"`
	MismatchAmount  string `yaml:"mismatch_amount"`
	MismatchRecip   string `yaml:"mismatch_recipient"`
	MismatchInvalid string `yaml:"mismatch_invalid"`
	InsufficientBal string `yaml:"insufficient_funds"`
	TemporaryError  string `yaml:"temporary_error"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/sippy/prompts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	var err error

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
		}
		log.Info().Msg("no prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	log.Info().Str("path", loadedPath).Msg("loading prompts")

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.Classifier.SystemPrompt == "" {
		c.Classifier.SystemPrompt = defaults.Classifier.SystemPrompt
	}
	if c.Classifier.ExplainPrompt == "" {
		c.Classifier.ExplainPrompt = defaults.Classifier.ExplainPrompt
	}

	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	r, d := &c.Replies, defaults.Replies
	fill(&r.Welcome, d.Welcome)
	fill(&r.WelcomeBack, d.WelcomeBack)
	fill(&r.Help, d.Help)
	fill(&r.About, d.About)
	fill(&r.Balance, d.Balance)
	fill(&r.HistoryHeader, d.HistoryHeader)
	fill(&r.HistoryLine, d.HistoryLine)
	fill(&r.HistoryEmpty, d.HistoryEmpty)
	fill(&r.SendSuccess, d.SendSuccess)
	fill(&r.SendReceived, d.SendReceived)
	fill(&r.SendToSelf, d.SendToSelf)
	fill(&r.Unknown, d.Unknown)
	fill(&r.NoWallet, d.NoWallet)
	fill(&r.SessionExpired, d.SessionExpired)
	fill(&r.TxLimit, d.TxLimit)
	fill(&r.DailyLimit, d.DailyLimit)
	fill(&r.MismatchAmount, d.MismatchAmount)
	fill(&r.MismatchRecip, d.MismatchRecip)
	fill(&r.MismatchInvalid, d.MismatchInvalid)
	fill(&r.InsufficientBal, d.InsufficientBal)
	fill(&r.TemporaryError, d.TemporaryError)
}

// Render replaces {{key}} placeholders in template with values given as
// alternating key, value pairs
func Render(template string, kv ...string) string {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{{"+kv[i]+"}}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		Classifier: ClassifierPrompts{
			SystemPrompt: `You classify chat messages sent to Sippy, a WhatsApp wallet that sends dollars to phone numbers.

Return a single JSON object and nothing else:
{"command": "...", "amount": number or null, "recipient": "..." or null, "confidence": number between 0 and 1}

Valid commands:
- "start": the user wants to create or open their wallet
- "help": the user asks what they can do
- "about": the user asks what Sippy is
- "balance": the user asks how much money they have
- "history": the user asks for their recent transactions
- "send": the user wants to send money; fill amount (a number, no currency sign) and recipient (the phone number or contact name exactly as written)
- "unknown": anything else

Rules:
1. Messages may be in English or Spanish.
2. Never invent an amount or a recipient that is not in the message.
3. If you are unsure, use "unknown" with a low confidence.`,
			ExplainPrompt: `You are Sippy, a WhatsApp wallet assistant. The user's message could not be understood as a command.
Reply in the user's language with at most two short sentences: say what you think they wanted and show the closest command, for example "send 10 to +573001234567", "balance" or "help".
Never claim that money was sent.`,
		},
		Replies: Replies{
			Welcome:         "Welcome to Sippy! Your wallet is ready: {{address}}\nSend \"help\" to see what you can do.",
			WelcomeBack:     "Welcome back! Your wallet is active: {{address}}",
			Help:            "Commands:\n- balance\n- send <amount> to <phone>\n- history\n- about\nExample: send 5 to +573001234567",
			About:           "Sippy lets you send dollars to any phone number straight from this chat.",
			Balance:         "Your balance is ${{balance}}.",
			HistoryHeader:   "Your latest transactions:",
			HistoryLine:     "{{direction}} ${{amount}} {{preposition}} +{{counterparty}} ({{date}})",
			HistoryEmpty:    "No transactions yet.",
			SendSuccess:     "Sent ${{amount}} to +{{recipient}}.",
			SendReceived:    "You received ${{amount}} from +{{sender}}.",
			SendToSelf:      "You cannot send money to yourself.",
			Unknown:         "Sorry, I did not understand \"{{text}}\". Send \"help\" to see the commands.",
			NoWallet:        "You do not have a wallet yet. Send \"start\" to create one.",
			SessionExpired:  "Your session expired. Send \"start\" to renew it, then try again.",
			TxLimit:         "The most you can send in one transaction is ${{limit}}.",
			DailyLimit:      "That would exceed your daily limit of ${{limit}}. You can still send ${{remaining}} today.",
			MismatchAmount:  "I could not confirm the amount. Please write it as: send <amount> to <phone>.",
			MismatchRecip:   "I could not confirm who to send to. Please include the full phone number with country code, like +573001234567.",
			MismatchInvalid: "The amount must be a positive number.",
			InsufficientBal: "You do not have enough balance for that. Your balance is ${{balance}}.",
			TemporaryError:  "Something went wrong on our side. Please try again in a moment.",
		},
	}
}
