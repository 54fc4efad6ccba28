package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// sendRegex is the only free-form grammar the deterministic matcher accepts
var sendRegex = regexp.MustCompile(`(?i)^send\s+\$?(\d+(?:\.\d+)?)\s+to\s+\+?(\d+)$`)

// keywordCommands maps lower-cased exact keywords to their commands
var keywordCommands = map[string]Command{
	"start":         StartCommand{},
	"begin":         StartCommand{},
	"help":          HelpCommand{},
	"?":             HelpCommand{},
	"about":         AboutCommand{},
	"what is sippy": AboutCommand{},
	"what is this":  AboutCommand{},
	"balance":       BalanceCommand{},
	"history":       HistoryCommand{},
	"transactions":  HistoryCommand{},
}

// Matcher is the deterministic command resolver. It does no I/O and never
// fails: anything outside its grammar resolves to UnknownCommand.
type Matcher struct {
	phones *PhoneNormalizer
}

// NewMatcher creates a matcher that normalizes send recipients with phones
func NewMatcher(phones *PhoneNormalizer) *Matcher {
	return &Matcher{phones: phones}
}

// MatchExact resolves text against the keyword set and the send grammar
func (m *Matcher) MatchExact(text string) Command {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if cmd, ok := keywordCommands[lower]; ok {
		return cmd
	}

	if match := sendRegex.FindStringSubmatch(trimmed); match != nil {
		amount, err := decimal.NewFromString(match[1])
		if err != nil {
			return UnknownCommand{OriginalText: text}
		}
		recipient, ok := m.phones.Normalize(match[2], trimmed)
		if !ok {
			return UnknownCommand{OriginalText: text}
		}
		return SendCommand{Amount: amount, Recipient: recipient}
	}

	return UnknownCommand{OriginalText: text}
}

// IsKeyword reports whether text is one of the exact keywords, which never
// need natural-language disambiguation
func IsKeyword(text string) bool {
	_, ok := keywordCommands[strings.ToLower(strings.TrimSpace(text))]
	return ok
}
