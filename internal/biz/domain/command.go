package domain

import (
	"github.com/shopspring/decimal"
)

// CommandKind identifies a command variant
type CommandKind string

const (
	KindStart   CommandKind = "start"
	KindHelp    CommandKind = "help"
	KindAbout   CommandKind = "about"
	KindBalance CommandKind = "balance"
	KindSend    CommandKind = "send"
	KindHistory CommandKind = "history"
	KindUnknown CommandKind = "unknown"
)

// Command is the closed set of commands a chat message can resolve to.
// Only the variants declared in this package implement it.
type Command interface {
	Kind() CommandKind
	isCommand()
}

// StartCommand asks for wallet provisioning
type StartCommand struct{}

// HelpCommand asks for the command list
type HelpCommand struct{}

// AboutCommand asks what the bot is
type AboutCommand struct{}

// BalanceCommand asks for the wallet balance
type BalanceCommand struct{}

// HistoryCommand asks for recent transfers
type HistoryCommand struct{}

// SendCommand moves Amount to the wallet addressed by Recipient (canonical digits)
type SendCommand struct {
	Amount    decimal.Decimal
	Recipient string
}

// UnknownCommand keeps the original text so fallback replies have context
type UnknownCommand struct {
	OriginalText string
}

func (StartCommand) Kind() CommandKind   { return KindStart }
func (HelpCommand) Kind() CommandKind    { return KindHelp }
func (AboutCommand) Kind() CommandKind   { return KindAbout }
func (BalanceCommand) Kind() CommandKind { return KindBalance }
func (HistoryCommand) Kind() CommandKind { return KindHistory }
func (SendCommand) Kind() CommandKind    { return KindSend }
func (UnknownCommand) Kind() CommandKind { return KindUnknown }

func (StartCommand) isCommand()   {}
func (HelpCommand) isCommand()    {}
func (AboutCommand) isCommand()   {}
func (BalanceCommand) isCommand() {}
func (HistoryCommand) isCommand() {}
func (SendCommand) isCommand()    {}
func (UnknownCommand) isCommand() {}

// IsFinancial reports whether the command moves money and must pass the guardrail
func IsFinancial(cmd Command) bool {
	_, ok := cmd.(SendCommand)
	return ok
}

// AugmenterStatus is the outcome of the natural-language step
type AugmenterStatus string

const (
	AugmenterSuccess          AugmenterStatus = "success"
	AugmenterDisabled         AugmenterStatus = "disabled"
	AugmenterRateLimited      AugmenterStatus = "rate-limited"
	AugmenterTimeout          AugmenterStatus = "timeout"
	AugmenterError            AugmenterStatus = "error"
	AugmenterLowConfidence    AugmenterStatus = "low-confidence"
	AugmenterValidationFailed AugmenterStatus = "validation-failed"
)

// Provenance records how a command was resolved.
//
// A zero Provenance means the augmenter was never consulted (the
// deterministic matcher resolved the message). UsedAugmenter is true only
// when the external model was actually called, which is what the
// one-call-per-message budget counts.
type Provenance struct {
	UsedAugmenter   bool
	AugmenterStatus AugmenterStatus
}

// Consulted reports whether the augmenter step ran at all, including the
// cases where it declined to call the model (disabled, rate-limited).
func (p Provenance) Consulted() bool {
	return p.AugmenterStatus != ""
}

// ParsedCommand is a resolved command plus its provenance
type ParsedCommand struct {
	Command    Command
	Provenance Provenance
}
