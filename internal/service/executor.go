package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/biz/usecase"
	"github.com/mateodaza/sippy-sub000/internal/conf"
	"github.com/mateodaza/sippy-sub000/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// historyLimit is how many transfers the history command lists
const historyLimit = 5

// Executor turns a resolved command into side effects and the reply text
// for the sender
type Executor struct {
	users     repo.UserRepo
	ledger    repo.LedgerRepo
	messages  repo.MessageRepo
	guardrail *usecase.GuardrailUsecase
	augmenter *usecase.AugmenterUsecase
	replies   conf.Replies
	now       usecase.Clock
	logger    zerolog.Logger
}

// NewExecutor creates a new executor
func NewExecutor(
	users repo.UserRepo,
	ledger repo.LedgerRepo,
	messages repo.MessageRepo,
	guardrail *usecase.GuardrailUsecase,
	augmenter *usecase.AugmenterUsecase,
	replies conf.Replies,
	logger zerolog.Logger,
) *Executor {
	return &Executor{
		users:     users,
		ledger:    ledger,
		messages:  messages,
		guardrail: guardrail,
		augmenter: augmenter,
		replies:   replies,
		now:       time.Now,
		logger:    logger.With().Str("component", "executor").Logger(),
	}
}

// WithClock replaces the time source
func (e *Executor) WithClock(c usecase.Clock) *Executor {
	e.now = c.OrDefault()
	return e
}

// Execute runs the command of res on behalf of senderID and returns the
// reply. Errors are infrastructure failures only; every user-level outcome
// is a reply.
func (e *Executor) Execute(ctx context.Context, senderID string, res usecase.Resolution) (string, error) {
	if res.Rejected() {
		return e.mismatch(res.Verification.MismatchReason), nil
	}

	switch cmd := res.Command.(type) {
	case domain.StartCommand:
		return e.start(ctx, senderID)
	case domain.HelpCommand:
		return e.replies.Help, nil
	case domain.AboutCommand:
		return e.replies.About, nil
	case domain.BalanceCommand:
		return e.balance(ctx, senderID)
	case domain.HistoryCommand:
		return e.history(ctx, senderID)
	case domain.SendCommand:
		return e.send(ctx, senderID, cmd)
	case domain.UnknownCommand:
		return e.unknown(ctx, cmd, res.Provenance), nil
	default:
		return "", fmt.Errorf("unhandled command %T", cmd)
	}
}

func (e *Executor) start(ctx context.Context, senderID string) (string, error) {
	now := e.now()

	user, err := e.users.Get(ctx, senderID)
	if err == nil {
		if err := e.users.Touch(ctx, senderID, now); err != nil {
			return "", fmt.Errorf("renew session: %w", err)
		}
		return conf.Render(e.replies.WelcomeBack, "address", user.WalletAddress), nil
	}
	if !errors.Is(err, repo.ErrUserNotFound) {
		return "", fmt.Errorf("get user: %w", err)
	}

	wallet, err := e.ledger.CreateWallet(ctx, senderID)
	if err != nil {
		return "", fmt.Errorf("create wallet: %w", err)
	}
	user, err = e.users.Create(ctx, senderID, wallet.Address, now)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	e.logger.Info().Str("sender", senderID).Str("wallet", wallet.Address).Msg("wallet created")
	return conf.Render(e.replies.Welcome, "address", user.WalletAddress), nil
}

// renew touches the session of a known user. It reports false when the
// sender has no wallet yet.
func (e *Executor) renew(ctx context.Context, senderID string) (bool, error) {
	err := e.users.Touch(ctx, senderID, e.now())
	if errors.Is(err, repo.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("renew session: %w", err)
	}
	return true, nil
}

func (e *Executor) balance(ctx context.Context, senderID string) (string, error) {
	ok, err := e.renew(ctx, senderID)
	if err != nil {
		return "", err
	}
	if !ok {
		return e.replies.NoWallet, nil
	}

	balance, err := e.ledger.Balance(ctx, senderID)
	if errors.Is(err, repo.ErrWalletNotFound) {
		return e.replies.NoWallet, nil
	}
	if err != nil {
		return "", fmt.Errorf("get balance: %w", err)
	}
	return conf.Render(e.replies.Balance, "balance", money(balance)), nil
}

func (e *Executor) history(ctx context.Context, senderID string) (string, error) {
	ok, err := e.renew(ctx, senderID)
	if err != nil {
		return "", err
	}
	if !ok {
		return e.replies.NoWallet, nil
	}

	transfers, err := e.ledger.History(ctx, senderID, historyLimit)
	if err != nil {
		return "", fmt.Errorf("get history: %w", err)
	}
	if len(transfers) == 0 {
		return e.replies.HistoryEmpty, nil
	}

	var sb strings.Builder
	sb.WriteString(e.replies.HistoryHeader)
	for _, t := range transfers {
		direction, preposition := "Sent", "to"
		if t.Direction(senderID) == "received" {
			direction, preposition = "Received", "from"
		}
		sb.WriteString("\n")
		sb.WriteString(conf.Render(e.replies.HistoryLine,
			"direction", direction,
			"amount", money(t.Amount),
			"preposition", preposition,
			"counterparty", t.Counterparty(senderID),
			"date", domain.CalendarDate(t.CreatedAt, e.guardrail.Config().Location),
		))
	}
	return sb.String(), nil
}

func (e *Executor) send(ctx context.Context, senderID string, cmd domain.SendCommand) (string, error) {
	if cmd.Recipient == senderID {
		return e.replies.SendToSelf, nil
	}

	var transfer *domain.Transfer
	verdict, err := e.guardrail.Execute(ctx, senderID, cmd.Amount, func(ctx context.Context) error {
		t, err := e.ledger.Transfer(ctx, senderID, cmd.Recipient, cmd.Amount)
		if err != nil {
			return err
		}
		transfer = t
		return nil
	})

	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		balance, berr := e.ledger.Balance(ctx, senderID)
		if berr != nil {
			return "", fmt.Errorf("get balance: %w", berr)
		}
		return conf.Render(e.replies.InsufficientBal, "balance", money(balance)), nil
	case errors.Is(err, repo.ErrWalletNotFound):
		return e.replies.NoWallet, nil
	case err != nil && transfer == nil:
		return "", fmt.Errorf("send: %w", err)
	case err != nil:
		// Money moved; only the spend counter is behind
		e.logger.Error().Err(err).Str("transfer", transfer.ID).Msg("transfer done but spend not recorded")
	}

	if !verdict.Allowed {
		return e.denial(verdict), nil
	}

	metrics.TransfersExecuted.Inc()
	e.logger.Info().
		Str("transfer", transfer.ID).
		Str("from", senderID).
		Str("to", cmd.Recipient).
		Str("amount", cmd.Amount.String()).
		Msg("transfer executed")

	notice := conf.Render(e.replies.SendReceived, "amount", money(cmd.Amount), "sender", senderID)
	if err := e.messages.SendText(ctx, cmd.Recipient, notice); err != nil {
		e.logger.Warn().Err(err).Str("to", cmd.Recipient).Msg("failed to notify recipient")
	}

	return conf.Render(e.replies.SendSuccess, "amount", money(cmd.Amount), "recipient", cmd.Recipient), nil
}

func (e *Executor) unknown(ctx context.Context, cmd domain.UnknownCommand, prov domain.Provenance) string {
	if reply, ok := e.augmenter.Explain(ctx, cmd.OriginalText, prov); ok {
		return reply
	}
	return conf.Render(e.replies.Unknown, "text", strings.TrimSpace(cmd.OriginalText))
}

func (e *Executor) mismatch(reason domain.MismatchReason) string {
	switch reason {
	case domain.MismatchAmount:
		return e.replies.MismatchAmount
	case domain.MismatchRecipient:
		return e.replies.MismatchRecip
	default:
		return e.replies.MismatchInvalid
	}
}

func (e *Executor) denial(v domain.Verdict) string {
	switch v.Reason {
	case domain.DenyNoWallet:
		return e.replies.NoWallet
	case domain.DenySessionExpired:
		return e.replies.SessionExpired
	case domain.DenyTransactionLimit:
		return conf.Render(e.replies.TxLimit, "limit", money(v.Limit))
	default:
		return conf.Render(e.replies.DailyLimit, "limit", money(v.Limit), "remaining", money(v.Remaining))
	}
}

// money formats an amount with two decimals
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
