package usecase

import (
	"context"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/metrics"
	"github.com/rs/zerolog"
)

// Resolution is what the parser hands to the executor
type Resolution struct {
	domain.ParsedCommand

	// Verification is set when the augmenter proposed a send
	Verification *domain.VerificationResult
}

// Rejected reports whether a proposed send was turned down by the verifier
func (r Resolution) Rejected() bool {
	return r.Verification != nil && !r.Verification.Accepted
}

// ParserUsecase resolves message text to a command: the deterministic
// matcher always runs, the augmenter only fills the gaps
type ParserUsecase struct {
	matcher         *domain.Matcher
	verifier        *domain.Verifier
	augmenter       *AugmenterUsecase
	crossCheckSends bool
	logger          zerolog.Logger
}

// NewParserUsecase creates a new parser usecase
func NewParserUsecase(
	phones *domain.PhoneNormalizer,
	augmenter *AugmenterUsecase,
	crossCheckSends bool,
	logger zerolog.Logger,
) *ParserUsecase {
	return &ParserUsecase{
		matcher:         domain.NewMatcher(phones),
		verifier:        domain.NewVerifier(phones),
		augmenter:       augmenter,
		crossCheckSends: crossCheckSends,
		logger:          logger.With().Str("component", "parser").Logger(),
	}
}

// Parse resolves text. It never fails; anything unresolved is Unknown with
// the original text.
func (uc *ParserUsecase) Parse(ctx context.Context, text string) Resolution {
	res := uc.parse(ctx, text)

	resolver := "matcher"
	if res.Provenance.AugmenterStatus == domain.AugmenterSuccess {
		resolver = "augmenter"
	}
	metrics.CommandsParsed.WithLabelValues(string(res.Command.Kind()), resolver).Inc()
	return res
}

func (uc *ParserUsecase) parse(ctx context.Context, text string) Resolution {
	deterministic := uc.matcher.MatchExact(text)

	switch det := deterministic.(type) {
	case domain.UnknownCommand:
		// fall through to the augmenter
	case domain.SendCommand:
		if uc.crossCheckSends && uc.augmenter.IsEnabled() {
			return uc.crossCheck(ctx, text, det)
		}
		return Resolution{ParsedCommand: domain.ParsedCommand{Command: det}}
	default:
		return Resolution{ParsedCommand: domain.ParsedCommand{Command: det}}
	}

	aug := uc.augmenter.Augment(ctx, text)
	if aug.Proposed == nil {
		return Resolution{ParsedCommand: domain.ParsedCommand{Command: aug.Command, Provenance: aug.Provenance}}
	}
	return uc.verify(text, aug, deterministic)
}

// crossCheck asks the augmenter about a message the matcher already read as
// a send. Anything short of a verified agreement that is not an outright
// rejection keeps the deterministic result.
func (uc *ParserUsecase) crossCheck(ctx context.Context, text string, det domain.SendCommand) Resolution {
	aug := uc.augmenter.Augment(ctx, text)
	if aug.Proposed == nil {
		return Resolution{ParsedCommand: domain.ParsedCommand{Command: det, Provenance: aug.Provenance}}
	}
	return uc.verify(text, aug, det)
}

func (uc *ParserUsecase) verify(text string, aug Augmentation, deterministic domain.Command) Resolution {
	result := uc.verifier.Verify(*aug.Proposed, deterministic, text)
	if !result.Accepted {
		metrics.Verifications.WithLabelValues(string(result.MismatchReason)).Inc()
		uc.logger.Info().
			Str("reason", string(result.MismatchReason)).
			Msg("proposed send rejected")
		return Resolution{
			ParsedCommand: domain.ParsedCommand{
				Command:    domain.UnknownCommand{OriginalText: text},
				Provenance: aug.Provenance,
			},
			Verification: &result,
		}
	}

	metrics.Verifications.WithLabelValues("accepted").Inc()
	return Resolution{
		ParsedCommand: domain.ParsedCommand{
			Command:    uc.verifier.Resolve(*aug.Proposed, deterministic, text),
			Provenance: aug.Provenance,
		},
		Verification: &result,
	}
}
