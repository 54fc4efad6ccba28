package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mateodaza/sippy-sub000/internal/app"
	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/data"
	"github.com/mateodaza/sippy-sub000/internal/service"
	"github.com/spf13/cobra"
)

var (
	normalizeText string
	sendFrom      string
	sendMessageID string
)

// parseCmd shows how a message would be interpreted
var parseCmd = &cobra.Command{
	Use:   "parse <text>",
	Short: "Show how a message would be interpreted, without executing it",
	Example: `  sippyctl parse "send 10 to +573001234567"
  sippyctl parse "cuanto tengo"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

// normalizeCmd canonicalizes a phone number
var normalizeCmd = &cobra.Command{
	Use:   "normalize <phone>",
	Short: "Canonicalize a phone number or alias",
	Args:  cobra.ExactArgs(1),
	RunE:  runNormalize,
}

// sendCmd runs a message through the whole pipeline
var sendCmd = &cobra.Command{
	Use:   "send --from <phone> <text>",
	Short: "Deliver a message as if it came from a chat, and print the replies",
	Long: `Runs one message through the ingestion gate, the parser, the guardrails
and the executor, exactly as the server would. Reusing --message-id replays a
delivery; the gate only remembers it within this process.`,
	Example: `  sippyctl send --from +573001111111 start
  sippyctl send --from +573001111111 "send 5 to +573002222222"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, data.NewOutboxRepo(logger), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Parser.Parse(ctx, strings.Join(args, " "))
	return printJSON(cmd, service.DescribeResolution(res))
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	canonical, ok := cfg.Phone.NewPhoneNormalizer().Normalize(args[0], normalizeText)
	if !ok {
		return fmt.Errorf("%q is not a phone number or known alias", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), canonical)
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	phones := cfg.Phone.NewPhoneNormalizer()
	sender, ok := phones.Normalize(sendFrom, sendFrom)
	if !ok {
		return fmt.Errorf("--from %q is not a phone number", sendFrom)
	}

	outbox := data.NewOutboxRepo(logger)
	a, err := app.New(ctx, cfg, outbox, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	msgID := sendMessageID
	if msgID == "" {
		msgID = "cli-" + uuid.NewString()
	}

	outcome := a.Interpreter.HandleMessage(ctx, domain.InboundMessage{
		SenderID:   sender,
		MessageID:  msgID,
		Text:       strings.Join(args, " "),
		ReceivedAt: time.Now(),
	})

	out := cmd.OutOrStdout()
	switch {
	case outcome.Ignored:
		fmt.Fprintln(out, "ignored: empty message")
	case outcome.Verdict != domain.GateAdmit:
		fmt.Fprintf(out, "dropped: %s\n", outcome.Verdict)
	}
	for _, m := range outbox.Drain() {
		fmt.Fprintf(out, "-> +%s\n%s\n", m.Recipient, m.Text)
	}
	return outcome.Err
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
