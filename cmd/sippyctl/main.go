package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mateodaza/sippy-sub000/internal/app"
	"github.com/mateodaza/sippy-sub000/internal/conf"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	timeout time.Duration

	logger zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sippyctl",
	Short: "Operator tools for the Sippy command interpreter",
	Long: `sippyctl runs the Sippy command interpreter locally.

It reads the same environment (and .env file) as the server, but replies are
printed instead of sent. send uses the configured stores, so transfers made
with it are real against that ledger.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()
		logger = app.NewLogger(verbose, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	normalizeCmd.Flags().StringVar(&normalizeText, "text", "", "Message the number appeared in")
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "Sender phone number (required)")
	sendCmd.Flags().StringVar(&sendMessageID, "message-id", "", "Message ID, to replay a delivery (default: random)")
	sendCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(sendCmd)
}

// loadConfig reads the environment. Replies are never delivered from the
// CLI, so the transport is forced off.
func loadConfig() (*conf.Config, error) {
	cfg := conf.LoadFromEnv()
	cfg.Transport.Kind = conf.TransportNone
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
