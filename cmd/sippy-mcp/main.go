package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mateodaza/sippy-sub000/internal/app"
	sippymcp "github.com/mateodaza/sippy-sub000/internal/mcp"
	"github.com/mateodaza/sippy-sub000/mcpserver"
)

const defaultAPIURL = "http://127.0.0.1:8080"

// The MCP server talks to a running interpreter through its debug API
// (DEBUG_API=true). stdout carries the protocol, so logs go to stderr.
func main() {
	godotenv.Load()

	logger := app.NewLogger(os.Getenv("DEBUG") == "true", os.Stderr)

	apiURL := os.Getenv("SIPPY_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcpserver.NewServer(sippymcp.NewClient(apiURL), "v1.0.0")
	logger.Info().Str("api", apiURL).Msg("sippy MCP server started")
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
