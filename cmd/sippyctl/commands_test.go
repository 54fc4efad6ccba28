package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("STORE_DIR", t.TempDir())
	t.Setenv("DEV_OPENING_BALANCE", "100")
	t.Setenv("DEFAULT_COUNTRY_CODE", "57")
	t.Setenv("PHONE_ALIASES", "mom=573005550000")
	t.Setenv("PROMPTS_CONFIG_PATH", "")
	t.Setenv("AUGMENTER_ENABLED", "false")
	t.Setenv("REDIS_URL", "")

	logger = zerolog.Nop()
	timeout = 10 * time.Second
	normalizeText, sendFrom, sendMessageID = "", "", ""

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestNormalizeCmd(t *testing.T) {
	cmd, out := setupCLI(t)

	require.NoError(t, runNormalize(cmd, []string{"300 123 4567"}))
	assert.Equal(t, "573001234567\n", out.String())

	out.Reset()
	require.NoError(t, runNormalize(cmd, []string{"Mom"}))
	assert.Equal(t, "573005550000\n", out.String())

	assert.Error(t, runNormalize(cmd, []string{"nobody"}))
}

func TestParseCmd(t *testing.T) {
	cmd, out := setupCLI(t)

	require.NoError(t, runParse(cmd, []string{"send", "5", "to", "3001234567"}))

	var view service.ResolutionView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "send", view.Command)
	assert.Equal(t, "5", view.Amount)
	assert.Equal(t, "573001234567", view.Recipient)
	assert.False(t, view.UsedAugmenter)
}

func TestSendCmd(t *testing.T) {
	cmd, out := setupCLI(t)
	sendFrom = "+573001111111"

	require.NoError(t, runSend(cmd, []string{"start"}))
	assert.Contains(t, out.String(), "-> +573001111111")
	assert.Contains(t, out.String(), "Welcome to Sippy!")

	out.Reset()
	require.NoError(t, runSend(cmd, []string{"balance"}))
	assert.Contains(t, out.String(), "$100.00")
}

func TestSendCmd_InvalidSender(t *testing.T) {
	cmd, _ := setupCLI(t)
	sendFrom = "not a phone"

	assert.Error(t, runSend(cmd, []string{"balance"}))
}
