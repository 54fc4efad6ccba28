package conf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanEnv blanks every variable LoadFromEnv reads, so the host environment
// cannot leak into a test
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_ADDR", "DEBUG_API", "METRICS_TOKEN", "TRANSPORT",
		"WHATSAPP_ACCESS_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "WHATSAPP_VERIFY_TOKEN", "WHATSAPP_APP_SECRET", "WHATSAPP_API_BASE_URL",
		"FEISHU_APP_ID", "FEISHU_APP_SECRET",
		"AUGMENTER_ENABLED", "AUGMENTER_API_KEY", "AUGMENTER_BASE_URL", "AUGMENTER_MODEL", "AUGMENTER_PER_MINUTE",
		"AUGMENTER_PER_DAY", "AUGMENTER_CONFIDENCE_THRESHOLD", "AUGMENTER_TIMEOUT", "AUGMENTER_CROSS_CHECK_SENDS",
		"DEFAULT_COUNTRY_CODE", "PHONE_ALIASES",
		"GUARDRAIL_TRANSACTION_LIMIT", "GUARDRAIL_DAILY_LIMIT", "SESSION_DURATION", "GUARDRAIL_TIMEZONE",
		"GATE_RETENTION", "GATE_SPAM_WINDOW", "GATE_SPAM_MAX", "GATE_SWEEP_INTERVAL", "REDIS_URL",
		"STORE_DIR", "DEV_OPENING_BALANCE", "PROMPTS_CONFIG_PATH", "DEBUG",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("TRANSPORT", TransportNone)
	t.Setenv("STORE_DIR", t.TempDir())
}

func configField(t *testing.T, err error) string {
	t.Helper()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %v", err)
	return cfgErr.Field
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Augmenter.Enabled)
	assert.Equal(t, "57", cfg.Phone.DefaultCountryCode)
	assert.True(t, cfg.Guardrail.TransactionLimit.Equal(decimal.NewFromInt(100)))
	assert.True(t, cfg.Guardrail.DailyLimit.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 24*time.Hour, cfg.Guardrail.SessionDuration)
	assert.Equal(t, time.UTC, cfg.Guardrail.Location)
	assert.Equal(t, 10, cfg.Gate.MaxPerWindow)
	assert.Equal(t, time.Minute, cfg.Gate.Window)
	assert.True(t, cfg.Store.OpeningBalance.IsZero())
	require.NotNil(t, cfg.Prompts)
	assert.NotEmpty(t, cfg.Prompts.Replies.Welcome)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("GUARDRAIL_TRANSACTION_LIMIT", "50.5")
	t.Setenv("GUARDRAIL_DAILY_LIMIT", "200")
	t.Setenv("GUARDRAIL_TIMEZONE", "America/Bogota")
	t.Setenv("AUGMENTER_ENABLED", "true")
	t.Setenv("AUGMENTER_API_KEY", "sk-test")
	t.Setenv("AUGMENTER_TIMEOUT", "1500ms")
	t.Setenv("PHONE_ALIASES", "mom=573005550000, dad = 573005551111,broken")
	t.Setenv("GATE_SPAM_MAX", "3")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "50.5", cfg.Guardrail.TransactionLimit.String())
	assert.Equal(t, "America/Bogota", cfg.Guardrail.Location.String())
	assert.Equal(t, 1500*time.Millisecond, cfg.Augmenter.Timeout)
	assert.Equal(t, map[string]string{"mom": "573005550000", "dad": "573005551111"}, cfg.Phone.Aliases)

	aug := cfg.ToAugmenterConfig()
	assert.True(t, aug.Enabled)
	assert.Equal(t, cfg.Guardrail.Location, aug.Location)

	guard := cfg.Guardrail.ToGuardrailConfig()
	assert.True(t, guard.DailyLimit.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 3, cfg.Gate.MaxPerWindow)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"whatsapp credentials", map[string]string{"TRANSPORT": "whatsapp"}, "WHATSAPP_ACCESS_TOKEN/WHATSAPP_PHONE_NUMBER_ID"},
		{"whatsapp verify token", map[string]string{
			"TRANSPORT": "whatsapp", "WHATSAPP_ACCESS_TOKEN": "t", "WHATSAPP_PHONE_NUMBER_ID": "1",
		}, "WHATSAPP_VERIFY_TOKEN"},
		{"feishu credentials", map[string]string{"TRANSPORT": "feishu"}, "FEISHU_APP_ID/FEISHU_APP_SECRET"},
		{"unknown transport", map[string]string{"TRANSPORT": "telegram"}, "TRANSPORT"},
		{"augmenter key", map[string]string{"AUGMENTER_ENABLED": "true"}, "AUGMENTER_API_KEY"},
		{"threshold range", map[string]string{"AUGMENTER_CONFIDENCE_THRESHOLD": "1.5"}, "AUGMENTER_CONFIDENCE_THRESHOLD"},
		{"limit order", map[string]string{"GUARDRAIL_TRANSACTION_LIMIT": "600"}, "GUARDRAIL_TRANSACTION_LIMIT"},
		{"non-positive limit", map[string]string{"GUARDRAIL_DAILY_LIMIT": "0"}, "GUARDRAIL_TRANSACTION_LIMIT/GUARDRAIL_DAILY_LIMIT"},
		{"bad integer", map[string]string{"GATE_SPAM_MAX": "ten"}, "GATE_SPAM_MAX"},
		{"bad duration", map[string]string{"SESSION_DURATION": "-1h"}, "SESSION_DURATION"},
		{"bad decimal", map[string]string{"DEV_OPENING_BALANCE": "lots"}, "DEV_OPENING_BALANCE"},
		{"bad timezone", map[string]string{"GUARDRAIL_TIMEZONE": "Mars/Olympus"}, "GUARDRAIL_TIMEZONE"},
		{"missing prompts file", map[string]string{"PROMPTS_CONFIG_PATH": "/nonexistent/prompts.yaml"}, "PROMPTS_CONFIG_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := LoadFromEnv().Validate()
			require.Error(t, err)
			assert.Equal(t, tt.field, configField(t, err))
		})
	}
}

func TestStorePaths(t *testing.T) {
	store := StoreConfig{Dir: "/var/lib/sippy"}
	assert.Equal(t, "/var/lib/sippy/users.db", store.UsersDBPath())
	assert.Equal(t, "/var/lib/sippy/ledger.db", store.LedgerDBPath())
}

func TestLoadPromptsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	yaml := "replies:\n  balance: \"Saldo: ${{balance}}\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadPromptsConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Saldo: ${{balance}}", cfg.Replies.Balance)
	defaults := DefaultPromptsConfig()
	assert.Equal(t, defaults.Replies.Welcome, cfg.Replies.Welcome, "missing keys fall back")
	assert.Equal(t, defaults.Classifier.SystemPrompt, cfg.Classifier.SystemPrompt)
}

func TestLoadPromptsConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replies: [unclosed"), 0o644))

	_, err := LoadPromptsConfig(path)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	got := Render("Sent ${{amount}} to +{{recipient}}.", "amount", "5.00", "recipient", "573001234567")
	assert.Equal(t, "Sent $5.00 to +573001234567.", got)

	assert.Equal(t, "{{left}} alone", Render("{{left}} alone", "dangling"))
}
