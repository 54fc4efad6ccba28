package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/usecase"
	"github.com/mateodaza/sippy-sub000/internal/data"
	"github.com/shopspring/decimal"
)

// Transport kinds
const (
	TransportWhatsApp = "whatsapp"
	TransportFeishu   = "feishu"
	TransportNone     = "none"
)

// Config represents application configuration
type Config struct {
	// HTTP server configuration
	Server ServerConfig

	// Chat transport selection and credentials
	Transport TransportConfig
	WhatsApp  WhatsAppConfig
	Feishu    FeishuConfig

	// Natural-language augmenter configuration (optional)
	Augmenter AugmenterConfig

	// Phone normalization
	Phone PhoneConfig

	// Spend limits and sessions
	Guardrail GuardrailConfig

	// Ingestion gate
	Gate GateConfig

	// Persistence
	Store StoreConfig

	// Prompts and replies (loaded from YAML)
	Prompts *PromptsConfig

	// Debug mode
	Debug bool

	loadErrs []*ConfigError
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr         string
	DebugAPI     bool // Mount /api routes
	MetricsToken string
}

// TransportConfig selects the chat transport
type TransportConfig struct {
	Kind string // whatsapp, feishu or none
}

// WhatsAppConfig contains WhatsApp Cloud API configuration
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string // Webhook subscription handshake token
	AppSecret     string // Signs webhook payloads; empty disables the check
	APIBaseURL    string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// AugmenterConfig contains classifier model configuration
type AugmenterConfig struct {
	Enabled             bool
	APIKey              string
	BaseURL             string
	Model               string
	PerMinute           int
	PerDay              int
	ConfidenceThreshold float64
	Timeout             time.Duration
	CrossCheckSends     bool
}

// PhoneConfig contains phone normalization settings
type PhoneConfig struct {
	DefaultCountryCode string
	Aliases            map[string]string
}

// GuardrailConfig contains spend limits and session settings
type GuardrailConfig struct {
	TransactionLimit decimal.Decimal
	DailyLimit       decimal.Decimal
	SessionDuration  time.Duration
	Location         *time.Location
}

// GateConfig contains ingestion gate settings
type GateConfig struct {
	Retention     time.Duration
	Window        time.Duration
	MaxPerWindow  int
	SweepInterval time.Duration
	RedisURL      string // Empty keeps the tables in memory
}

// StoreConfig contains persistence settings
type StoreConfig struct {
	Dir            string
	OpeningBalance decimal.Decimal // Development ledger only
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	c := &Config{}

	c.Server = ServerConfig{
		Addr:         getEnv("SERVER_ADDR", ":8080"),
		DebugAPI:     getEnvBool("DEBUG_API", false),
		MetricsToken: os.Getenv("METRICS_TOKEN"),
	}

	c.Transport = TransportConfig{
		Kind: strings.ToLower(getEnv("TRANSPORT", TransportWhatsApp)),
	}
	c.WhatsApp = WhatsAppConfig{
		AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		VerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		AppSecret:     os.Getenv("WHATSAPP_APP_SECRET"),
		APIBaseURL:    getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v21.0"),
	}
	c.Feishu = FeishuConfig{
		AppID:     os.Getenv("FEISHU_APP_ID"),
		AppSecret: os.Getenv("FEISHU_APP_SECRET"),
	}

	c.Augmenter = AugmenterConfig{
		Enabled:             getEnvBool("AUGMENTER_ENABLED", false),
		APIKey:              os.Getenv("AUGMENTER_API_KEY"),
		BaseURL:             os.Getenv("AUGMENTER_BASE_URL"),
		Model:               os.Getenv("AUGMENTER_MODEL"),
		PerMinute:           c.getEnvInt("AUGMENTER_PER_MINUTE", 20),
		PerDay:              c.getEnvInt("AUGMENTER_PER_DAY", 1000),
		ConfidenceThreshold: c.getEnvFloat("AUGMENTER_CONFIDENCE_THRESHOLD", 0.7),
		Timeout:             c.getEnvDuration("AUGMENTER_TIMEOUT", 3*time.Second),
		CrossCheckSends:     getEnvBool("AUGMENTER_CROSS_CHECK_SENDS", false),
	}

	c.Phone = PhoneConfig{
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "57"),
		Aliases:            ParseAliases(os.Getenv("PHONE_ALIASES")),
	}

	c.Guardrail = GuardrailConfig{
		TransactionLimit: c.getEnvDecimal("GUARDRAIL_TRANSACTION_LIMIT", decimal.NewFromInt(100)),
		DailyLimit:       c.getEnvDecimal("GUARDRAIL_DAILY_LIMIT", decimal.NewFromInt(500)),
		SessionDuration:  c.getEnvDuration("SESSION_DURATION", 24*time.Hour),
		Location:         time.UTC,
	}
	if tz := os.Getenv("GUARDRAIL_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			c.loadErrs = append(c.loadErrs, &ConfigError{Field: "GUARDRAIL_TIMEZONE", Message: err.Error()})
		} else {
			c.Guardrail.Location = loc
		}
	}

	c.Gate = GateConfig{
		Retention:     c.getEnvDuration("GATE_RETENTION", 2*time.Minute),
		Window:        c.getEnvDuration("GATE_SPAM_WINDOW", time.Minute),
		MaxPerWindow:  c.getEnvInt("GATE_SPAM_MAX", usecase.DefaultMaxPerWindow),
		SweepInterval: c.getEnvDuration("GATE_SWEEP_INTERVAL", time.Minute),
		RedisURL:      os.Getenv("REDIS_URL"),
	}

	storeDir := os.Getenv("STORE_DIR")
	if storeDir == "" {
		homeDir, _ := os.UserHomeDir()
		storeDir = filepath.Join(homeDir, ".sippy")
	}
	c.Store = StoreConfig{
		Dir:            storeDir,
		OpeningBalance: c.getEnvDecimal("DEV_OPENING_BALANCE", decimal.Zero),
	}

	// Load prompts from YAML
	prompts, err := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))
	if err != nil {
		c.loadErrs = append(c.loadErrs, &ConfigError{Field: "PROMPTS_CONFIG_PATH", Message: err.Error()})
		prompts = DefaultPromptsConfig()
	}
	c.Prompts = prompts

	c.Debug = getEnvBool("DEBUG", false)

	return c
}

// ParseAliases parses "name=number,name=number" into a map
func ParseAliases(raw string) map[string]string {
	aliases := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, number, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		number = strings.TrimSpace(number)
		if name != "" && number != "" {
			aliases[name] = number
		}
	}
	return aliases
}

// UsersDBPath returns the user store database path
func (c *StoreConfig) UsersDBPath() string {
	return filepath.Join(c.Dir, "users.db")
}

// LedgerDBPath returns the development ledger database path
func (c *StoreConfig) LedgerDBPath() string {
	return filepath.Join(c.Dir, "ledger.db")
}

// ToGuardrailConfig converts to domain guardrail configuration
func (c *GuardrailConfig) ToGuardrailConfig() domain.GuardrailConfig {
	return domain.GuardrailConfig{
		SessionDuration:  c.SessionDuration,
		TransactionLimit: c.TransactionLimit,
		DailyLimit:       c.DailyLimit,
		Location:         c.Location,
	}
}

// ToAugmenterConfig converts to the augmenter usecase configuration
func (c *Config) ToAugmenterConfig() usecase.AugmenterConfig {
	return usecase.AugmenterConfig{
		Enabled:             c.Augmenter.Enabled,
		PerMinute:           c.Augmenter.PerMinute,
		PerDay:              c.Augmenter.PerDay,
		ConfidenceThreshold: c.Augmenter.ConfidenceThreshold,
		Timeout:             c.Augmenter.Timeout,
		Location:            c.Guardrail.Location,
	}
}

// ToGateStoreConfig converts to the gate store configuration
func (c *GateConfig) ToGateStoreConfig() data.GateStoreConfig {
	cfg := data.DefaultGateStoreConfig()
	cfg.Retention = c.Retention
	cfg.Window = c.Window
	return cfg
}

// NewPhoneNormalizer builds the normalizer described by the phone settings
func (c *PhoneConfig) NewPhoneNormalizer() *domain.PhoneNormalizer {
	return domain.NewPhoneNormalizer(c.DefaultCountryCode, c.Aliases)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.loadErrs) > 0 {
		return c.loadErrs[0]
	}

	switch c.Transport.Kind {
	case TransportWhatsApp:
		if c.WhatsApp.AccessToken == "" || c.WhatsApp.PhoneNumberID == "" {
			return &ConfigError{Field: "WHATSAPP_ACCESS_TOKEN/WHATSAPP_PHONE_NUMBER_ID", Message: "required"}
		}
		if c.WhatsApp.VerifyToken == "" {
			return &ConfigError{Field: "WHATSAPP_VERIFY_TOKEN", Message: "required"}
		}
	case TransportFeishu:
		if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
		}
	case TransportNone:
	default:
		return &ConfigError{Field: "TRANSPORT", Message: "must be whatsapp, feishu or none"}
	}

	if c.Augmenter.Enabled && c.Augmenter.APIKey == "" {
		return &ConfigError{Field: "AUGMENTER_API_KEY", Message: "required when AUGMENTER_ENABLED=true"}
	}
	if c.Augmenter.ConfidenceThreshold < 0 || c.Augmenter.ConfidenceThreshold > 1 {
		return &ConfigError{Field: "AUGMENTER_CONFIDENCE_THRESHOLD", Message: "must be between 0 and 1"}
	}
	if !c.Guardrail.TransactionLimit.IsPositive() || !c.Guardrail.DailyLimit.IsPositive() {
		return &ConfigError{Field: "GUARDRAIL_TRANSACTION_LIMIT/GUARDRAIL_DAILY_LIMIT", Message: "must be positive"}
	}
	if c.Guardrail.TransactionLimit.GreaterThan(c.Guardrail.DailyLimit) {
		return &ConfigError{Field: "GUARDRAIL_TRANSACTION_LIMIT", Message: "must not exceed the daily limit"}
	}
	if c.Gate.MaxPerWindow <= 0 {
		return &ConfigError{Field: "GATE_SPAM_MAX", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// ========== Environment Helpers ==========

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c *Config) getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		c.loadErrs = append(c.loadErrs, &ConfigError{Field: key, Message: "not an integer"})
		return fallback
	}
	return parsed
}

func (c *Config) getEnvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		c.loadErrs = append(c.loadErrs, &ConfigError{Field: key, Message: "not a number"})
		return fallback
	}
	return parsed
}

func (c *Config) getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		c.loadErrs = append(c.loadErrs, &ConfigError{Field: key, Message: "not a positive duration"})
		return fallback
	}
	return parsed
}

func (c *Config) getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := decimal.NewFromString(val)
	if err != nil {
		c.loadErrs = append(c.loadErrs, &ConfigError{Field: key, Message: "not a decimal"})
		return fallback
	}
	return parsed
}
