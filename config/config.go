package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable configuration value constructed at startup.
// It is loaded once from a YAML file, then environment variables are
// applied on top; components receive it at construction and never look
// configuration up ambiently.
type Config struct {
	Bot            BotConfig            `yaml:"bot"`
	Trading        TradingConfig        `yaml:"trading"`
	Redistribution RedistributionConfig `yaml:"redistribution"`
	AI             AIConfig             `yaml:"ai"`
	DataSources    DataSourcesConfig    `yaml:"data_sources"`
	Ledger         LedgerConfig         `yaml:"ledger"`
	Redis          RedisConfig          `yaml:"redis"`
	Vault          VaultConfig          `yaml:"vault"`
	Dashboard      DashboardConfig      `yaml:"dashboard"`
	Notification   NotificationConfig   `yaml:"notification"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// BotConfig holds the cycle loop settings.
type BotConfig struct {
	Name              string  `yaml:"name"`
	Mode              string  `yaml:"mode"` // "paper" or "live"
	ScanIntervalHours int     `yaml:"scan_interval_hours"`
	RiskTolerance     float64 `yaml:"risk_tolerance"` // confidence gate, 0-10 scale
	MaxDailyTrades    int     `yaml:"max_daily_trades"`
	MaxTradesPerCycle int     `yaml:"max_trades_per_cycle"`
}

// TradingConfig holds position and exposure limits.
type TradingConfig struct {
	PaperStartingBalance float64  `yaml:"paper_starting_balance"`
	AllowedMarkets       []string `yaml:"allowed_markets"`
	MaxPositionValue     float64  `yaml:"max_position_value"`
	MaxTotalExposure     float64  `yaml:"max_total_exposure"`
	SuggestedFraction    float64  `yaml:"suggested_fraction"` // default when the oracle gives none
}

// RedistributionConfig controls the profit split.
type RedistributionConfig struct {
	Enabled             bool        `yaml:"enabled"`
	Split               SplitConfig `yaml:"split"`
	CrisisOrgs          []CrisisOrg `yaml:"crisis_orgs"`
	OperatorWallet      string      `yaml:"operator_wallet"`
	NetworkWallet       string      `yaml:"network_wallet"`
	MinDonation         float64     `yaml:"min_donation"`
	BatchSmallDonations bool        `yaml:"batch_small_donations"`
	LiveTransfers       bool        `yaml:"live_transfers"`
}

// SplitConfig holds the three top-level percentages. They should sum
// to 100; when they do not, the calculator normalizes them silently.
type SplitConfig struct {
	Crisis   float64 `yaml:"crisis"`
	Operator float64 `yaml:"operator"`
	Network  float64 `yaml:"network"`
}

// CrisisOrg is one crisis-bucket recipient.
type CrisisOrg struct {
	Name       string  `yaml:"name"`
	Wallet     string  `yaml:"wallet"`
	Percentage float64 `yaml:"percentage"`
	Chain      string  `yaml:"chain"`
}

// AIConfig holds the recommendation oracle settings.
type AIConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Provider        string  `yaml:"provider"` // "claude", "openai", or "deepseek"
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
	RateLimitPerMin int     `yaml:"rate_limit_per_min"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

// DataSourcesConfig selects which market feeds to scan.
type DataSourcesConfig struct {
	CryptoSymbols    []string `yaml:"crypto_symbols"`
	PredictIt        bool     `yaml:"predictit"`
	PredictItTopN    int      `yaml:"predictit_top_n"`
	ScanWorkers      int      `yaml:"scan_workers"`
	RequestTimeoutMS int      `yaml:"request_timeout_ms"`
}

// LedgerConfig selects the transparency-ledger backend.
type LedgerConfig struct {
	Type     string         `yaml:"type"` // "csv", "sqlite", or "postgres"
	Path     string         `yaml:"path"` // directory for csv/sqlite files
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RedisConfig holds the optional price-cache settings.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// VaultConfig holds the optional HashiCorp Vault settings for secrets.
type VaultConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address"`
	Token      string `yaml:"token"`
	MountPath  string `yaml:"mount_path"`
	SecretPath string `yaml:"secret_path"`
	TLSEnabled bool   `yaml:"tls_enabled"`
	CACert     string `yaml:"ca_cert"`
}

// DashboardConfig holds the web dashboard settings.
type DashboardConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	ProductionMode    bool          `yaml:"production_mode"`
	AdminUser         string        `yaml:"admin_user"`
	AdminPasswordHash string        `yaml:"admin_password_hash"` // bcrypt hash
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenDuration     time.Duration `yaml:"token_duration"`
}

// NotificationConfig holds outbound notification settings.
type NotificationConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// DiscordConfig holds Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Output     string `yaml:"output"`      // stdout, stderr, or a file path
	JSONFormat bool   `yaml:"json_format"` // zerolog JSON vs console writer
}

// Load reads the config file at path, creating a default one when the
// file does not exist, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	cfg, err := loadFromFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in defaults, matching the defaults written
// to a fresh config file.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Name:              "solar-alpha-001",
			Mode:              "paper",
			ScanIntervalHours: 6,
			RiskTolerance:     6.0,
			MaxDailyTrades:    3,
			MaxTradesPerCycle: 2,
		},
		Trading: TradingConfig{
			PaperStartingBalance: 1000.0,
			AllowedMarkets:       []string{"crypto", "prediction"},
			MaxPositionValue:     100.0,
			MaxTotalExposure:     300.0,
			SuggestedFraction:    0.05,
		},
		Redistribution: RedistributionConfig{
			Enabled:             true,
			Split:               SplitConfig{Crisis: 50, Operator: 30, Network: 20},
			CrisisOrgs:          []CrisisOrg{{Name: "World Central Kitchen", Wallet: "0x1234567890abcdef1234567890abcdef12345678", Percentage: 100, Chain: "ethereum"}},
			MinDonation:         1.0,
			BatchSmallDonations: true,
		},
		AI: AIConfig{
			Enabled:         true,
			Provider:        "claude",
			Model:           "claude-3-haiku-20240307",
			MaxTokens:       512,
			Temperature:     0.7,
			RateLimitPerMin: 10,
			CacheTTLSeconds: 300,
			TimeoutSeconds:  30,
		},
		DataSources: DataSourcesConfig{
			CryptoSymbols:    []string{"BTC-USD", "ETH-USD", "SOL-USD"},
			PredictIt:        false,
			PredictItTopN:    5,
			ScanWorkers:      4,
			RequestTimeoutMS: 10000,
		},
		Ledger: LedgerConfig{
			Type: "csv",
			Path: "./ledger",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "alphabot",
				Database: "alphabot",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:    "localhost:6379",
			TTLSeconds: 60,
		},
		Vault: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "alphabot/api-keys",
		},
		Dashboard: DashboardConfig{
			Enabled:       true,
			Host:          "0.0.0.0",
			Port:          8080,
			TokenDuration: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides; these take
// precedence over the file. Secrets (LLM API key, vault token, JWT
// secret) are usually supplied this way rather than in the file.
func applyEnvOverrides(cfg *Config) {
	cfg.Bot.Mode = getEnvOrDefault("BOT_MODE", cfg.Bot.Mode)
	cfg.Bot.ScanIntervalHours = getEnvIntOrDefault("BOT_SCAN_INTERVAL_HOURS", cfg.Bot.ScanIntervalHours)

	cfg.AI.Enabled = getEnvBoolOrDefault("AI_ENABLED", cfg.AI.Enabled)
	cfg.AI.Provider = getEnvOrDefault("AI_PROVIDER", cfg.AI.Provider)
	cfg.AI.APIKey = getEnvOrDefault("AI_API_KEY", cfg.AI.APIKey)
	cfg.AI.Model = getEnvOrDefault("AI_MODEL", cfg.AI.Model)

	cfg.Ledger.Type = getEnvOrDefault("LEDGER_TYPE", cfg.Ledger.Type)
	cfg.Ledger.Path = getEnvOrDefault("LEDGER_PATH", cfg.Ledger.Path)
	cfg.Ledger.Postgres.Host = getEnvOrDefault("LEDGER_PG_HOST", cfg.Ledger.Postgres.Host)
	cfg.Ledger.Postgres.Password = getEnvOrDefault("LEDGER_PG_PASSWORD", cfg.Ledger.Postgres.Password)

	cfg.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Vault.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.Vault.Enabled)
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)

	cfg.Dashboard.Enabled = getEnvBoolOrDefault("DASHBOARD_ENABLED", cfg.Dashboard.Enabled)
	cfg.Dashboard.Port = getEnvIntOrDefault("DASHBOARD_PORT", cfg.Dashboard.Port)
	cfg.Dashboard.AdminUser = getEnvOrDefault("DASHBOARD_ADMIN_USER", cfg.Dashboard.AdminUser)
	cfg.Dashboard.AdminPasswordHash = getEnvOrDefault("DASHBOARD_ADMIN_PASSWORD_HASH", cfg.Dashboard.AdminPasswordHash)
	cfg.Dashboard.JWTSecret = getEnvOrDefault("DASHBOARD_JWT_SECRET", cfg.Dashboard.JWTSecret)

	cfg.Notification.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.Notification.Enabled)
	cfg.Notification.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Notification.Telegram.BotToken)
	cfg.Notification.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Notification.Telegram.ChatID)
	cfg.Notification.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.Notification.Discord.WebhookURL)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
}

// writeDefault writes the default configuration to path so a first run
// produces a file the operator can edit.
func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
