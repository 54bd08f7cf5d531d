package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	REST     RESTConfig     `yaml:"rest"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Relay    RelayConfig    `yaml:"relay"`
	Server   ServerConfig   `yaml:"server"`
	State    StateConfig    `yaml:"state"`
	Audit    AuditConfig    `yaml:"audit"`
	Telegram TelegramConfig `yaml:"telegram"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// Secrets, env only.
	PrivateKey    string `yaml:"-"`
	WebhookSecret string `yaml:"-"`
	VaultAddress  string `yaml:"-"`
	// WalletAddress lets simulation mode watch an account it cannot
	// sign for. Ignored when a private key is set.
	WalletAddress string `yaml:"-"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Testnet bool          `yaml:"testnet"`
	Timeout time.Duration `yaml:"timeout"`
}

type OracleConfig struct {
	SourceTimeout time.Duration `yaml:"source_timeout"`
	// FallbackPrice > 0 makes the oracle return this constant when every
	// source fails; 0 propagates the failure to the caller.
	FallbackPrice float64 `yaml:"fallback_price"`
	SpotAPIURL    string  `yaml:"spot_api_url"`
	SpotAPIAsset  string  `yaml:"spot_api_asset"`
}

type RelayConfig struct {
	Symbol           string        `yaml:"symbol"`
	AssetIndex       int           `yaml:"asset_index"`
	Utilization      float64       `yaml:"utilization"`
	MinBalanceUSD    float64       `yaml:"min_balance_usd"`
	DustThreshold    float64       `yaml:"dust_threshold"`
	CloseSettleDelay time.Duration `yaml:"close_settle_delay"`
	// RequireSigner refuses to start without a private key instead of
	// falling back to simulation mode.
	RequireSigner bool `yaml:"require_signer"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type AuditConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled == nil || *m.Enabled
}

const (
	mainnetBaseURL = "https://api.hyperliquid.xyz"
	testnetBaseURL = "https://api.hyperliquid-testnet.xyz"
)

// Load reads an optional YAML file, fills defaults, and applies the
// environment overrides that carry credentials.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
			// Env-only deployments run without a config file.
		default:
			return nil, err
		}
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		if cfg.REST.Testnet {
			cfg.REST.BaseURL = testnetBaseURL
		} else {
			cfg.REST.BaseURL = mainnetBaseURL
		}
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.Oracle.SourceTimeout == 0 {
		cfg.Oracle.SourceTimeout = 5 * time.Second
	}
	if cfg.Oracle.SpotAPIURL == "" {
		cfg.Oracle.SpotAPIURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.Oracle.SpotAPIAsset == "" {
		cfg.Oracle.SpotAPIAsset = "ethereum"
	}
	if cfg.Relay.Symbol == "" {
		cfg.Relay.Symbol = "ETH"
	}
	if cfg.Relay.Utilization == 0 {
		cfg.Relay.Utilization = 0.95
	}
	if cfg.Relay.MinBalanceUSD == 0 {
		cfg.Relay.MinBalanceUSD = 1
	}
	if cfg.Relay.DustThreshold == 0 {
		cfg.Relay.DustThreshold = 0.0001
	}
	if cfg.Relay.CloseSettleDelay == 0 {
		cfg.Relay.CloseSettleDelay = 2 * time.Second
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8000"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/hl-signal-relay.db"
	}
	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = 256
	}
	if cfg.Audit.Schema == "" {
		cfg.Audit.Schema = "public"
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.PrivateKey = strings.TrimSpace(os.Getenv("HL_PRIVATE_KEY"))
	cfg.WebhookSecret = strings.TrimSpace(os.Getenv("WEBHOOK_SECRET"))
	cfg.VaultAddress = strings.TrimSpace(os.Getenv("HL_VAULT_ADDRESS"))
	cfg.WalletAddress = strings.TrimSpace(os.Getenv("HL_WALLET_ADDRESS"))
	if v := strings.TrimSpace(os.Getenv("USE_TESTNET")); strings.EqualFold(v, "true") {
		cfg.REST.Testnet = true
		if cfg.REST.BaseURL == mainnetBaseURL {
			cfg.REST.BaseURL = testnetBaseURL
		}
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Server.Listen = ":" + strings.TrimPrefix(port, ":")
	}
	if token := strings.TrimSpace(os.Getenv("RELAY_TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("RELAY_TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
	if dsn := strings.TrimSpace(os.Getenv("RELAY_AUDIT_DSN")); dsn != "" {
		cfg.Audit.DSN = dsn
	}
}

func validate(cfg *Config) error {
	if cfg.Relay.Symbol == "" {
		return errors.New("relay.symbol is required")
	}
	if cfg.Relay.AssetIndex < 0 {
		return errors.New("relay.asset_index must be >= 0")
	}
	if cfg.Relay.Utilization <= 0 || cfg.Relay.Utilization > 1 {
		return fmt.Errorf("relay.utilization must be in (0, 1], got %v", cfg.Relay.Utilization)
	}
	if cfg.Relay.DustThreshold < 0 {
		return errors.New("relay.dust_threshold must be >= 0")
	}
	if cfg.Relay.CloseSettleDelay < 0 {
		return errors.New("relay.close_settle_delay must be >= 0")
	}
	if cfg.Oracle.FallbackPrice < 0 {
		return errors.New("oracle.fallback_price must be >= 0")
	}
	if cfg.WebhookSecret == "" {
		return errors.New("WEBHOOK_SECRET is required")
	}
	if cfg.Relay.RequireSigner && cfg.PrivateKey == "" {
		return errors.New("HL_PRIVATE_KEY is required when relay.require_signer is set")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	if cfg.Audit.Enabled && strings.TrimSpace(cfg.Audit.DSN) == "" {
		return errors.New("audit.dsn is required when audit is enabled")
	}
	return nil
}
