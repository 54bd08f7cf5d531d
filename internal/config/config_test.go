package config

import (
	"testing"
	"time"
)

func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WEBHOOK_SECRET", "test-secret")
	t.Setenv("HL_PRIVATE_KEY", "")
	t.Setenv("HL_VAULT_ADDRESS", "")
	t.Setenv("HL_WALLET_ADDRESS", "")
	t.Setenv("USE_TESTNET", "")
	t.Setenv("PORT", "")
	t.Setenv("RELAY_TELEGRAM_TOKEN", "")
	t.Setenv("RELAY_TELEGRAM_CHAT_ID", "")
	t.Setenv("RELAY_AUDIT_DSN", "")
}

func TestDefaults(t *testing.T) {
	baseEnv(t)
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		t.Fatalf("expected valid defaults, got %v", err)
	}
	if cfg.REST.BaseURL != mainnetBaseURL {
		t.Fatalf("expected mainnet base url, got %q", cfg.REST.BaseURL)
	}
	if cfg.REST.Timeout != 10*time.Second {
		t.Fatalf("expected 10s rest timeout, got %v", cfg.REST.Timeout)
	}
	if cfg.Relay.Symbol != "ETH" {
		t.Fatalf("expected symbol ETH, got %q", cfg.Relay.Symbol)
	}
	if cfg.Relay.Utilization != 0.95 {
		t.Fatalf("expected utilization 0.95, got %v", cfg.Relay.Utilization)
	}
	if cfg.Relay.CloseSettleDelay != 2*time.Second {
		t.Fatalf("expected 2s settle delay, got %v", cfg.Relay.CloseSettleDelay)
	}
	if cfg.Relay.DustThreshold != 0.0001 {
		t.Fatalf("expected dust threshold 0.0001, got %v", cfg.Relay.DustThreshold)
	}
	if cfg.Server.Listen != ":8000" {
		t.Fatalf("expected listen :8000, got %q", cfg.Server.Listen)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	baseEnv(t)
	cfg, err := Load("does-not-exist.yaml")
	if err != nil {
		t.Fatalf("expected defaults for missing config file, got %v", err)
	}
	if cfg.Relay.Symbol != "ETH" {
		t.Fatalf("expected default symbol, got %q", cfg.Relay.Symbol)
	}
}

func TestTestnetFlagSwitchesBaseURL(t *testing.T) {
	baseEnv(t)
	cfg := &Config{REST: RESTConfig{Testnet: true}}
	applyDefaults(cfg)
	if cfg.REST.BaseURL != testnetBaseURL {
		t.Fatalf("expected testnet base url, got %q", cfg.REST.BaseURL)
	}
}

func TestUseTestnetEnvOverride(t *testing.T) {
	baseEnv(t)
	t.Setenv("USE_TESTNET", "TRUE")
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if !cfg.REST.Testnet {
		t.Fatalf("expected testnet flag from env")
	}
	if cfg.REST.BaseURL != testnetBaseURL {
		t.Fatalf("expected testnet base url, got %q", cfg.REST.BaseURL)
	}
}

func TestPortEnvOverride(t *testing.T) {
	baseEnv(t)
	t.Setenv("PORT", "9100")
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if cfg.Server.Listen != ":9100" {
		t.Fatalf("expected listen :9100, got %q", cfg.Server.Listen)
	}
}

func TestValidateRequiresWebhookSecret(t *testing.T) {
	baseEnv(t)
	t.Setenv("WEBHOOK_SECRET", "")
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing webhook secret")
	}
}

func TestValidateRequireSignerWithoutKey(t *testing.T) {
	baseEnv(t)
	cfg := &Config{Relay: RelayConfig{RequireSigner: true}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for require_signer without private key")
	}
}

func TestValidateRejectsBadUtilization(t *testing.T) {
	baseEnv(t)
	cfg := &Config{Relay: RelayConfig{Utilization: 1.5}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for utilization > 1")
	}
}

func TestValidateRejectsNegativeFallbackPrice(t *testing.T) {
	baseEnv(t)
	cfg := &Config{Oracle: OracleConfig{FallbackPrice: -1}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative fallback price")
	}
}

func TestValidateRejectsTelegramEnabledWithoutConfig(t *testing.T) {
	baseEnv(t)
	cfg := &Config{Telegram: TelegramConfig{Enabled: true}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing telegram token/chat_id")
	}
}

func TestTelegramEnvOverridesConfig(t *testing.T) {
	baseEnv(t)
	t.Setenv("RELAY_TELEGRAM_TOKEN", "env-token")
	t.Setenv("RELAY_TELEGRAM_CHAT_ID", "123")
	cfg := &Config{Telegram: TelegramConfig{Enabled: true, Token: "config-token", ChatID: "999"}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("expected env token override, got %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != "123" {
		t.Fatalf("expected env chat id override, got %q", cfg.Telegram.ChatID)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected valid config with env overrides, got %v", err)
	}
}

func TestValidateRejectsAuditEnabledWithoutDSN(t *testing.T) {
	baseEnv(t)
	cfg := &Config{Audit: AuditConfig{Enabled: true}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for audit without dsn")
	}
}
