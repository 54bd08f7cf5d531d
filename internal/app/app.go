// Package app wires the relay together and owns its lifecycle.
package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"hl-signal-relay/internal/account"
	"hl-signal-relay/internal/alerts"
	"hl-signal-relay/internal/audit"
	"hl-signal-relay/internal/config"
	"hl-signal-relay/internal/exec"
	"hl-signal-relay/internal/hl/exchange"
	"hl-signal-relay/internal/hl/rest"
	"hl-signal-relay/internal/metrics"
	"hl-signal-relay/internal/oracle"
	"hl-signal-relay/internal/relay"
	"hl-signal-relay/internal/server"
	"hl-signal-relay/internal/state"
	"hl-signal-relay/internal/state/sqlite"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    state.Store
	rest     *rest.Client
	exchange *exchange.Client
	reader   *account.Reader
	server   *server.Server
	audit    *audit.Writer
	metrics  *metrics.Metrics
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	restClient := rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, log)

	var (
		exClient *exchange.Client
		wallet   string
	)
	if cfg.PrivateKey != "" {
		signer, err := exchange.NewSigner(cfg.PrivateKey, !cfg.REST.Testnet)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		exClient, err = exchange.NewClient(cfg.REST.BaseURL, cfg.REST.Timeout, signer, cfg.VaultAddress)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		exClient.SetLogger(log)
		wallet = signer.Address().Hex()
	} else {
		wallet = cfg.WalletAddress
		log.Warn("no private key configured, running in simulation mode")
	}

	user := wallet
	if cfg.VaultAddress != "" {
		// Orders go to the vault, so its positions are the ones to track.
		user = cfg.VaultAddress
	}
	reader := account.NewReader(restClient, log, user, cfg.Relay.Symbol)

	m := metrics.NewNoop()
	var metricsHandler http.Handler
	if cfg.Metrics.EnabledValue() {
		prom := metrics.NewPrometheus()
		m = prom.Metrics
		metricsHandler = prom.Handler()
	}

	priceSources := []oracle.Source{
		oracle.NewMidSource(restClient, cfg.Relay.Symbol),
		oracle.NewOracleSource(restClient, cfg.Relay.AssetIndex),
		oracle.NewSpotSource(strings.TrimRight(cfg.Oracle.SpotAPIURL, "/")+"/simple/price", cfg.Oracle.SpotAPIAsset),
	}
	priceOracle := oracle.New(priceSources, cfg.Oracle.SourceTimeout, cfg.Oracle.FallbackPrice, log)

	var orders exec.OrderPlacer
	if exClient != nil {
		orders = exClient
	}
	executor := exec.New(reader, orders, priceOracle, m, log, exec.Config{
		Symbol:        cfg.Relay.Symbol,
		AssetIndex:    cfg.Relay.AssetIndex,
		Utilization:   cfg.Relay.Utilization,
		MinBalanceUSD: cfg.Relay.MinBalanceUSD,
		DustThreshold: cfg.Relay.DustThreshold,
	})

	processor := relay.NewProcessor(executor, m, log, cfg.WebhookSecret, cfg.Relay.CloseSettleDelay)

	auditWriter, err := audit.New(cfg.Audit, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if auditWriter != nil {
		processor.SetRecorder(auditWriter)
	}
	if cfg.Telegram.Enabled {
		processor.SetNotifier(alerts.NewTelegram(cfg.Telegram, log))
	}

	srv := server.New(cfg.Server.Listen, processor, reader, metricsHandler, log, server.Info{
		Wallet:  wallet,
		Testnet: cfg.REST.Testnet,
		Symbol:  cfg.Relay.Symbol,
		Version: Version,
	})

	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		rest:     restClient,
		exchange: exClient,
		reader:   reader,
		server:   srv,
		audit:    auditWriter,
		metrics:  m,
	}, nil
}

// Run serves until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.audit.Close()

	if a.exchange != nil {
		if err := a.exchange.InitNonceStore(ctx, a.store); err != nil {
			a.log.Warn("nonce store init failed", zap.Error(err))
		}
	}
	a.audit.Start(ctx)

	a.log.Info("relay starting",
		zap.String("symbol", a.cfg.Relay.Symbol),
		zap.Bool("testnet", a.cfg.REST.Testnet),
		zap.Bool("simulation", a.exchange == nil),
		zap.String("version", Version))
	return a.server.Run(ctx)
}
