package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/agritoken/stock-adapter/internal/api"
	"github.com/agritoken/stock-adapter/internal/audit"
	"github.com/agritoken/stock-adapter/internal/config"
	"github.com/agritoken/stock-adapter/internal/ledger"
	"github.com/agritoken/stock-adapter/internal/metrics"
	"github.com/agritoken/stock-adapter/internal/publisher"
	"github.com/agritoken/stock-adapter/internal/rate"
	"github.com/agritoken/stock-adapter/internal/registry"
	"github.com/agritoken/stock-adapter/internal/token"
	"github.com/agritoken/stock-adapter/pkg/logger"
	"github.com/agritoken/stock-adapter/pkg/secrets"
	"github.com/agritoken/stock-adapter/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [stock-adapter]...")

	// --- Treasury keys ---
	treasury := resolveTreasury(ctx, cfg)
	if treasury.AccountID == "" {
		logg.Fatal("no treasury account configured (TREASURY_ACCOUNT or TREASURY_SECRET_NAME)")
	}

	// --- Ledger gateway client ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateRPS,
		Burst:             cfg.RateBurst,
	})
	gw := ledger.NewClient(logger.L(), cfg.GatewayBaseURL, cfg.GatewayToken, cfg.LedgerCallTimeout, rateMgr)

	// --- Local registry + optional Redis mirror ---
	reg := registry.NewInMemory()

	var mirror *registry.Mirror
	if cfg.RedisAddr != "" {
		m, err := registry.NewMirror(cfg.RedisAddr, cfg.RedisDB, cfg.MirrorTTL, logger.L())
		if err != nil {
			logg.Fatalw("failed to init registry mirror", "error", err)
		}
		mirror = m
		defer mirror.Close() //nolint:errcheck
	}

	// --- Optional NATS publisher ---
	var pub *publisher.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		defer nc.Drain() //nolint:errcheck
		pub, err = publisher.New(nc, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
	}

	// --- Optional audit journal (Postgres) ---
	var journal *audit.Journal
	if cfg.DatabaseURL != "" {
		logg.Info("connecting to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logg.Fatalw("failed to connect to postgres", "error", err)
		}
		defer pool.Close()
		journal = audit.NewJournal(pool, logger.L(), cfg.ServiceName)
	}

	// --- Orchestrator (core adapter logic) ---
	svc := token.NewService(
		logger.L(),
		gw,
		reg,
		mirror,
		pub,
		journal,
		treasury,
		cfg.AllowTreasuryFallbackSigning,
	)
	if cfg.AllowTreasuryFallbackSigning {
		logg.Warn("treasury fallback signing is ENABLED; testing only, never run this in production")
	}

	// --- Background reconciliation ---
	refresher := token.NewRefresher(logger.L(), svc, cfg.RefreshInterval)
	go refresher.Start(ctx)

	// --- Optional ledger transaction feed ---
	if cfg.GatewayWSURL != "" {
		stream := ledger.NewStream(logger.L(), cfg.GatewayWSURL, cfg.GatewayToken, func(evt ledger.StreamEvent) {
			svc.HandleStreamEvent(ctx, evt)
		})
		go stream.Run(ctx)
	}

	// --- Metrics ---
	metrics.StartServer(fmt.Sprintf(":%d", cfg.MetricsPort))

	// --- HTTP API ---
	app := fiber.New()
	h := api.NewHandler(logger.L(), svc)
	api.RegisterRoutes(app, h)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[stock-adapter] running",
		"gateway", cfg.GatewayBaseURL,
		"treasury", treasury.AccountID,
		"refresh_interval", cfg.RefreshInterval)

	<-ctx.Done()
	stop()
	logg.Info("shutting down [stock-adapter]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.ShutdownWithContext(shutdownCtx) //nolint:errcheck
}

// resolveTreasury loads the treasury account keys, preferring AWS Secrets
// Manager when a secret name is configured.
func resolveTreasury(ctx context.Context, cfg *config.Config) secrets.AccountKeys {
	logg := logger.S()

	if cfg.TreasurySecretName == "" {
		logg.Warn("no treasury secret configured; running without ledger signing keys")
		return secrets.AccountKeys{AccountID: cfg.TreasuryAccount}
	}

	provider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		logg.Fatalw("failed to init AWS provider", "error", err)
	}

	raw, err := provider.GetSecret(ctx, cfg.TreasurySecretName)
	if err != nil {
		logg.Fatalw("failed to resolve treasury secret",
			"secret", cfg.TreasurySecretName,
			"error", err)
	}

	keys := secrets.AccountKeysFromSecret(raw)
	if keys.AccountID == "" {
		keys.AccountID = cfg.TreasuryAccount
	}
	logg.Infow("treasury keys resolved",
		"account", keys.AccountID,
		"signing_key", utils.MaskKey(keys.SigningKey))
	return keys
}
