// Command server runs the blockpass omega authentication server.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, OMEGA_CONFIG, ./config.yaml, or /etc/omega/config.yaml),
// then OMEGA_* environment overrides. Secrets can be supplied via _file
// references in the config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/blockpass/omega/pkg/audit"
	auditpg "github.com/blockpass/omega/pkg/audit/postgres"
	"github.com/blockpass/omega/pkg/config"
	"github.com/blockpass/omega/pkg/credential"
	"github.com/blockpass/omega/pkg/debug"
	"github.com/blockpass/omega/pkg/envelope"
	"github.com/blockpass/omega/pkg/identity"
	"github.com/blockpass/omega/pkg/logstore"
	"github.com/blockpass/omega/pkg/orchestrator"
	"github.com/blockpass/omega/pkg/session"
	"github.com/blockpass/omega/pkg/sweep"
	"github.com/blockpass/omega/pkg/tenant"
	transporthttp "github.com/blockpass/omega/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Observability.Debug, cfg.Observability.LogLevel)
	logger := slog.Default()

	// Ledgers and stores, constructed here and injected everywhere.
	identityLedger := identity.NewLedger(logger)
	credentialLedger := credential.NewLedger(cfg.Auth.LockoutThreshold, logger)
	sessions := session.NewManager(logger)
	logs := logstore.New(cfg.Logs.TTL, logger)

	// Optional external audit ledger. Absence or failure selects the
	// local fallback; the server still comes up.
	var primary audit.Backend
	if cfg.Ledger.Postgres.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := auditpg.New(ctx, auditpg.Config{
			DSN:            cfg.Ledger.Postgres.DSN,
			MaxConns:       cfg.Ledger.Postgres.MaxConns,
			MigrateOnStart: cfg.Ledger.Postgres.MigrateOnStart,
		})
		cancel()
		if err != nil {
			logger.Warn("audit ledger backend unavailable, using local fallback", "error", err)
		} else {
			defer pg.Close()
			primary = pg
			logger.Info("audit ledger backend connected")
		}
	}
	auditLayer := audit.NewLayer(primary, cfg.Ledger.BackendTimeout, logger)

	tenants := tenant.NewRegistry(tenantEntries(cfg.Tenants))
	signer := envelope.NewSigner(cfg.Auth.SigningSecret, cfg.Auth.EnvelopeTTL)

	orch := orchestrator.New(orchestrator.Deps{
		Tenants:     tenants,
		Identity:    identityLedger,
		Credentials: credentialLedger,
		Audit:       auditLayer,
		Sessions:    sessions,
		Logs:        logs,
		Signer:      signer,
		SessionTTL:  cfg.Auth.SessionTTL,
		Logger:      logger,
	})

	// Background sweeps, stopped before the process exits.
	sweepCtx, cancelSweeps := context.WithCancel(context.Background())
	defer cancelSweeps()

	logSweep := sweep.New("logs", cfg.Logs.SweepInterval, logs.CleanupExpired, logger)
	logSweep.Start(sweepCtx)
	defer logSweep.Stop()

	sessionSweep := sweep.New("sessions", cfg.Sessions.SweepInterval, sessions.CleanupExpired, logger)
	sessionSweep.Start(sweepCtx)
	defer sessionSweep.Stop()

	adapterCfg := transporthttp.DefaultConfig()
	adapterCfg.MetricsEnabled = cfg.Observability.Metrics.Enabled
	adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	adapter := transporthttp.NewAdapter(orch, adapterCfg, logger)

	srv := transporthttp.NewServer(adapter,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	logger.Info("omega server configured",
		"port", cfg.Server.Port,
		"tenants", len(cfg.Tenants),
		"audit_backend", primary != nil,
	)

	return srv.ListenAndServe()
}

// tenantEntries converts config tenants to registry entries.
func tenantEntries(configured []config.TenantConfig) []tenant.Entry {
	entries := make([]tenant.Entry, 0, len(configured))
	for _, t := range configured {
		entries = append(entries, tenant.Entry{
			APIKey:     t.APIKey,
			ID:         t.ID,
			Name:       t.Name,
			Domain:     t.Domain,
			UsageLimit: t.UsageLimit,
			Active:     t.Active,
		})
	}
	return entries
}
