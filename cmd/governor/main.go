package main

import (
	"bufio"
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relayline/governor/pkg/admission"
	"github.com/relayline/governor/pkg/audit"
	"github.com/relayline/governor/pkg/config"
	"github.com/relayline/governor/pkg/contracts"
	"github.com/relayline/governor/pkg/governor"
	"github.com/relayline/governor/pkg/ledger"
	"github.com/relayline/governor/pkg/observability"
	"github.com/relayline/governor/pkg/store"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profile, err := config.LoadProfile(cfg.ProfilesDir, cfg.Profile)
	if err != nil {
		logger.Error("failed to load autonomy profile", "profile", cfg.Profile, "error", err)
		os.Exit(1)
	}
	autonomy := profile.Autonomy()
	logger.Info("autonomy profile loaded", "profile", profile.Name, "level", autonomy.Level)

	ledgerStore, cleanup, err := buildLedgerStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build ledger store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	gov, err := governor.New(cfg.AgentID, autonomy, ledgerStore)
	if err != nil {
		logger.Error("failed to build governor", "error", err)
		os.Exit(1)
	}

	gov.SetAuditLogger(audit.NewLogger(cfg.AgentID))

	if cfg.SQLitePath != "" {
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open decision store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		records, err := store.NewSQLiteDecisionStore(db)
		if err != nil {
			logger.Error("failed to migrate decision store", "error", err)
			os.Exit(1)
		}
		gov.SetDecisionStore(records)
	}

	if cfg.TelemetryOn {
		obsCfg := observability.DefaultConfig()
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
		obs, err := observability.New(ctx, obsCfg)
		if err != nil {
			logger.Error("failed to init observability", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Shutdown(shutdownCtx)
		}()
		gov.SetObservability(obs)
	}

	gov.SetEventNotifier(func(e contracts.DomainEvent) {
		logger.Info("domain event", "type", e.Type, "payload", e.Payload)
	})

	go runMaintenance(ctx, gov, logger)
	go runIntake(ctx, gov, logger)

	logger.Info("governor running", "agent_id", cfg.AgentID)
	<-ctx.Done()
	logger.Info("shutting down")
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
}

// buildLedgerStore picks the counter backend: postgres when DATABASE_URL is
// set, redis when REDIS_ADDR is set, in-memory otherwise.
func buildLedgerStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st := ledger.NewPostgresStore(db)
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("using postgres ledger store")
		return st, func() { _ = db.Close() }, nil

	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		logger.Info("using redis ledger store", "addr", cfg.RedisAddr)
		return ledger.NewRedisStore(client), func() { _ = client.Close() }, nil

	default:
		logger.Info("using in-memory ledger store")
		return ledger.NewMemoryStore(), func() {}, nil
	}
}

// runIntake reads line-delimited JSON decision submissions from stdin,
// validates them against the admission schema, and runs each through the
// governor. Malformed submissions are rejected before policy evaluation.
func runIntake(ctx context.Context, gov *governor.Governor, logger *slog.Logger) {
	validator, err := admission.NewValidator()
	if err != nil {
		logger.Error("failed to compile admission schema", "error", err)
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		decision, err := validator.Admit(line)
		if err != nil {
			logger.Warn("submission rejected", "error", err)
			continue
		}
		result, _, err := gov.ValidateDecision(ctx, decision)
		if err != nil {
			logger.Error("validation failed", "decision_id", decision.ID, "error", err)
			continue
		}
		logger.Info("decision validated",
			"decision_id", decision.ID,
			"approved", result.Approved,
			"reason", result.Reason,
			"escalation_required", result.EscalationRequired)
	}
	if err := scanner.Err(); err != nil {
		logger.Error("intake read error", "error", err)
	}
}

// runMaintenance drives the scheduled jobs: daily spend reset at midnight
// UTC, hourly bucket pruning, and the approval timeout sweep.
func runMaintenance(ctx context.Context, gov *governor.Governor, logger *slog.Logger) {
	sweep := time.NewTicker(time.Minute)
	prune := time.NewTicker(time.Hour)
	defer sweep.Stop()
	defer prune.Stop()

	daily := time.NewTimer(untilMidnightUTC(time.Now()))
	defer daily.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if expired := gov.SweepApprovalTimeouts(); len(expired) > 0 {
				logger.Info("approval sweep expired requests", "count", len(expired))
			}
		case <-prune.C:
			gov.PruneHourlyLedger()
		case <-daily.C:
			gov.ResetDailyLedger()
			logger.Info("daily spend counters reset")
			daily.Reset(untilMidnightUTC(time.Now()))
		}
	}
}

func untilMidnightUTC(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(now)
}
