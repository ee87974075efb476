// Package cli provides the initialization shared by cmd/sixjars,
// cmd/sixjars-worker and cmd/jars-admin.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sixjars/internal/backend"
	"sixjars/internal/cache"
	"sixjars/internal/classifier"
	"sixjars/internal/config"
	"sixjars/internal/core"
	"sixjars/internal/ledger"
	"sixjars/internal/log"
	"sixjars/internal/services"
)

const statsCacheItems = 10_000

// SetupLogger builds the process logger from LOG_LEVEL and installs it as
// the slog default. An unknown level falls back to info.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Level = level
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Ignoring LOG_LEVEL", log.FieldError, err.Error())
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the ledger store selected by DATA_BACKEND.
// Returns the store and its cleanup, or exits the process on failure.
func OpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) (ledger.Store, backend.CleanupFunc) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize ledger store", log.FieldError, err.Error(), "backend", bcfg.Type)
		os.Exit(1)
	}
	return res.Store, res.Cleanup
}

// NewClassifier returns the remote classifier, or nil when CLASSIFIER_URL is
// unset. A nil classifier makes classification requests fail as unavailable.
func NewClassifier(cfg *config.Config) (services.Classifier, error) {
	if cfg.ClassifierURL == "" {
		return nil, nil
	}
	c, err := classifier.New(classifier.Options{
		URL:     cfg.ClassifierURL,
		APIKey:  cfg.ClassifierAPIKey,
		Timeout: cfg.ClassifierTimeout,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Services bundles the ledger services over one store.
type Services struct {
	Env            services.Env
	Jars           *services.JarLedger
	Transactions   *services.TransactionService
	Incomes        *services.IncomeService
	Stats          *services.StatsService
	Budgets        *services.BudgetService
	Goals          *services.GoalService
	Classification *services.ClassificationService

	statsCache *cache.Ristretto[core.Stats]
}

// NewServices wires every service against store. The stats cache is
// skipped when STATS_CACHE_TTL is zero.
func NewServices(store ledger.Store, cfg *config.Config, c services.Classifier) (*Services, error) {
	env := services.Env{
		Store:       store,
		Location:    cfg.Location(),
		Generations: cache.NewGenerations(),
	}

	s := &Services{Env: env}
	var statsCache cache.Cache[core.Stats]
	if cfg.StatsCacheTTL > 0 {
		rc, err := cache.NewRistretto[core.Stats](statsCacheItems, cfg.StatsCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("stats cache: %w", err)
		}
		s.statsCache = rc
		statsCache = rc
	}

	s.Jars = services.NewJarLedger(env)
	s.Transactions = services.NewTransactionService(env)
	s.Incomes = services.NewIncomeService(env)
	s.Stats = services.NewStatsService(env, statsCache)
	s.Budgets = services.NewBudgetService(env, s.Transactions)
	s.Goals = services.NewGoalService(env)
	s.Classification = services.NewClassificationService(c, s.Incomes, s.Transactions)
	return s, nil
}

// Close releases the stats cache.
func (s *Services) Close() {
	if s.statsCache != nil {
		s.statsCache.Close()
	}
}

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM.
// cleanup runs with a context bounded by timeout; done is closed once it
// has returned.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
