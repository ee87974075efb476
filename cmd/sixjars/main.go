package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"sixjars/internal/cli"
	apphttp "sixjars/internal/http"
	"sixjars/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateAPI(); err != nil {
		logger.Error("API configuration invalid", log.FieldError, err.Error())
		os.Exit(1)
	}

	store, closeStore := cli.OpenStore(context.Background(), logger, cfg)
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close ledger store", log.FieldError, err.Error())
		}
	}()

	classifier, err := cli.NewClassifier(cfg)
	if err != nil {
		logger.Error("Failed to initialize classifier", log.FieldError, err.Error())
		os.Exit(1)
	}
	if classifier == nil {
		logger.Info("Classifier disabled - no CLASSIFIER_URL provided")
	}

	svc, err := cli.NewServices(store, cfg, classifier)
	if err != nil {
		logger.Error("Failed to initialize services", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer svc.Close()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Jars:           svc.Jars,
		Transactions:   svc.Transactions,
		Incomes:        svc.Incomes,
		Stats:          svc.Stats,
		Budgets:        svc.Budgets,
		Goals:          svc.Goals,
		Classification: svc.Classification,
		Store:          store,
	}, apphttp.Options{
		Auth: apphttp.AuthConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
			Leeway: 30 * time.Second,
		},
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Location:           cfg.Location(),
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.LogError(ctx, "Server shutdown error", err, log.OpShutdown, nil)
		}
	})

	logger.Info("Starting sixjars server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", "requests", srv.Metrics().TotalRequests)
}
