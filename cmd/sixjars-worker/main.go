package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"sixjars/internal/adapters"
	"sixjars/internal/amqp"
	"sixjars/internal/cli"
	"sixjars/internal/log"
	"sixjars/internal/services"
	"sixjars/internal/sheets"
	gsheet "sixjars/internal/sheets/google"
	memsheet "sixjars/internal/sheets/memory"
	"sixjars/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting sixjars-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

	store, closeStore := cli.OpenStore(context.Background(), logger, cfg)
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close ledger store", log.FieldError, err.Error())
		}
	}()

	// The Sheets mirror is optional; without it events are kept in memory
	// for the lifetime of the process.
	var (
		mirror      sheets.LedgerMirror
		sheetClient *gsheet.Client
	)
	if cfg.MirrorEnabled() {
		c, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleLedgerSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Location:        loc,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		sheetClient = c
		mirror = c
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		mirror = memsheet.New(loc)
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	// With a broker the outbox publishes to AMQP and a consumer feeds the
	// mirror; without one the outbox writes to the mirror directly.
	var (
		publisher  services.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer c.Close()
		amqpClient = c
		publisher = c
	} else {
		publisher = adapters.NewMirrorPublisher(mirror)
		logger.Info("AMQP disabled - publishing outbox events straight to the mirror")
	}

	processor := services.NewEventProcessor(store, publisher, services.EventProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	})

	svc, err := cli.NewServices(store, cfg, nil)
	if err != nil {
		logger.Error("Failed to initialize services", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer svc.Close()

	schedLog := logger.WithComponent(log.ComponentScheduler)
	scheduler := cron.New(cron.WithLocation(loc))
	if cfg.PeriodResetSchedule != "" {
		roller, err := services.NewPeriodRoller(svc.Env, svc.Jars, services.Cadence(cfg.PeriodResetCadence))
		if err != nil {
			logger.Error("Invalid period reset cadence", log.FieldError, err.Error())
			os.Exit(1)
		}
		if _, err := scheduler.AddFunc(cfg.PeriodResetSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			n, err := roller.RollAll(ctx)
			if err != nil {
				schedLog.LogError(ctx, "Period rollover finished with errors", err, log.OpReset, nil)
			}
			schedLog.Info("Scheduled period rollover done", "rolled", n)
		}); err != nil {
			logger.Error("Invalid PERIOD_RESET_SCHEDULE", log.FieldError, err.Error())
			os.Exit(1)
		}
		schedLog.Info("Period rollover scheduled",
			"schedule", cfg.PeriodResetSchedule,
			"cadence", cfg.PeriodResetCadence)
	}
	if sheetClient != nil {
		// Pick up rows written by other workers once a day.
		if _, err := scheduler.AddFunc("@daily", sheetClient.InvalidateCache); err != nil {
			schedLog.Error("Failed to schedule mirror cache refresh", log.FieldError, err.Error())
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Event processor stop failed", log.FieldError, err.Error())
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start event processor", log.FieldError, err.Error())
		os.Exit(1)
	}
	scheduler.Start()

	if amqpClient != nil {
		mw := worker.NewMirrorWorker(mirror)
		go func() {
			if err := mw.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err.Error())
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
