package main

import (
	"os"

	"estatecrm/internal/cli"
	"estatecrm/internal/log"
	"estatecrm/internal/services"
	"estatecrm/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting crm-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.NotifyContext(logger)
	defer stop()

	rt, err := cli.NewRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize runtime", log.FieldError, err)
		os.Exit(1)
	}
	defer rt.Close()

	ledger, err := cli.NewLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger export", log.FieldError, err)
		os.Exit(1)
	}

	store := rt.Store.Store
	processor := services.NewServicingProcessor(store, rt.Loans, rt.Metrics, logger)
	scheduler, err := worker.NewScheduler(cfg.ServicingSchedule, processor, logger)
	if err != nil {
		logger.Error("Invalid servicing schedule", log.FieldError, err)
		os.Exit(1)
	}

	// Catch up on loans that matured while the worker was down.
	if res, err := scheduler.RunOnce(ctx); err != nil {
		logger.Warn("Startup servicing sweep failed", log.FieldError, err)
	} else {
		logger.Info("Startup servicing sweep completed",
			"checked", res.Checked,
			"paid_off", res.PaidOff,
			"failed", res.Failed)
	}

	var consumer worker.Consumer
	if rt.Events != nil {
		consumer = rt.Events
	} else {
		logger.Info("Events disabled - running the servicing schedule only")
	}
	events := worker.NewEventWorker(store, rt.Loans, ledger, logger)

	logger.Info("Worker started", "servicing_schedule", cfg.ServicingSchedule)
	if err := worker.Run(ctx, consumer, events, scheduler); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		rt.Close()
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
