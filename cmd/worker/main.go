package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/pos-lotes/internal/app"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/jobs"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/metrics"
	"github.com/jhoicas/pos-lotes/pkg/config"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "worker"})

	if cfg.Cache.RedisAddr == "" {
		log.Fatal().Msg("REDIS_ADDR es obligatorio para el worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacén")
	}
	defer closeStore()

	publisher, closePublisher, err := app.NewPublisher(cfg.Kafka, log)
	if err != nil {
		log.Fatal().Err(err).Msg("publicador de eventos")
	}
	defer closePublisher()

	m := metrics.New(nil)
	engine := app.NewEngine(store, nil, m, cfg.Inventory, log)
	expiryJob := jobs.NewLotExpiryJob(engine.Ledger, publisher, m, log, cfg.Inventory.ExpiryWarningDays)

	expiryTask, err := jobs.NewLotExpiryScanTask(time.Now().UTC(), cfg.Inventory.ExpiryWarningDays)
	if err != nil {
		log.Fatal().Err(err).Msg("construir tarea de vencimientos")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.Cache.RedisAddr},
		Concurrency: cfg.Worker.Concurrency,
		Log:         log,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLotExpiryScan, Handler: expiryJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.Worker.ExpiryScanCron, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("iniciar worker")
	}

	log.Info().Str("cron", cfg.Worker.ExpiryScanCron).Msg("worker iniciado")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker finalizado")
	}
	log.Info().Msg("worker detenido")
}
