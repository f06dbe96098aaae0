package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/pos-lotes/internal/app"
	"github.com/jhoicas/pos-lotes/internal/application/auth"
	"github.com/jhoicas/pos-lotes/internal/application/catalog"
	"github.com/jhoicas/pos-lotes/internal/application/layaway"
	"github.com/jhoicas/pos-lotes/internal/application/sales"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/jobs"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/pos-lotes/internal/infrastructure/pdf"
	httpRouter "github.com/jhoicas/pos-lotes/internal/interfaces/http"
	"github.com/jhoicas/pos-lotes/pkg/config"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: "api",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.DB.Driver).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx := context.Background()
	store, closeStore, err := app.OpenStore(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacén")
	}
	defer closeStore()

	cache, closeCache := app.NewCache(ctx, cfg.Cache, log)
	defer closeCache()

	publisher, closePublisher, err := app.NewPublisher(cfg.Kafka, log)
	if err != nil {
		log.Fatal().Err(err).Msg("publicador de eventos")
	}
	defer closePublisher()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	engine := app.NewEngine(store, cache, m, cfg.Inventory, log)
	saleCoordinator := sales.NewSaleCoordinator(sales.Deps{
		Tx:       store,
		Store:    store.Repositories(),
		Engine:   engine,
		Cache:    cache,
		Events:   publisher,
		Metrics:  m,
		Receipts: infrapdf.NewReceiptRenderer(infrapdf.Header{Name: cfg.App.Name}),
		Log:      log,
	})
	reservationManager := layaway.NewReservationManager(layaway.Deps{
		Tx:     store,
		Store:  store.Repositories(),
		Engine: engine,
		Sales:  saleCoordinator,
		Cache:  cache,
		Events: publisher,
		Log:    log,
	})
	productUC := catalog.NewProductUseCase(store.Repositories().Products, engine, schema.New(), cache, log)
	customerUC := catalog.NewCustomerUseCase(store.Repositories().Customers, cache)
	authUC := auth.NewAuthUseCase(store.Users(), auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	if created, err := authUC.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Fatal().Err(err).Msg("crear administrador inicial")
	} else if created {
		log.Info().Str("email", cfg.Admin.Email).Msg("administrador inicial creado")
	}

	// Sin Redis no hay cola: el escaneo manual responde 503 y solo corre el cron del worker
	var expiryScans httpRouter.ExpiryScanEnqueuer
	if cfg.Cache.RedisAddr != "" {
		jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.Cache.RedisAddr})
		defer func() {
			if err := jobsClient.Close(); err != nil {
				log.Warn().Err(err).Msg("cerrar cliente de jobs")
			}
		}()
		expiryScans = jobsClient
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	fiberApp.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs (solo si existe el archivo generado)
	if _, err := os.Stat(swaggerFile); err == nil {
		fiberApp.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "POS Lotes API",
		}))
	}

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	httpRouter.Router(fiberApp, httpRouter.RouterDeps{
		AuthUC:       authUC,
		ProductUC:    productUC,
		CustomerUC:   customerUC,
		Engine:       engine,
		Sales:        saleCoordinator,
		Reservations: reservationManager,
		ExpiryScans:  expiryScans,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := fiberApp.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
