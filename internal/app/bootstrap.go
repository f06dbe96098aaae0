// Package app arma la infraestructura compartida por la API y el worker.
package app

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-lotes/internal/application/catalog"
	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain/event"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/cache"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/events"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/memory"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/metrics"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/postgres"
	"github.com/jhoicas/pos-lotes/pkg/config"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// Store almacén transaccional con repositorios fuera de transacción.
type Store interface {
	inventory.TxRunner
	Repositories() repository.Repos
	Users() repository.UserRepository
}

// Closer libera un recurso al apagar.
type Closer func()

// OpenStore abre el almacén según STORE_DRIVER. En postgres aplica el esquema.
func OpenStore(ctx context.Context, cfg config.DBConfig, log *logger.Logger) (Store, Closer, error) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("almacén en memoria: los datos se pierden al reiniciar")
		return memory.NewStore(), func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	store := postgres.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

// NewCache caché Redis si hay REDIS_ADDR; si no, o si Redis no responde, caché en memoria.
func NewCache(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) (catalog.Cache, Closer) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.TTL), func() {}
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis no disponible, caché en memoria")
		return cache.NewMemory(cfg.TTL), func() {}
	}
	return cache.NewRedis(client, cfg.TTL, "pos"), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("cerrar redis")
		}
	}
}

// NewPublisher publicador Kafka si hay brokers; si no, los eventos van al log.
func NewPublisher(cfg config.KafkaConfig, log *logger.Logger) (event.Publisher, Closer, error) {
	if len(cfg.Brokers) == 0 {
		return events.NewLogPublisher(log), func() {}, nil
	}
	pub, err := events.NewKafkaPublisher(cfg.Brokers, events.Topics{
		Payments:  cfg.TopicPayments,
		Sales:     cfg.TopicSales,
		Inventory: cfg.TopicInventory,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka: %w", err)
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("cerrar productor kafka")
		}
	}, nil
}

// NewEngine motor de inventario con la tolerancia configurada.
func NewEngine(store Store, c inventory.CacheInvalidator, m *metrics.Metrics, cfg config.InventoryConfig, log *logger.Logger) *inventory.Engine {
	return inventory.NewEngine(inventory.Deps{
		Tx:        store,
		Store:     store.Repositories(),
		Schema:    schema.New(),
		Cache:     c,
		Metrics:   m,
		Log:       log,
		Tolerance: cfg.Tolerance,
	})
}
