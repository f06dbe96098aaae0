package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/postgres"
	"github.com/jhoicas/pos-lotes/pkg/config"
)

// Requiere TEST_DATABASE_URL apuntando a una base desechable; sin ella se omite.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := postgres.NewStore(pool)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "el esquema debe poder aplicarse dos veces")
	return store
}

func newLotProduct(t *testing.T, repos repository.Repos) *entity.Product {
	t.Helper()
	id := uuid.NewString()
	p := &entity.Product{
		ID: id, SKU: "SKU-" + id, Name: "Leche", TracksStock: true,
		BatchManagement: entity.BatchManagement{Enabled: true},
		CreatedAt:       time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repos.Products.Create(context.Background(), p))
	return p
}

func newBatch(productID string, stock int64, createdAt time.Time) *entity.Batch {
	b := &entity.Batch{
		ID: uuid.NewString(), ProductID: productID,
		Cost: decimal.NewFromInt(10), Price: decimal.NewFromInt(15),
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	b.SetStock(decimal.NewFromInt(stock), entity.DefaultTolerance)
	return b
}

func TestStore_LotesEnOrdenFIFO(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	repos := store.Repositories()
	p := newLotProduct(t, repos)

	base := time.Now().UTC().Truncate(time.Second)
	newer := newBatch(p.ID, 2, base.Add(time.Hour))
	older := newBatch(p.ID, 3, base)
	require.NoError(t, repos.Batches.Upsert(ctx, newer))
	require.NoError(t, repos.Batches.Upsert(ctx, older))

	list, err := repos.Batches.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].ID)
	assert.True(t, list[0].Stock.Equal(decimal.NewFromInt(3)))
}

func TestStore_RollbackDescartaEscrituras(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	p := newLotProduct(t, store.Repositories())
	b := newBatch(p.ID, 5, time.Now().UTC())

	boom := errors.New("boom")
	err := store.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		require.NoError(t, repos.Batches.Upsert(ctx, b))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Repositories().Batches.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_LoteConProductoInexistente(t *testing.T) {
	store := openStore(t)
	b := newBatch(uuid.NewString(), 1, time.Now().UTC())

	err := store.Repositories().Batches.Upsert(context.Background(), b)
	assert.ErrorIs(t, err, domain.ErrReferentialIntegrity)
}

func TestStore_SincronizaProductoDesdeLotes(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	repos := store.Repositories()
	p := newLotProduct(t, repos)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repos.Batches.Upsert(ctx, newBatch(p.ID, 3, base)))
	require.NoError(t, repos.Batches.Upsert(ctx, newBatch(p.ID, 2, base.Add(time.Minute))))

	eng := inventory.NewEngine(inventory.Deps{Tx: store, Store: repos, Schema: schema.New()})
	synced, err := eng.Sync.SyncProductFromLots(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, synced)
	assert.True(t, synced.Stock.Equal(decimal.NewFromInt(5)))

	stored, err := repos.Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Stock.Equal(decimal.NewFromInt(5)))
}

func TestStore_AjustesConcurrentesNoPierdenEscrituras(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	repos := store.Repositories()
	id := uuid.NewString()
	now := time.Now().UTC()
	require.NoError(t, repos.Products.Create(ctx, &entity.Product{
		ID: id, SKU: "SKU-" + id, Name: "Hielo", TracksStock: true,
		Stock: decimal.NewFromInt(50), CreatedAt: now, UpdatedAt: now,
	}))
	eng := inventory.NewEngine(inventory.Deps{Tx: store, Store: repos, Schema: schema.New()})

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Deductions.AdjustProductStock(ctx, id, decimal.NewFromInt(-1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repos.Products.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Stock.Equal(decimal.NewFromInt(30)), "stock final %s", stored.Stock)
}
