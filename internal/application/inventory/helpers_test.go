package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newEngine(t *testing.T, tx inventory.TxRunner, store *memory.Store) *inventory.Engine {
	t.Helper()
	return inventory.NewEngine(inventory.Deps{
		Tx:     tx,
		Store:  store.Repositories(),
		Schema: schema.New(),
		Now:    func() time.Time { return t0.Add(24 * time.Hour) },
	})
}

func seedProduct(t *testing.T, store *memory.Store, p *entity.Product) {
	t.Helper()
	p.CreatedAt, p.UpdatedAt = t0, t0
	require.NoError(t, store.Repositories().Products.Create(context.Background(), p))
}

func seedBatch(t *testing.T, store *memory.Store, id, productID, stock, cost string, created time.Time) {
	t.Helper()
	b := &entity.Batch{
		ID: id, ProductID: productID,
		Cost: d(cost), Price: d(cost).Mul(d("1.5")),
		CreatedAt: created, UpdatedAt: created,
	}
	b.SetStock(d(stock), entity.DefaultTolerance)
	require.NoError(t, store.Repositories().Batches.Upsert(context.Background(), b))
}

func lotProduct(id string) *entity.Product {
	return &entity.Product{ID: id, Name: "Producto " + id, TracksStock: true, BatchManagement: entity.BatchManagement{Enabled: true}}
}

func directProduct(id, stock string) *entity.Product {
	return &entity.Product{ID: id, Name: "Producto " + id, TracksStock: true, Stock: d(stock), Cost: d("2"), Price: d("3")}
}

func getBatch(t *testing.T, store *memory.Store, id string) *entity.Batch {
	t.Helper()
	b, err := store.Repositories().Batches.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func getProduct(t *testing.T, store *memory.Store, id string) *entity.Product {
	t.Helper()
	p, err := store.Repositories().Products.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// assertLedgerInvariant stock del producto == suma de sus lotes activos y nada negativo.
func assertLedgerInvariant(t *testing.T, store *memory.Store, productID string) {
	t.Helper()
	batches, err := store.Repositories().Batches.ListByProduct(context.Background(), productID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, b := range batches {
		require.False(t, b.Stock.IsNegative(), "lote %s negativo", b.ID)
		require.Equal(t, b.Stock.GreaterThan(entity.DefaultTolerance), b.IsActive, "lote %s: IsActive desalineado", b.ID)
		if b.IsActive {
			sum = sum.Add(b.Stock)
		}
	}
	p := getProduct(t, store, productID)
	require.Truef(t, p.Stock.Equal(sum), "producto %s: stock %s, suma de lotes %s", productID, p.Stock, sum)
}

// racingRunner simula un escritor concurrente que confirma justo antes de la relectura autoritativa.
type racingRunner struct {
	store  *memory.Store
	target string
	newQty decimal.Decimal
}

func (r *racingRunner) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	return r.store.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		repos.Batches = &racingBatches{BatchRepository: repos.Batches, target: r.target, newQty: r.newQty}
		return fn(ctx, repos)
	})
}

type racingBatches struct {
	repository.BatchRepository
	target string
	newQty decimal.Decimal
	fired  bool
}

func (b *racingBatches) GetForUpdate(ctx context.Context, id string) (*entity.Batch, error) {
	if id == b.target && !b.fired {
		b.fired = true
		other, err := b.BatchRepository.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		other.SetStock(b.newQty, entity.DefaultTolerance)
		if err := b.BatchRepository.Upsert(ctx, other); err != nil {
			return nil, err
		}
	}
	return b.BatchRepository.GetForUpdate(ctx, id)
}

// traceRunner registra en orden los bloqueos de producto y los listados de lotes.
type traceRunner struct {
	store *memory.Store
	calls []string
}

func (r *traceRunner) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	return r.store.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		repos.Products = &tracedProducts{ProductRepository: repos.Products, calls: &r.calls}
		repos.Batches = &tracedBatches{BatchRepository: repos.Batches, calls: &r.calls}
		return fn(ctx, repos)
	})
}

type tracedProducts struct {
	repository.ProductRepository
	calls *[]string
}

func (p *tracedProducts) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	*p.calls = append(*p.calls, "lock:"+id)
	return p.ProductRepository.GetForUpdate(ctx, id)
}

type tracedBatches struct {
	repository.BatchRepository
	calls *[]string
}

func (b *tracedBatches) ListByProduct(ctx context.Context, productID string) ([]*entity.Batch, error) {
	*b.calls = append(*b.calls, "list:"+productID)
	return b.BatchRepository.ListByProduct(ctx, productID)
}
