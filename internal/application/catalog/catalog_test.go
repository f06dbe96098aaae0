package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-lotes/internal/application/catalog"
	"github.com/jhoicas/pos-lotes/internal/application/dto"
	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/cache"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/memory"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type fixture struct {
	store     *memory.Store
	engine    *inventory.Engine
	products  *catalog.ProductUseCase
	customers *catalog.CustomerUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	c := cache.NewMemory(time.Minute)
	validator := schema.New()
	eng := inventory.NewEngine(inventory.Deps{Tx: store, Store: store.Repositories(), Schema: validator, Cache: c})
	repos := store.Repositories()
	return &fixture{
		store:     store,
		engine:    eng,
		products:  catalog.NewProductUseCase(repos.Products, eng, validator, c, nil),
		customers: catalog.NewCustomerUseCase(repos.Customers, c),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Productos
// ──────────────────────────────────────────────────────────────────────────────

func TestProduct_CrearPorLotesArrancaEnCero(t *testing.T) {
	f := newFixture(t)
	p, err := f.products.Create(context.Background(), dto.CreateProductRequest{
		SKU: "770", Name: "Leche", Price: d("4"), Stock: d("99"), TracksStock: true, BatchManagement: true,
	})
	require.NoError(t, err)
	assert.True(t, p.Stock.IsZero())
	assert.Equal(t, "lotes", p.InventoryMode)

	_, err = f.products.Create(context.Background(), dto.CreateProductRequest{SKU: "770", Name: "Otra"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestProduct_CacheSeInvalidaConElInventario(t *testing.T) {
	f := newFixture(t)
	p, err := f.products.Create(context.Background(), dto.CreateProductRequest{Name: "Leche", TracksStock: true, BatchManagement: true})
	require.NoError(t, err)

	first, err := f.products.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, first.Stock.IsZero())

	_, err = f.engine.Ledger.Receive(context.Background(), inventory.ReceiveInput{ProductID: p.ID, Quantity: d("12"), Cost: d("3")})
	require.NoError(t, err)

	second, err := f.products.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, second.Stock.Equal(d("12")))
	assert.True(t, second.Cost.Equal(d("3")))

	list, err := f.products.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 20, list.Page.Limit)
}

func TestProduct_RecetaValidaIngredientes(t *testing.T) {
	f := newFixture(t)
	pan, err := f.products.Create(context.Background(), dto.CreateProductRequest{Name: "Pan", TracksStock: true, Stock: d("10")})
	require.NoError(t, err)

	combo, err := f.products.Create(context.Background(), dto.CreateProductRequest{
		Name: "Combo", Recipe: []dto.RecipeItemDTO{{IngredientID: pan.ID, Quantity: d("2")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "receta", combo.InventoryMode)

	_, err = f.products.Create(context.Background(), dto.CreateProductRequest{
		Name: "Mega", Recipe: []dto.RecipeItemDTO{{IngredientID: combo.ID, Quantity: d("1")}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.products.Create(context.Background(), dto.CreateProductRequest{
		Name: "Fantasma", Recipe: []dto.RecipeItemDTO{{IngredientID: "NOPE", Quantity: d("1")}},
	})
	assert.ErrorIs(t, err, domain.ErrReferentialIntegrity)

	_, err = f.products.Create(context.Background(), dto.CreateProductRequest{
		Name: "Cero", Recipe: []dto.RecipeItemDTO{{IngredientID: pan.ID, Quantity: d("0")}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProduct_ActivarLotesResincroniza(t *testing.T) {
	f := newFixture(t)
	p, err := f.products.Create(context.Background(), dto.CreateProductRequest{Name: "Jabón", TracksStock: true, Stock: d("5")})
	require.NoError(t, err)
	assert.True(t, p.Stock.Equal(d("5")))

	on := true
	name := "Jabón azul"
	up, err := f.products.Update(context.Background(), p.ID, dto.UpdateProductRequest{Name: &name, BatchManagement: &on})
	require.NoError(t, err)
	assert.Equal(t, "Jabón azul", up.Name)
	assert.True(t, up.Stock.IsZero(), "sin lotes el stock sincronizado es cero")

	_, err = f.products.Update(context.Background(), "NOPE", dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProduct_NoEncontrado(t *testing.T) {
	f := newFixture(t)
	_, err := f.products.GetByID(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.products.Sync(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Clientes
// ──────────────────────────────────────────────────────────────────────────────

func TestCustomer_CrearYListar(t *testing.T) {
	f := newFixture(t)
	_, err := f.customers.Create(context.Background(), dto.CreateCustomerRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	c, err := f.customers.Create(context.Background(), dto.CreateCustomerRequest{Name: "Ana", TaxID: "123"})
	require.NoError(t, err)
	assert.True(t, c.Debt.IsZero())

	got, err := f.customers.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)

	list, err := f.customers.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.customers.GetByID(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
