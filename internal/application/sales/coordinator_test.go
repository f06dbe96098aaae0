package sales_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/application/sales"
	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/event"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

type fixture struct {
	store  *memory.Store
	engine *inventory.Engine
	coord  *sales.SaleCoordinator
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	now := func() time.Time { return t0.Add(48 * time.Hour) }
	eng := inventory.NewEngine(inventory.Deps{Tx: store, Store: store.Repositories(), Schema: schema.New(), Now: now})
	pub := &recordingPublisher{}
	coord := sales.NewSaleCoordinator(sales.Deps{
		Tx: store, Store: store.Repositories(), Engine: eng, Events: pub, Now: now,
	})
	return &fixture{store: store, engine: eng, coord: coord, events: pub}
}

func (f *fixture) product(t *testing.T, p *entity.Product) {
	t.Helper()
	if p.Name == "" {
		p.Name = "Producto " + p.ID
	}
	require.NoError(t, f.store.Repositories().Products.Create(context.Background(), p))
}

func (f *fixture) batch(t *testing.T, id, productID, stock, cost string, created time.Time) {
	t.Helper()
	b := &entity.Batch{ID: id, ProductID: productID, Cost: d(cost), Price: d(cost).Mul(d("2")), CreatedAt: created, UpdatedAt: created}
	b.SetStock(d(stock), entity.DefaultTolerance)
	require.NoError(t, f.store.Repositories().Batches.Upsert(context.Background(), b))
	_, err := f.engine.Sync.SyncProductFromLots(context.Background(), productID)
	require.NoError(t, err)
}

func (f *fixture) customer(t *testing.T, id, debt string) {
	t.Helper()
	require.NoError(t, f.store.Repositories().Customers.Create(context.Background(), &entity.Customer{ID: id, Name: "Cliente " + id, Debt: d(debt)}))
}

func (f *fixture) stockOf(t *testing.T, batchID string) decimal.Decimal {
	t.Helper()
	b, err := f.store.Repositories().Batches.GetByID(context.Background(), batchID)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b.Stock
}

func (f *fixture) getProduct(t *testing.T, id string) *entity.Product {
	t.Helper()
	p, err := f.store.Repositories().Products.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) debtOf(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	c, err := f.store.Repositories().Customers.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c.Debt
}

func (f *fixture) logCount(t *testing.T, ref string) int {
	t.Helper()
	entries, err := f.store.Repositories().TransactionLog.ListByReference(context.Background(), ref)
	require.NoError(t, err)
	return len(entries)
}

// ledgerInvariant stock del producto == suma de sus lotes activos y ningún lote negativo.
func (f *fixture) ledgerInvariant(t *testing.T, productID string) {
	t.Helper()
	batches, err := f.store.Repositories().Batches.ListByProduct(context.Background(), productID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, b := range batches {
		require.False(t, b.Stock.IsNegative(), "lote %s negativo", b.ID)
		if b.IsActive {
			sum = sum.Add(b.Stock)
		}
	}
	p := f.getProduct(t, productID)
	require.Truef(t, p.Stock.Equal(sum), "producto %s: stock %s, suma de lotes %s", productID, p.Stock, sum)
}

// roundTrip borra la venta y la restaura, comprobando que el borrado deja todo como estaba.
func (f *fixture) roundTrip(t *testing.T, saleID string, before map[string]decimal.Decimal, products ...string) {
	t.Helper()
	_, err := f.coord.DeleteSale(context.Background(), saleID, "")
	require.NoError(t, err)
	for id, want := range before {
		assert.Truef(t, f.stockOf(t, id).Equal(want), "lote %s: %s tras borrar, esperado %s", id, f.stockOf(t, id), want)
	}
	for _, id := range products {
		f.ledgerInvariant(t, id)
	}
	_, err = f.coord.RestoreSale(context.Background(), saleID)
	require.NoError(t, err)
	for _, id := range products {
		f.ledgerInvariant(t, id)
	}
}

// assertLots compara lo registrado con pares lote, cantidad.
func assertLots(t *testing.T, got []entity.LotUsage, pairs ...string) {
	t.Helper()
	require.Len(t, got, len(pairs)/2)
	for i := range got {
		assert.Equal(t, pairs[2*i], got[i].BatchID)
		assert.Truef(t, got[i].Quantity.Equal(d(pairs[2*i+1])), "lote %s: %s", got[i].BatchID, got[i].Quantity)
	}
}

func lotProduct(id string) *entity.Product {
	return &entity.Product{ID: id, TracksStock: true, BatchManagement: entity.BatchManagement{Enabled: true}}
}

// productX escenario base: OLD(10 @50, día 1) y NEW(10 @200, día 2).
func productX(t *testing.T, f *fixture) {
	f.product(t, lotProduct("X"))
	f.batch(t, "OLD", "X", "10", "50", t0)
	f.batch(t, "NEW", "X", "10", "200", t0.Add(24*time.Hour))
}

// ──────────────────────────────────────────────────────────────────────────────
// ExecuteSale
// ──────────────────────────────────────────────────────────────────────────────

// Escenario 1.
func TestExecuteSale_DescuentaDelLoteIndicado(t *testing.T) {
	f := newFixture(t)
	productX(t, f)

	sale, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID:    "V-1",
		Items: []entity.SaleItem{{ProductID: "X", Quantity: d("5"), UnitPrice: d("100")}},
	}, []inventory.Deduction{{BatchID: "OLD", Quantity: d("5")}})
	require.NoError(t, err)

	assert.True(t, sale.Total.Equal(d("500")))
	assert.Equal(t, entity.PaymentCash, sale.PaymentMethod)
	assert.True(t, f.stockOf(t, "OLD").Equal(d("5")))
	x := f.getProduct(t, "X")
	assert.True(t, x.Stock.Equal(d("15")))
	assert.True(t, x.Cost.Equal(d("50")))
	assert.Equal(t, 1, f.logCount(t, "V-1"))

	require.Len(t, f.events.events, 1)
	assert.Equal(t, event.NameSaleCommitted, f.events.events[0].Name())
}

func TestExecuteSale_LotesDeLaLineaSinDeduccionesExplicitas(t *testing.T) {
	f := newFixture(t)
	productX(t, f)

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1",
		Items: []entity.SaleItem{{
			ProductID: "X", Quantity: d("2"), UnitPrice: d("100"),
			Lots: []entity.LotUsage{{BatchID: "NEW", Quantity: d("2")}},
		}},
	}, nil)
	require.NoError(t, err)
	assert.True(t, f.stockOf(t, "NEW").Equal(d("8")))
	assert.True(t, f.stockOf(t, "OLD").Equal(d("10")))
}

// Escenarios 2 y 3: merma y luego una deducción imposible.
func TestExecuteSale_MermaYDeduccionImposible(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", Items: []entity.SaleItem{{ProductID: "X", Quantity: d("5"), UnitPrice: d("100")}},
	}, []inventory.Deduction{{BatchID: "OLD", Quantity: d("5")}})
	require.NoError(t, err)

	_, err = f.engine.Deductions.ProcessDeductions(context.Background(), []inventory.Deduction{
		{BatchID: "OLD", Quantity: d("2"), Reason: inventory.ReasonWaste},
	}, inventory.Options{})
	require.NoError(t, err)
	assert.True(t, f.stockOf(t, "OLD").Equal(d("3")))
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("13")))

	_, err = f.engine.Deductions.ProcessDeductions(context.Background(), []inventory.Deduction{
		{BatchID: "OLD", Quantity: d("100")},
	}, inventory.Options{})
	require.Error(t, err)
	assert.True(t, domain.IsStockError(err))
	assert.True(t, f.stockOf(t, "OLD").Equal(d("3")))
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("13")))
}

func TestExecuteSale_Idempotente(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	sale := func() *entity.Sale {
		return &entity.Sale{ID: "V-1", Items: []entity.SaleItem{{ProductID: "X", Quantity: d("1"), UnitPrice: d("100")}}}
	}

	_, err := f.coord.ExecuteSale(context.Background(), sale(), nil)
	require.NoError(t, err)
	_, err = f.coord.ExecuteSale(context.Background(), sale(), nil)

	var dup *domain.DuplicateOperationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "V-1", dup.ID)
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("19")), "el segundo intento no descuenta")
	assert.Equal(t, 1, f.logCount(t, "V-1"))
}

func TestExecuteSale_FaltanteRevierteTodo(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.product(t, &entity.Product{ID: "D", TracksStock: true, Stock: d("4")})

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1",
		Items: []entity.SaleItem{
			{ProductID: "D", Quantity: d("1"), UnitPrice: d("5")},
			{ProductID: "X", Quantity: d("50"), UnitPrice: d("100")},
		},
	}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsStockError(err))

	assert.True(t, f.getProduct(t, "D").Stock.Equal(d("4")))
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("20")))
	_, err = f.coord.GetSale(context.Background(), "V-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.logCount(t, "V-1"))
	assert.Empty(t, f.events.events)
}

// Escenario 5.
func TestExecuteSale_IngredienteBorradoEsIntegridadReferencial(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.product(t, &entity.Product{ID: "COMBO", Recipe: []entity.RecipeItem{
		{IngredientID: "X", Quantity: d("1")},
		{IngredientID: "BORRADO", Quantity: d("1")},
	}})

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", Items: []entity.SaleItem{{ProductID: "COMBO", Quantity: d("1"), UnitPrice: d("10")}},
	}, nil)
	var rie *domain.ReferentialIntegrityError
	require.ErrorAs(t, err, &rie)
	assert.Equal(t, "BORRADO", rie.ID)
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("20")))
	_, err = f.coord.GetSale(context.Background(), "V-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecuteSale_FiadoSumaDeuda(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.customer(t, "C", "10")

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", PaymentMethod: entity.PaymentCredit, CustomerID: "C", Balance: d("150"),
		Items: []entity.SaleItem{{ProductID: "X", Quantity: d("2"), UnitPrice: d("100")}},
	}, nil)
	require.NoError(t, err)
	assert.True(t, f.debtOf(t, "C").Equal(d("160")))
}

func TestExecuteSale_FiadoClienteInexistente(t *testing.T) {
	f := newFixture(t)
	productX(t, f)

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", PaymentMethod: entity.PaymentCredit, CustomerID: "NADIE", Balance: d("100"),
		Items: []entity.SaleItem{{ProductID: "X", Quantity: d("1"), UnitPrice: d("100")}},
	}, nil)
	assert.ErrorIs(t, err, domain.ErrReferentialIntegrity)
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("20")))
}

func TestExecuteSale_StockLiquidadoNoDescuenta(t *testing.T) {
	f := newFixture(t)
	productX(t, f)

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", StockSettled: true,
		Items: []entity.SaleItem{{ProductID: "X", Quantity: d("3"), UnitPrice: d("100")}},
	}, nil)
	require.NoError(t, err)
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("20")))
}

func TestExecuteSale_ValidaCabecera(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		sale *entity.Sale
	}{
		{"sin líneas", &entity.Sale{ID: "A"}},
		{"medio desconocido", &entity.Sale{ID: "A", PaymentMethod: "trueque", Items: []entity.SaleItem{{ProductID: "X", Quantity: d("1")}}}},
		{"saldo mayor al total", &entity.Sale{ID: "A", Total: d("5"), Balance: d("6"), Items: []entity.SaleItem{{ProductID: "X", Quantity: d("1")}}}},
		{"fiado sin cliente", &entity.Sale{ID: "A", PaymentMethod: entity.PaymentCredit, Total: d("5"), Balance: d("5"), Items: []entity.SaleItem{{ProductID: "X", Quantity: d("1")}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.coord.ExecuteSale(context.Background(), tc.sale, nil)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Papelera
// ──────────────────────────────────────────────────────────────────────────────

func TestDeleteSale_DevuelveStockYDeuda(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.product(t, &entity.Product{ID: "D", TracksStock: true, Stock: d("4")})
	f.customer(t, "C", "0")

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", PaymentMethod: entity.PaymentCredit, CustomerID: "C", Balance: d("100"),
		Items: []entity.SaleItem{
			{ProductID: "X", Quantity: d("12"), UnitPrice: d("10")},
			{ProductID: "D", Quantity: d("1"), UnitPrice: d("5")},
		},
	}, nil)
	require.NoError(t, err)
	assert.True(t, f.stockOf(t, "OLD").IsZero())
	assert.True(t, f.stockOf(t, "NEW").Equal(d("8")))

	trashed, err := f.coord.DeleteSale(context.Background(), "V-1", "error de digitación")
	require.NoError(t, err)
	assert.Equal(t, "error de digitación", trashed.Reason)

	assert.True(t, f.stockOf(t, "OLD").Equal(d("10")))
	assert.True(t, f.stockOf(t, "NEW").Equal(d("10")))
	x := f.getProduct(t, "X")
	assert.True(t, x.Stock.Equal(d("20")))
	assert.True(t, x.Cost.Equal(d("50")))
	assert.True(t, f.getProduct(t, "D").Stock.Equal(d("4")))
	assert.True(t, f.debtOf(t, "C").IsZero())

	_, err = f.coord.GetSale(context.Background(), "V-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// el ID sigue reservado mientras esté en la papelera
	_, err = f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", Items: []entity.SaleItem{{ProductID: "D", Quantity: d("1")}},
	}, nil)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestRestoreSale_VuelveADescontar(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.customer(t, "C", "0")

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", PaymentMethod: entity.PaymentCredit, CustomerID: "C", Balance: d("30"),
		Items: []entity.SaleItem{{ProductID: "X", Quantity: d("3"), UnitPrice: d("10")}},
	}, nil)
	require.NoError(t, err)
	_, err = f.coord.DeleteSale(context.Background(), "V-1", "")
	require.NoError(t, err)

	restored, err := f.coord.RestoreSale(context.Background(), "V-1")
	require.NoError(t, err)
	assert.Equal(t, "V-1", restored.ID)
	assert.True(t, f.stockOf(t, "OLD").Equal(d("7")))
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("17")))
	assert.True(t, f.debtOf(t, "C").Equal(d("30")))
	assert.Equal(t, 3, f.logCount(t, "V-1"))

	_, err = f.coord.GetSale(context.Background(), "V-1")
	require.NoError(t, err)
}

func TestRestoreSale_SinStockFalla(t *testing.T) {
	f := newFixture(t)
	productX(t, f)

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", Items: []entity.SaleItem{{ProductID: "X", Quantity: d("10"), UnitPrice: d("10")}},
	}, nil)
	require.NoError(t, err)
	_, err = f.coord.DeleteSale(context.Background(), "V-1", "")
	require.NoError(t, err)

	// otro cliente se lleva el lote antiguo
	_, err = f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-2", Items: []entity.SaleItem{{ProductID: "X", Quantity: d("8"), UnitPrice: d("10")}},
	}, []inventory.Deduction{{BatchID: "OLD", Quantity: d("8")}})
	require.NoError(t, err)

	_, err = f.coord.RestoreSale(context.Background(), "V-1")
	assert.True(t, domain.IsStockError(err))
	assert.True(t, f.stockOf(t, "OLD").Equal(d("2")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Registro de lo consumido
// ──────────────────────────────────────────────────────────────────────────────

func TestDeleteSale_LineaSimpleConLotesNoTocaLotes(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.product(t, &entity.Product{ID: "D", TracksStock: true, Stock: d("4")})

	sale, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1",
		Items: []entity.SaleItem{{
			ProductID: "D", Quantity: d("1"), UnitPrice: d("5"),
			Lots:        []entity.LotUsage{{BatchID: "OLD", Quantity: d("2")}},
			Ingredients: []entity.IngredientUsage{{ProductID: "X", Quantity: d("1")}},
		}},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, sale.Items[0].Lots, "una línea simple no registra lotes")
	assert.Empty(t, sale.Items[0].Ingredients)
	assert.True(t, f.getProduct(t, "D").Stock.Equal(d("3")))

	f.roundTrip(t, "V-1", map[string]decimal.Decimal{"OLD": d("10"), "NEW": d("10")}, "X")
	assert.True(t, f.stockOf(t, "OLD").Equal(d("10")))
	assert.True(t, f.getProduct(t, "X").Stock.Equal(d("20")))
	assert.True(t, f.getProduct(t, "D").Stock.Equal(d("3")))
}

func TestDeleteSale_LineaSinControlConLotesNoTocaLotes(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.product(t, &entity.Product{ID: "S"})

	sale, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1",
		Items: []entity.SaleItem{{
			ProductID: "S", Quantity: d("1"), UnitPrice: d("5"),
			Lots: []entity.LotUsage{{BatchID: "NEW", Quantity: d("3")}},
		}},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, sale.Items[0].Lots)

	f.roundTrip(t, "V-1", map[string]decimal.Decimal{"OLD": d("10"), "NEW": d("10")}, "X")
	assert.True(t, f.stockOf(t, "NEW").Equal(d("10")))
}

func TestDeleteSale_RecetaConLotesSoloDevuelveIngredientes(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.product(t, &entity.Product{ID: "COMBO", Recipe: []entity.RecipeItem{{IngredientID: "X", Quantity: d("2")}}})

	sale, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1",
		Items: []entity.SaleItem{{
			ProductID: "COMBO", Quantity: d("1"), UnitPrice: d("30"),
			Lots: []entity.LotUsage{{BatchID: "NEW", Quantity: d("4")}},
		}},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, sale.Items[0].Lots)
	require.Len(t, sale.Items[0].Ingredients, 1)
	assert.True(t, f.stockOf(t, "OLD").Equal(d("8")))
	assert.True(t, f.stockOf(t, "NEW").Equal(d("10")))

	f.roundTrip(t, "V-1", map[string]decimal.Decimal{"OLD": d("10"), "NEW": d("10")}, "X")
	assert.True(t, f.stockOf(t, "OLD").Equal(d("8")))
	assert.True(t, f.stockOf(t, "NEW").Equal(d("10")))
}

func TestExecuteSale_ExplicitasReemplazanLotesDeLaLinea(t *testing.T) {
	f := newFixture(t)
	productX(t, f)

	sale, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1",
		Items: []entity.SaleItem{{
			ProductID: "X", Quantity: d("5"), UnitPrice: d("100"),
			Lots: []entity.LotUsage{{BatchID: "NEW", Quantity: d("5")}},
		}},
	}, []inventory.Deduction{{BatchID: "OLD", Quantity: d("2")}, {BatchID: "NEW", Quantity: d("3")}})
	require.NoError(t, err)
	assertLots(t, sale.Items[0].Lots, "OLD", "2", "NEW", "3")
	assert.True(t, f.stockOf(t, "OLD").Equal(d("8")))
	assert.True(t, f.stockOf(t, "NEW").Equal(d("7")))

	f.roundTrip(t, "V-1", map[string]decimal.Decimal{"OLD": d("10"), "NEW": d("10")}, "X")
	assert.True(t, f.stockOf(t, "OLD").Equal(d("8")))
	assert.True(t, f.stockOf(t, "NEW").Equal(d("7")))
}

func TestExecuteSale_ExplicitasSeRepartenEntreLineasDelMismoProducto(t *testing.T) {
	f := newFixture(t)
	productX(t, f)

	sale, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1",
		Items: []entity.SaleItem{
			{ProductID: "X", Quantity: d("3"), UnitPrice: d("100")},
			{ProductID: "X", Quantity: d("2"), UnitPrice: d("90")},
		},
	}, []inventory.Deduction{{BatchID: "OLD", Quantity: d("4")}, {BatchID: "NEW", Quantity: d("1")}})
	require.NoError(t, err)
	assertLots(t, sale.Items[0].Lots, "OLD", "3")
	assertLots(t, sale.Items[1].Lots, "OLD", "1", "NEW", "1")

	f.roundTrip(t, "V-1", map[string]decimal.Decimal{"OLD": d("10"), "NEW": d("10")}, "X")
	assert.True(t, f.stockOf(t, "OLD").Equal(d("6")))
	assert.True(t, f.stockOf(t, "NEW").Equal(d("9")))
}

func TestExecuteSale_ExplicitaDeProductoSinLineaSeRechaza(t *testing.T) {
	f := newFixture(t)
	productX(t, f)
	f.product(t, lotProduct("Y"))
	f.batch(t, "Y1", "Y", "5", "10", t0)

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID:    "V-1",
		Items: []entity.SaleItem{{ProductID: "X", Quantity: d("2"), UnitPrice: d("100")}},
	}, []inventory.Deduction{{BatchID: "OLD", Quantity: d("2")}, {BatchID: "Y1", Quantity: d("1")}})

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, f.stockOf(t, "OLD").Equal(d("10")))
	assert.True(t, f.stockOf(t, "Y1").Equal(d("5")))
	f.ledgerInvariant(t, "X")
	f.ledgerInvariant(t, "Y")
	_, err = f.coord.GetSale(context.Background(), "V-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecuteSale_ExplicitasQueNoCuadranConLaLinea(t *testing.T) {
	cases := []struct {
		name string
		deds []inventory.Deduction
	}{
		{"de menos", []inventory.Deduction{{BatchID: "OLD", Quantity: d("3")}}},
		{"de más", []inventory.Deduction{{BatchID: "OLD", Quantity: d("5")}, {BatchID: "NEW", Quantity: d("1")}}},
		{"lote inexistente", []inventory.Deduction{{BatchID: "FANTASMA", Quantity: d("5")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			productX(t, f)

			_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
				ID:    "V-1",
				Items: []entity.SaleItem{{ProductID: "X", Quantity: d("5"), UnitPrice: d("100")}},
			}, tc.deds)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.True(t, f.stockOf(t, "OLD").Equal(d("10")))
			assert.True(t, f.stockOf(t, "NEW").Equal(d("10")))
			f.ledgerInvariant(t, "X")
			assert.Zero(t, f.logCount(t, "V-1"))
		})
	}
}

func TestExecuteSale_LotesDeLaLineaQueNoCuadranSeRechazan(t *testing.T) {
	f := newFixture(t)
	productX(t, f)

	_, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1",
		Items: []entity.SaleItem{{
			ProductID: "X", Quantity: d("5"), UnitPrice: d("100"),
			Lots: []entity.LotUsage{{BatchID: "OLD", Quantity: d("2")}},
		}},
	}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.True(t, f.stockOf(t, "OLD").Equal(d("10")))
}

func TestDeleteSale_LotesSinTracksStockDescuentanYDevuelven(t *testing.T) {
	f := newFixture(t)
	f.product(t, &entity.Product{ID: "Z", BatchManagement: entity.BatchManagement{Enabled: true}})
	f.batch(t, "Z1", "Z", "5", "10", t0)

	sale, err := f.coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-1", Items: []entity.SaleItem{{ProductID: "Z", Quantity: d("2"), UnitPrice: d("20")}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, sale.Items[0].Lots, 1)
	assert.True(t, f.stockOf(t, "Z1").Equal(d("3")))
	f.ledgerInvariant(t, "Z")

	f.roundTrip(t, "V-1", map[string]decimal.Decimal{"Z1": d("5")}, "Z")
	assert.True(t, f.stockOf(t, "Z1").Equal(d("3")))
	assert.True(t, f.getProduct(t, "Z").Stock.Equal(d("3")))
}

func TestDeleteSale_Inexistente(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.DeleteSale(context.Background(), "NOPE", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.coord.RestoreSale(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tiquete
// ──────────────────────────────────────────────────────────────────────────────

type fakeRenderer struct{ customer *entity.Customer }

func (r *fakeRenderer) RenderSaleReceipt(_ context.Context, _ *entity.Sale, c *entity.Customer) ([]byte, error) {
	r.customer = c
	return []byte("%PDF"), nil
}

func TestReceipt_GeneraConCliente(t *testing.T) {
	store := memory.NewStore()
	eng := inventory.NewEngine(inventory.Deps{Tx: store, Store: store.Repositories(), Schema: schema.New()})
	renderer := &fakeRenderer{}
	coord := sales.NewSaleCoordinator(sales.Deps{Tx: store, Store: store.Repositories(), Engine: eng, Receipts: renderer})
	require.NoError(t, store.Repositories().Products.Create(context.Background(), &entity.Product{ID: "U", Name: "Servicio"}))
	require.NoError(t, store.Repositories().Customers.Create(context.Background(), &entity.Customer{ID: "C", Name: "Ana"}))

	_, err := coord.ExecuteSale(context.Background(), &entity.Sale{
		ID: "V-9", CustomerID: "C", Items: []entity.SaleItem{{ProductID: "U", Quantity: d("1"), UnitPrice: d("8")}},
	}, nil)
	require.NoError(t, err)

	pdf, name, err := coord.Receipt(context.Background(), "V-9")
	require.NoError(t, err)
	assert.Equal(t, "tiquete_V-9.pdf", name)
	assert.Equal(t, []byte("%PDF"), pdf)
	require.NotNil(t, renderer.customer)
	assert.Equal(t, "Ana", renderer.customer.Name)
}
