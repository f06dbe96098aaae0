package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-lotes/internal/application/auth"
	"github.com/jhoicas/pos-lotes/internal/application/catalog"
	"github.com/jhoicas/pos-lotes/internal/application/dto"
	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/application/layaway"
	"github.com/jhoicas/pos-lotes/internal/application/sales"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/pos-lotes/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/pos-lotes/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const routerSecret = "router-test-secret"

type pdfStub struct{}

func (pdfStub) RenderSaleReceipt(_ context.Context, s *entity.Sale, _ *entity.Customer) ([]byte, error) {
	return []byte("%PDF-1.4 " + s.ID), nil
}

type apiFixture struct {
	app   *fiber.App
	admin string
	cash  string
}

type scanStub struct {
	days int
	err  error
}

func (s *scanStub) EnqueueLotExpiryScan(_ context.Context, _ time.Time, warningDays int) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.days = warningDays
	return &asynq.TaskInfo{ID: "task-1", Queue: "default"}, nil
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	return newAPIWithScans(t, nil)
}

func newAPIWithScans(t *testing.T, scans apphttp.ExpiryScanEnqueuer) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	validator := schema.New()
	eng := inventory.NewEngine(inventory.Deps{Tx: store, Store: repos, Schema: validator})
	coord := sales.NewSaleCoordinator(sales.Deps{Tx: store, Store: repos, Engine: eng, Receipts: pdfStub{}})
	mgr := layaway.NewReservationManager(layaway.Deps{Tx: store, Store: repos, Engine: eng, Sales: coord})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AuthUC:       auth.NewAuthUseCase(store.Users(), auth.JWTConfig{Secret: routerSecret, ExpMinutes: 5, Issuer: "test"}),
		ProductUC:    catalog.NewProductUseCase(repos.Products, eng, validator, nil, nil),
		CustomerUC:   catalog.NewCustomerUseCase(repos.Customers, nil),
		Engine:       eng,
		Sales:        coord,
		Reservations: mgr,
		ExpiryScans:  scans,
		JWTSecret:    routerSecret,
	})

	admin, err := pkgjwt.Generate(routerSecret, "u-admin", entity.RoleAdmin, "test", 5)
	require.NoError(t, err)
	cash, err := pkgjwt.Generate(routerSecret, "u-caja", entity.RoleCajero, "test", 5)
	require.NoError(t, err)
	return &apiFixture{app: app, admin: admin, cash: cash}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// seedLotProduct crea un producto por lotes y recibe un lote; devuelve los IDs.
func (f *apiFixture) seedLotProduct(t *testing.T, qty string) (productID, batchID string) {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/products", f.admin, dto.CreateProductRequest{
		SKU: "LECHE", Name: "Leche entera", TracksStock: true, BatchManagement: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p dto.ProductResponse
	decode(t, resp, &p)
	assert.Equal(t, "lotes", p.InventoryMode)

	resp = f.do(t, http.MethodPost, "/api/lots", f.admin, dto.ReceiveLotRequest{
		ProductID: p.ID, SKU: "LECHE-0524", Cost: decimal.NewFromInt(3), Price: decimal.NewFromInt(5),
		Quantity: decimal.RequireFromString(qty), ExpiryDate: "2024-06-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var lot dto.LotResponse
	decode(t, resp, &lot)
	return p.ID, lot.ID
}

// ──────────────────────────────────────────────────────────────────────────────
// Flujo de venta
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_VentaDescuentaLoteYEsIdempotente(t *testing.T) {
	f := newAPI(t)
	productID, batchID := f.seedLotProduct(t, "10")

	sale := dto.CreateSaleRequest{
		ID:            "V-100",
		PaymentMethod: "efectivo",
		Items:         []dto.SaleItemDTO{{ProductID: productID, Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(5)}},
	}
	resp := f.do(t, http.MethodPost, "/api/sales", f.cash, sale)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out dto.SaleResponse
	decode(t, resp, &out)
	assert.True(t, out.Total.Equal(decimal.NewFromInt(20)))
	require.Len(t, out.Items, 1)
	require.Len(t, out.Items[0].Lots, 1)
	assert.Equal(t, batchID, out.Items[0].Lots[0].BatchID)

	resp = f.do(t, http.MethodGet, "/api/products/"+productID, f.cash, nil)
	var p dto.ProductResponse
	decode(t, resp, &p)
	assert.True(t, p.Stock.Equal(decimal.NewFromInt(6)))

	resp = f.do(t, http.MethodPost, "/api/sales", f.cash, sale)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var e dto.ErrorResponse
	decode(t, resp, &e)
	assert.Equal(t, "DUPLICATE", e.Code)

	resp = f.do(t, http.MethodGet, "/api/sales/V-100/receipt", f.cash, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "tiquete_V-100.pdf")
}

func TestAPI_FaltanteDevuelveDetalle(t *testing.T) {
	f := newAPI(t)
	_, batchID := f.seedLotProduct(t, "2")

	resp := f.do(t, http.MethodPost, "/api/inventory/deductions", f.admin, dto.ProcessDeductionsRequest{
		Deductions: []dto.DeductionDTO{{BatchID: batchID, Quantity: decimal.NewFromInt(3), Reason: "merma"}},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var e struct {
		Code    string `json:"code"`
		Details []struct {
			BatchID string `json:"batch_id"`
		} `json:"details"`
	}
	decode(t, resp, &e)
	assert.Equal(t, "INSUFFICIENT_STOCK", e.Code)
	require.Len(t, e.Details, 1)
	assert.Equal(t, batchID, e.Details[0].BatchID)
}

func TestAPI_LotesPorVencerYPorSKU(t *testing.T) {
	f := newAPI(t)
	productID, batchID := f.seedLotProduct(t, "5")

	resp := f.do(t, http.MethodGet, "/api/lots/expiring?before=2024-07-01", f.cash, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lots []dto.LotResponse
	decode(t, resp, &lots)
	require.Len(t, lots, 1)
	assert.Equal(t, batchID, lots[0].ID)

	resp = f.do(t, http.MethodGet, "/api/lots/sku/LECHE-0524", f.cash, nil)
	decode(t, resp, &lots)
	require.Len(t, lots, 1)
	assert.Equal(t, productID, lots[0].ProductID)

	resp = f.do(t, http.MethodGet, "/api/lots/expiring?before=mañana", f.cash, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Autorización
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_CajeroNoAjustaInventario(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, http.MethodPost, "/api/inventory/deductions", f.cash, dto.ProcessDeductionsRequest{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/products", f.cash, dto.CreateProductRequest{Name: "X"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_RegistroYLogin(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, http.MethodPost, "/api/auth/register", f.admin, dto.RegisterRequest{Email: "caja@tienda.co", Password: "secreto123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/auth/register", f.cash, dto.RegisterRequest{Email: "otro@tienda.co", Password: "secreto123"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "caja@tienda.co", Password: "secreto123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login dto.LoginResponse
	decode(t, resp, &login)
	assert.Equal(t, entity.RoleCajero, login.User.Role)

	resp = f.do(t, http.MethodGet, "/api/customers", login.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RegistroRechazaEntradaInvalida(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, http.MethodPost, "/api/auth/register", f.admin, dto.RegisterRequest{Email: "sin-arroba", Password: "corta", Role: "gerente"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e struct {
		Code    string `json:"code"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	}
	decode(t, resp, &e)
	assert.Equal(t, "VALIDATION", e.Code)
	fields := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"email", "password", "role"}, fields)
}

// ──────────────────────────────────────────────────────────────────────────────
// Apartados
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_ApartadoCicloCompleto(t *testing.T) {
	f := newAPI(t)
	productID, _ := f.seedLotProduct(t, "10")

	resp := f.do(t, http.MethodPost, "/api/customers", f.cash, dto.CreateCustomerRequest{Name: "Carla"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var customer dto.CustomerResponse
	decode(t, resp, &customer)

	resp = f.do(t, http.MethodPost, "/api/reservations", f.cash, dto.CreateReservationRequest{
		ID: "R-9", CustomerID: customer.ID,
		Items:          []dto.SaleItemDTO{{ProductID: productID, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(5)}},
		InitialPayment: decimal.NewFromInt(4), Method: "efectivo",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var r dto.ReservationResponse
	decode(t, resp, &r)
	assert.True(t, r.Balance.Equal(decimal.NewFromInt(6)))

	resp = f.do(t, http.MethodPost, "/api/reservations/R-9/convert", f.cash, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/reservations/R-9/payments", f.cash, dto.AddPaymentRequest{Amount: decimal.NewFromInt(6), Method: "tarjeta"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/reservations/R-9/convert", f.cash, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sale dto.SaleResponse
	decode(t, resp, &sale)
	assert.Equal(t, "APT-R-9", sale.ID)
	assert.Equal(t, "R-9", sale.ReservationID)

	resp = f.do(t, http.MethodPost, "/api/reservations/R-9/cancel", f.cash, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var e dto.ErrorResponse
	decode(t, resp, &e)
	assert.Equal(t, "INVALID_TRANSITION", e.Code)

	resp = f.do(t, http.MethodGet, "/api/products/"+productID, f.cash, nil)
	var p dto.ProductResponse
	decode(t, resp, &p)
	assert.True(t, p.Stock.Equal(decimal.NewFromInt(8)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_EscaneoDeVencimientos(t *testing.T) {
	scans := &scanStub{}
	f := newAPIWithScans(t, scans)

	resp := f.do(t, http.MethodPost, "/api/lots/expiring/scan", f.admin, dto.ExpiryScanRequest{WarningDays: 15})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out dto.ExpiryScanResponse
	decode(t, resp, &out)
	assert.Equal(t, "task-1", out.TaskID)
	assert.Equal(t, 15, scans.days)

	resp = f.do(t, http.MethodPost, "/api/lots/expiring/scan", f.admin, dto.ExpiryScanRequest{WarningDays: 400})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/lots/expiring/scan", f.cash, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_EscaneoSinWorker(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, http.MethodPost, "/api/lots/expiring/scan", f.admin, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var e dto.ErrorResponse
	decode(t, resp, &e)
	assert.Equal(t, "JOBS_DISABLED", e.Code)
}
