package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/event"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// Metrics métricas de ventas.
type Metrics interface {
	SaleCommitted(total decimal.Decimal)
	SaleRejected(kind string)
}

// Deps dependencias del coordinador.
type Deps struct {
	Tx       inventory.TxRunner
	Store    repository.Repos
	Engine   *inventory.Engine
	Cache    inventory.CacheInvalidator
	Events   event.Publisher
	Metrics  Metrics
	Receipts ReceiptRenderer
	Log      *logger.Logger
	Now      func() time.Time
}

// SaleCoordinator confirma ventas de forma atómica: stock, deuda de fiado, venta y bitácora.
type SaleCoordinator struct {
	deps Deps
	log  *logger.Logger
}

// NewSaleCoordinator construye el coordinador.
func NewSaleCoordinator(d Deps) *SaleCoordinator {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Events == nil {
		d.Events = event.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	return &SaleCoordinator{deps: d, log: d.Log.Component("ventas")}
}

// ExecuteSale confirma la venta en una transacción. Si lotDeductions está vacío las deducciones
// explícitas se derivan de item.Lots; si no, deben cubrir exactamente las líneas de sus productos y
// son lo que queda registrado en ellas. Las líneas sin lotes se resuelven por modo de inventario.
// Un ID ya confirmado (o en papelera) devuelve *domain.DuplicateOperationError.
func (c *SaleCoordinator) ExecuteSale(ctx context.Context, sale *entity.Sale, lotDeductions []inventory.Deduction) (*entity.Sale, error) {
	if err := c.prepare(sale); err != nil {
		c.deps.Metrics.SaleRejected("validacion")
		return nil, err
	}

	var out *entity.Sale
	err := c.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		s, err := c.ExecuteSaleInTx(ctx, repos, sale, lotDeductions)
		out = s
		return err
	})
	if err != nil {
		c.rejected(sale.ID, err)
		return nil, domain.Classify("confirmar venta", err)
	}
	c.Committed(ctx, out)
	return out, nil
}

// ExecuteSaleInTx confirma la venta usando la transacción del llamador (p. ej. al convertir un apartado).
// El llamador debe invocar Committed después del commit.
func (c *SaleCoordinator) ExecuteSaleInTx(ctx context.Context, repos repository.Repos, sale *entity.Sale, lotDeductions []inventory.Deduction) (*entity.Sale, error) {
	if err := c.prepare(sale); err != nil {
		return nil, err
	}
	s := sale.Clone()

	// 1) Idempotencia: ventas vigentes y papelera.
	exists, err := repos.Sales.Exists(ctx, s.ID)
	if err != nil {
		return nil, domain.Classify("verificar venta", err)
	}
	if exists {
		return nil, &domain.DuplicateOperationError{Kind: "venta", ID: s.ID}
	}

	// 2) Stock.
	if !s.StockSettled {
		items, err := c.deps.Engine.Deductions.ApplyItems(ctx, repos, s.Items, lotDeductions, inventory.ReasonSale)
		if err != nil {
			return nil, err
		}
		s.Items = items
	}

	// 3) Fiado.
	if s.PaymentMethod.IsDeferred() && s.Balance.IsPositive() {
		if err := addDebt(ctx, repos, s.CustomerID, s.Balance, c.deps.Now()); err != nil {
			return nil, err
		}
	}

	// 4) Venta.
	s.CreatedAt = c.deps.Now()
	if err := repos.Sales.Create(ctx, s); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, &domain.DuplicateOperationError{Kind: "venta", ID: s.ID}
		}
		return nil, domain.Classify("guardar venta", err)
	}

	// 5) Bitácora.
	if err := c.appendLog(ctx, repos, entity.LogTypeSale, s.Total, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

// Committed acciones posteriores al commit: métricas, caché y evento de venta.
func (c *SaleCoordinator) Committed(ctx context.Context, s *entity.Sale) {
	c.deps.Metrics.SaleCommitted(s.Total)
	c.invalidate(ctx)
	c.publish(ctx, event.SaleCommitted{
		SaleID:        s.ID,
		Total:         s.Total,
		Balance:       s.Balance,
		PaymentMethod: string(s.PaymentMethod),
		CustomerID:    s.CustomerID,
		ReservationID: s.ReservationID,
		At:            s.Timestamp,
	})
	c.log.Info().Str("sale_id", s.ID).Str("total", s.Total.String()).
		Str("medio", string(s.PaymentMethod)).Bool("stock_liquidado", s.StockSettled).Msg("venta confirmada")
}

// GetSale venta vigente por ID.
func (c *SaleCoordinator) GetSale(ctx context.Context, id string) (*entity.Sale, error) {
	s, err := c.deps.Store.Sales.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Classify("leer venta", err)
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// ListSales ventas vigentes, más recientes primero.
func (c *SaleCoordinator) ListSales(ctx context.Context, limit, offset int) ([]*entity.Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	list, err := c.deps.Store.Sales.List(ctx, limit, offset)
	return list, domain.Classify("listar ventas", err)
}

// prepare normaliza y valida la cabecera de la venta antes de abrir la transacción.
func (c *SaleCoordinator) prepare(s *entity.Sale) error {
	if s == nil {
		return domain.NewValidationError("venta", "requerida")
	}
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if len(s.Items) == 0 {
		return domain.NewValidationError("items", "la venta no tiene líneas")
	}
	if s.PaymentMethod == "" {
		s.PaymentMethod = entity.PaymentCash
	}
	if !s.PaymentMethod.Valid() {
		return domain.NewValidationError("payment_method", fmt.Sprintf("medio de pago desconocido: %s", s.PaymentMethod))
	}
	if s.Total.IsZero() {
		s.Total = s.ItemsTotal()
	}
	if s.Total.IsNegative() {
		return domain.NewValidationError("total", "no puede ser negativo")
	}
	if s.Balance.IsNegative() || s.Balance.GreaterThan(s.Total) {
		return domain.NewValidationError("balance", "el saldo debe estar entre cero y el total")
	}
	if s.PaymentMethod.IsDeferred() && s.Balance.IsPositive() && s.CustomerID == "" {
		return domain.NewValidationError("customer_id", "una venta fiada requiere cliente")
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = c.deps.Now()
	}
	return nil
}

func (c *SaleCoordinator) appendLog(ctx context.Context, repos repository.Repos, typ string, amount decimal.Decimal, ref string) error {
	entry := &entity.TransactionLogEntry{
		ID:          uuid.New().String(),
		Type:        typ,
		Status:      entity.LogStatusCompleted,
		Amount:      amount,
		ReferenceID: ref,
		Timestamp:   c.deps.Now(),
	}
	if err := repos.TransactionLog.Append(ctx, entry); err != nil {
		return domain.Classify("registrar bitácora", err)
	}
	return nil
}

func (c *SaleCoordinator) rejected(id string, err error) {
	kind := "otro"
	var dup *domain.DuplicateOperationError
	switch {
	case errors.As(err, &dup):
		kind = "duplicada"
	case domain.IsStockError(err):
		kind = "faltante"
	case errors.Is(err, domain.ErrConcurrentModification):
		kind = "concurrencia"
	case errors.Is(err, domain.ErrReferentialIntegrity):
		kind = "referencia"
	case errors.Is(err, domain.ErrInvalidInput):
		kind = "validacion"
	}
	c.deps.Metrics.SaleRejected(kind)
	ev := c.log.Warn()
	if kind == "otro" || kind == "referencia" {
		ev = c.log.Error()
	}
	ev.Err(err).Str("sale_id", id).Str("tipo", kind).Msg("venta rechazada")
}

func (c *SaleCoordinator) invalidate(ctx context.Context) {
	if c.deps.Cache == nil {
		return
	}
	if err := c.deps.Cache.Invalidate(ctx, repository.CollectionSales, repository.CollectionBatches,
		repository.CollectionProducts, repository.CollectionCustomers); err != nil {
		c.log.Warn().Err(err).Msg("invalidar caché")
	}
}

func (c *SaleCoordinator) publish(ctx context.Context, events ...event.Event) {
	if err := c.deps.Events.Publish(ctx, events...); err != nil {
		c.log.Warn().Err(err).Msg("publicar eventos")
	}
}

// addDebt suma amount a la deuda del cliente; cliente inexistente es error de integridad.
func addDebt(ctx context.Context, repos repository.Repos, customerID string, amount decimal.Decimal, now time.Time) error {
	customer, err := repos.Customers.GetByID(ctx, customerID)
	if err != nil {
		return domain.Classify("leer cliente", err)
	}
	if customer == nil {
		return &domain.ReferentialIntegrityError{Entity: "cliente", ID: customerID}
	}
	customer.Debt = customer.Debt.Add(amount)
	if customer.Debt.IsNegative() {
		customer.Debt = decimal.Zero
	}
	customer.UpdatedAt = now
	if err := repos.Customers.Update(ctx, customer); err != nil {
		return domain.Classify("actualizar cliente", err)
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) SaleCommitted(decimal.Decimal) {}
func (nopMetrics) SaleRejected(string)           {}
