// Package layaway gestiona apartados: mercancía reservada que el cliente paga por abonos.
package layaway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/application/sales"
	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/event"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// SalePrefix prefijo del ID de la venta emitida al completar un apartado.
const SalePrefix = "APT-"

// Deps dependencias del gestor de apartados.
type Deps struct {
	Tx     inventory.TxRunner
	Store  repository.Repos
	Engine *inventory.Engine
	Sales  *sales.SaleCoordinator
	Cache  inventory.CacheInvalidator
	Events event.Publisher
	Log    *logger.Logger
	Now    func() time.Time
}

// ReservationManager crea, abona, cancela y convierte apartados.
// Estados: activo -> completado | cancelado, ambos terminales.
type ReservationManager struct {
	deps Deps
	log  *logger.Logger
}

// NewReservationManager construye el gestor.
func NewReservationManager(d Deps) *ReservationManager {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Events == nil {
		d.Events = event.Nop{}
	}
	return &ReservationManager{deps: d, log: d.Log.Component("apartados")}
}

// Create reserva el stock de las líneas (sin parciales) y registra el anticipo si es positivo.
func (m *ReservationManager) Create(ctx context.Context, r *entity.Reservation, initialPayment decimal.Decimal, method entity.PaymentMethod) (*entity.Reservation, error) {
	if r == nil {
		return nil, domain.NewValidationError("apartado", "requerido")
	}
	res := r.Clone()
	res.ID = strings.TrimSpace(res.ID)
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.CustomerID == "" {
		return nil, domain.NewValidationError("customer_id", "requerido")
	}
	if len(res.Items) == 0 {
		return nil, domain.NewValidationError("items", "el apartado no tiene líneas")
	}
	if res.Total.IsZero() {
		res.Total = itemsTotal(res.Items)
	}
	if res.Total.IsNegative() {
		return nil, domain.NewValidationError("total", "no puede ser negativo")
	}
	if initialPayment.IsNegative() {
		return nil, domain.NewValidationError("initial_payment", "no puede ser negativo")
	}
	if initialPayment.IsPositive() {
		if err := validateMethod(method); err != nil {
			return nil, err
		}
		if initialPayment.GreaterThan(res.Total.Add(m.deps.Engine.Tolerance())) {
			return nil, domain.NewValidationError("initial_payment", "el anticipo supera el total")
		}
	}

	now := m.deps.Now()
	res.Status = entity.ReservationActive
	res.Paid = decimal.Zero
	res.Payments = nil
	res.SaleID, res.CancelReason, res.ClosedAt = "", "", nil
	res.CreatedAt, res.UpdatedAt = now, now
	var payment *entity.Payment
	if initialPayment.IsPositive() {
		payment = &entity.Payment{
			ID: uuid.New().String(), Amount: initialPayment, Method: method,
			Kind: entity.PaymentKindDeposit, At: now,
		}
		res.Payments = append(res.Payments, *payment)
		res.Paid = initialPayment
	}

	err := m.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		customer, err := repos.Customers.GetByID(ctx, res.CustomerID)
		if err != nil {
			return domain.Classify("leer cliente", err)
		}
		if customer == nil {
			return &domain.ReferentialIntegrityError{Entity: "cliente", ID: res.CustomerID}
		}
		items, err := m.deps.Engine.Deductions.ApplyItems(ctx, repos, res.Items, nil, inventory.ReasonReservation)
		if err != nil {
			return err
		}
		res.Items = items
		if err := repos.Reservations.Create(ctx, res); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return &domain.DuplicateOperationError{Kind: "apartado", ID: res.ID}
			}
			return domain.Classify("guardar apartado", err)
		}
		return nil
	})
	if err != nil {
		m.log.Warn().Err(err).Str("reservation_id", res.ID).Msg("apartado rechazado")
		return nil, domain.Classify("crear apartado", err)
	}

	m.invalidate(ctx, repository.CollectionBatches, repository.CollectionProducts)
	if payment != nil {
		m.publish(ctx, paymentEvent(res, *payment))
	}
	m.log.Info().Str("reservation_id", res.ID).Str("total", res.Total.String()).
		Str("anticipo", res.Paid.String()).Msg("apartado creado")
	return res, nil
}

// AddPayment registra un abono. No toca el stock; un abono que supere el saldo se rechaza.
func (m *ReservationManager) AddPayment(ctx context.Context, id string, amount decimal.Decimal, method entity.PaymentMethod) (*entity.Reservation, error) {
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "el abono debe ser positivo")
	}
	if err := validateMethod(method); err != nil {
		return nil, err
	}
	var out *entity.Reservation
	var payment entity.Payment
	err := m.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		res, err := m.loadActive(ctx, repos, id, "abonar")
		if err != nil {
			return err
		}
		if res.Paid.Add(amount).GreaterThan(res.Total.Add(m.deps.Engine.Tolerance())) {
			return domain.NewValidationError("amount", fmt.Sprintf("el abono supera el saldo pendiente (%s)", res.Balance().StringFixed(2)))
		}
		now := m.deps.Now()
		payment = entity.Payment{ID: uuid.New().String(), Amount: amount, Method: method, Kind: entity.PaymentKindPayment, At: now}
		res.Payments = append(res.Payments, payment)
		res.Paid = res.Paid.Add(amount)
		res.UpdatedAt = now
		if err := repos.Reservations.Update(ctx, res); err != nil {
			return domain.Classify("actualizar apartado", err)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, domain.Classify("abonar apartado", err)
	}
	m.invalidate(ctx)
	m.publish(ctx, paymentEvent(out, payment))
	m.log.Info().Str("reservation_id", id).Str("abono", amount.String()).
		Bool("pagado", out.IsFullyPaid(m.deps.Engine.Tolerance())).Msg("abono registrado")
	return out, nil
}

// Cancel devuelve al inventario lo reservado y deja el apartado cancelado.
func (m *ReservationManager) Cancel(ctx context.Context, id, reason string) (*entity.Reservation, error) {
	var out *entity.Reservation
	err := m.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		res, err := m.loadActive(ctx, repos, id, "cancelar")
		if err != nil {
			return err
		}
		if err := m.deps.Engine.Deductions.RestoreItems(ctx, repos, res.Items); err != nil {
			return err
		}
		now := m.deps.Now()
		res.Status = entity.ReservationCancelled
		res.CancelReason = reason
		res.UpdatedAt = now
		res.ClosedAt = &now
		if err := repos.Reservations.Update(ctx, res); err != nil {
			return domain.Classify("actualizar apartado", err)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, domain.Classify("cancelar apartado", err)
	}
	m.invalidate(ctx, repository.CollectionBatches, repository.CollectionProducts)
	m.publish(ctx, event.ReservationCancelled{
		ReservationID: out.ID, CustomerID: out.CustomerID, Refundable: out.Paid, Reason: reason, At: *out.ClosedAt,
	})
	m.log.Info().Str("reservation_id", id).Str("motivo", reason).Msg("apartado cancelado")
	return out, nil
}

// ConvertToSale emite la venta del apartado pagado (stock ya descontado) en la misma transacción.
// Si method está vacío se usa el medio del último abono.
func (m *ReservationManager) ConvertToSale(ctx context.Context, id string, method entity.PaymentMethod) (*entity.Reservation, *entity.Sale, error) {
	var out *entity.Reservation
	var sale *entity.Sale
	err := m.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		res, err := m.loadActive(ctx, repos, id, "convertir")
		if err != nil {
			return err
		}
		if !res.IsFullyPaid(m.deps.Engine.Tolerance()) {
			return domain.NewValidationError("balance", fmt.Sprintf("el apartado tiene saldo pendiente (%s)", res.Balance().StringFixed(2)))
		}
		pm := method
		if pm == "" {
			pm = lastMethod(res)
		}
		now := m.deps.Now()
		s, err := m.deps.Sales.ExecuteSaleInTx(ctx, repos, &entity.Sale{
			ID:            SalePrefix + res.ID,
			Timestamp:     now,
			Items:         res.Items,
			Total:         res.Total,
			PaymentMethod: pm,
			CustomerID:    res.CustomerID,
			StockSettled:  true,
			ReservationID: res.ID,
		}, nil)
		if err != nil {
			return err
		}
		res.Status = entity.ReservationCompleted
		res.SaleID = s.ID
		res.UpdatedAt = now
		res.ClosedAt = &now
		if err := repos.Reservations.Update(ctx, res); err != nil {
			return domain.Classify("actualizar apartado", err)
		}
		out, sale = res, s
		return nil
	})
	if err != nil {
		return nil, nil, domain.Classify("convertir apartado", err)
	}
	m.deps.Sales.Committed(ctx, sale)
	m.invalidate(ctx)
	m.log.Info().Str("reservation_id", id).Str("sale_id", sale.ID).Msg("apartado convertido en venta")
	return out, sale, nil
}

// Get apartado por ID.
func (m *ReservationManager) Get(ctx context.Context, id string) (*entity.Reservation, error) {
	res, err := m.deps.Store.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Classify("leer apartado", err)
	}
	if res == nil {
		return nil, domain.ErrNotFound
	}
	return res, nil
}

// ListByCustomer apartados del cliente, más antiguos primero.
func (m *ReservationManager) ListByCustomer(ctx context.Context, customerID string) ([]*entity.Reservation, error) {
	list, err := m.deps.Store.Reservations.ListByCustomer(ctx, customerID)
	return list, domain.Classify("listar apartados", err)
}

// loadActive lee el apartado dentro de la transacción y exige que siga activo.
func (m *ReservationManager) loadActive(ctx context.Context, repos repository.Repos, id, action string) (*entity.Reservation, error) {
	res, err := repos.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Classify("leer apartado", err)
	}
	if res == nil {
		return nil, domain.ErrNotFound
	}
	if res.Status != entity.ReservationActive {
		return nil, &domain.InvalidTransitionError{Entity: "apartado", ID: id, From: string(res.Status), Action: action}
	}
	return res, nil
}

func (m *ReservationManager) invalidate(ctx context.Context, collections ...string) {
	if m.deps.Cache == nil {
		return
	}
	collections = append(collections, repository.CollectionReservations)
	if err := m.deps.Cache.Invalidate(ctx, collections...); err != nil {
		m.log.Warn().Err(err).Msg("invalidar caché")
	}
}

func (m *ReservationManager) publish(ctx context.Context, events ...event.Event) {
	if err := m.deps.Events.Publish(ctx, events...); err != nil {
		m.log.Warn().Err(err).Msg("publicar eventos")
	}
}

func paymentEvent(res *entity.Reservation, p entity.Payment) event.PaymentRegistered {
	return event.PaymentRegistered{
		PaymentID:     p.ID,
		ReservationID: res.ID,
		CustomerID:    res.CustomerID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		Kind:          p.Kind,
		Movement:      "entrada",
		At:            p.At,
	}
}

func validateMethod(method entity.PaymentMethod) error {
	if !method.Valid() || method.IsDeferred() {
		return domain.NewValidationError("method", fmt.Sprintf("medio de pago no admitido para abonos: %q", method))
	}
	return nil
}

func lastMethod(res *entity.Reservation) entity.PaymentMethod {
	if n := len(res.Payments); n > 0 {
		return res.Payments[n-1].Method
	}
	return entity.PaymentCash
}

func itemsTotal(items []entity.SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
