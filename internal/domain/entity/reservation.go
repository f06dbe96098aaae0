package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus estado de un apartado.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "activo"
	ReservationCompleted ReservationStatus = "completado"
	ReservationCancelled ReservationStatus = "cancelado"
)

// Tipos de abono.
const (
	PaymentKindDeposit = "anticipo"
	PaymentKindPayment = "abono"
)

// Payment abono registrado a un apartado.
type Payment struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Method PaymentMethod   `json:"method"`
	Kind   string          `json:"kind"`
	At     time.Time       `json:"at"`
}

// Reservation apartado: mercancía reservada y pagada por abonos.
// Máquina de estados: activo -> completado | cancelado (ambos terminales).
type Reservation struct {
	ID           string
	CustomerID   string
	Items        []SaleItem
	Total        decimal.Decimal
	Paid         decimal.Decimal
	Status       ReservationStatus
	Payments     []Payment
	CancelReason string
	SaleID       string // venta emitida al completar
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}

// Balance saldo pendiente.
func (r *Reservation) Balance() decimal.Decimal {
	return r.Total.Sub(r.Paid)
}

// IsFullyPaid pagado dentro de la tolerancia.
func (r *Reservation) IsFullyPaid(tolerance decimal.Decimal) bool {
	return r.Paid.GreaterThanOrEqual(r.Total.Sub(tolerance))
}

// Clone copia profunda.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	c.Items = CloneItems(r.Items)
	if r.Payments != nil {
		c.Payments = append([]Payment(nil), r.Payments...)
	}
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
