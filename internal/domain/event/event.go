// Package event define los eventos de dominio que se publican después de confirmar una transacción.
package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Nombres de evento; el publicador los usa para elegir el tópico.
const (
	NameSaleCommitted        = "venta.confirmada"
	NamePaymentRegistered    = "pago.registrado"
	NameReservationCancelled = "apartado.cancelado"
	NameLotExpiring          = "lote.por_vencer"
)

// Event evento publicable. Key agrupa los eventos de una misma entidad (partición).
type Event interface {
	Name() string
	Key() string
}

// Publisher publica eventos ya confirmados. Un fallo no revierte la operación de origen.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// SaleCommitted venta confirmada.
type SaleCommitted struct {
	SaleID        string          `json:"sale_id"`
	Total         decimal.Decimal `json:"total"`
	Balance       decimal.Decimal `json:"balance"`
	PaymentMethod string          `json:"payment_method"`
	CustomerID    string          `json:"customer_id,omitempty"`
	ReservationID string          `json:"reservation_id,omitempty"`
	At            time.Time       `json:"at"`
}

func (e SaleCommitted) Name() string { return NameSaleCommitted }
func (e SaleCommitted) Key() string  { return e.SaleID }

// PaymentRegistered entrada de dinero para la caja (anticipo o abono de un apartado).
type PaymentRegistered struct {
	PaymentID     string          `json:"payment_id"`
	ReservationID string          `json:"reservation_id"`
	CustomerID    string          `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Kind          string          `json:"kind"`
	Movement      string          `json:"movement"` // siempre "entrada"
	At            time.Time       `json:"at"`
}

func (e PaymentRegistered) Name() string { return NamePaymentRegistered }
func (e PaymentRegistered) Key() string  { return e.ReservationID }

// ReservationCancelled apartado cancelado; Refundable es lo abonado hasta el momento.
type ReservationCancelled struct {
	ReservationID string          `json:"reservation_id"`
	CustomerID    string          `json:"customer_id"`
	Refundable    decimal.Decimal `json:"refundable"`
	Reason        string          `json:"reason,omitempty"`
	At            time.Time       `json:"at"`
}

func (e ReservationCancelled) Name() string { return NameReservationCancelled }
func (e ReservationCancelled) Key() string  { return e.ReservationID }

// LotExpiring lote activo próximo a vencer.
type LotExpiring struct {
	BatchID    string          `json:"batch_id"`
	ProductID  string          `json:"product_id"`
	SKU        string          `json:"sku,omitempty"`
	Stock      decimal.Decimal `json:"stock"`
	ExpiryDate time.Time       `json:"expiry_date"`
}

func (e LotExpiring) Name() string { return NameLotExpiring }
func (e LotExpiring) Key() string  { return e.ProductID }

// Nop publicador que descarta todo.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
