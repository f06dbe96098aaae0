package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateReservationRequest body para POST /api/reservations.
type CreateReservationRequest struct {
	ID             string          `json:"id,omitempty"`
	CustomerID     string          `json:"customer_id"`
	Items          []SaleItemDTO   `json:"items"`
	Total          decimal.Decimal `json:"total"`
	InitialPayment decimal.Decimal `json:"initial_payment"`
	Method         string          `json:"method,omitempty"`
}

// AddPaymentRequest body para POST /api/reservations/:id/payments.
type AddPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// CancelReservationRequest body para POST /api/reservations/:id/cancel.
type CancelReservationRequest struct {
	Reason string `json:"reason"`
}

// ConvertReservationRequest body para POST /api/reservations/:id/convert.
type ConvertReservationRequest struct {
	Method string `json:"method,omitempty"`
}

// PaymentDTO abono en respuestas.
type PaymentDTO struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	Kind   string          `json:"kind"`
	At     time.Time       `json:"at"`
}

// ReservationResponse apartado en respuestas.
type ReservationResponse struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	Items        []SaleItemDTO   `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Balance      decimal.Decimal `json:"balance"`
	Status       string          `json:"status"`
	Payments     []PaymentDTO    `json:"payments"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	SaleID       string          `json:"sale_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
}
