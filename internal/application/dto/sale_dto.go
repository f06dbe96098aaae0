package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotUsageDTO cantidad tomada de un lote.
type LotUsageDTO struct {
	BatchID  string          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// IngredientUsageDTO consumo de un ingrediente de receta.
type IngredientUsageDTO struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Lots      []LotUsageDTO   `json:"lots,omitempty"`
}

// SaleItemDTO línea de venta o apartado.
type SaleItemDTO struct {
	ProductID   string               `json:"product_id"`
	Name        string               `json:"name,omitempty"`
	Quantity    decimal.Decimal      `json:"quantity"`
	UnitPrice   decimal.Decimal      `json:"unit_price"`
	UnitCost    decimal.Decimal      `json:"unit_cost,omitempty"`
	Lots        []LotUsageDTO        `json:"lots,omitempty"`
	Ingredients []IngredientUsageDTO `json:"ingredients,omitempty"`
}

// CreateSaleRequest body para POST /api/sales. ID es la llave de idempotencia del cliente.
type CreateSaleRequest struct {
	ID            string          `json:"id"`
	Items         []SaleItemDTO   `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	LotDeductions []DeductionDTO  `json:"lot_deductions,omitempty"`
}

// DeleteSaleRequest body opcional para DELETE /api/sales/:id.
type DeleteSaleRequest struct {
	Reason string `json:"reason"`
}

// SaleResponse venta en respuestas.
type SaleResponse struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Items         []SaleItemDTO   `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	StockSettled  bool            `json:"stock_settled"`
	ReservationID string          `json:"reservation_id,omitempty"`
}

// SaleListResponse lista paginada de ventas.
type SaleListResponse struct {
	Items []SaleResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}
