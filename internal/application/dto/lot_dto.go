package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiveLotRequest body para POST /api/lots. ExpiryDate en formato YYYY-MM-DD.
type ReceiveLotRequest struct {
	ProductID  string            `json:"product_id" validate:"required"`
	SKU        string            `json:"sku" validate:"omitempty,max=100"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Cost       decimal.Decimal   `json:"cost"`
	Price      decimal.Decimal   `json:"price"`
	Quantity   decimal.Decimal   `json:"quantity"`
	ExpiryDate string            `json:"expiry_date,omitempty"`
}

// RestockRequest body para POST /api/lots/:id/restock.
type RestockRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason,omitempty"`
}

// LotResponse lote en respuestas.
type LotResponse struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"product_id"`
	SKU        string            `json:"sku,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Cost       decimal.Decimal   `json:"cost"`
	Price      decimal.Decimal   `json:"price"`
	Stock      decimal.Decimal   `json:"stock"`
	IsActive   bool              `json:"is_active"`
	ExpiryDate *time.Time        `json:"expiry_date,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// DeductionDTO deducción sobre un lote.
type DeductionDTO struct {
	BatchID  string          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason,omitempty"`
}

// ProcessDeductionsRequest body para POST /api/inventory/deductions (mermas y ajustes).
type ProcessDeductionsRequest struct {
	Deductions    []DeductionDTO `json:"deductions"`
	ValidateStock *bool          `json:"validate_stock,omitempty"`
	AllowPartial  bool           `json:"allow_partial"`
}

// ExpiryScanRequest body opcional para POST /api/lots/expiring/scan. WarningDays 0 = valor del worker.
type ExpiryScanRequest struct {
	WarningDays int `json:"warning_days" validate:"gte=0,lte=365"`
}

// ExpiryScanResponse tarea encolada.
type ExpiryScanResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}
