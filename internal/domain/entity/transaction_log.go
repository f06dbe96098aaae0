package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de entrada en la bitácora.
const (
	LogTypeSale         = "venta"
	LogTypeSaleDeleted  = "venta_eliminada"
	LogTypeSaleRestored = "venta_restaurada"

	LogStatusCompleted = "completada"
)

// TransactionLogEntry registro de auditoría, solo se agrega.
type TransactionLogEntry struct {
	ID          string
	Type        string
	Status      string
	Amount      decimal.Decimal
	ReferenceID string
	Timestamp   time.Time
}
