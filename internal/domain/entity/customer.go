package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer representa un cliente del punto de venta; Debt es su saldo de fiado.
type Customer struct {
	ID        string
	Name      string
	TaxID     string // NIT o Cédula
	Email     string
	Phone     string
	Debt      decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
