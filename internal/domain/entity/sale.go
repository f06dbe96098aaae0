package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod medio de pago de una venta o abono.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "efectivo"
	PaymentCard     PaymentMethod = "tarjeta"
	PaymentTransfer PaymentMethod = "transferencia"
	PaymentCredit   PaymentMethod = "fiado" // pago diferido: el saldo va a la cuenta del cliente
)

// IsDeferred indica si el saldo pendiente se carga a la deuda del cliente.
func (m PaymentMethod) IsDeferred() bool {
	return m == PaymentCredit
}

// Valid indica si el medio de pago es conocido.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentCredit:
		return true
	}
	return false
}

// LotUsage cantidad tomada de un lote concreto.
type LotUsage struct {
	BatchID  string          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// IngredientUsage registro de lo que consumió una línea de receta por ingrediente.
type IngredientUsage struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Lots      []LotUsage      `json:"lots,omitempty"`
}

// SaleItem línea de venta (o de apartado).
type SaleItem struct {
	ProductID   string            `json:"product_id"`
	Name        string            `json:"name"`
	Quantity    decimal.Decimal   `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	UnitCost    decimal.Decimal   `json:"unit_cost"` // costo al momento de la venta
	Lots        []LotUsage        `json:"lots,omitempty"`
	Ingredients []IngredientUsage `json:"ingredients,omitempty"`
}

// Subtotal cantidad * precio unitario.
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Sale venta confirmada. ID es la llave de idempotencia.
type Sale struct {
	ID            string
	Timestamp     time.Time
	Items         []SaleItem
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	CustomerID    string
	Balance       decimal.Decimal // saldo pendiente (fiado)
	StockSettled  bool            // el stock ya se descontó (p. ej. apartado convertido)
	ReservationID string
	CreatedAt     time.Time
}

// ItemsTotal suma de subtotales.
func (s *Sale) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Clone copia profunda de la venta y sus líneas.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = CloneItems(s.Items)
	return &c
}

// TrashedSale venta eliminada (papelera) con su motivo.
type TrashedSale struct {
	Sale      *Sale
	Reason    string
	DeletedAt time.Time
}

// CloneItems copia profunda de líneas.
func CloneItems(items []SaleItem) []SaleItem {
	if items == nil {
		return nil
	}
	out := make([]SaleItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Lots != nil {
			out[i].Lots = append([]LotUsage(nil), it.Lots...)
		}
		if it.Ingredients != nil {
			ing := make([]IngredientUsage, len(it.Ingredients))
			for j, u := range it.Ingredients {
				ing[j] = u
				if u.Lots != nil {
					ing[j].Lots = append([]LotUsage(nil), u.Lots...)
				}
			}
			out[i].Ingredients = ing
		}
	}
	return out
}
