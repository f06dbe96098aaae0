package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTolerance umbral por debajo del cual un stock se considera agotado.
var DefaultTolerance = decimal.New(1, -4)

// Batch lote (o variante) de un producto. Nunca se elimina: se cierra con stock 0.
type Batch struct {
	ID         string            `validate:"required"`
	ProductID  string            `validate:"required"`
	SKU        string            `validate:"max=100"`
	Attributes map[string]string // atributos de variante (talla, color...)
	Cost       decimal.Decimal   `validate:"gte=0"`
	Price      decimal.Decimal   `validate:"gte=0"`
	Stock      decimal.Decimal   `validate:"gte=0"`
	IsActive   bool
	ExpiryDate *time.Time
	CreatedAt  time.Time // clave FIFO
	UpdatedAt  time.Time
}

// SetStock fija el stock (mínimo 0) y recalcula IsActive. Único punto que escribe IsActive.
func (b *Batch) SetStock(stock, tolerance decimal.Decimal) {
	if stock.IsNegative() {
		stock = decimal.Zero
	}
	b.Stock = stock
	b.IsActive = stock.GreaterThan(tolerance)
}

// Available indica si el lote cuenta para el stock del producto.
func (b *Batch) Available(tolerance decimal.Decimal) bool {
	return b.IsActive && b.Stock.GreaterThan(tolerance)
}

// Snapshot lectura de solo consulta usada en el pre-chequeo.
func (b *Batch) Snapshot() BatchSnapshot {
	return BatchSnapshot{
		id:        b.ID,
		productID: b.ProductID,
		stock:     b.Stock,
		active:    b.IsActive,
	}
}

// Clone copia profunda.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	c := *b
	if b.Attributes != nil {
		c.Attributes = make(map[string]string, len(b.Attributes))
		for k, v := range b.Attributes {
			c.Attributes[k] = v
		}
	}
	if b.ExpiryDate != nil {
		t := *b.ExpiryDate
		c.ExpiryDate = &t
	}
	return &c
}

// BatchSnapshot valor inmutable de un lote; no existe camino de escritura para él.
type BatchSnapshot struct {
	id        string
	productID string
	stock     decimal.Decimal
	active    bool
}

func (s BatchSnapshot) ID() string             { return s.id }
func (s BatchSnapshot) ProductID() string      { return s.productID }
func (s BatchSnapshot) Stock() decimal.Decimal { return s.stock }
func (s BatchSnapshot) IsActive() bool         { return s.active }
