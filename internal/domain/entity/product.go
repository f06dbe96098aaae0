package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchManagement configuración de manejo por lotes/variantes del producto.
type BatchManagement struct {
	Enabled  bool `json:"enabled"`
	Variants bool `json:"variants"` // los lotes representan variantes (talla, color...)
}

// RecipeItem ingrediente consumido por cada unidad vendida del producto compuesto.
type RecipeItem struct {
	IngredientID string          `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// Product representa un producto del catálogo del punto de venta.
// Stock, Cost y Price son desnormalizados: en productos por lotes los recalcula la sincronización.
type Product struct {
	ID              string          `validate:"required"`
	SKU             string          // código de barras
	Name            string          `validate:"required,max=200"`
	Price           decimal.Decimal `validate:"gte=0"`
	Cost            decimal.Decimal `validate:"gte=0"`
	Stock           decimal.Decimal `validate:"gte=0"`
	TracksStock     bool
	BatchManagement BatchManagement
	Recipe          []RecipeItem `validate:"dive"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsBatchManaged indica si el stock del producto vive en sus lotes.
func (p *Product) IsBatchManaged() bool {
	return p.BatchManagement.Enabled
}

// InventoryMode deriva el modo de inventario del producto (exactamente uno).
// El manejo por lotes prevalece sobre TracksStock: si el stock vive en lotes, se descuenta de ellos.
func (p *Product) InventoryMode() InventoryMode {
	switch {
	case len(p.Recipe) > 0:
		return ModeRecipe
	case p.BatchManagement.Enabled && p.BatchManagement.Variants:
		return ModeVariants
	case p.BatchManagement.Enabled:
		return ModeLots
	case !p.TracksStock:
		return ModeUntracked
	default:
		return ModeDirect
	}
}

// Clone copia profunda (la receta no se comparte).
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.Recipe != nil {
		c.Recipe = append([]RecipeItem(nil), p.Recipe...)
	}
	return &c
}
