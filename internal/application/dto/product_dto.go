package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipeItemDTO ingrediente de una receta.
type RecipeItemDTO struct {
	IngredientID string          `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// CreateProductRequest entrada para crear un producto. Stock solo aplica a productos sin lotes.
type CreateProductRequest struct {
	SKU             string          `json:"sku" validate:"omitempty,max=100"`
	Name            string          `json:"name" validate:"required,min=1,max=200"`
	Price           decimal.Decimal `json:"price"`
	Cost            decimal.Decimal `json:"cost"`
	Stock           decimal.Decimal `json:"stock"`
	TracksStock     bool            `json:"tracks_stock"`
	BatchManagement bool            `json:"batch_management"`
	Variants        bool            `json:"variants"`
	Recipe          []RecipeItemDTO `json:"recipe,omitempty" validate:"omitempty,dive"`
}

// UpdateProductRequest entrada para actualizar un producto (sin Cost ni Stock: los mueve el inventario).
type UpdateProductRequest struct {
	SKU             *string          `json:"sku" validate:"omitempty,max=100"`
	Name            *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Price           *decimal.Decimal `json:"price"`
	TracksStock     *bool            `json:"tracks_stock"`
	BatchManagement *bool            `json:"batch_management"`
	Variants        *bool            `json:"variants"`
	Recipe          []RecipeItemDTO  `json:"recipe,omitempty" validate:"omitempty,dive"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID              string          `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	Cost            decimal.Decimal `json:"cost"`
	Stock           decimal.Decimal `json:"stock"`
	TracksStock     bool            `json:"tracks_stock"`
	BatchManagement bool            `json:"batch_management"`
	Variants        bool            `json:"variants"`
	InventoryMode   string          `json:"inventory_mode"`
	Recipe          []RecipeItemDTO `json:"recipe,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
