package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// BatchRepository define el puerto del libro de lotes.
// Usado dentro de transacciones para garantizar consistencia.
type BatchRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Batch, error)
	// GetForUpdate lectura autoritativa: bloquea el lote hasta el fin de la transacción (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Batch, error)
	ListByProduct(ctx context.Context, productID string) ([]*entity.Batch, error)
	FindBySKU(ctx context.Context, sku string) ([]*entity.Batch, error)
	ListExpiringBefore(ctx context.Context, date time.Time) ([]*entity.Batch, error)
	Upsert(ctx context.Context, batch *entity.Batch) error
}
