package repository

import (
	"context"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// SaleRepository persistencia de ventas y de su papelera.
type SaleRepository interface {
	// Create devuelve domain.ErrDuplicate si el ID ya existe.
	Create(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Sale, error)
	// Exists verifica el ID tanto en ventas vigentes como en la papelera.
	Exists(ctx context.Context, id string) (bool, error)
	MoveToTrash(ctx context.Context, id, reason string) error
	GetTrashed(ctx context.Context, id string) (*entity.TrashedSale, error)
	RestoreFromTrash(ctx context.Context, id string) error
}
