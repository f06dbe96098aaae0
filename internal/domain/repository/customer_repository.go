package repository

import (
	"context"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// CustomerRepository define el puerto de persistencia para Customer (cuenta de fiado).
type CustomerRepository interface {
	Create(ctx context.Context, customer *entity.Customer) error
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Customer, error)
	Update(ctx context.Context, customer *entity.Customer) error
}
