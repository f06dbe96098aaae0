package repository

import (
	"context"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// ReservationRepository persistencia de apartados.
type ReservationRepository interface {
	Create(ctx context.Context, r *entity.Reservation) error
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*entity.Reservation, error)
	Update(ctx context.Context, r *entity.Reservation) error
}
