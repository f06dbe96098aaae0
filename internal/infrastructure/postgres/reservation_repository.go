package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

const reservationColumns = `id, customer_id, items, total, paid, status, payments, cancel_reason, sale_id, created_at, updated_at, closed_at`

// ReservationRepo apartados sobre PostgreSQL; líneas y abonos en JSONB.
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	items, payments, err := marshalReservation(res)
	if err != nil {
		return err
	}
	query := `INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.q.Exec(ctx, query,
		res.ID, res.CustomerID, items, res.Total, res.Paid, string(res.Status), payments,
		nullString(res.CancelReason), nullString(res.SaleID), res.CreatedAt, res.UpdatedAt, res.ClosedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return &domain.ReferentialIntegrityError{Entity: "cliente", ID: res.CustomerID}
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepo) ListByCustomer(ctx context.Context, customerID string) ([]*entity.Reservation, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE customer_id = $1 ORDER BY created_at`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	var list []*entity.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

func (r *ReservationRepo) Update(ctx context.Context, res *entity.Reservation) error {
	items, payments, err := marshalReservation(res)
	if err != nil {
		return err
	}
	query := `
		UPDATE reservations SET items = $2, total = $3, paid = $4, status = $5, payments = $6,
			cancel_reason = $7, sale_id = $8, updated_at = $9, closed_at = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		res.ID, items, res.Total, res.Paid, string(res.Status), payments,
		nullString(res.CancelReason), nullString(res.SaleID), res.UpdatedAt, res.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func marshalReservation(res *entity.Reservation) (items, payments []byte, err error) {
	if items, err = json.Marshal(res.Items); err != nil {
		return nil, nil, fmt.Errorf("marshal items: %w", err)
	}
	if payments, err = json.Marshal(res.Payments); err != nil {
		return nil, nil, fmt.Errorf("marshal payments: %w", err)
	}
	return items, payments, nil
}

func scanReservation(row pgx.Row) (*entity.Reservation, error) {
	var (
		res          entity.Reservation
		items        []byte
		payments     []byte
		status       string
		cancelReason *string
		saleID       *string
	)
	if err := row.Scan(
		&res.ID, &res.CustomerID, &items, &res.Total, &res.Paid, &status, &payments,
		&cancelReason, &saleID, &res.CreatedAt, &res.UpdatedAt, &res.ClosedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &res.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if len(payments) > 0 {
		if err := json.Unmarshal(payments, &res.Payments); err != nil {
			return nil, fmt.Errorf("unmarshal payments: %w", err)
		}
	}
	res.Status = entity.ReservationStatus(status)
	res.CancelReason = derefString(cancelReason)
	res.SaleID = derefString(saleID)
	return &res, nil
}
