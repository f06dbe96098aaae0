package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

const saleColumns = `id, ts, items, total, payment_method, customer_id, balance, stock_settled, reservation_id, created_at`

// SaleRepo ventas sobre PostgreSQL. La papelera es la misma tabla con deleted_at:
// una venta eliminada conserva su ID y la llave de idempotencia sigue ocupada.
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// Create persiste la venta con sus líneas (JSONB).
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	query := `INSERT INTO sales (` + saleColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.q.Exec(ctx, query,
		s.ID, s.Timestamp, items, s.Total, string(s.PaymentMethod), nullString(s.CustomerID),
		s.Balance, s.StockSettled, nullString(s.ReservationID), s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// GetByID obtiene una venta vigente (no eliminada).
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1 AND deleted_at IS NULL`
	s, err := scanSale(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return s, nil
}

// List ventas vigentes, la más reciente primero.
func (r *SaleRepo) List(ctx context.Context, limit, offset int) ([]*entity.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE deleted_at IS NULL ORDER BY ts DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()
	var list []*entity.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Exists indica si el ID ya fue usado, incluida la papelera.
func (r *SaleRepo) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists sale: %w", err)
	}
	return ok, nil
}

// MoveToTrash marca la venta como eliminada con su motivo.
func (r *SaleRepo) MoveToTrash(ctx context.Context, id, reason string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE sales SET deleted_at = $2, delete_reason = $3 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now(), reason)
	if err != nil {
		return fmt.Errorf("trash sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetTrashed obtiene una venta de la papelera.
func (r *SaleRepo) GetTrashed(ctx context.Context, id string) (*entity.TrashedSale, error) {
	query := `SELECT ` + saleColumns + `, delete_reason, deleted_at FROM sales WHERE id = $1 AND deleted_at IS NOT NULL`
	var (
		t      entity.TrashedSale
		reason *string
	)
	sale, err := scanSale(r.q.QueryRow(ctx, query, id), &reason, &t.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trashed sale: %w", err)
	}
	t.Sale = sale
	t.Reason = derefString(reason)
	return &t, nil
}

// RestoreFromTrash devuelve la venta a vigente.
func (r *SaleRepo) RestoreFromTrash(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE sales SET deleted_at = NULL, delete_reason = NULL WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("restore sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanSale lee las columnas de saleColumns seguidas de extra.
func scanSale(row pgx.Row, extra ...any) (*entity.Sale, error) {
	var (
		s             entity.Sale
		items         []byte
		method        string
		customerID    *string
		reservationID *string
	)
	dest := []any{
		&s.ID, &s.Timestamp, &items, &s.Total, &method, &customerID,
		&s.Balance, &s.StockSettled, &reservationID, &s.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &s.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	s.PaymentMethod = entity.PaymentMethod(method)
	s.CustomerID = derefString(customerID)
	s.ReservationID = derefString(reservationID)
	return &s, nil
}
