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

var _ repository.BatchRepository = (*BatchRepo)(nil)

const batchColumns = `id, product_id, sku, attributes, cost, price, stock, is_active, expiry_date, created_at, updated_at`

// BatchRepo implementación de BatchRepository sobre PostgreSQL (usable con pool o tx).
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

// GetByID obtiene un lote por ID.
func (r *BatchRepo) GetByID(ctx context.Context, id string) (*entity.Batch, error) {
	return r.getOne(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
}

// GetForUpdate obtiene el lote y bloquea la fila hasta el fin de la transacción (SELECT FOR UPDATE).
func (r *BatchRepo) GetForUpdate(ctx context.Context, id string) (*entity.Batch, error) {
	return r.getOne(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, id)
}

// ListByProduct lotes del producto en orden FIFO (created_at, id).
func (r *BatchRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.Batch, error) {
	return r.list(ctx, `SELECT `+batchColumns+` FROM batches WHERE product_id = $1 ORDER BY created_at, id`, productID)
}

// FindBySKU lotes con el código indicado.
func (r *BatchRepo) FindBySKU(ctx context.Context, sku string) ([]*entity.Batch, error) {
	if sku == "" {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+batchColumns+` FROM batches WHERE sku = $1 ORDER BY created_at, id`, sku)
}

// ListExpiringBefore lotes activos con vencimiento anterior a date, el más próximo primero.
func (r *BatchRepo) ListExpiringBefore(ctx context.Context, date time.Time) ([]*entity.Batch, error) {
	return r.list(ctx, `
		SELECT `+batchColumns+` FROM batches
		WHERE is_active AND expiry_date IS NOT NULL AND expiry_date < $1
		ORDER BY expiry_date, created_at`, date)
}

// Upsert inserta o reemplaza el lote completo.
func (r *BatchRepo) Upsert(ctx context.Context, b *entity.Batch) error {
	attrs, err := json.Marshal(b.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku, attributes = EXCLUDED.attributes, cost = EXCLUDED.cost,
			price = EXCLUDED.price, stock = EXCLUDED.stock, is_active = EXCLUDED.is_active,
			expiry_date = EXCLUDED.expiry_date, updated_at = EXCLUDED.updated_at`
	_, err = r.q.Exec(ctx, query,
		b.ID, b.ProductID, nullString(b.SKU), attrs, b.Cost, b.Price, b.Stock, b.IsActive,
		b.ExpiryDate, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &domain.ReferentialIntegrityError{Entity: "producto", ID: b.ProductID}
		}
		return fmt.Errorf("upsert batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) getOne(ctx context.Context, query, id string) (*entity.Batch, error) {
	b, err := scanBatch(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (r *BatchRepo) list(ctx context.Context, query string, arg any) ([]*entity.Batch, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	var list []*entity.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

func scanBatch(row pgx.Row) (*entity.Batch, error) {
	var (
		b     entity.Batch
		sku   *string
		attrs []byte
	)
	if err := row.Scan(
		&b.ID, &b.ProductID, &sku, &attrs, &b.Cost, &b.Price, &b.Stock, &b.IsActive,
		&b.ExpiryDate, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.SKU = derefString(sku)
	if len(attrs) > 0 && string(attrs) != "null" {
		if err := json.Unmarshal(attrs, &b.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	return &b, nil
}
