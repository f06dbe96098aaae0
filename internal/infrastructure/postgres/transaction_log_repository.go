package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

var _ repository.TransactionLogRepository = (*TransactionLogRepo)(nil)

// TransactionLogRepo bitácora de transacciones (solo inserción).
type TransactionLogRepo struct {
	q Querier
}

// NewTransactionLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTransactionLogRepository(q Querier) *TransactionLogRepo {
	return &TransactionLogRepo{q: q}
}

// Append agrega una entrada.
func (r *TransactionLogRepo) Append(ctx context.Context, e *entity.TransactionLogEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO transaction_log (id, type, status, amount, reference_id, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Type, e.Status, e.Amount, e.ReferenceID, e.Timestamp)
	if err != nil {
		return fmt.Errorf("append transaction log: %w", err)
	}
	return nil
}

// ListByReference entradas de una referencia en orden de llegada.
func (r *TransactionLogRepo) ListByReference(ctx context.Context, referenceID string) ([]*entity.TransactionLogEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, type, status, amount, reference_id, ts
		FROM transaction_log WHERE reference_id = $1 ORDER BY ts, id`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("list transaction log: %w", err)
	}
	defer rows.Close()
	var list []*entity.TransactionLogEntry
	for rows.Next() {
		var e entity.TransactionLogEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.Status, &e.Amount, &e.ReferenceID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction log: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
