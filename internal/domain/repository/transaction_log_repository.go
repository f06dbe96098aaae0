package repository

import (
	"context"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// TransactionLogRepository bitácora de auditoría (append-only).
type TransactionLogRepository interface {
	Append(ctx context.Context, entry *entity.TransactionLogEntry) error
	ListByReference(ctx context.Context, referenceID string) ([]*entity.TransactionLogEntry, error)
}
