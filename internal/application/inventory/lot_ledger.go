package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// LotLedger registro de lotes por producto.
type LotLedger struct {
	deps Deps
	sync *ProductSync
	log  *logger.Logger
}

// ReceiveInput entrada para recibir mercancía en un lote nuevo.
type ReceiveInput struct {
	ProductID  string
	SKU        string
	Attributes map[string]string
	Cost       decimal.Decimal
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	ExpiryDate *time.Time
}

// ListByProduct lotes del producto en orden FIFO.
func (l *LotLedger) ListByProduct(ctx context.Context, productID string) ([]*entity.Batch, error) {
	list, err := l.deps.Store.Batches.ListByProduct(ctx, productID)
	return list, domain.Classify("listar lotes", err)
}

// FindBySKU lotes con el código indicado (puede haber varios).
func (l *LotLedger) FindBySKU(ctx context.Context, sku string) ([]*entity.Batch, error) {
	list, err := l.deps.Store.Batches.FindBySKU(ctx, strings.TrimSpace(sku))
	return list, domain.Classify("buscar lote", err)
}

// ListExpiringBefore lotes activos que vencen antes de date.
func (l *LotLedger) ListExpiringBefore(ctx context.Context, date time.Time) ([]*entity.Batch, error) {
	list, err := l.deps.Store.Batches.ListExpiringBefore(ctx, date)
	return list, domain.Classify("lotes por vencer", err)
}

// Upsert crea o actualiza un lote y resincroniza su producto en la misma transacción.
// Un lote existente conserva su stock y su fecha de creación: el stock solo cambia por deducciones o reposiciones.
func (l *LotLedger) Upsert(ctx context.Context, batch *entity.Batch) (*entity.Batch, error) {
	if batch == nil {
		return nil, domain.NewValidationError("lote", "requerido")
	}
	var out *entity.Batch
	err := l.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := l.upsertInTx(ctx, repos, batch.Clone())
		out = b
		return err
	})
	if err != nil {
		return nil, domain.Classify("guardar lote", err)
	}
	invalidate(ctx, l.deps, l.log, repository.CollectionBatches, repository.CollectionProducts)
	return out, nil
}

// Receive registra un lote nuevo con la cantidad recibida.
func (l *LotLedger) Receive(ctx context.Context, in ReceiveInput) (*entity.Batch, error) {
	if strings.TrimSpace(in.ProductID) == "" {
		return nil, domain.NewValidationError("product_id", "requerido")
	}
	if !in.Quantity.IsPositive() {
		return nil, domain.NewValidationError("quantity", "la cantidad debe ser positiva")
	}
	now := l.deps.Now()
	batch := &entity.Batch{
		ID:         uuid.New().String(),
		ProductID:  in.ProductID,
		SKU:        strings.TrimSpace(in.SKU),
		Attributes: in.Attributes,
		Cost:       in.Cost,
		Price:      in.Price,
		Stock:      in.Quantity,
		ExpiryDate: in.ExpiryDate,
		CreatedAt:  now,
	}
	out, err := l.Upsert(ctx, batch)
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("batch_id", out.ID).Str("product_id", out.ProductID).
		Str("cantidad", in.Quantity.String()).Msg("lote recibido")
	return out, nil
}

func (l *LotLedger) upsertInTx(ctx context.Context, repos repository.Repos, batch *entity.Batch) (*entity.Batch, error) {
	product, err := repos.Products.GetByID(ctx, batch.ProductID)
	if err != nil {
		return nil, domain.Classify("leer producto", err)
	}
	if product == nil {
		return nil, &domain.ReferentialIntegrityError{Entity: "producto", ID: batch.ProductID}
	}
	if !product.IsBatchManaged() {
		return nil, domain.NewValidationError("product_id", "el producto no maneja lotes")
	}

	now := l.deps.Now()
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	existing, err := repos.Batches.GetForUpdate(ctx, batch.ID)
	if err != nil {
		return nil, domain.Classify("bloquear lote", err)
	}
	if existing != nil {
		if existing.ProductID != batch.ProductID {
			return nil, domain.NewValidationError("product_id", "el lote pertenece a otro producto")
		}
		batch.Stock = existing.Stock
		batch.CreatedAt = existing.CreatedAt
	} else {
		if batch.Stock.IsNegative() {
			return nil, domain.NewValidationError("stock", "no puede ser negativo")
		}
		if batch.CreatedAt.IsZero() {
			batch.CreatedAt = now
		}
	}
	batch.SetStock(batch.Stock, l.deps.Tolerance)
	batch.UpdatedAt = now

	if err := l.deps.Schema.Validate(schema.Batch, batch); err != nil {
		return nil, err
	}
	if err := repos.Batches.Upsert(ctx, batch); err != nil {
		return nil, domain.Classify("guardar lote", err)
	}
	if _, err := l.sync.SyncProductFromLotsInTx(ctx, repos, batch.ProductID); err != nil {
		return nil, err
	}
	return batch, nil
}
