package inventory

import (
	"context"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	domaininv "github.com/jhoicas/pos-lotes/internal/domain/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// ProductSync recalcula stock, costo y precio de un producto desde sus lotes (FIFO).
type ProductSync struct {
	deps Deps
	log  *logger.Logger
}

// SyncProductFromLots sincroniza en su propia transacción.
// Devuelve (nil, nil) si el producto no existe.
func (s *ProductSync) SyncProductFromLots(ctx context.Context, productID string) (*entity.Product, error) {
	var out *entity.Product
	err := s.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		p, err := s.SyncProductFromLotsInTx(ctx, repos, productID)
		out = p
		return err
	})
	if err != nil {
		return nil, domain.Classify("sincronizar producto", err)
	}
	invalidate(ctx, s.deps, s.log, repository.CollectionProducts)
	return out, nil
}

// SyncProductFromLotsInTx sincroniza usando los repositorios de la transacción del llamador.
// Hace exactamente una escritura del producto; productos sin manejo de lotes no se tocan.
// El producto se bloquea antes de leer los lotes: dos sincronizaciones del mismo producto se
// serializan y la segunda agrega lo que confirmó la primera.
func (s *ProductSync) SyncProductFromLotsInTx(ctx context.Context, repos repository.Repos, productID string) (*entity.Product, error) {
	product, err := repos.Products.GetForUpdate(ctx, productID)
	if err != nil {
		return nil, domain.Classify("bloquear producto", err)
	}
	if product == nil {
		s.log.Debug().Str("product_id", productID).Msg("sincronización sin producto, se omite")
		return nil, nil
	}
	if !product.IsBatchManaged() {
		return product, nil
	}

	batches, err := repos.Batches.ListByProduct(ctx, productID)
	if err != nil {
		return nil, domain.Classify("listar lotes", err)
	}
	agg := domaininv.AggregateFIFO(batches, s.deps.Tolerance)

	product.Stock = agg.Stock
	if agg.Source != nil {
		product.Cost = agg.Cost
		product.Price = agg.Price
	}
	product.UpdatedAt = s.deps.Now()
	if err := s.deps.Schema.Validate(schema.Product, product); err != nil {
		return nil, err
	}
	if err := repos.Products.Update(ctx, product); err != nil {
		return nil, domain.Classify("actualizar producto", err)
	}
	s.deps.Metrics.ProductSynced()
	return product, nil
}
