// Package inventory contiene las reglas puras del libro de lotes (servicio de dominio).
package inventory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// SortFIFO ordena los lotes por fecha de creación ascendente (desempate por ID).
func SortFIFO(batches []*entity.Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].ID < batches[j].ID
		}
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
}

// Aggregate resultado de recalcular un producto desde sus lotes.
type Aggregate struct {
	Stock decimal.Decimal
	Cost  decimal.Decimal
	Price decimal.Decimal
	// Source lote del que salen costo y precio; nil si no hay lotes.
	Source *entity.Batch
}

// AggregateFIFO suma el stock de los lotes disponibles y toma costo/precio del más antiguo.
// Sin lotes disponibles, costo/precio vienen del lote actualizado más recientemente.
func AggregateFIFO(batches []*entity.Batch, tolerance decimal.Decimal) Aggregate {
	sorted := append([]*entity.Batch(nil), batches...)
	SortFIFO(sorted)

	agg := Aggregate{Stock: decimal.Zero}
	for _, b := range sorted {
		if !b.Available(tolerance) {
			continue
		}
		agg.Stock = agg.Stock.Add(b.Stock)
		if agg.Source == nil {
			agg.Source = b
		}
	}
	if agg.Source == nil {
		for _, b := range sorted {
			if agg.Source == nil || b.UpdatedAt.After(agg.Source.UpdatedAt) {
				agg.Source = b
			}
		}
	}
	if agg.Source != nil {
		agg.Cost = agg.Source.Cost
		agg.Price = agg.Source.Price
	}
	return agg
}

// Allocate reparte qty entre los lotes disponibles en orden FIFO.
// planned acumula lo ya asignado por lote en la misma operación y se actualiza.
// Devuelve las porciones y el faltante (cero si alcanzó).
func Allocate(batches []*entity.Batch, qty decimal.Decimal, planned map[string]decimal.Decimal, tolerance decimal.Decimal) ([]entity.LotUsage, decimal.Decimal) {
	sorted := append([]*entity.Batch(nil), batches...)
	SortFIFO(sorted)

	remaining := qty
	var usages []entity.LotUsage
	for _, b := range sorted {
		if remaining.LessThanOrEqual(tolerance) {
			break
		}
		if !b.Available(tolerance) {
			continue
		}
		free := b.Stock.Sub(planned[b.ID])
		if free.LessThanOrEqual(tolerance) {
			continue
		}
		take := decimal.Min(free, remaining)
		usages = append(usages, entity.LotUsage{BatchID: b.ID, Quantity: take})
		planned[b.ID] = planned[b.ID].Add(take)
		remaining = remaining.Sub(take)
	}
	if remaining.LessThanOrEqual(tolerance) {
		remaining = decimal.Zero
	}
	return usages, remaining
}

// WeightedCost costo unitario ponderado de las porciones tomadas.
func WeightedCost(usages []entity.LotUsage, costOf func(batchID string) decimal.Decimal) decimal.Decimal {
	qty := decimal.Zero
	total := decimal.Zero
	for _, u := range usages {
		qty = qty.Add(u.Quantity)
		total = total.Add(u.Quantity.Mul(costOf(u.BatchID)))
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return total.Div(qty)
}

// WithinTolerance |a-b| <= tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}
