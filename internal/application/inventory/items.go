package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	domaininv "github.com/jhoicas/pos-lotes/internal/domain/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

// Motivos de movimiento.
const (
	ReasonSale        = "venta"
	ReasonReservation = "apartado"
	ReasonRestore     = "reintegro"
	ReasonWaste       = "merma"
)

type directChange struct {
	productID string
	delta     decimal.Decimal
}

// ApplyItems descuenta el stock de líneas de venta o apartado dentro de la transacción del llamador.
// Las líneas con lotes explícitos van al procesador sin parciales; las de productos por lotes sin
// lotes se asignan FIFO; las recetas consumen sus ingredientes. Si explicit no está vacío reemplaza
// a item.Lots en los productos a los que pertenecen sus lotes: cada uno debe tener línea y la suma
// debe igualar la cantidad de sus líneas. Devuelve las líneas con el registro de lo consumido, que
// solo conserva lotes o ingredientes cuando el modo del producto los usa.
func (p *DeductionProcessor) ApplyItems(ctx context.Context, repos repository.Repos, items []entity.SaleItem, explicit []Deduction, reason string) ([]entity.SaleItem, error) {
	out := entity.CloneItems(items)
	planned := make(map[string]decimal.Decimal)
	costs := make(map[string]decimal.Decimal)
	var lotDeds []Deduction
	var direct []directChange

	products := make([]*entity.Product, len(out))
	for i := range out {
		it := &out[i]
		field := fmt.Sprintf("items[%d]", i)
		if it.ProductID == "" {
			return nil, domain.NewValidationError(field, "product_id requerido")
		}
		if !it.Quantity.IsPositive() {
			return nil, domain.NewValidationError(field, "la cantidad debe ser positiva")
		}
		product, err := repos.Products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, domain.Classify("leer producto", err)
		}
		if product == nil {
			return nil, &domain.ReferentialIntegrityError{Entity: "producto", ID: it.ProductID}
		}
		products[i] = product
	}

	covered, err := p.explicitByProduct(ctx, repos, out, products, explicit, planned, costs)
	if err != nil {
		return nil, err
	}

	costOf := func(batchID string) decimal.Decimal { return costs[batchID] }

	for i := range out {
		it, product := &out[i], products[i]
		field := fmt.Sprintf("items[%d]", i)
		if it.Name == "" {
			it.Name = product.Name
		}

		switch mode := product.InventoryMode(); mode {
		case entity.ModeRecipe:
			it.Lots, it.Ingredients = nil, nil
			for _, ing := range product.Recipe {
				usage, lots, change, err := p.consumeIngredient(ctx, repos, ing, it.Quantity, planned, costs, reason)
				if err != nil {
					return nil, err
				}
				lotDeds = append(lotDeds, lots...)
				if change != nil {
					direct = append(direct, *change)
				}
				it.Ingredients = append(it.Ingredients, usage)
			}
			if it.UnitCost.IsZero() {
				it.UnitCost = product.Cost
			}

		case entity.ModeLots, entity.ModeVariants:
			it.Ingredients = nil
			switch queue := covered[product.ID]; {
			case queue != nil:
				it.Lots = queue.take(it.Quantity)
			case len(it.Lots) > 0:
				if err := p.checkLineLots(ctx, repos, field, product.ID, it, costs); err != nil {
					return nil, err
				}
				for _, lot := range it.Lots {
					planned[lot.BatchID] = planned[lot.BatchID].Add(lot.Quantity)
					lotDeds = append(lotDeds, Deduction{BatchID: lot.BatchID, Quantity: lot.Quantity, Reason: reason})
				}
			default:
				lots, err := p.allocate(ctx, repos, product.ID, it.Quantity, planned, costs)
				if err != nil {
					return nil, err
				}
				it.Lots = lots
				for _, lot := range lots {
					lotDeds = append(lotDeds, Deduction{BatchID: lot.BatchID, Quantity: lot.Quantity, Reason: reason})
				}
			}
			if it.UnitCost.IsZero() {
				it.UnitCost = domaininv.WeightedCost(it.Lots, costOf)
			}

		case entity.ModeDirect:
			it.Lots, it.Ingredients = nil, nil
			direct = append(direct, directChange{productID: product.ID, delta: it.Quantity.Neg()})
			if it.UnitCost.IsZero() {
				it.UnitCost = product.Cost
			}

		case entity.ModeUntracked:
			it.Lots, it.Ingredients = nil, nil
			if it.UnitCost.IsZero() {
				it.UnitCost = product.Cost
			}
		}
	}

	lotDeds = append(append([]Deduction(nil), explicit...), lotDeds...)
	if len(lotDeds) > 0 {
		if _, err := p.ProcessDeductionsInTx(ctx, repos, lotDeds, Options{}); err != nil {
			return nil, err
		}
	}
	for _, c := range direct {
		if _, err := p.adjustDirect(ctx, repos, c.productID, c.delta); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// checkLineLots valida los lotes que trae la línea: del mismo producto y sumando su cantidad.
// Los lotes inexistentes se dejan al procesador, que los reporta como entrada inválida.
func (p *DeductionProcessor) checkLineLots(ctx context.Context, repos repository.Repos, field, productID string, it *entity.SaleItem, costs map[string]decimal.Decimal) error {
	sum := decimal.Zero
	for _, lot := range it.Lots {
		b, err := repos.Batches.GetByID(ctx, lot.BatchID)
		if err != nil {
			return domain.Classify("leer lote", err)
		}
		if b != nil {
			if b.ProductID != productID {
				return domain.NewValidationError(field, fmt.Sprintf("el lote %s no pertenece al producto %s", lot.BatchID, productID))
			}
			costs[b.ID] = b.Cost
		}
		sum = sum.Add(lot.Quantity)
	}
	if !domaininv.WithinTolerance(sum, it.Quantity, p.deps.Tolerance) {
		return domain.NewValidationError(field, fmt.Sprintf("los lotes suman %s y la línea %s", sum, it.Quantity))
	}
	return nil
}

// explicitQueue deducciones explícitas de un producto pendientes de repartir entre sus líneas.
type explicitQueue struct {
	usages []entity.LotUsage
	lines  int
}

// take entrega lotes hasta cubrir qty partiendo el último si hace falta; la última línea se lleva
// el resto completo para que lo registrado sume exactamente lo deducido.
func (q *explicitQueue) take(qty decimal.Decimal) []entity.LotUsage {
	q.lines--
	if q.lines <= 0 {
		out := q.usages
		q.usages = nil
		return out
	}
	var out []entity.LotUsage
	for qty.IsPositive() && len(q.usages) > 0 {
		head := &q.usages[0]
		n := decimal.Min(head.Quantity, qty)
		out = append(out, entity.LotUsage{BatchID: head.BatchID, Quantity: n})
		qty = qty.Sub(n)
		head.Quantity = head.Quantity.Sub(n)
		if !head.Quantity.IsPositive() {
			q.usages = q.usages[1:]
		}
	}
	return out
}

// explicitByProduct agrupa las deducciones explícitas por el producto dueño de cada lote. Cada lote
// debe existir y pertenecer a un producto por lotes con línea en la venta, y lo deducido por producto
// debe igualar la suma de sus líneas dentro de la tolerancia.
func (p *DeductionProcessor) explicitByProduct(
	ctx context.Context,
	repos repository.Repos,
	items []entity.SaleItem,
	products []*entity.Product,
	explicit []Deduction,
	planned, costs map[string]decimal.Decimal,
) (map[string]*explicitQueue, error) {
	if len(explicit) == 0 {
		return nil, nil
	}
	if _, issues := validateDeductions(explicit); len(issues) > 0 {
		return nil, &domain.ValidationError{Schema: "deducciones", Issues: issues}
	}

	lineQty := make(map[string]decimal.Decimal)
	queues := make(map[string]*explicitQueue)
	for i, product := range products {
		switch product.InventoryMode() {
		case entity.ModeLots, entity.ModeVariants:
			lineQty[product.ID] = lineQty[product.ID].Add(items[i].Quantity)
			if queues[product.ID] == nil {
				queues[product.ID] = &explicitQueue{}
			}
			queues[product.ID].lines++
		}
	}

	var issues []domain.ValidationIssue
	var order []string
	sums := make(map[string]decimal.Decimal)
	for i, ded := range explicit {
		field := fmt.Sprintf("deducciones[%d]", i)
		b, err := repos.Batches.GetByID(ctx, ded.BatchID)
		if err != nil {
			return nil, domain.Classify("leer lote", err)
		}
		if b == nil {
			issues = append(issues, domain.ValidationIssue{Field: ded.BatchID, Message: "lote inexistente"})
			continue
		}
		q, ok := queues[b.ProductID]
		if !ok {
			issues = append(issues, domain.ValidationIssue{
				Field:   field,
				Message: fmt.Sprintf("el lote %s es del producto %s, que no tiene línea por lotes en la venta", b.ID, b.ProductID),
			})
			continue
		}
		if _, seen := sums[b.ProductID]; !seen {
			order = append(order, b.ProductID)
		}
		sums[b.ProductID] = sums[b.ProductID].Add(ded.Quantity)
		planned[b.ID] = planned[b.ID].Add(ded.Quantity)
		costs[b.ID] = b.Cost
		q.usages = append(q.usages, entity.LotUsage{BatchID: b.ID, Quantity: ded.Quantity})
	}
	for _, productID := range order {
		if !domaininv.WithinTolerance(sums[productID], lineQty[productID], p.deps.Tolerance) {
			issues = append(issues, domain.ValidationIssue{
				Field:   productID,
				Message: fmt.Sprintf("las deducciones suman %s y las líneas %s", sums[productID], lineQty[productID]),
			})
		}
	}
	if len(issues) > 0 {
		return nil, &domain.ValidationError{Schema: "deducciones", Issues: issues}
	}

	covered := make(map[string]*explicitQueue, len(order))
	for _, productID := range order {
		covered[productID] = queues[productID]
	}
	return covered, nil
}

// consumeIngredient resuelve el consumo de un ingrediente de receta según su propio modo.
func (p *DeductionProcessor) consumeIngredient(
	ctx context.Context,
	repos repository.Repos,
	ing entity.RecipeItem,
	lineQty decimal.Decimal,
	planned, costs map[string]decimal.Decimal,
	reason string,
) (entity.IngredientUsage, []Deduction, *directChange, error) {
	need := ing.Quantity.Mul(lineQty)
	usage := entity.IngredientUsage{ProductID: ing.IngredientID, Quantity: need}

	ingredient, err := repos.Products.GetByID(ctx, ing.IngredientID)
	if err != nil {
		return usage, nil, nil, domain.Classify("leer ingrediente", err)
	}
	if ingredient == nil {
		return usage, nil, nil, &domain.ReferentialIntegrityError{Entity: "ingrediente", ID: ing.IngredientID}
	}

	switch ingredient.InventoryMode() {
	case entity.ModeLots, entity.ModeVariants:
		lots, err := p.allocate(ctx, repos, ingredient.ID, need, planned, costs)
		if err != nil {
			return usage, nil, nil, err
		}
		usage.Lots = lots
		deds := make([]Deduction, 0, len(lots))
		for _, lot := range lots {
			deds = append(deds, Deduction{BatchID: lot.BatchID, Quantity: lot.Quantity, Reason: reason})
		}
		return usage, deds, nil, nil
	case entity.ModeDirect:
		return usage, nil, &directChange{productID: ingredient.ID, delta: need.Neg()}, nil
	case entity.ModeUntracked:
		return usage, nil, nil, nil
	case entity.ModeRecipe:
		return usage, nil, nil, domain.NewValidationError("recipe", fmt.Sprintf("el ingrediente %s es a su vez una receta", ingredient.ID))
	}
	return usage, nil, nil, nil
}

// allocate reparte qty en los lotes del producto (FIFO) o falla con StockShortfallError.
func (p *DeductionProcessor) allocate(
	ctx context.Context,
	repos repository.Repos,
	productID string,
	qty decimal.Decimal,
	planned, costs map[string]decimal.Decimal,
) ([]entity.LotUsage, error) {
	batches, err := repos.Batches.ListByProduct(ctx, productID)
	if err != nil {
		return nil, domain.Classify("listar lotes", err)
	}
	for _, b := range batches {
		costs[b.ID] = b.Cost
	}
	usages, missing := domaininv.Allocate(batches, qty, planned, p.deps.Tolerance)
	if missing.IsPositive() {
		return nil, &domain.StockShortfallError{Shortfalls: []domain.Shortfall{{
			ProductID: productID,
			Available: qty.Sub(missing),
			Requested: qty,
		}}}
	}
	return usages, nil
}

// RestoreItems devuelve al inventario lo que registraron las líneas (lotes, ingredientes o stock
// simple) y resincroniza los productos tocados. Productos ya inexistentes se omiten.
func (p *DeductionProcessor) RestoreItems(ctx context.Context, repos repository.Repos, items []entity.SaleItem) error {
	var touched []string
	seen := make(map[string]bool)
	restoreLots := func(lots []entity.LotUsage) error {
		for _, lot := range lots {
			change, err := p.restoreLot(ctx, repos, lot.BatchID, lot.Quantity, ReasonRestore)
			if err != nil {
				return err
			}
			if !seen[change.ProductID] {
				seen[change.ProductID] = true
				touched = append(touched, change.ProductID)
			}
		}
		return nil
	}
	restoreDirect := func(productID string, qty decimal.Decimal) error {
		product, err := repos.Products.GetByID(ctx, productID)
		if err != nil {
			return domain.Classify("leer producto", err)
		}
		if product == nil {
			p.log.Warn().Str("product_id", productID).Msg("reintegro de producto inexistente, se omite")
			return nil
		}
		if product.InventoryMode() != entity.ModeDirect {
			return nil
		}
		_, err = p.adjustDirect(ctx, repos, productID, qty)
		return err
	}

	for _, it := range items {
		switch {
		case len(it.Ingredients) > 0:
			for _, ing := range it.Ingredients {
				if len(ing.Lots) > 0 {
					if err := restoreLots(ing.Lots); err != nil {
						return err
					}
					continue
				}
				if err := restoreDirect(ing.ProductID, ing.Quantity); err != nil {
					return err
				}
			}
		case len(it.Lots) > 0:
			if err := restoreLots(it.Lots); err != nil {
				return err
			}
		default:
			if err := restoreDirect(it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
	}

	for _, productID := range touched {
		if _, err := p.sync.SyncProductFromLotsInTx(ctx, repos, productID); err != nil {
			return err
		}
	}
	return nil
}

// ReapplyItems vuelve a descontar exactamente lo que registraron las líneas (lotes de línea y de
// ingrediente sin parciales, stock simple con piso en cero). Es el inverso de RestoreItems.
func (p *DeductionProcessor) ReapplyItems(ctx context.Context, repos repository.Repos, items []entity.SaleItem, reason string) error {
	var deds []Deduction
	var direct []directChange
	addDirect := func(entityName, productID string, qty decimal.Decimal) error {
		product, err := repos.Products.GetByID(ctx, productID)
		if err != nil {
			return domain.Classify("leer producto", err)
		}
		if product == nil {
			return &domain.ReferentialIntegrityError{Entity: entityName, ID: productID}
		}
		if product.InventoryMode() == entity.ModeDirect {
			direct = append(direct, directChange{productID: productID, delta: qty.Neg()})
		}
		return nil
	}

	for _, it := range items {
		switch {
		case len(it.Ingredients) > 0:
			for _, ing := range it.Ingredients {
				if len(ing.Lots) == 0 {
					if err := addDirect("ingrediente", ing.ProductID, ing.Quantity); err != nil {
						return err
					}
					continue
				}
				for _, lot := range ing.Lots {
					deds = append(deds, Deduction{BatchID: lot.BatchID, Quantity: lot.Quantity, Reason: reason})
				}
			}
		case len(it.Lots) > 0:
			for _, lot := range it.Lots {
				deds = append(deds, Deduction{BatchID: lot.BatchID, Quantity: lot.Quantity, Reason: reason})
			}
		default:
			if err := addDirect("producto", it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
	}

	if len(deds) > 0 {
		if _, err := p.ProcessDeductionsInTx(ctx, repos, deds, Options{}); err != nil {
			return err
		}
	}
	for _, c := range direct {
		if _, err := p.adjustDirect(ctx, repos, c.productID, c.delta); err != nil {
			return err
		}
	}
	return nil
}
