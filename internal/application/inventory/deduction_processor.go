package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	domaininv "github.com/jhoicas/pos-lotes/internal/domain/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// Deduction cantidad a descontar de un lote.
type Deduction struct {
	BatchID  string
	Quantity decimal.Decimal
	Reason   string // venta, merma, ajuste...
}

// Options opciones de ProcessDeductions. El valor cero valida stock y no admite parciales.
type Options struct {
	SkipStockValidation bool
	AllowPartial        bool
	Tolerance           decimal.Decimal // cero = tolerancia del motor
}

// BatchChange stock de un lote antes y después de aplicar la deducción.
type BatchChange struct {
	BatchID   string          `json:"batch_id"`
	ProductID string          `json:"product_id"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
	Quantity  decimal.Decimal `json:"quantity"`
	Reason    string          `json:"reason,omitempty"`
}

// DeductionResult resultado de un lote de deducciones.
type DeductionResult struct {
	Processed  int                      `json:"processed"`
	Skipped    int                      `json:"skipped"`
	Changes    []BatchChange            `json:"changes"`
	Invalid    []domain.ValidationIssue `json:"invalid,omitempty"`
	Shortfalls []domain.Shortfall       `json:"shortfalls,omitempty"`
}

// DeductionProcessor único camino que descuenta o repone stock.
type DeductionProcessor struct {
	deps Deps
	sync *ProductSync
	log  *logger.Logger
}

// ProcessDeductions valida, consolida, pre-chequea, relee dentro de la transacción, aplica y
// resincroniza los productos tocados. Todo en una transacción.
func (p *DeductionProcessor) ProcessDeductions(ctx context.Context, deductions []Deduction, opts Options) (*DeductionResult, error) {
	valid, issues := validateDeductions(deductions)
	if len(issues) > 0 && !opts.AllowPartial {
		p.deps.Metrics.StockRejected("validacion")
		return nil, &domain.ValidationError{Schema: "deducciones", Issues: issues}
	}

	var res *DeductionResult
	err := p.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		r, err := p.process(ctx, repos, valid, opts)
		res = r
		return err
	})
	if err != nil {
		p.reject(err)
		return nil, domain.Classify("procesar deducciones", err)
	}
	res.Skipped += len(issues)
	res.Invalid = append(issues, res.Invalid...)
	p.deps.Metrics.DeductionsApplied(res.Processed, res.Skipped)
	invalidate(ctx, p.deps, p.log, repository.CollectionBatches, repository.CollectionProducts)
	p.log.Info().Int("procesadas", res.Processed).Int("omitidas", res.Skipped).Msg("deducciones aplicadas")
	return res, nil
}

// ProcessDeductionsInTx igual que ProcessDeductions usando la transacción del llamador.
func (p *DeductionProcessor) ProcessDeductionsInTx(ctx context.Context, repos repository.Repos, deductions []Deduction, opts Options) (*DeductionResult, error) {
	valid, issues := validateDeductions(deductions)
	if len(issues) > 0 && !opts.AllowPartial {
		return nil, &domain.ValidationError{Schema: "deducciones", Issues: issues}
	}
	res, err := p.process(ctx, repos, valid, opts)
	if err != nil {
		return nil, err
	}
	res.Skipped += len(issues)
	res.Invalid = append(issues, res.Invalid...)
	return res, nil
}

func (p *DeductionProcessor) process(ctx context.Context, repos repository.Repos, deductions []Deduction, opts Options) (*DeductionResult, error) {
	tol := opts.Tolerance
	if tol.IsZero() {
		tol = p.deps.Tolerance
	}
	consolidated := consolidate(deductions)

	// Pre-chequeo con instantáneas: cada lote se lee una sola vez.
	res := &DeductionResult{}
	snapshots := make(map[string]entity.BatchSnapshot, len(consolidated))
	ready := make([]Deduction, 0, len(consolidated))
	for _, d := range consolidated {
		b, err := repos.Batches.GetByID(ctx, d.BatchID)
		if err != nil {
			return nil, domain.Classify("leer lote", err)
		}
		if b == nil {
			res.Invalid = append(res.Invalid, domain.ValidationIssue{Field: d.BatchID, Message: "lote inexistente"})
			continue
		}
		snap := b.Snapshot()
		if !opts.SkipStockValidation && (!snap.IsActive() || d.Quantity.GreaterThan(snap.Stock().Add(tol))) {
			res.Shortfalls = append(res.Shortfalls, domain.Shortfall{
				BatchID:   snap.ID(),
				ProductID: snap.ProductID(),
				Available: snap.Stock(),
				Requested: d.Quantity,
				Inactive:  !snap.IsActive(),
			})
			continue
		}
		snapshots[d.BatchID] = snap
		ready = append(ready, d)
	}
	if !opts.AllowPartial {
		if len(res.Invalid) > 0 {
			return nil, &domain.ValidationError{Schema: "deducciones", Issues: res.Invalid}
		}
		if len(res.Shortfalls) > 0 {
			return nil, &domain.StockShortfallError{Shortfalls: res.Shortfalls}
		}
	}
	res.Skipped = len(res.Invalid) + len(res.Shortfalls)

	// Relectura autoritativa y aplicación.
	var touched []string
	seen := make(map[string]bool)
	now := p.deps.Now()
	for _, d := range ready {
		fresh, err := repos.Batches.GetForUpdate(ctx, d.BatchID)
		if err != nil {
			return nil, domain.Classify("bloquear lote", err)
		}
		snap := snapshots[d.BatchID]
		if fresh == nil {
			return nil, &domain.ConcurrentModificationError{BatchID: d.BatchID, Expected: snap.Stock(), Vanished: true}
		}
		if !domaininv.WithinTolerance(fresh.Stock, snap.Stock(), tol) {
			return nil, &domain.ConcurrentModificationError{BatchID: d.BatchID, Expected: snap.Stock(), Actual: fresh.Stock}
		}
		if !opts.SkipStockValidation && d.Quantity.GreaterThan(fresh.Stock.Add(tol)) {
			return nil, &domain.StockShortfallError{Shortfalls: []domain.Shortfall{{
				BatchID: fresh.ID, ProductID: fresh.ProductID, Available: fresh.Stock, Requested: d.Quantity,
			}}}
		}

		before := fresh.Stock
		fresh.SetStock(before.Sub(d.Quantity), tol)
		fresh.UpdatedAt = now
		if err := p.deps.Schema.Validate(schema.Batch, fresh); err != nil {
			return nil, err
		}
		if err := repos.Batches.Upsert(ctx, fresh); err != nil {
			return nil, domain.Classify("guardar lote", err)
		}
		res.Changes = append(res.Changes, BatchChange{
			BatchID: fresh.ID, ProductID: fresh.ProductID,
			Before: before, After: fresh.Stock, Quantity: d.Quantity, Reason: d.Reason,
		})
		res.Processed++
		if !seen[fresh.ProductID] {
			seen[fresh.ProductID] = true
			touched = append(touched, fresh.ProductID)
		}
	}

	for _, productID := range touched {
		if _, err := p.sync.SyncProductFromLotsInTx(ctx, repos, productID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Restock repone stock a un lote existente (recepción sobre un lote abierto, devoluciones).
func (p *DeductionProcessor) Restock(ctx context.Context, batchID string, qty decimal.Decimal, reason string) (*BatchChange, error) {
	if strings.TrimSpace(batchID) == "" || !qty.IsPositive() {
		return nil, domain.NewValidationError("quantity", "lote y cantidad positiva requeridos")
	}
	var change *BatchChange
	err := p.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		c, err := p.restoreLot(ctx, repos, batchID, qty, reason)
		if err != nil {
			return err
		}
		change = c
		_, err = p.sync.SyncProductFromLotsInTx(ctx, repos, c.ProductID)
		return err
	})
	if err != nil {
		p.reject(err)
		return nil, domain.Classify("reponer lote", err)
	}
	invalidate(ctx, p.deps, p.log, repository.CollectionBatches, repository.CollectionProducts)
	return change, nil
}

// AdjustProductStock suma delta al stock de un producto de stock simple (piso en cero).
func (p *DeductionProcessor) AdjustProductStock(ctx context.Context, productID string, delta decimal.Decimal) (*entity.Product, error) {
	if strings.TrimSpace(productID) == "" || delta.IsZero() {
		return nil, domain.NewValidationError("delta", "producto y ajuste distinto de cero requeridos")
	}
	var out *entity.Product
	err := p.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		product, err := repos.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return domain.Classify("bloquear producto", err)
		}
		if product == nil {
			return &domain.ReferentialIntegrityError{Entity: "producto", ID: productID}
		}
		if product.InventoryMode() != entity.ModeDirect {
			return domain.NewValidationError("product_id", "el producto no maneja stock simple")
		}
		out, err = p.adjustDirect(ctx, repos, productID, delta)
		return err
	})
	if err != nil {
		return nil, domain.Classify("ajustar stock", err)
	}
	invalidate(ctx, p.deps, p.log, repository.CollectionProducts)
	return out, nil
}

// restoreLot suma qty a un lote (lectura autoritativa); queda activo si supera la tolerancia.
func (p *DeductionProcessor) restoreLot(ctx context.Context, repos repository.Repos, batchID string, qty decimal.Decimal, reason string) (*BatchChange, error) {
	fresh, err := repos.Batches.GetForUpdate(ctx, batchID)
	if err != nil {
		return nil, domain.Classify("bloquear lote", err)
	}
	if fresh == nil {
		return nil, &domain.ReferentialIntegrityError{Entity: "lote", ID: batchID}
	}
	before := fresh.Stock
	fresh.SetStock(before.Add(qty), p.deps.Tolerance)
	fresh.UpdatedAt = p.deps.Now()
	if err := p.deps.Schema.Validate(schema.Batch, fresh); err != nil {
		return nil, err
	}
	if err := repos.Batches.Upsert(ctx, fresh); err != nil {
		return nil, domain.Classify("guardar lote", err)
	}
	return &BatchChange{
		BatchID: fresh.ID, ProductID: fresh.ProductID,
		Before: before, After: fresh.Stock, Quantity: qty.Neg(), Reason: reason,
	}, nil
}

// adjustDirect aplica delta al stock del producto con piso en cero sobre la fila bloqueada.
func (p *DeductionProcessor) adjustDirect(ctx context.Context, repos repository.Repos, productID string, delta decimal.Decimal) (*entity.Product, error) {
	product, err := repos.Products.GetForUpdate(ctx, productID)
	if err != nil {
		return nil, domain.Classify("bloquear producto", err)
	}
	if product == nil {
		return nil, &domain.ReferentialIntegrityError{Entity: "producto", ID: productID}
	}
	stock := product.Stock.Add(delta)
	if stock.IsNegative() {
		p.log.Warn().Str("product_id", productID).Str("stock", product.Stock.String()).
			Str("delta", delta.String()).Msg("stock simple insuficiente, se deja en cero")
		stock = decimal.Zero
	}
	product.Stock = stock
	product.UpdatedAt = p.deps.Now()
	if err := p.deps.Schema.Validate(schema.Product, product); err != nil {
		return nil, err
	}
	if err := repos.Products.Update(ctx, product); err != nil {
		return nil, domain.Classify("actualizar producto", err)
	}
	return product, nil
}

func (p *DeductionProcessor) reject(err error) {
	var kind string
	switch {
	case domain.IsStockError(err):
		kind = "faltante"
	case errors.Is(err, domain.ErrConcurrentModification):
		kind = "concurrencia"
	default:
		kind = "otro"
	}
	p.deps.Metrics.StockRejected(kind)
	p.log.Warn().Err(err).Str("tipo", kind).Msg("deducción rechazada")
}

// validateDeductions separa las deducciones bien formadas de los problemas estructurales.
func validateDeductions(deductions []Deduction) ([]Deduction, []domain.ValidationIssue) {
	valid := make([]Deduction, 0, len(deductions))
	var issues []domain.ValidationIssue
	for i, d := range deductions {
		field := fmt.Sprintf("deducciones[%d]", i)
		switch {
		case strings.TrimSpace(d.BatchID) == "":
			issues = append(issues, domain.ValidationIssue{Field: field, Message: "batch_id requerido"})
		case !d.Quantity.IsPositive():
			issues = append(issues, domain.ValidationIssue{Field: field, Message: "la cantidad debe ser positiva"})
		default:
			valid = append(valid, d)
		}
	}
	return valid, issues
}

// consolidate suma las deducciones por lote conservando el orden de primera aparición.
func consolidate(deductions []Deduction) []Deduction {
	index := make(map[string]int, len(deductions))
	out := make([]Deduction, 0, len(deductions))
	for _, d := range deductions {
		if i, ok := index[d.BatchID]; ok {
			out[i].Quantity = out[i].Quantity.Add(d.Quantity)
			if d.Reason != "" && !strings.Contains(out[i].Reason, d.Reason) {
				out[i].Reason = strings.TrimPrefix(out[i].Reason+","+d.Reason, ",")
			}
			continue
		}
		index[d.BatchID] = len(out)
		out = append(out, d)
	}
	return out
}
