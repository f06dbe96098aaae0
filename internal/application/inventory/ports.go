package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// TxRunner ejecuta una función dentro de una transacción del almacén, pasando repositorios atados a esa tx.
// Si fn devuelve error la transacción se revierte completa.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error
}

// SchemaValidator valida un registro antes de escribirlo (lo implementa *schema.Validator).
type SchemaValidator interface {
	Validate(schemaName string, record any) error
}

// CacheInvalidator descarta colecciones cacheadas después de un commit.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, collections ...string) error
}

// Metrics métricas del motor de inventario.
type Metrics interface {
	DeductionsApplied(processed, skipped int)
	StockRejected(kind string)
	ProductSynced()
}

// Deps dependencias del motor. Store son repositorios fuera de transacción (lecturas).
type Deps struct {
	Tx        TxRunner
	Store     repository.Repos
	Schema    SchemaValidator
	Cache     CacheInvalidator
	Metrics   Metrics
	Log       *logger.Logger
	Tolerance decimal.Decimal
	Now       func() time.Time
}

// Engine agrupa los servicios del libro de lotes; comparten tolerancia, reloj y validador.
type Engine struct {
	Ledger     *LotLedger
	Sync       *ProductSync
	Deductions *DeductionProcessor
}

// NewEngine construye el motor aplicando valores por defecto a las dependencias opcionales.
func NewEngine(d Deps) *Engine {
	if d.Tolerance.IsZero() {
		d.Tolerance = entity.DefaultTolerance
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Cache == nil {
		d.Cache = nopCache{}
	}
	sync := &ProductSync{deps: d, log: d.Log.Component("sync")}
	proc := &DeductionProcessor{deps: d, sync: sync, log: d.Log.Component("deducciones")}
	ledger := &LotLedger{deps: d, sync: sync, log: d.Log.Component("lotes")}
	return &Engine{Ledger: ledger, Sync: sync, Deductions: proc}
}

// Tolerance tolerancia efectiva del motor.
func (e *Engine) Tolerance() decimal.Decimal {
	return e.Sync.deps.Tolerance
}

type nopMetrics struct{}

func (nopMetrics) DeductionsApplied(int, int) {}
func (nopMetrics) StockRejected(string)       {}
func (nopMetrics) ProductSynced()             {}

type nopCache struct{}

func (nopCache) Invalidate(context.Context, ...string) error { return nil }

// invalidate descarta colecciones; un fallo de caché no revierte la operación ya confirmada.
func invalidate(ctx context.Context, d Deps, log *logger.Logger, collections ...string) {
	if err := d.Cache.Invalidate(ctx, collections...); err != nil {
		log.Warn().Err(err).Strs("colecciones", collections).Msg("invalidar caché")
	}
}
