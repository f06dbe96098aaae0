// Package metrics expone los colectores Prometheus del motor de inventario, las ventas y los jobs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics colectores del servicio. Un *Metrics nil descarta todo.
type Metrics struct {
	deductions    *prometheus.CounterVec
	stockRejected *prometheus.CounterVec
	productSyncs  prometheus.Counter
	sales         prometheus.Counter
	salesAmount   prometheus.Counter
	salesRejected *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	lotsExpiring  prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// New registra los colectores en registerer. Con nil se usa el registro por defecto de Prometheus.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = build(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return build(registerer)
}

func build(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		deductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_inventory_deductions_total",
			Help: "Deducciones de inventario procesadas, por resultado.",
		}, []string{"result"}),
		stockRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_inventory_rejections_total",
			Help: "Operaciones de inventario rechazadas, por motivo.",
		}, []string{"kind"}),
		productSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_inventory_product_syncs_total",
			Help: "Resincronizaciones de producto desde sus lotes.",
		}),
		sales: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_total",
			Help: "Ventas confirmadas.",
		}),
		salesAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_amount_total",
			Help: "Suma de los totales de las ventas confirmadas.",
		}),
		salesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sales_rejected_total",
			Help: "Ventas rechazadas, por motivo.",
		}, []string{"kind"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_jobs_total",
			Help: "Ejecuciones de jobs por nombre y estado.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_job_duration_seconds",
			Help:    "Duración en segundos de los jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		lotsExpiring: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_lots_expiring",
			Help: "Lotes activos próximos a vencer en el último escaneo.",
		}),
	}
	registerer.MustRegister(m.deductions, m.stockRejected, m.productSyncs,
		m.sales, m.salesAmount, m.salesRejected, m.jobRuns, m.jobDuration, m.lotsExpiring)
	return m
}

// DeductionsApplied cuenta deducciones aplicadas y omitidas de un lote de trabajo.
func (m *Metrics) DeductionsApplied(processed, skipped int) {
	if m == nil {
		return
	}
	if processed > 0 {
		m.deductions.WithLabelValues("processed").Add(float64(processed))
	}
	if skipped > 0 {
		m.deductions.WithLabelValues("skipped").Add(float64(skipped))
	}
}

func (m *Metrics) StockRejected(kind string) {
	if m == nil {
		return
	}
	m.stockRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) ProductSynced() {
	if m == nil {
		return
	}
	m.productSyncs.Inc()
}

// SaleCommitted suma una venta y su total.
func (m *Metrics) SaleCommitted(total decimal.Decimal) {
	if m == nil {
		return
	}
	m.sales.Inc()
	m.salesAmount.Add(total.InexactFloat64())
}

func (m *Metrics) SaleRejected(kind string) {
	if m == nil {
		return
	}
	m.salesRejected.WithLabelValues(kind).Inc()
}

// LotsExpiring fija el gauge con el resultado del último escaneo.
func (m *Metrics) LotsExpiring(n int) {
	if m == nil {
		return
	}
	m.lotsExpiring.Set(float64(n))
}

// Tracker instrumenta una ejecución de job.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track inicia el seguimiento de una ejecución.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End registra duración y estado, y devuelve err sin tocarlo.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.jobRuns.WithLabelValues(t.job, status).Inc()
	t.metrics.jobDuration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}
