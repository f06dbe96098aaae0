package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/event"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/metrics"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

// TaskLotExpiryScan busca lotes activos próximos a vencer y publica un aviso por cada uno.
const TaskLotExpiryScan = "lotes:vencimiento"

// LotExpiryPayload datos de programación del escaneo. WarningDays <= 0 usa el valor del job.
type LotExpiryPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	WarningDays  int       `json:"warning_days,omitempty"`
}

// NewLotExpiryScanTask construye la tarea de escaneo.
func NewLotExpiryScanTask(at time.Time, warningDays int) (*asynq.Task, error) {
	body, err := json.Marshal(LotExpiryPayload{ScheduledFor: at, WarningDays: warningDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLotExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// ExpiringLister fuente de lotes por vencer (la implementa *inventory.LotLedger).
type ExpiringLister interface {
	ListExpiringBefore(ctx context.Context, date time.Time) ([]*entity.Batch, error)
}

// LotExpiryJob handler del escaneo de vencimientos.
type LotExpiryJob struct {
	lots        ExpiringLister
	events      event.Publisher
	metrics     *metrics.Metrics
	log         *logger.Logger
	warningDays int
	clock       func() time.Time
}

// NewLotExpiryJob construye el handler. events y m pueden ser nil.
func NewLotExpiryJob(lots ExpiringLister, events event.Publisher, m *metrics.Metrics, log *logger.Logger, warningDays int) *LotExpiryJob {
	if events == nil {
		events = event.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if warningDays <= 0 {
		warningDays = 7
	}
	return &LotExpiryJob{
		lots:        lots,
		events:      events,
		metrics:     m,
		log:         log.Component("vencimientos"),
		warningDays: warningDays,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj (pruebas).
func (j *LotExpiryJob) WithClock(clock func() time.Time) *LotExpiryJob {
	j.clock = clock
	return j
}

// Handle ejecuta el escaneo. Un payload ilegible no se reintenta.
func (j *LotExpiryJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.lots == nil {
		return errors.New("vencimientos: handler no configurado")
	}
	var payload LotExpiryPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	days := payload.WarningDays
	if days <= 0 {
		days = j.warningDays
	}

	tracker := j.metrics.Track(TaskLotExpiryScan)
	defer func() { err = tracker.End(err) }()

	now := j.clock()
	limit := now.AddDate(0, 0, days)
	lots, err := j.lots.ListExpiringBefore(ctx, limit)
	if err != nil {
		j.log.Error().Err(err).Msg("listar lotes por vencer")
		return err
	}
	j.metrics.LotsExpiring(len(lots))

	events := make([]event.Event, 0, len(lots))
	for _, b := range lots {
		if b.ExpiryDate == nil {
			continue
		}
		events = append(events, event.LotExpiring{
			BatchID:    b.ID,
			ProductID:  b.ProductID,
			SKU:        b.SKU,
			Stock:      b.Stock,
			ExpiryDate: *b.ExpiryDate,
		})
	}
	j.log.Info().Int("lotes", len(events)).Time("hasta", limit).Msg("escaneo de vencimientos")
	if len(events) == 0 {
		return nil
	}
	// los avisos no son críticos: un fallo del broker se registra y el job termina bien
	if err := j.events.Publish(ctx, events...); err != nil {
		j.log.Warn().Err(err).Msg("publicar avisos de vencimiento")
	}
	return nil
}
