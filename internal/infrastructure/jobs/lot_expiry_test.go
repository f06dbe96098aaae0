package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/event"
	"github.com/jhoicas/pos-lotes/internal/domain/schema"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/jobs"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/memory"
	"github.com/jhoicas/pos-lotes/internal/infrastructure/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var now = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

type failingLister struct{}

func (failingLister) ListExpiringBefore(context.Context, time.Time) ([]*entity.Batch, error) {
	return nil, errors.New("almacén caído")
}

func addBatch(t *testing.T, store *memory.Store, id string, stock string, expiry *time.Time) {
	t.Helper()
	b := &entity.Batch{ID: id, ProductID: "P", SKU: "SKU-" + id, ExpiryDate: expiry, CreatedAt: now, UpdatedAt: now}
	b.SetStock(decimal.RequireFromString(stock), entity.DefaultTolerance)
	require.NoError(t, store.Repositories().Batches.Upsert(context.Background(), b))
}

func at(days int) *time.Time {
	v := now.AddDate(0, 0, days)
	return &v
}

func newLedger(t *testing.T) (*memory.Store, *inventory.LotLedger) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Repositories().Products.Create(context.Background(), &entity.Product{
		ID: "P", Name: "Yogur", TracksStock: true, BatchManagement: entity.BatchManagement{Enabled: true},
	}))
	eng := inventory.NewEngine(inventory.Deps{Tx: store, Store: store.Repositories(), Schema: schema.New()})
	return store, eng.Ledger
}

// ──────────────────────────────────────────────────────────────────────────────
// Escaneo de vencimientos
// ──────────────────────────────────────────────────────────────────────────────

func TestLotExpiry_PublicaSoloLotesActivosDentroDeLaVentana(t *testing.T) {
	store, ledger := newLedger(t)
	addBatch(t, store, "A", "5", at(3))
	addBatch(t, store, "B", "5", at(30))
	addBatch(t, store, "C", "0", at(1))
	addBatch(t, store, "D", "2", nil)
	addBatch(t, store, "E", "1", at(-1))

	pub := &recordingPublisher{}
	reg := prometheus.NewRegistry()
	job := jobs.NewLotExpiryJob(ledger, pub, metrics.New(reg), nil, 7).WithClock(func() time.Time { return now })

	task, err := jobs.NewLotExpiryScanTask(now, 0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, pub.events, 2)
	first := pub.events[0].(event.LotExpiring)
	second := pub.events[1].(event.LotExpiring)
	assert.Equal(t, "E", first.BatchID, "primero el que ya venció")
	assert.Equal(t, "A", second.BatchID)
	assert.Equal(t, "P", second.Key())
	assert.Equal(t, "SKU-A", second.SKU)
	assert.True(t, second.Stock.Equal(decimal.NewFromInt(5)))
	assert.True(t, second.ExpiryDate.Equal(*at(3)))
}

func TestLotExpiry_PayloadAmpliaLaVentana(t *testing.T) {
	store, ledger := newLedger(t)
	addBatch(t, store, "B", "5", at(30))

	pub := &recordingPublisher{}
	job := jobs.NewLotExpiryJob(ledger, pub, nil, nil, 7).WithClock(func() time.Time { return now })

	task, err := jobs.NewLotExpiryScanTask(now, 31)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, pub.events, 1)
	assert.Equal(t, event.NameLotExpiring, pub.events[0].Name())
}

func TestLotExpiry_PayloadInvalidoNoSeReintenta(t *testing.T) {
	_, ledger := newLedger(t)
	job := jobs.NewLotExpiryJob(ledger, nil, nil, nil, 7)

	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskLotExpiryScan, []byte("{no-json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLotExpiry_FalloDelPublicadorNoFallaElJob(t *testing.T) {
	store, ledger := newLedger(t)
	addBatch(t, store, "A", "5", at(2))
	pub := &recordingPublisher{err: errors.New("broker caído")}
	job := jobs.NewLotExpiryJob(ledger, pub, nil, nil, 7).WithClock(func() time.Time { return now })

	task, err := jobs.NewLotExpiryScanTask(now, 0)
	require.NoError(t, err)
	assert.NoError(t, job.Handle(context.Background(), task))
	assert.Len(t, pub.events, 1)
}

func TestLotExpiry_FalloDelAlmacenSeReintenta(t *testing.T) {
	job := jobs.NewLotExpiryJob(failingLister{}, nil, nil, nil, 7)
	task, err := jobs.NewLotExpiryScanTask(now, 0)
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestNewLotExpiryScanTask_Payload(t *testing.T) {
	task, err := jobs.NewLotExpiryScanTask(now, 10)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskLotExpiryScan, task.Type())

	var p jobs.LotExpiryPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, 10, p.WarningDays)
	assert.True(t, p.ScheduledFor.Equal(now))
}
