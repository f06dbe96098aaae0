// Package events publica los eventos de dominio en Kafka (sarama) o en el log.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/pos-lotes/internal/domain/event"
	"github.com/jhoicas/pos-lotes/pkg/logger"
)

var _ event.Publisher = (*KafkaPublisher)(nil)

// Topics tópico por familia de eventos.
type Topics struct {
	Payments  string // pagos y cancelaciones de apartados (caja)
	Sales     string
	Inventory string
}

func (t Topics) forEvent(name string) string {
	switch name {
	case event.NamePaymentRegistered, event.NameReservationCancelled:
		return t.Payments
	case event.NameSaleCommitted:
		return t.Sales
	default:
		return t.Inventory
	}
}

// KafkaPublisher productor síncrono: Publish vuelve cuando el broker confirmó.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topics   Topics
	log      *logger.Logger
}

// NewKafkaPublisher conecta con los brokers.
func NewKafkaPublisher(brokers []string, topics Topics, log *logger.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("crear productor Kafka: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topics, log), nil
}

// NewKafkaPublisherWithProducer usa un productor ya construido (pruebas con sarama/mocks).
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topics Topics, log *logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaPublisher{producer: producer, topics: topics, log: log.Component("eventos")}
}

// Publish envía los eventos en orden y reúne los errores; un fallo no impide enviar los demás.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...event.Event) error {
	var errs []error
	for _, e := range events {
		if err := p.publishOne(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *KafkaPublisher) publishOne(ctx context.Context, e event.Event) error {
	topic := p.topics.forEvent(e.Name())
	ctx, span := otel.Tracer("pos-lotes/events").Start(ctx, "kafka.publish "+e.Name(),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", topic),
			attribute.String("event.type", e.Name()),
		),
	)
	defer span.End()

	body, err := json.Marshal(e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal")
		return fmt.Errorf("serializar %s: %w", e.Name(), err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := []sarama.RecordHeader{{Key: []byte("event_type"), Value: []byte(e.Name())}}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(e.Key()),
		Value:   sarama.ByteEncoder(body),
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		return fmt.Errorf("publicar %s en %s: %w", e.Name(), topic, err)
	}
	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	p.log.Debug().Str("evento", e.Name()).Str("key", e.Key()).Str("topic", topic).
		Int32("partition", partition).Int64("offset", offset).Msg("evento publicado")
	return nil
}

// Close cierra el productor.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher escribe los eventos en el log; se usa cuando no hay brokers configurados.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher construye el publicador.
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &LogPublisher{log: log.Component("eventos")}
}

func (p *LogPublisher) Publish(_ context.Context, events ...event.Event) error {
	for _, e := range events {
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("serializar %s: %w", e.Name(), err)
		}
		p.log.Info().Str("evento", e.Name()).Str("key", e.Key()).RawJSON("payload", body).Msg("evento")
	}
	return nil
}
