package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes alert events as JSON, keyed by target id so one target's
// events stay ordered on a partition.
type Kafka struct {
	w     messageWriter
	topic string
	log   *zap.Logger
}

func NewKafka(brokers []string, topic string, log *zap.Logger) *Kafka {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Kafka{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		log:   log.With(zap.String("component", "kafka.producer"), zap.String("topic", topic)),
	}
}

func (k *Kafka) Send(ctx context.Context, ev domain.AlertEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka marshal: %w", err)
	}

	ctx, span := otel.Tracer("notify.kafka").Start(ctx, "kafka.produce "+k.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", k.topic),
			attribute.String("sitemonitor.target_id", string(ev.TargetID)),
		),
	)
	defer span.End()

	msg := kafka.Message{
		Key:   []byte(ev.TargetID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "severity", Value: []byte(ev.Severity)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		k.log.Error("kafka_write_failed", zap.Error(err))
		return fmt.Errorf("kafka write: %w", err)
	}
	k.log.Debug("alert_published", zap.String("event_id", ev.ID), zap.Int("value_len", len(value)))
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }
