package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
)

// Event types published after each pipeline.
const (
	EventPipelineCompleted = "sync.pipeline.completed"
	EventPipelineFailed    = "sync.pipeline.failed"
)

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	return Config{Brokers: brokerList, Topic: topic}
}

// SyncEvent tells downstream consumers (cache invalidation, search warmers)
// that an index has been refreshed.
type SyncEvent struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Stream    string    `json:"stream"`
	Index     string    `json:"index"`
	Documents int       `json:"documents"`
	Batches   int       `json:"batches"`
	Watermark time.Time `json:"watermark,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes sync events
type Producer struct {
	writer messageWriter
	topic  string
	logger ectologger.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, topic: topic, logger: logger}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishSyncEvent publishes evt keyed by index so events for one index stay ordered.
func (p *Producer) PublishSyncEvent(ctx context.Context, evt *SyncEvent) error {
	if evt == nil {
		return fmt.Errorf("sync event is nil")
	}
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishSyncEvent",
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("stream", evt.Stream),
	)
	defer span.End()

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "run_id", Value: []byte(evt.RunID)},
		{Key: "stream", Value: []byte(evt.Stream)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.Index),
		Value:   data,
		Headers: headers,
	}); err != nil {
		tracing.RecordError(span, err)
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish sync event to Kafka topic %s", p.topic)
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "success")
	return nil
}
