package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig("kafka-1:9092, kafka-2:9092", "fern.sync")
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, "fern.sync", cfg.Topic)
}

func TestPublishSyncEvent(t *testing.T) {
	writer := &fakeWriter{}
	p := newProducer(writer, "fern.sync", testLogger())

	err := p.PublishSyncEvent(context.Background(), &SyncEvent{
		Type:      EventPipelineCompleted,
		RunID:     "run-1",
		Kind:      "genres",
		Stream:    "movies:genres",
		Index:     "movies",
		Documents: 12,
		Watermark: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "movies", string(msg.Key))

	var decoded SyncEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, EventPipelineCompleted, decoded.Type)
	assert.Equal(t, 12, decoded.Documents)
	assert.False(t, decoded.Timestamp.IsZero())

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "run-1", headers["run_id"])
	assert.Equal(t, "movies:genres", headers["stream"])
}

func TestPublishSyncEvent_Errors(t *testing.T) {
	writeErr := errors.New("broker unavailable")
	p := newProducer(&fakeWriter{err: writeErr}, "fern.sync", testLogger())

	assert.ErrorIs(t, p.PublishSyncEvent(context.Background(), &SyncEvent{Type: EventPipelineFailed}), writeErr)
	assert.Error(t, p.PublishSyncEvent(context.Background(), nil))
}
