// Package loader delivers documents to the index in checkpointed batches.
package loader

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/watermark"
	"go.opentelemetry.io/otel/attribute"
)

// Sink accepts one batch of documents for an index.
type Sink interface {
	Bulk(ctx context.Context, index string, docs []models.Document) error
}

// Result summarizes what was committed. On failure it covers the batches
// committed before the failing one.
type Result struct {
	Documents int       `json:"documents"`
	Batches   int       `json:"batches"`
	Watermark time.Time `json:"watermark"`
}

// Loader batches documents, writes them with retry and commits progress after
// each confirmed write.
type Loader struct {
	sink        Sink
	isRetryable retry.Classifier
	policy      retry.Policy
	batchSize   int
	logger      ectologger.Logger
}

func New(sink Sink, isRetryable retry.Classifier, policy retry.Policy, batchSize int, logger ectologger.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Loader{
		sink:        sink,
		isRetryable: isRetryable,
		policy:      policy,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Load drains docs into index. A batch is written when it reaches the batch
// size and once more for a non-empty remainder; an empty batch is never sent.
// checkpoint.Complete runs only after the stream is exhausted without error.
func (l *Loader) Load(ctx context.Context, docs iter.Seq2[models.Document, error], index string, checkpoint watermark.Checkpoint) (Result, error) {
	var result Result
	batch := make([]models.Document, 0, l.batchSize)

	for doc, err := range docs {
		if err != nil {
			return result, err
		}
		batch = append(batch, doc)
		if len(batch) < l.batchSize {
			continue
		}
		if err := l.flush(ctx, index, batch, checkpoint, &result); err != nil {
			return result, err
		}
		batch = batch[:0]
	}

	if len(batch) > 0 {
		if err := l.flush(ctx, index, batch, checkpoint, &result); err != nil {
			return result, err
		}
	}

	if err := checkpoint.Complete(ctx); err != nil {
		return result, fmt.Errorf("failed to complete checkpoint: %w", err)
	}
	return result, nil
}

func (l *Loader) flush(ctx context.Context, index string, batch []models.Document, checkpoint watermark.Checkpoint, result *Result) error {
	ctx, span := tracing.StartSpan(ctx, "loader.Loader.flush",
		attribute.String("index", index),
		attribute.Int("batch", result.Batches+1),
	)
	defer span.End()

	err := retry.Do(ctx, l.policy, l.isRetryable, func() error {
		return l.sink.Bulk(ctx, index, batch)
	})
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to write batch %d to %s: %w", result.Batches+1, index, err)
	}

	high := batch[0].Modified
	for _, doc := range batch[1:] {
		if doc.Modified.After(high) {
			high = doc.Modified
		}
	}
	if err := checkpoint.Commit(ctx, high); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to commit watermark: %w", err)
	}

	result.Batches++
	result.Documents += len(batch)
	if high.After(result.Watermark) {
		result.Watermark = high
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"index":     index,
		"batch":     result.Batches,
		"documents": len(batch),
		"watermark": watermark.Format(high),
	}).Info("Committed batch")
	return nil
}
