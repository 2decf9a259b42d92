// Package pipeline wires extraction, aggregation and loading for one stream.
package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/loader"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/transform"
	"github.com/Ramsey-B/fern/pkg/watermark"
	"go.opentelemetry.io/otel/attribute"
)

// Stream describes one kind of sync: where rows come from, how they fold and
// how aggregates are rendered.
type Stream[R, A any] struct {
	// Name identifies the stream in logs and metrics.
	Name     string
	Index    string
	Extract  func(ctx context.Context, since time.Time) iter.Seq2[R, error]
	Merger   transform.Merger[R, A]
	Document func(A) models.Document
}

// Outcome reports a finished run.
type Outcome struct {
	Stream   string        `json:"stream"`
	Index    string        `json:"index"`
	State    State         `json:"state"`
	Since    time.Time     `json:"since"`
	Result   loader.Result `json:"result"`
	Duration time.Duration `json:"duration_ns"`
	History  []State       `json:"history"`
}

// Config tunes the load stage.
type Config struct {
	BatchSize   int
	Retry       retry.Policy
	IsRetryable retry.Classifier
}

// Runner executes streams against one sink.
type Runner struct {
	sink   loader.Sink
	cfg    Config
	logger ectologger.Logger
}

func NewRunner(sink loader.Sink, cfg Config, logger ectologger.Logger) *Runner {
	return &Runner{sink: sink, cfg: cfg, logger: logger}
}

// Run pulls s from since to exhaustion, committing progress through checkpoint.
func Run[R, A any](ctx context.Context, r *Runner, s Stream[R, A], since time.Time, checkpoint watermark.Checkpoint) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Run",
		attribute.String("stream", s.Name),
		attribute.String("index", s.Index),
	)
	defer span.End()

	start := time.Now()
	m := newMachine(s.Name, r.logger.WithContext(ctx).WithFields(map[string]any{
		"stream": s.Name,
		"index":  s.Index,
		"since":  watermark.Format(since),
	}))
	ctx = retry.WithTrace(ctx, m.trace())

	aggregates := transform.Aggregate(pulling(m, s.Extract(ctx, since)), s.Merger)
	docs := func(yield func(models.Document, error) bool) {
		for a, err := range aggregates {
			if err != nil {
				var zero models.Document
				yield(zero, err)
				return
			}
			if !yield(s.Document(a), nil) {
				return
			}
		}
	}

	ld := loader.New(m.loading(r.sink), r.cfg.IsRetryable, r.cfg.Retry, r.cfg.BatchSize, r.logger)
	result, err := ld.Load(ctx, docs, s.Index, checkpoint)

	outcome := Outcome{
		Stream:   s.Name,
		Index:    s.Index,
		Since:    since,
		Result:   result,
		Duration: time.Since(start),
	}
	if err != nil {
		m.fail(err)
		tracing.RecordError(span, err)
		outcome.State = m.state
		outcome.History = m.history
		metrics.RecordPipelineRun(s.Name, "failed", outcome.Duration.Seconds())
		return outcome, err
	}

	m.done(result)
	outcome.State = m.state
	outcome.History = m.history
	if !result.Watermark.IsZero() {
		metrics.RecordWatermark(s.Name, float64(result.Watermark.Unix()))
	}
	metrics.RecordPipelineRun(s.Name, "done", outcome.Duration.Seconds())
	return outcome, nil
}
