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
)

// State is a pipeline run's lifecycle position.
type State string

const (
	StateInit       State = "INIT"
	StateExtracting State = "EXTRACTING"
	StateLoading    State = "LOADING"
	StateRetrying   State = "RETRYING"
	StateFinalizing State = "FINALIZING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

type machine struct {
	stream  string
	state   State
	resume  State
	history []State
	logger  ectologger.Logger
}

func newMachine(stream string, logger ectologger.Logger) *machine {
	m := &machine{stream: stream, logger: logger}
	m.to(StateInit)
	return m
}

func (m *machine) to(s State) {
	if m.state == s || m.state.Terminal() {
		return
	}
	m.logger.WithFields(map[string]any{"from": m.state, "to": s}).Debug("Pipeline state changed")
	m.state = s
	m.history = append(m.history, s)
	metrics.RecordState(m.stream, string(s))
}

func (m *machine) trace() *retry.Trace {
	return &retry.Trace{
		OnRetry: func(attempt int, err error, wait time.Duration) {
			if m.state != StateRetrying {
				m.resume = m.state
			}
			m.to(StateRetrying)
			metrics.RecordRetry(m.stream)
			m.logger.WithError(err).WithFields(map[string]any{
				"attempt": attempt,
				"wait":    wait.String(),
			}).Warn("Transient failure, retrying")
		},
		OnRecover: func(attempts int) {
			m.logger.WithField("attempts", attempts).Info("Recovered from transient failure")
			m.to(m.resume)
		},
	}
}

// pulling marks extraction while rows are pulled and finalization once they run out.
func pulling[R any](m *machine, rows iter.Seq2[R, error]) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		m.to(StateExtracting)
		for row, err := range rows {
			if err != nil {
				yield(row, err)
				return
			}
			if !yield(row, nil) {
				return
			}
			m.to(StateExtracting)
		}
		m.to(StateFinalizing)
	}
}

func (m *machine) fail(err error) {
	m.logger.WithError(err).WithField("state", m.state).Error("Pipeline failed")
	m.to(StateFailed)
}

func (m *machine) done(result loader.Result) {
	m.to(StateDone)
	m.logger.WithFields(map[string]any{
		"documents": result.Documents,
		"batches":   result.Batches,
	}).Info("Pipeline finished")
}

type loadingSink struct {
	m    *machine
	sink loader.Sink
}

func (s loadingSink) Bulk(ctx context.Context, index string, docs []models.Document) error {
	if s.m.state != StateFinalizing {
		s.m.to(StateLoading)
	}
	return s.sink.Bulk(ctx, index, docs)
}

func (m *machine) loading(sink loader.Sink) loader.Sink {
	return loadingSink{m: m, sink: sink}
}
