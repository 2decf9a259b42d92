package retry

import (
	"context"
	"time"
)

type traceKey struct{}

// Trace receives callbacks from retry loops running under a context.
type Trace struct {
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
	// OnRecover is called when an operation succeeds after at least one failure.
	OnRecover func(attempts int)
}

// WithTrace attaches t to ctx.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// TraceFrom returns the Trace attached to ctx, if any.
func TraceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}
