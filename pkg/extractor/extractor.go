// Package extractor streams changed catalog rows out of PostgreSQL.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/go-playground/validator/v10"
)

// ErrMalformedRow is returned when a source row violates the expected schema.
var ErrMalformedRow = errors.New("malformed source row")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Options tune the extractor.
type Options struct {
	// TablePrefix is prepended to every source table name.
	TablePrefix string
	// PageSize bounds cascade id lookups and the movie chunks fetched for them.
	PageSize int
	// Retry governs connection acquisition.
	Retry retry.Policy
}

// Extractor runs the change queries. Each extraction holds one exclusive
// connection for its whole lifetime.
type Extractor struct {
	connector database.Connector
	logger    ectologger.Logger
	tables    tables
	pageSize  int
	policy    retry.Policy
}

func New(connector database.Connector, logger ectologger.Logger, opts Options) *Extractor {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = retry.DefaultPolicy()
	}
	return &Extractor{
		connector: connector,
		logger:    logger,
		tables:    newTables(opts.TablePrefix),
		pageSize:  opts.PageSize,
		policy:    opts.Retry,
	}
}

// stream acquires a connection, hands it to body and releases it however body ends.
func stream[R any](ctx context.Context, e *Extractor, name string, since time.Time, body func(ctx context.Context, conn database.Conn, yield func(R, error) bool) bool) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		ctx, span := tracing.StartSpan(ctx, "extractor."+name)
		defer span.End()

		log := e.logger.WithContext(ctx).WithFields(map[string]any{"query": name, "since": since})

		conn, err := retry.DoWithResult(ctx, e.policy, database.IsRetryable, func() (database.Conn, error) {
			return e.connector.Conn(ctx)
		})
		if err != nil {
			tracing.RecordError(span, err)
			yield(zero, fmt.Errorf("failed to connect to source: %w", err))
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				log.WithError(err).Warn("Failed to release source connection")
			}
		}()

		log.Debug("Extracting changed rows")
		body(ctx, conn, yield)
	}
}

// scan yields every row of query. It returns false when the consumer stopped or an error was yielded.
func scan[R any](ctx context.Context, e *Extractor, conn database.Conn, yield func(R, error) bool, query string, args ...any) bool {
	var zero R
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		yield(zero, err)
		return false
	}
	defer func() {
		if err := rows.Close(); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Failed to close source cursor")
		}
	}()

	for rows.Next() {
		var row R
		if err := rows.StructScan(&row); err != nil {
			yield(zero, fmt.Errorf("%w: %w", ErrMalformedRow, err))
			return false
		}
		if err := validate.Struct(row); err != nil {
			yield(zero, fmt.Errorf("%w: %w", ErrMalformedRow, err))
			return false
		}
		if !yield(row, nil) {
			return false
		}
	}
	if err := rows.Err(); err != nil {
		yield(zero, err)
		return false
	}
	return true
}
