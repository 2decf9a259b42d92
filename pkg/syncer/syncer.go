// Package syncer decides which pipelines an invocation runs and in what order.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Gobusters/ectologger"
	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/transform"
	"github.com/Ramsey-B/fern/pkg/watermark"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrSyncInProgress is returned when another invocation holds the sync lock.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrUnknownKind is returned for kinds the orchestrator cannot run.
	ErrUnknownKind = errors.New("unknown sync kind")
)

// Extractor is the source of changed rows.
type Extractor interface {
	Movies(ctx context.Context, since time.Time) iter.Seq2[models.MovieRow, error]
	Persons(ctx context.Context, since time.Time) iter.Seq2[models.PersonRow, error]
	Genres(ctx context.Context, since time.Time) iter.Seq2[models.GenreRow, error]
	MoviesForPersons(ctx context.Context, since time.Time) iter.Seq2[models.MovieRow, error]
	MoviesForGenres(ctx context.Context, since time.Time) iter.Seq2[models.MovieRow, error]
}

// Notifier receives an event after every pipeline.
type Notifier interface {
	PublishSyncEvent(ctx context.Context, evt *kafka.SyncEvent) error
}

// Indices names the target index per kind.
type Indices struct {
	Movies  string
	Persons string
	Genres  string
}

// DefaultIndices are the index names the read side queries.
func DefaultIndices() Indices {
	return Indices{Movies: "movies", Persons: "persons", Genres: "genres"}
}

// Options carries the orchestrator's optional collaborators.
type Options struct {
	Indices  Indices
	Locker   Locker
	LockTTL  time.Duration
	Notifier Notifier
}

// Report summarizes an invocation.
type Report struct {
	RunID      string             `json:"run_id"`
	Kind       models.Kind        `json:"kind"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Pipelines  []pipeline.Outcome `json:"pipelines"`
}

// Orchestrator runs the pipelines for a kind strictly in sequence.
type Orchestrator struct {
	extractor Extractor
	store     watermark.Store
	runner    *pipeline.Runner
	opts      Options
	logger    ectologger.Logger
}

func New(extractor Extractor, store watermark.Store, runner *pipeline.Runner, logger ectologger.Logger, opts Options) *Orchestrator {
	if opts.Indices == (Indices{}) {
		opts.Indices = DefaultIndices()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Hour
	}
	return &Orchestrator{
		extractor: extractor,
		store:     store,
		runner:    runner,
		opts:      opts,
		logger:    logger,
	}
}

// Run synchronizes kind. A non-nil override replaces the stored watermarks as
// the starting point for this invocation only. Once started, a run is not
// cancelled by ctx; the retry budgets bound how long it can wait.
func (o *Orchestrator) Run(ctx context.Context, kind models.Kind, override *time.Time) (*Report, error) {
	ctx = context.WithoutCancel(ctx)
	runID := fernctx.GetRunID(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = fernctx.SetRunID(ctx, runID)
	}

	ctx, span := tracing.StartSpan(ctx, "syncer.Orchestrator.Run",
		attribute.String("kind", string(kind)),
		attribute.String("run_id", runID),
	)
	defer span.End()

	log := o.logger.WithContext(ctx).WithFields(map[string]any{"run_id": runID, "kind": kind})
	if override != nil {
		log = log.WithField("override", watermark.Format(*override))
	}

	report := &Report{RunID: runID, Kind: kind, StartedAt: time.Now().UTC()}

	if o.opts.Locker != nil {
		release, err := o.opts.Locker.Lock(ctx, o.opts.LockTTL)
		if err != nil {
			tracing.RecordError(span, err)
			return report, err
		}
		defer func() {
			if err := release(ctx); err != nil {
				log.WithError(err).Warn("Failed to release sync lock")
			}
		}()
	}

	log.Info("Starting sync")

	var err error
	switch kind {
	case models.KindMovies:
		err = o.runMovies(ctx, report, override)
	case models.KindPersons:
		err = o.runPersons(ctx, report, override)
	case models.KindGenres:
		err = o.runGenres(ctx, report, override)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	report.FinishedAt = time.Now().UTC()

	if err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("Sync failed")
		return report, err
	}
	log.WithField("pipelines", len(report.Pipelines)).Info("Sync finished")
	return report, nil
}

func (o *Orchestrator) runMovies(ctx context.Context, report *Report, override *time.Time) error {
	stored, since, err := o.startingPoint(ctx, watermark.KeyMovies, override)
	if err != nil {
		return err
	}
	return runStream(ctx, o, report, o.movies(), since, watermark.NewAdvancing(o.store, watermark.KeyMovies, stored, true))
}

func (o *Orchestrator) runPersons(ctx context.Context, report *Report, override *time.Time) error {
	return runCascade(ctx, o, report, override, o.persons(), watermark.KeyPersons,
		o.moviesFor(watermark.KeyMoviesByPerson, o.extractor.MoviesForPersons), watermark.KeyMoviesByPerson)
}

func (o *Orchestrator) runGenres(ctx context.Context, report *Report, override *time.Time) error {
	return runCascade(ctx, o, report, override, o.genres(), watermark.KeyGenres,
		o.moviesFor(watermark.KeyMoviesByGenre, o.extractor.MoviesForGenres), watermark.KeyMoviesByGenre)
}

// runCascade runs the driving stream, then re-derives the movies linked to what
// it changed. The cascade marker is set before the driving stream starts and
// cleared only when the cascade succeeds, so a failure in between is picked up
// by the next invocation.
func runCascade[R, A any](
	ctx context.Context,
	o *Orchestrator,
	report *Report,
	override *time.Time,
	driving pipeline.Stream[R, A],
	drivingKey string,
	cascade pipeline.Stream[models.MovieRow, *models.Movie],
	markerKey string,
) error {
	stored, since, err := o.startingPoint(ctx, drivingKey, override)
	if err != nil {
		return err
	}

	// A marker left by a failed cascade is honored even under an override.
	cascadeSince := since
	pendingAt, pending, err := o.store.Get(ctx, markerKey)
	if err != nil {
		return err
	}
	if pending && pendingAt.Before(cascadeSince) {
		cascadeSince = pendingAt
	}

	marker := watermark.NewPending(o.store, markerKey)
	if err := marker.Mark(ctx, cascadeSince); err != nil {
		return err
	}

	if err := runStream(ctx, o, report, driving, since, watermark.NewAdvancing(o.store, drivingKey, stored, true)); err != nil {
		return err
	}
	return runStream(ctx, o, report, cascade, cascadeSince, marker)
}

// startingPoint returns the stored watermark for key and the time extraction starts from.
func (o *Orchestrator) startingPoint(ctx context.Context, key string, override *time.Time) (stored, since time.Time, err error) {
	stored, _, err = o.store.Get(ctx, key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if override != nil {
		return stored, override.UTC(), nil
	}
	return stored, stored, nil
}

func runStream[R, A any](ctx context.Context, o *Orchestrator, report *Report, s pipeline.Stream[R, A], since time.Time, cp watermark.Checkpoint) error {
	outcome, err := pipeline.Run(ctx, o.runner, s, since, cp)
	report.Pipelines = append(report.Pipelines, outcome)
	o.notify(ctx, report, outcome, err)
	if err != nil {
		return fmt.Errorf("%s pipeline failed: %w", s.Name, err)
	}
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, report *Report, outcome pipeline.Outcome, runErr error) {
	if o.opts.Notifier == nil {
		return
	}
	evt := &kafka.SyncEvent{
		Type:      kafka.EventPipelineCompleted,
		RunID:     report.RunID,
		Kind:      string(report.Kind),
		Stream:    outcome.Stream,
		Index:     outcome.Index,
		Documents: outcome.Result.Documents,
		Batches:   outcome.Result.Batches,
		Watermark: outcome.Result.Watermark,
	}
	if runErr != nil {
		evt.Type = kafka.EventPipelineFailed
		evt.Error = runErr.Error()
	}
	if err := o.opts.Notifier.PublishSyncEvent(ctx, evt); err != nil {
		o.logger.WithContext(ctx).WithError(err).WithField("stream", outcome.Stream).Warn("Failed to publish sync event")
	}
}

func (o *Orchestrator) movies() pipeline.Stream[models.MovieRow, *models.Movie] {
	return o.moviesFor(watermark.KeyMovies, o.extractor.Movies)
}

func (o *Orchestrator) moviesFor(name string, extract func(context.Context, time.Time) iter.Seq2[models.MovieRow, error]) pipeline.Stream[models.MovieRow, *models.Movie] {
	return pipeline.Stream[models.MovieRow, *models.Movie]{
		Name:     name,
		Index:    o.opts.Indices.Movies,
		Extract:  extract,
		Merger:   transform.MovieMerger{},
		Document: transform.MovieDocument,
	}
}

func (o *Orchestrator) persons() pipeline.Stream[models.PersonRow, *models.Person] {
	return pipeline.Stream[models.PersonRow, *models.Person]{
		Name:     watermark.KeyPersons,
		Index:    o.opts.Indices.Persons,
		Extract:  o.extractor.Persons,
		Merger:   transform.PersonMerger{},
		Document: transform.PersonDocument,
	}
}

func (o *Orchestrator) genres() pipeline.Stream[models.GenreRow, *models.Genre] {
	return pipeline.Stream[models.GenreRow, *models.Genre]{
		Name:     watermark.KeyGenres,
		Index:    o.opts.Indices.Genres,
		Extract:  o.extractor.Genres,
		Merger:   transform.GenreMerger{},
		Document: transform.GenreDocument,
	}
}
