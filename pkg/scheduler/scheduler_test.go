package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/syncer"
)

type fakeRunner struct {
	mu       sync.Mutex
	kinds    []models.Kind
	triggers []string
	errs     map[models.Kind]error
	calls    chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, kind models.Kind, override *time.Time) (*syncer.Report, error) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.triggers = append(r.triggers, fernctx.GetTrigger(ctx))
	r.mu.Unlock()
	if r.calls != nil {
		r.calls <- struct{}{}
	}
	if override != nil {
		return nil, errors.New("scheduled runs never override")
	}
	return &syncer.Report{RunID: fernctx.GetRunID(ctx), Kind: kind}, r.errs[kind]
}

func (r *fakeRunner) seen() []models.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Kind(nil), r.kinds...)
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestRunCycle_RunsKindsInOrder(t *testing.T) {
	runner := &fakeRunner{errs: map[models.Kind]error{models.KindPersons: errors.New("boom")}}
	s := NewScheduler(runner, Config{PollInterval: time.Hour}, testLogger())

	s.RunCycle(context.Background())

	assert.Equal(t, models.Kinds, runner.seen())
	assert.Equal(t, []string{TriggerScheduler, TriggerScheduler, TriggerScheduler}, runner.triggers)
}

func TestRunCycle_SkipsWhenLockHeld(t *testing.T) {
	runner := &fakeRunner{errs: map[models.Kind]error{models.KindMovies: syncer.ErrSyncInProgress}}
	s := NewScheduler(runner, Config{Kinds: []models.Kind{models.KindMovies, models.KindGenres}}, testLogger())

	s.RunCycle(context.Background())

	assert.Equal(t, []models.Kind{models.KindMovies}, runner.seen())
}

func TestScheduler_StartStop(t *testing.T) {
	runner := &fakeRunner{calls: make(chan struct{}, 10)}
	s := NewScheduler(runner, Config{PollInterval: time.Hour, Kinds: []models.Kind{models.KindGenres}}, testLogger())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	select {
	case <-runner.calls:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.Equal(t, []models.Kind{models.KindGenres}, runner.seen())
}

func TestScheduler_Restart(t *testing.T) {
	runner := &fakeRunner{calls: make(chan struct{}, 10)}
	s := NewScheduler(runner, Config{PollInterval: time.Hour, Kinds: []models.Kind{models.KindMovies}}, testLogger())

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Start(context.Background()))
		select {
		case <-runner.calls:
		case <-time.After(time.Second):
			t.Fatalf("cycle %d did not run on start", i)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		require.NoError(t, s.Stop(ctx))
		cancel()
		assert.False(t, s.IsRunning())
	}

	assert.Equal(t, []models.Kind{models.KindMovies, models.KindMovies}, runner.seen())
}
