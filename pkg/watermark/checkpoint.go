package watermark

import (
	"context"
	"time"
)

// Checkpoint records a stream's progress as batches are confirmed by the sink.
type Checkpoint interface {
	// Commit is called after each confirmed batch with the batch's max modified time.
	Commit(ctx context.Context, t time.Time) error
	// Complete is called once after the stream is exhausted.
	Complete(ctx context.Context) error
}

// Advancing moves a stream's own key forward. The key never moves backward.
type Advancing struct {
	store  Store
	key    string
	retain bool
	high   time.Time
}

// NewAdvancing builds a checkpoint for key starting at floor. When retain is
// false the key is deleted once the stream completes.
func NewAdvancing(store Store, key string, floor time.Time, retain bool) *Advancing {
	return &Advancing{store: store, key: key, retain: retain, high: floor}
}

func (a *Advancing) Commit(ctx context.Context, t time.Time) error {
	if !t.After(a.high) {
		return nil
	}
	if err := a.store.Set(ctx, a.key, t); err != nil {
		return err
	}
	a.high = t
	return nil
}

func (a *Advancing) Complete(ctx context.Context) error {
	if a.retain {
		return nil
	}
	return a.store.Delete(ctx, a.key)
}

// Position is the highest committed time.
func (a *Advancing) Position() time.Time { return a.high }

// Pending guards a cascade: the marker stays set until the cascade finishes.
type Pending struct {
	store Store
	key   string
}

func NewPending(store Store, key string) *Pending {
	return &Pending{store: store, key: key}
}

// Mark records since as the start of an unfinished cascade.
func (p *Pending) Mark(ctx context.Context, since time.Time) error {
	return p.store.Set(ctx, p.key, since)
}

func (p *Pending) Commit(context.Context, time.Time) error { return nil }

func (p *Pending) Complete(ctx context.Context) error {
	return p.store.Delete(ctx, p.key)
}
