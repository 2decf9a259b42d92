// Package transform folds ordered flat rows into nested aggregates.
package transform

import "iter"

// Merger describes how rows of one kind fold into an aggregate.
type Merger[R, A any] interface {
	// Key is the identity rows are grouped by.
	Key(row R) string
	// New starts an aggregate from its first row.
	New(row R) A
	// Merge folds a following row of the same identity into a.
	Merge(a A, row R)
}

// Aggregate groups consecutive rows sharing a key and yields one aggregate per
// group, in first-appearance order. Input must be ordered so that rows of one
// identity are contiguous; a split group is yielded twice rather than reported.
// An upstream error is passed on and ends the sequence without yielding the
// group in progress.
func Aggregate[R, A any](rows iter.Seq2[R, error], m Merger[R, A]) iter.Seq2[A, error] {
	return func(yield func(A, error) bool) {
		var (
			current A
			key     string
			started bool
		)
		for row, err := range rows {
			if err != nil {
				var zero A
				yield(zero, err)
				return
			}
			k := m.Key(row)
			if started && k == key {
				m.Merge(current, row)
				continue
			}
			if started && !yield(current, nil) {
				return
			}
			current, key, started = m.New(row), k, true
		}
		if started {
			yield(current, nil)
		}
	}
}
