// Package settle waits for the spreadsheet to finish recomputing derived cells after
// a write. The spreadsheet gives no acknowledgement, so the only options are to wait
// a fixed time or to re-read until the values stop changing.
package settle

import (
	"context"
	"reflect"
	"time"
)

// ReadFunc reads the cells whose recomputation is awaited.
type ReadFunc[T any] func(ctx context.Context) (T, error)

// Settler waits for derived values to settle and returns the last read. Stale
// reports that the values were still changing when the wait ended.
type Settler[T any] interface {
	Settle(ctx context.Context, read ReadFunc[T]) (value T, stale bool, err error)
}

// Fixed sleeps for Delay then reads once. It is never stale, since it has no way to
// know.
type Fixed[T any] struct {
	Delay time.Duration
}

// Settle implements Settler.
func (f Fixed[T]) Settle(ctx context.Context, read ReadFunc[T]) (T, bool, error) {
	var zero T
	if err := sleep(ctx, f.Delay); err != nil {
		return zero, false, err
	}
	v, err := read(ctx)
	return v, false, err
}

// Poll waits Initial, then reads every Interval until two consecutive reads are
// equal or MaxWait has elapsed since the first read.
type Poll[T any] struct {
	Initial  time.Duration
	Interval time.Duration
	MaxWait  time.Duration
	// Equal compares two reads; reflect.DeepEqual is used when nil.
	Equal func(a, b T) bool

	now func() time.Time
}

// Settle implements Settler.
func (p Poll[T]) Settle(ctx context.Context, read ReadFunc[T]) (T, bool, error) {
	var zero T
	now := p.now
	if now == nil {
		now = time.Now
	}
	equal := p.Equal
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}

	if err := sleep(ctx, p.Initial); err != nil {
		return zero, false, err
	}
	prev, err := read(ctx)
	if err != nil {
		return zero, false, err
	}
	deadline := now().Add(p.MaxWait)

	for now().Before(deadline) {
		if err := sleep(ctx, p.Interval); err != nil {
			return prev, true, err
		}
		cur, err := read(ctx)
		if err != nil {
			return zero, false, err
		}
		if equal(prev, cur) {
			return cur, false, nil
		}
		prev = cur
	}
	return prev, true, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
