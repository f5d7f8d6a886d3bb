package settle

import (
	"context"
	"errors"
	"testing"
	"time"
)

// sequence returns a ReadFunc yielding vals in order, repeating the last one.
func sequence(vals ...string) (ReadFunc[string], *int) {
	calls := 0
	return func(ctx context.Context) (string, error) {
		i := calls
		calls++
		if i >= len(vals) {
			i = len(vals) - 1
		}
		return vals[i], nil
	}, &calls
}

func TestFixed(t *testing.T) {

	read, calls := sequence("NOK", "OK")
	v, stale, err := Fixed[string]{Delay: time.Millisecond}.Settle(context.Background(), read)
	if err != nil {
		t.Fatal(err)
	}
	if v != "NOK" || stale || *calls != 1 {
		t.Errorf("got %q stale %t calls %d", v, stale, *calls)
	}
}

func TestPollStabilizes(t *testing.T) {

	read, calls := sequence("", "NOK", "OK", "OK")
	p := Poll[string]{Interval: time.Millisecond, MaxWait: time.Second}
	v, stale, err := p.Settle(context.Background(), read)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, "OK"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if stale {
		t.Error("expected stable read")
	}
	if got, want := *calls, 4; got != want {
		t.Errorf("calls got %d want %d", got, want)
	}
}

func TestPollStale(t *testing.T) {

	n := 0
	read := func(ctx context.Context) (int, error) {
		n++
		return n, nil
	}

	// A fake clock advancing on every call bounds the loop without real waiting.
	clock := time.Unix(0, 0)
	p := Poll[int]{
		MaxWait: 10 * time.Second,
		now: func() time.Time {
			clock = clock.Add(3 * time.Second)
			return clock
		},
	}
	v, stale, err := p.Settle(context.Background(), read)
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Error("expected stale result")
	}
	if v != n {
		t.Errorf("expected last read %d, got %d", n, v)
	}
}

func TestPollReadError(t *testing.T) {

	wantErr := errors.New("store unreachable")
	read := func(ctx context.Context) (string, error) { return "", wantErr }
	_, _, err := Poll[string]{MaxWait: time.Second}.Settle(context.Background(), read)
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v want %v", err, wantErr)
	}
}

func TestCancelled(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	read, calls := sequence("OK")
	_, _, err := Fixed[string]{Delay: time.Hour}.Settle(ctx, read)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if *calls != 0 {
		t.Errorf("expected no reads, got %d", *calls)
	}
}
