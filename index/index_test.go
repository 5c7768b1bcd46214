package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type listerFunc func(ctx context.Context, fn func(name string)) error

func (f listerFunc) ListKeys(ctx context.Context, fn func(name string)) error { return f(ctx, fn) }

func staticLister(names ...string) Lister {
	return listerFunc(func(_ context.Context, fn func(string)) error {
		for _, name := range names {
			fn(name)
		}
		return nil
	})
}

func TestBootstrap(t *testing.T) {
	idx := New()
	require.False(t, idx.IsReady())

	require.NoError(t, idx.Bootstrap(context.Background(), staticLister("abc123.png", "ffffff.txt")))
	require.True(t, idx.IsReady())
	require.Equal(t, 2, idx.Len())
	require.True(t, idx.Contains("abc123.png"))
	require.False(t, idx.Contains("abc123"))

	idx.Record("000000.gif")
	require.True(t, idx.Contains("000000.gif"))
	require.Equal(t, 3, idx.Len())
}

func TestBootstrapRetriesAndDiscardsPartialListing(t *testing.T) {
	var calls int

	lister := listerFunc(func(_ context.Context, fn func(string)) error {
		calls++
		if calls < 3 {
			fn("partial-" + string(rune('a'+calls)))
			return errors.New("connection reset")
		}
		fn("complete.png")
		return nil
	})

	idx := New(WithBackoff(time.Millisecond, 5*time.Millisecond))
	require.NoError(t, idx.Bootstrap(context.Background(), lister))

	require.Equal(t, 3, calls)
	require.True(t, idx.IsReady())
	require.Equal(t, 1, idx.Len())
	require.True(t, idx.Contains("complete.png"))
}

func TestBootstrapCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	lister := listerFunc(func(context.Context, func(string)) error {
		cancel()
		return errors.New("unreachable")
	})

	idx := New(WithBackoff(time.Millisecond, time.Millisecond))
	require.Error(t, idx.Bootstrap(ctx, lister))
	require.False(t, idx.IsReady())
}

func TestBootstrapKeepsRecordedNames(t *testing.T) {
	idx := New()
	idx.Record("early.png")

	require.NoError(t, idx.Bootstrap(context.Background(), staticLister("listed.png")))
	require.True(t, idx.Contains("early.png"))
	require.True(t, idx.Contains("listed.png"))
}

func TestBootstrapNotifiesFailures(t *testing.T) {
	var (
		calls    int
		reported []error
	)

	lister := listerFunc(func(_ context.Context, fn func(string)) error {
		calls++
		if calls < 3 {
			return errors.New("access denied")
		}
		fn("complete.png")
		return nil
	})

	idx := New(
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithNotify(func(err error) { reported = append(reported, err) }))
	require.NoError(t, idx.Bootstrap(context.Background(), lister))

	require.Len(t, reported, 3)
	require.EqualError(t, reported[0], "access denied")
	require.EqualError(t, reported[1], "access denied")
	require.NoError(t, reported[2])
}
