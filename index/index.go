package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Lister enumerates every object name present in the remote store.
	Lister interface {
		ListKeys(ctx context.Context, fn func(name string)) error
	}

	// Index is the in-memory set of object names known to exist remotely.
	// It refuses to answer for collisions until Bootstrap completes.
	Index struct {
		log    *zap.Logger
		notify func(err error)

		initialInterval time.Duration
		maxInterval     time.Duration

		ready *atomic.Bool

		mu   sync.RWMutex
		keys map[string]struct{}
	}

	// Option configures Index.
	Option func(i *Index)
)

const (
	defaultInitialInterval = time.Second
	defaultMaxInterval     = time.Minute
)

// WithLogger sets the logger used to report bootstrap progress.
func WithLogger(l *zap.Logger) Option {
	return func(i *Index) {
		if l != nil {
			i.log = l
		}
	}
}

// WithNotify sets a callback receiving every failed listing while
// bootstrapping, and nil once the index is ready.
func WithNotify(fn func(err error)) Option {
	return func(i *Index) {
		if fn != nil {
			i.notify = fn
		}
	}
}

// WithBackoff sets bootstrap retry intervals.
func WithBackoff(initial, max time.Duration) Option {
	return func(i *Index) {
		if initial > 0 {
			i.initialInterval = initial
		}
		if max > 0 {
			i.maxInterval = max
		}
	}
}

// New creates an empty index in loading state.
func New(opts ...Option) *Index {
	i := &Index{
		log:             zap.NewNop(),
		notify:          func(error) {},
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		ready:           atomic.NewBool(false),
		keys:            make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Bootstrap loads the full remote listing and marks the index ready. A failed
// listing is discarded and retried with exponential backoff until it succeeds
// or ctx is done.
func (i *Index) Bootstrap(ctx context.Context, lister Lister) error {
	if i.ready.Load() {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = i.initialInterval
	b.MaxInterval = i.maxInterval
	b.MaxElapsedTime = 0

	started := time.Now()

	load := func() error {
		keys := make(map[string]struct{})
		if err := lister.ListKeys(ctx, func(name string) {
			keys[name] = struct{}{}
		}); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		i.mu.Lock()
		for name := range i.keys {
			// names recorded while loading are kept
			keys[name] = struct{}{}
		}
		i.keys = keys
		i.mu.Unlock()

		return nil
	}

	notify := func(err error, wait time.Duration) {
		i.notify(err)
		i.log.Error("could not list remote objects, retrying",
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(load, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("bootstrap remote index: %w", err)
	}

	i.ready.Store(true)
	i.notify(nil)
	i.log.Info("remote index is ready",
		zap.Int("objects", i.Len()),
		zap.Duration("elapsed", time.Since(started)))

	return nil
}

// IsReady reports whether the bootstrap listing has completed.
func (i *Index) IsReady() bool { return i.ready.Load() }

// Contains reports whether name is known to exist remotely.
func (i *Index) Contains(name string) bool {
	i.mu.RLock()
	_, ok := i.keys[name]
	i.mu.RUnlock()

	return ok
}

// Record adds name after a successful remote write.
func (i *Index) Record(name string) {
	i.mu.Lock()
	i.keys[name] = struct{}{}
	i.mu.Unlock()
}

// Len returns the number of known names.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.keys)
}
