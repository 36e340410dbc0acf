// Package corpus holds the retrievable corpora as atomically swapped
// snapshots, refreshed out-of-band from their live sources.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrRetrievalDegraded marks a corpus serving cache or mock content.
	// It is reported through Status only, never to request callers.
	ErrRetrievalDegraded = errors.New("retrieval degraded")
	ErrEmptyCorpus       = errors.New("source returned no entries")
	ErrNoSource          = errors.New("no live source configured")
)

type Source[T any] interface {
	Fetch(ctx context.Context) ([]T, error)
}

// Cache persists the last good live snapshot across restarts.
type Cache[T any] interface {
	Load(ctx context.Context) ([]T, time.Time, error)
	Save(ctx context.Context, items []T, refreshedAt time.Time) error
}

type Status struct {
	Name        string    `json:"name"`
	Origin      Origin    `json:"origin"`
	Items       int       `json:"items"`
	RefreshedAt time.Time `json:"refreshed_at"`
	LastUpdate  time.Time `json:"last_update"`
	LastAttempt time.Time `json:"last_attempt"`
	LastError   string    `json:"last_error,omitempty"`
	Degraded    bool      `json:"degraded"`
}

// Corpus owns one snapshot. Reads never block on I/O.
type Corpus[T any] struct {
	name   string
	src    Source[T]
	cache  Cache[T]
	mock   []T
	logger *slog.Logger
	now    func() time.Time

	snap atomic.Pointer[Snapshot[T]]
	sf   singleflight.Group

	mu          sync.Mutex
	lastUpdate  time.Time
	lastAttempt time.Time
	lastErr     error
	everLive    bool
}

// NewCorpus starts out serving mock. src and cache may be nil.
func NewCorpus[T any](name string, src Source[T], cache Cache[T], mock []T, logger *slog.Logger) *Corpus[T] {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Corpus[T]{
		name:   name,
		src:    src,
		cache:  cache,
		mock:   mock,
		logger: logger.With("corpus", name),
		now:    time.Now,
	}
	c.snap.Store(&Snapshot[T]{Items: mock, Origin: OriginMock})
	return c
}

func (c *Corpus[T]) Name() string { return c.name }

func (c *Corpus[T]) Snapshot() *Snapshot[T] {
	return c.snap.Load()
}

// Prime installs the cached snapshot, if any, ahead of the first refresh.
func (c *Corpus[T]) Prime(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	live := c.everLive
	c.mu.Unlock()
	if live {
		return
	}
	c.installCache(ctx)
}

// Refresh fetches from the live source and publishes a new snapshot.
// Concurrent calls share one fetch. On failure the current snapshot is
// kept; if nothing live was ever loaded, cache then mock is installed.
func (c *Corpus[T]) Refresh(ctx context.Context) error {
	_, err, _ := c.sf.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Corpus[T]) refresh(ctx context.Context) error {
	start := c.now()

	if c.src == nil {
		c.fallback(ctx, ErrNoSource, start)
		return fmt.Errorf("refresh %s: %w", c.name, ErrNoSource)
	}

	items, err := c.src.Fetch(ctx)
	if err == nil && len(items) == 0 {
		err = ErrEmptyCorpus
	}
	if err != nil {
		c.fallback(ctx, err, start)
		return fmt.Errorf("refresh %s: %w", c.name, err)
	}

	c.snap.Store(&Snapshot[T]{Items: items, Origin: OriginLive, RefreshedAt: start})

	c.mu.Lock()
	c.lastUpdate = start
	c.lastAttempt = start
	c.lastErr = nil
	c.everLive = true
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Save(ctx, items, start); err != nil {
			c.logger.Warn("corpus cache save failed", "error", err)
		}
	}
	c.logger.Info("corpus refreshed", "items", len(items), "took", c.now().Sub(start))
	return nil
}

func (c *Corpus[T]) fallback(ctx context.Context, cause error, at time.Time) {
	c.mu.Lock()
	c.lastErr = cause
	c.lastAttempt = at
	live := c.everLive
	c.mu.Unlock()

	cur := c.snap.Load()
	if live || cur.Origin == OriginCache {
		c.logger.Warn("corpus refresh failed, keeping previous snapshot",
			"origin", cur.Origin, "items", len(cur.Items), "error", cause)
		return
	}
	if c.installCache(ctx) {
		c.logger.Warn("corpus refresh failed, serving cache", "error", cause)
		return
	}
	c.snap.Store(&Snapshot[T]{Items: c.mock, Origin: OriginMock})
	c.logger.Warn("corpus refresh failed, serving built-in mock", "items", len(c.mock), "error", cause)
}

func (c *Corpus[T]) installCache(ctx context.Context) bool {
	if c.cache == nil {
		return false
	}
	items, at, err := c.cache.Load(ctx)
	if err != nil || len(items) == 0 {
		if err != nil {
			c.logger.Debug("corpus cache unavailable", "error", err)
		}
		return false
	}
	c.snap.Store(&Snapshot[T]{Items: items, Origin: OriginCache, RefreshedAt: at})
	return true
}

func (c *Corpus[T]) Status() Status {
	snap := c.snap.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Name:        c.name,
		Origin:      snap.Origin,
		Items:       len(snap.Items),
		RefreshedAt: snap.RefreshedAt,
		LastUpdate:  c.lastUpdate,
		LastAttempt: c.lastAttempt,
		Degraded:    snap.Origin != OriginLive,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Err reports ErrRetrievalDegraded when the corpus is not serving live data.
func (c *Corpus[T]) Err() error {
	st := c.Status()
	if !st.Degraded {
		return nil
	}
	if st.LastError != "" {
		return fmt.Errorf("%w: %s serving %s snapshot: %s", ErrRetrievalDegraded, c.name, st.Origin, st.LastError)
	}
	return fmt.Errorf("%w: %s serving %s snapshot", ErrRetrievalDegraded, c.name, st.Origin)
}
