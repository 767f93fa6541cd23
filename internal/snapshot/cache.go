package snapshot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/internal/tracker"
	"github.com/danielolaszy/prism/pkg/models"
	"github.com/danielolaszy/prism/pkg/telemetry"
)

// Loader fetches the data a snapshot is built from.
type Loader interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	BulkIssues(ctx context.Context) ([]models.Issue, int, error)
}

// Cache holds the current snapshot. Reads never block; concurrent refreshes
// share a single load.
type Cache struct {
	loader    Loader
	onRefresh func(*Snapshot)
	now       func() time.Time

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	inFlight   atomic.Int32
	group      singleflight.Group

	// mu orders stores against invalidations
	mu sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithOnRefresh registers fn to run after every stored refresh.
func WithOnRefresh(fn func(*Snapshot)) Option {
	return func(c *Cache) {
		c.onRefresh = fn
	}
}

// NewCache creates an empty cache backed by loader.
func NewCache(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		loader: loader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the last stored snapshot, possibly stale, or nil.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

// Get returns the current snapshot, loading one if there is none or it was
// invalidated.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if s := c.current.Load(); s != nil && s.Metadata.generation == c.generation.Load() {
		return s, nil
	}
	return c.Refresh(ctx)
}

// Refresh loads a new snapshot. Callers arriving while a load for the same
// generation is running wait for that load instead of starting another.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	gen := c.generation.Load()

	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		c.inFlight.Add(1)
		defer c.inFlight.Add(-1)
		// the load is shared, so it must outlive any single caller
		return c.load(context.WithoutCancel(ctx), gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Invalidate marks the current snapshot stale. It stays readable through
// Current, but the next Get loads a fresh one and any load already running
// is not stored.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generation.Add(1)
	logging.Debug("snapshot invalidated", "generation", gen)
}

// Refreshing reports whether a load is running.
func (c *Cache) Refreshing() bool {
	return c.inFlight.Load() > 0
}

func (c *Cache) load(ctx context.Context, gen uint64) (*Snapshot, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "snapshot.load")
	defer span.End()
	start := c.now()

	projects, err := c.loader.ListProjects(ctx)
	if err != nil {
		telemetry.RecordRefresh(ctx, tracker.Category(err), c.now().Sub(start))
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	issues, skipped, err := c.loader.BulkIssues(ctx)
	if err != nil {
		telemetry.RecordRefresh(ctx, tracker.Category(err), c.now().Sub(start))
		return nil, fmt.Errorf("failed to load issues: %w", err)
	}

	s := New(projects, issues, skipped)
	s.Metadata.LoadedAt = c.now()
	s.Metadata.LoadTimeMS = s.Metadata.LoadedAt.Sub(start).Milliseconds()
	s.Metadata.generation = gen

	telemetry.RecordRefresh(ctx, "", c.now().Sub(start))

	if !c.store(s, gen) {
		logging.Debug("discarding snapshot loaded before invalidation", "generation", gen)
		return s, nil
	}

	logging.Info("snapshot loaded",
		"projects", len(projects),
		"issues", len(issues),
		"skipped", skipped,
		"load_time_ms", s.Metadata.LoadTimeMS)

	if c.onRefresh != nil {
		c.onRefresh(s)
	}
	return s, nil
}

func (c *Cache) store(s *Snapshot, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() != gen {
		return false
	}
	c.current.Store(s)
	return true
}
