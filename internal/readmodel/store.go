package readmodel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpggio/gigboard/internal/ledger"
	"golang.org/x/sync/singleflight"
)

// View is what readers observe: the last good snapshot plus its freshness.
type View struct {
	// Snapshot is nil until the first successful build.
	Snapshot *Snapshot
	// Stale is set when the latest rebuild failed or a write invalidated the snapshot.
	Stale bool
	// LastError is the failure of the latest rebuild, if any.
	LastError error
	// RefreshedAt is when Snapshot was built.
	RefreshedAt time.Time
	// Generation increments on every successful publish.
	Generation uint64
}

// Ready reports whether a snapshot has ever been published.
func (v View) Ready() bool {
	return v.Snapshot != nil
}

// Store publishes snapshots atomically to concurrent readers.
// A single rebuild runs at a time.
type Store struct {
	builder *Builder
	logger  *slog.Logger

	current atomic.Pointer[View]
	group   singleflight.Group
	mu      sync.Mutex
}

// NewStore creates a Store with no published snapshot.
func NewStore(builder *Builder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{builder: builder, logger: logger}
	s.current.Store(&View{})
	return s
}

// View returns the currently published view.
func (s *Store) View() View {
	return *s.current.Load()
}

// Refresh rebuilds the snapshot. Concurrent callers share one rebuild, which
// runs detached from any single caller's cancellation. A caller whose ctx
// ends first gets the current view and ctx.Err().
func (s *Store) Refresh(ctx context.Context) (View, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		return s.rebuild(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Val.(View), res.Err
	case <-ctx.Done():
		return s.View(), ctx.Err()
	}
}

// Rebuild runs a fresh rebuild that does not join one already in flight,
// so it observes every write settled before the call.
func (s *Store) Rebuild(ctx context.Context) (View, error) {
	return s.rebuild(ctx)
}

// Invalidate marks the published snapshot stale until the next successful rebuild.
func (s *Store) Invalidate() {
	for {
		cur := s.current.Load()
		if cur.Stale {
			return
		}
		next := *cur
		next.Stale = true
		if s.current.CompareAndSwap(cur, &next) {
			return
		}
	}
}

func (s *Store) rebuild(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.builder.Build(ctx)
	if err != nil && errors.Is(err, ledger.ErrNotFound) {
		s.logger.Warn("record vanished during scan, rebuilding", "error", err)
		snap, err = s.builder.Build(ctx)
	}

	prev := s.current.Load()
	if err != nil {
		next := &View{
			Snapshot:    prev.Snapshot,
			Stale:       true,
			LastError:   err,
			RefreshedAt: prev.RefreshedAt,
			Generation:  prev.Generation,
		}
		s.current.Store(next)
		s.logger.Warn("snapshot rebuild failed, keeping previous", "error", err, "kind", ledger.KindOf(err))
		return *next, err
	}

	next := &View{
		Snapshot:    snap,
		RefreshedAt: snap.BuiltAt(),
		Generation:  prev.Generation + 1,
	}
	s.current.Store(next)
	s.logger.Info("snapshot published", "records", snap.Len(), "generation", next.Generation)
	return *next, nil
}

// RunAutoRefresh refreshes on every tick until ctx ends. Failures are logged
// and leave the previous snapshot published.
func (s *Store) RunAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Refresh(ctx)
		}
	}
}
