package workspace

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"marketplace/internal/checkout"
	"marketplace/internal/logger"
	"marketplace/internal/registration"
)

const persistTimeout = 2 * time.Second

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, sid string, data []byte, ttl time.Duration) error
	LoadSnapshot(ctx context.Context, sid string) ([]byte, bool, error)
	DeleteSnapshot(ctx context.Context, sid string) error
}

// Deps are the shared collaborators handed to every workspace.
type Deps struct {
	Checkout     checkout.Backend
	Registration registration.Deps
	Log          *slog.Logger
}

// Registry maps session ids to live workspaces and persists their snapshots when a store is configured.
type Registry struct {
	deps  Deps
	snaps SnapshotStore
	ttl   time.Duration
	log   *slog.Logger

	mu    sync.Mutex
	items map[string]*Workspace
	load  singleflight.Group
}

// NewRegistry builds a registry. snaps may be nil to keep workspaces in memory only.
func NewRegistry(d Deps, snaps SnapshotStore, ttl time.Duration, log *slog.Logger) *Registry {
	if log == nil {
		log = logger.Discard()
	}
	if d.Log == nil {
		d.Log = log
	}
	if d.Registration.Log == nil {
		d.Registration.Log = log
	}
	return &Registry{deps: d, snaps: snaps, ttl: ttl, log: log, items: map[string]*Workspace{}}
}

// Get returns the workspace for sid, restoring it from the snapshot store or creating it.
func (r *Registry) Get(ctx context.Context, sid string) *Workspace {
	r.mu.Lock()
	w, ok := r.items[sid]
	r.mu.Unlock()
	if ok {
		w.touch()
		return w
	}

	v, _, _ := r.load.Do(sid, func() (any, error) {
		r.mu.Lock()
		if w, ok := r.items[sid]; ok {
			r.mu.Unlock()
			return w, nil
		}
		r.mu.Unlock()

		w := newWorkspace(sid, r.deps, r.forget)
		if snap, ok := r.loadSnapshot(ctx, sid); ok {
			w.restore(snap)
		}

		r.mu.Lock()
		r.items[sid] = w
		r.mu.Unlock()
		return w, nil
	})
	w = v.(*Workspace)
	w.touch()
	return w
}

// Acquire is Get for a request: the workspace stays in memory until the matching Release.
func (r *Registry) Acquire(ctx context.Context, sid string) *Workspace {
	for {
		w := r.Get(ctx, sid)
		r.mu.Lock()
		if r.items[sid] == w {
			w.active.Add(1)
			r.mu.Unlock()
			return w
		}
		// swept between Get and here
		r.mu.Unlock()
	}
}

func (r *Registry) Release(w *Workspace) {
	w.active.Add(-1)
}

// Save persists w if it changed since the last save. An empty workspace deletes its snapshot.
func (r *Registry) Save(ctx context.Context, w *Workspace) {
	if r.snaps == nil || !w.dirty.Swap(false) {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	snap := w.Snapshot()
	if snap.Empty() {
		if err := r.snaps.DeleteSnapshot(ctx, w.ID); err != nil {
			r.log.Warn("workspace snapshot delete failed", slog.Any("err", err))
		}
		return
	}

	b, err := json.Marshal(snap)
	if err != nil {
		r.log.Error("workspace snapshot encode failed", slog.Any("err", err))
		return
	}
	if err := r.snaps.SaveSnapshot(ctx, w.ID, b, r.ttl); err != nil {
		w.dirty.Store(true)
		r.log.Warn("workspace snapshot save failed", slog.Any("err", err))
	}
}

// Sweep drops workspaces idle for longer than idle from memory and returns how many went.
// Workspaces with a request in flight, or with changes not yet persisted, are kept.
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, w := range r.items {
		if w.active.Load() > 0 || (r.snaps != nil && w.dirty.Load()) {
			continue
		}
		if w.idleSince(now) > idle {
			delete(r.items, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry) loadSnapshot(ctx context.Context, sid string) (Snapshot, bool) {
	if r.snaps == nil {
		return Snapshot{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	b, ok, err := r.snaps.LoadSnapshot(ctx, sid)
	if err != nil {
		r.log.Warn("workspace snapshot load failed", slog.Any("err", err))
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		r.log.Warn("workspace snapshot corrupt", slog.Any("err", err))
		return Snapshot{}, false
	}
	return snap, true
}

// forget removes the persisted snapshot on sign-out.
func (r *Registry) forget(sid string) {
	if r.snaps == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.snaps.DeleteSnapshot(ctx, sid); err != nil {
		r.log.Warn("workspace snapshot delete failed", slog.Any("err", err))
	}
}
