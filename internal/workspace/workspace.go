package workspace

import (
	"sync/atomic"
	"time"

	"marketplace/internal/cart"
	"marketplace/internal/checkout"
	dcart "marketplace/internal/domain/cart"
	dsession "marketplace/internal/domain/session"
	"marketplace/internal/registration"
	"marketplace/internal/session"
)

// Workspace is the state one visitor carries between requests.
type Workspace struct {
	ID           string
	Session      *session.Store
	Cart         *cart.Store
	Checkout     *checkout.Orchestrator
	Registration *registration.Orchestrator

	dirty    atomic.Bool
	lastSeen atomic.Int64
	// active counts requests holding the workspace.
	active atomic.Int32
}

// Snapshot is the persisted part of a workspace. Orchestrator state is per-process only.
type Snapshot struct {
	Session *dsession.Session `json:"session,omitempty"`
	Cart    []dcart.Item      `json:"cart"`
}

func (s Snapshot) Empty() bool {
	return s.Session.Anonymous() && len(s.Cart) == 0
}

// newWorkspace wires the stores and orchestrators of one visitor.
// Signing out, or signing in as someone else, empties the cart and resets both orchestrators.
func newWorkspace(id string, d Deps, onSignOut func(id string)) *Workspace {
	w := &Workspace{
		ID:      id,
		Session: session.NewStore(),
		Cart:    cart.NewStore(),
	}
	w.Checkout = checkout.New(w.Session, w.Cart, d.Checkout, d.Log)
	w.Registration = registration.New(w.Session, d.Registration)
	w.touch()

	w.Session.Subscribe(func(prev, next *dsession.Session) {
		w.dirty.Store(true)
		switch {
		case prev == nil:
			return
		case next == nil:
			w.reset()
			if onSignOut != nil {
				onSignOut(w.ID)
			}
		case next.UserID != prev.UserID:
			w.reset()
		}
	})
	w.Cart.Subscribe(func([]dcart.Item) { w.dirty.Store(true) })
	return w
}

func (w *Workspace) Snapshot() Snapshot {
	return Snapshot{Session: w.Session.Get(), Cart: w.Cart.Items()}
}

func (w *Workspace) restore(s Snapshot) {
	w.Cart.Restore(s.Cart)
	if !s.Session.Anonymous() {
		w.Session.Set(s.Session)
	}
	w.dirty.Store(false)
}

func (w *Workspace) reset() {
	w.Cart.Clear()
	w.Checkout.Reset()
	w.Registration.Reset()
}

func (w *Workspace) touch() {
	w.lastSeen.Store(time.Now().UnixNano())
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, w.lastSeen.Load()))
}
