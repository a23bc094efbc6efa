package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"marketplace/internal/backend"
	"marketplace/internal/cart"
	dcart "marketplace/internal/domain/cart"
	"marketplace/internal/logger"
	"marketplace/internal/session"
)

// CtxKey is the gin context key holding the visitor's *Orchestrator.
const CtxKey = "checkout"

type State string

const (
	Idle       State = "idle"
	Requesting State = "requesting"
	Ready      State = "ready"
	Failed     State = "failed"
)

var (
	ErrEmptyCart  = errors.New("cart is empty")
	ErrInProgress = errors.New("checkout already in progress")
	ErrStale      = errors.New("checkout request superseded")
	ErrNotReady   = errors.New("no payment ready to complete")
)

type Backend interface {
	CreateCheckout(ctx context.Context, req backend.CheckoutRequest) (string, error)
}

type Status struct {
	State        State  `json:"state"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Error        string `json:"error,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
}

// Orchestrator turns the visitor's cart into a payment intent, one request at a time.
type Orchestrator struct {
	sessions *session.Store
	cart     *cart.Store
	backend  Backend
	log      *slog.Logger

	mu     sync.Mutex
	state  State
	secret string
	err    error
	token  string
	// inflight stays set until the backend call returns, even after Cancel.
	inflight bool
	cancel   context.CancelFunc
}

func New(sessions *session.Store, carts *cart.Store, b Backend, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = logger.Discard()
	}
	o := &Orchestrator{sessions: sessions, cart: carts, backend: b, log: log, state: Idle}
	carts.Subscribe(o.onCartChange)
	return o
}

// Start issues one payment-intent request for the current cart and returns the client secret.
// Anonymous visitors and empty carts fail before any network call.
// At most one backend call runs at a time; a cancelled call must return before the next Start.
func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.state == Requesting || o.inflight {
		o.mu.Unlock()
		return "", ErrInProgress
	}

	sess, err := o.sessions.Require()
	if err != nil {
		o.failLocked(err)
		o.mu.Unlock()
		return "", err
	}
	items := o.cart.Items()
	if len(items) == 0 {
		o.failLocked(ErrEmptyCart)
		o.mu.Unlock()
		return "", ErrEmptyCart
	}

	token := uuid.NewString()
	reqCtx, cancel := context.WithCancel(ctx)
	o.token = token
	o.state = Requesting
	o.secret = ""
	o.err = nil
	o.inflight = true
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	log := o.log.With(slog.String("request_id", token), slog.String("user_id", sess.UserID))
	log.Info("checkout requested", slog.Int("items", len(items)))

	secret, err := o.backend.CreateCheckout(reqCtx, backend.CheckoutRequest{Items: items, UserID: sess.UserID})

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight = false
	o.cancel = nil
	if o.token != token {
		log.Info("discarding stale checkout response")
		return "", ErrStale
	}
	o.token = ""
	if err != nil {
		log.Warn("checkout failed", slog.Any("err", err))
		o.failLocked(err)
		return "", err
	}
	o.state = Ready
	o.secret = secret
	log.Info("checkout ready")
	return secret, nil
}

// Cancel aborts an outstanding request; whatever it returns is discarded.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Requesting {
		o.resetLocked()
	}
}

func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
}

// Complete is called once the payment widget reports success. It empties the cart.
func (o *Orchestrator) Complete() error {
	o.mu.Lock()
	if o.state != Ready {
		o.mu.Unlock()
		return ErrNotReady
	}
	o.resetLocked()
	o.mu.Unlock()

	o.cart.Clear()
	return nil
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{State: o.state, ClientSecret: o.secret, RequestID: o.token}
	if o.err != nil {
		st.Error = o.err.Error()
	}
	return st
}

func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// onCartChange drops a secret or pending request that no longer matches the cart.
func (o *Orchestrator) onCartChange([]dcart.Item) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Ready || o.state == Requesting {
		o.resetLocked()
	}
}

func (o *Orchestrator) failLocked(err error) {
	o.state = Failed
	o.secret = ""
	o.err = err
}

func (o *Orchestrator) resetLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = Idle
	o.secret = ""
	o.err = nil
	o.token = ""
}
