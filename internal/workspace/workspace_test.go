package workspace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/backend"
	"marketplace/internal/cart"
	"marketplace/internal/checkout"
	dcart "marketplace/internal/domain/cart"
	dsession "marketplace/internal/domain/session"
	"marketplace/internal/session"
)

type memSnapshots struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
	loadErr error
	saveErr error
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{data: map[string][]byte{}}
}

func (m *memSnapshots) SaveSnapshot(_ context.Context, sid string, b []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[sid] = b
	return nil
}

func (m *memSnapshots) LoadSnapshot(_ context.Context, sid string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	b, ok := m.data[sid]
	return b, ok, nil
}

func (m *memSnapshots) DeleteSnapshot(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sid)
	m.deletes++
	return nil
}

func (m *memSnapshots) has(sid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[sid]
	return ok
}

type okBackend struct{}

func (okBackend) CreateCheckout(context.Context, backend.CheckoutRequest) (string, error) {
	return "secret_x", nil
}

func item(id string) dcart.Item {
	return dcart.Item{ItemID: id, UnitPrice: decimal.NewFromInt(5)}
}

func TestSignOutClearsEverything(t *testing.T) {
	snaps := newMemSnapshots()
	reg := NewRegistry(Deps{Checkout: okBackend{}}, snaps, time.Hour, nil)
	ctx := context.Background()

	w := reg.Get(ctx, "sid-1")
	w.Session.Set(&dsession.Session{UserID: "u1", AccessToken: "at"})
	require.NoError(t, w.Cart.Add(item("a"), 1))
	_, err := w.Checkout.Start(ctx)
	require.NoError(t, err)
	reg.Save(ctx, w)
	require.True(t, snaps.has("sid-1"))

	w.Session.Clear()
	assert.Empty(t, w.Cart.Items())
	assert.Equal(t, checkout.Idle, w.Checkout.Status().State)
	assert.False(t, snaps.has("sid-1"))

	reg.Save(ctx, w)
	assert.False(t, snaps.has("sid-1"))
}

func TestLoginKeepsAnonymousCart(t *testing.T) {
	reg := NewRegistry(Deps{Checkout: okBackend{}}, nil, time.Hour, nil)
	w := reg.Get(context.Background(), "sid-1")
	require.NoError(t, w.Cart.Add(item("a"), 1))

	w.Session.Set(&dsession.Session{UserID: "u1"})
	assert.Len(t, w.Cart.Items(), 1)

	w.Session.Set(&dsession.Session{UserID: "u2"})
	assert.Empty(t, w.Cart.Items())
}

func TestSnapshotRestore(t *testing.T) {
	snaps := newMemSnapshots()
	ctx := context.Background()

	reg := NewRegistry(Deps{Checkout: okBackend{}}, snaps, time.Hour, nil)
	w := reg.Get(ctx, "sid-1")
	w.Session.Set(&dsession.Session{UserID: "u1", AccessToken: "at"})
	require.NoError(t, w.Cart.Add(item("a"), 2))
	reg.Save(ctx, w)

	// a fresh process sees the same visitor
	reg2 := NewRegistry(Deps{Checkout: okBackend{}}, snaps, time.Hour, nil)
	w2 := reg2.Get(ctx, "sid-1")
	assert.Equal(t, "u1", w2.Session.Get().UserID)
	require.Len(t, w2.Cart.Items(), 1)
	assert.Equal(t, 2, w2.Cart.Items()[0].Quantity)
	assert.False(t, w2.dirty.Load())
}

func TestSnapshotLoadErrorStartsFresh(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.loadErr = errors.New("redis down")
	reg := NewRegistry(Deps{Checkout: okBackend{}}, snaps, time.Hour, nil)

	w := reg.Get(context.Background(), "sid-1")
	assert.Nil(t, w.Session.Get())
}

func TestSaveOnlyWhenDirty(t *testing.T) {
	snaps := newMemSnapshots()
	reg := NewRegistry(Deps{Checkout: okBackend{}}, snaps, time.Hour, nil)
	ctx := context.Background()

	w := reg.Get(ctx, "sid-1")
	reg.Save(ctx, w)
	assert.Zero(t, snaps.deletes)

	require.NoError(t, w.Cart.Add(item("a"), 1))
	reg.Save(ctx, w)
	assert.True(t, snaps.has("sid-1"))
}

func TestGetIsSharedAndSweepEvicts(t *testing.T) {
	reg := NewRegistry(Deps{Checkout: okBackend{}}, nil, time.Hour, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*Workspace, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.Get(ctx, "sid-1")
		}(i)
	}
	wg.Wait()
	for _, w := range got {
		assert.Same(t, got[0], w)
	}
	assert.Equal(t, 1, reg.Len())

	assert.Zero(t, reg.Sweep(time.Now(), time.Minute))
	assert.Equal(t, 1, reg.Sweep(time.Now().Add(time.Hour), time.Minute))
	assert.Zero(t, reg.Len())
}

func TestSweepKeepsBusyAndUnsavedWorkspaces(t *testing.T) {
	snaps := newMemSnapshots()
	reg := NewRegistry(Deps{Checkout: okBackend{}}, snaps, time.Hour, nil)
	ctx := context.Background()
	later := time.Now().Add(time.Hour)

	busy := reg.Acquire(ctx, "sid-busy")
	assert.Zero(t, reg.Sweep(later, time.Minute))
	reg.Release(busy)
	assert.Equal(t, 1, reg.Sweep(later, time.Minute))

	snaps.saveErr = errors.New("redis down")
	w := reg.Acquire(ctx, "sid-unsaved")
	require.NoError(t, w.Cart.Add(item("a"), 1))
	reg.Save(ctx, w)
	reg.Release(w)
	assert.Zero(t, reg.Sweep(later, time.Minute))
	assert.Same(t, w, reg.Get(ctx, "sid-unsaved"))

	snaps.mu.Lock()
	snaps.saveErr = nil
	snaps.mu.Unlock()
	reg.Save(ctx, w)
	assert.True(t, snaps.has("sid-unsaved"))
	assert.Equal(t, 1, reg.Sweep(later.Add(time.Hour), time.Minute))
	assert.Zero(t, reg.Len())
}

func TestMiddlewareIssuesAndReusesCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry(Deps{Checkout: okBackend{}}, nil, time.Hour, nil)
	r := gin.New()
	r.Use(Middleware(reg, CookieConfig{Name: "sid", TTL: time.Hour}))
	r.POST("/add", func(c *gin.Context) {
		s := c.MustGet(cart.CtxStoreKey).(*cart.Store)
		_ = s.Add(item("a"), 1)
		c.Status(http.StatusNoContent)
	})
	r.GET("/count", func(c *gin.Context) {
		_ = c.MustGet(session.CtxStoreKey).(*session.Store)
		c.JSON(http.StatusOK, gin.H{"n": len(c.MustGet(cart.CtxStoreKey).(*cart.Store).Items())})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/add", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	sid := cookies[0]
	assert.Equal(t, "sid", sid.Name)
	assert.True(t, sid.HttpOnly)
	assert.Regexp(t, sidPattern, sid.Value)

	req := httptest.NewRequest(http.MethodGet, "/count", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sid.Value})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"n":1}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/count", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "bad value!"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"n":0}`, w.Body.String())
	assert.Equal(t, 2, reg.Len())
}
