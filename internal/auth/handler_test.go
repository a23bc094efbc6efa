package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dsession "marketplace/internal/domain/session"
	"marketplace/internal/session"
)

type fakeAuth struct {
	signIn     func(email, password string) (*dsession.Session, error)
	refresh    func(rt string) (*dsession.Session, error)
	signOuts   []string
	signOutErr error
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (*dsession.Session, error) {
	return f.signIn(email, password)
}

func (f *fakeAuth) Refresh(_ context.Context, rt string) (*dsession.Session, error) {
	return f.refresh(rt)
}

func (f *fakeAuth) SignOut(_ context.Context, at string) error {
	f.signOuts = append(f.signOuts, at)
	return f.signOutErr
}

func newRouter(store *session.Store, fa *fakeAuth, v *Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(session.CtxStoreKey, store)
		c.Next()
	})
	h := NewHandler(Dependencies{Auth: fa, Verifier: v, DefaultLang: "en"})
	r.POST("/session/login", h.Login)
	r.POST("/session/logout", h.Logout)
	r.GET("/session", h.Me)
	r.GET("/private", RequireSession(fa, v, "en", nil), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(CtxUserIDKey)})
	})
	r.GET("/open", RefreshSession(fa, v, nil), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(CtxUserIDKey)})
	})
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSetsSession(t *testing.T) {
	store := session.NewStore()
	tok := signTestToken(t, testSecret, "u1", time.Now().Add(time.Hour))
	fa := &fakeAuth{signIn: func(email, _ string) (*dsession.Session, error) {
		assert.Equal(t, "ana@example.com", email)
		return &dsession.Session{UserID: "u1", Email: email, AccessToken: tok, RefreshToken: "rt"}, nil
	}}
	r := newRouter(store, fa, NewVerifier(testSecret))

	w := do(r, http.MethodPost, "/session/login", `{"email":"Ana@Example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "u1", store.Get().UserID)
	assert.NotContains(t, w.Body.String(), "refresh_token")
}

func TestLoginFailureLeavesStoreUnset(t *testing.T) {
	store := session.NewStore()
	fa := &fakeAuth{signIn: func(string, string) (*dsession.Session, error) {
		return nil, ErrInvalidCredentials
	}}
	r := newRouter(store, fa, nil)

	w := do(r, http.MethodPost, "/session/login", `{"email":"a@b.co","password":"pw"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, store.Get())

	fa.signIn = func(string, string) (*dsession.Session, error) { return nil, errors.New("dial tcp: refused") }
	w = do(r, http.MethodPost, "/session/login", `{"email":"a@b.co","password":"pw"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Nil(t, store.Get())
}

func TestLoginRejectsTokenForAnotherUser(t *testing.T) {
	store := session.NewStore()
	tok := signTestToken(t, testSecret, "someone-else", time.Now().Add(time.Hour))
	fa := &fakeAuth{signIn: func(string, string) (*dsession.Session, error) {
		return &dsession.Session{UserID: "u1", AccessToken: tok}, nil
	}}
	r := newRouter(store, fa, NewVerifier(testSecret))

	w := do(r, http.MethodPost, "/session/login", `{"email":"a@b.co","password":"pw"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, store.Get())
}

func TestLogoutClearsEvenWhenUpstreamFails(t *testing.T) {
	store := session.NewStore()
	store.Set(&dsession.Session{UserID: "u1", AccessToken: "at"})
	fa := &fakeAuth{signOutErr: errors.New("boom")}
	r := newRouter(store, fa, nil)

	w := do(r, http.MethodPost, "/session/logout", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, store.Get())
	assert.Equal(t, []string{"at"}, fa.signOuts)
}

func TestMe(t *testing.T) {
	store := session.NewStore()
	r := newRouter(store, &fakeAuth{}, nil)

	w := do(r, http.MethodGet, "/session", "")
	assert.JSONEq(t, `{"user":null}`, w.Body.String())

	store.Set(&dsession.Session{UserID: "u1", Email: "a@b.co"})
	w = do(r, http.MethodGet, "/session", "")
	var body struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body.User.ID)
}

func TestRequireSessionAnonymous(t *testing.T) {
	r := newRouter(session.NewStore(), &fakeAuth{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/private?lang=es", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "messages.signInRequired")
}

func TestRequireSessionRefreshesExpiredToken(t *testing.T) {
	store := session.NewStore()
	store.Set(&dsession.Session{
		UserID:       "u1",
		AccessToken:  signTestToken(t, testSecret, "u1", time.Now().Add(-time.Minute)),
		RefreshToken: "rt",
	})
	fresh := signTestToken(t, testSecret, "u1", time.Now().Add(time.Hour))
	fa := &fakeAuth{refresh: func(rt string) (*dsession.Session, error) {
		assert.Equal(t, "rt", rt)
		return &dsession.Session{UserID: "u1", AccessToken: fresh, RefreshToken: "rt2", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}}
	r := newRouter(store, fa, NewVerifier(testSecret))

	w := do(r, http.MethodGet, "/private", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1"}`, w.Body.String())
	assert.Equal(t, "rt2", store.Get().RefreshToken)
}

func TestRequireSessionFailedRefreshSignsOut(t *testing.T) {
	store := session.NewStore()
	store.Set(&dsession.Session{UserID: "u1", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Hour)})
	fa := &fakeAuth{refresh: func(string) (*dsession.Session, error) { return nil, errors.New("revoked") }}
	r := newRouter(store, fa, nil)

	w := do(r, http.MethodGet, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, store.Get())
}

func TestRequireSessionDropsForgedToken(t *testing.T) {
	store := session.NewStore()
	store.Set(&dsession.Session{
		UserID:      "u1",
		AccessToken: signTestToken(t, "wrong-secret", "u1", time.Now().Add(time.Hour)),
	})
	r := newRouter(store, &fakeAuth{}, NewVerifier(testSecret))

	w := do(r, http.MethodGet, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, store.Get())
}

func TestRefreshSessionLetsAnonymousThrough(t *testing.T) {
	r := newRouter(session.NewStore(), &fakeAuth{}, nil)

	w := do(r, http.MethodGet, "/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":""}`, w.Body.String())
}

func TestRefreshSessionRenewsExpiredToken(t *testing.T) {
	store := session.NewStore()
	store.Set(&dsession.Session{UserID: "u1", AccessToken: "old", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute)})
	fa := &fakeAuth{refresh: func(rt string) (*dsession.Session, error) {
		return &dsession.Session{UserID: "u1", AccessToken: "new", RefreshToken: "rt2", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}}
	r := newRouter(store, fa, nil)

	w := do(r, http.MethodGet, "/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1"}`, w.Body.String())
	assert.Equal(t, "new", store.Get().AccessToken)
}

func TestRefreshSessionFailedRefreshContinuesSignedOut(t *testing.T) {
	store := session.NewStore()
	store.Set(&dsession.Session{UserID: "u1", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Hour)})
	fa := &fakeAuth{refresh: func(string) (*dsession.Session, error) { return nil, errors.New("revoked") }}
	r := newRouter(store, fa, nil)

	w := do(r, http.MethodGet, "/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":""}`, w.Body.String())
	assert.Nil(t, store.Get())
}
