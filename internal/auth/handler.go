package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	dsession "marketplace/internal/domain/session"
	"marketplace/internal/logger"
	"marketplace/internal/session"
)

// Authenticator is the hosted auth service as the storefront sees it.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*dsession.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*dsession.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

type Dependencies struct {
	Auth        Authenticator
	Verifier    *Verifier
	DefaultLang string
	Log         *slog.Logger
}

type Handler struct {
	deps Dependencies
}

func NewHandler(d Dependencies) *Handler {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	return &Handler{deps: d}
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login signs in through GoTrue and binds the session to the visitor.
// Any failure leaves the visitor's session untouched.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	s, err := h.deps.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.deps.Log.Error("sign in failed", slog.Any("err", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "auth service unavailable"})
		return
	}

	if h.deps.Verifier.Enabled() {
		claims, err := h.deps.Verifier.Parse(s.AccessToken)
		if err != nil || claims.UserID() != s.UserID {
			h.deps.Log.Warn("gotrue issued a token that does not verify", slog.String("user_id", s.UserID), slog.Any("err", err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
	}

	store(c).Set(s)
	c.JSON(http.StatusOK, gin.H{"user": publicUser(s), "expires_at": s.ExpiresAt})
}

// Logout revokes the tokens upstream and clears the session. Upstream errors are only logged.
func (h *Handler) Logout(c *gin.Context) {
	st := store(c)
	if cur := st.Get(); cur != nil {
		if err := h.deps.Auth.SignOut(c.Request.Context(), cur.AccessToken); err != nil {
			h.deps.Log.Warn("gotrue sign out failed", slog.String("user_id", cur.UserID), slog.Any("err", err))
		}
	}
	st.Clear()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Me(c *gin.Context) {
	cur := store(c).Get()
	if cur == nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": publicUser(cur), "expires_at": cur.ExpiresAt})
}

func store(c *gin.Context) *session.Store {
	return c.MustGet(session.CtxStoreKey).(*session.Store)
}

func publicUser(s *dsession.Session) gin.H {
	return gin.H{"id": s.UserID, "email": s.Email}
}
