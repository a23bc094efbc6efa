package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	dsession "marketplace/internal/domain/session"
	"marketplace/internal/i18n"
	"marketplace/internal/logger"
	"marketplace/internal/session"
)

const CtxUserIDKey = "user_id"

// refreshLeeway is how close to expiry an access token may get before it is refreshed.
const refreshLeeway = 30 * time.Second

// RequireSession aborts with 401 unless the visitor has a live session.
// Tokens close to expiry are refreshed through GoTrue; a failed refresh signs the visitor out.
func RequireSession(gt Authenticator, v *Verifier, defaultLang string, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(c *gin.Context) {
		store := c.MustGet(session.CtxStoreKey).(*session.Store)
		cur, ok := liveSession(c, store, gt, v, log)
		if !ok {
			unauthorized(c, defaultLang)
			return
		}
		c.Set(CtxUserIDKey, cur.UserID)
		c.Next()
	}
}

// RefreshSession keeps a signed-in visitor's tokens fresh but lets anonymous requests through,
// for handlers that answer anonymous visitors themselves.
func RefreshSession(gt Authenticator, v *Verifier, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(c *gin.Context) {
		store := c.MustGet(session.CtxStoreKey).(*session.Store)
		if store.Get() != nil {
			if cur, ok := liveSession(c, store, gt, v, log); ok {
				c.Set(CtxUserIDKey, cur.UserID)
			}
		}
		c.Next()
	}
}

// liveSession returns the visitor's session with a usable access token, refreshing it when needed.
// A session that cannot be made usable is cleared.
func liveSession(c *gin.Context, store *session.Store, gt Authenticator, v *Verifier, log *slog.Logger) (*dsession.Session, bool) {
	cur, err := store.Require()
	if err != nil {
		return nil, false
	}

	stale := cur.ExpiresWithin(time.Now(), refreshLeeway)
	if !stale && v.Enabled() {
		_, err := v.Parse(cur.AccessToken)
		switch {
		case errors.Is(err, ErrTokenExpired):
			stale = true
		case err != nil:
			log.Warn("dropping session with bad token", slog.String("user_id", cur.UserID), slog.Any("err", err))
			store.Clear()
			return nil, false
		}
	}

	if stale {
		next, err := gt.Refresh(c.Request.Context(), cur.RefreshToken)
		if err != nil {
			log.Info("session refresh failed", slog.String("user_id", cur.UserID), slog.Any("err", err))
			store.Clear()
			return nil, false
		}
		store.Set(next)
		cur = next
	}
	return cur, true
}

func unauthorized(c *gin.Context, defaultLang string) {
	t := i18n.Lookup(i18n.FromRequest(c.Request, defaultLang))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": t.T("messages.signInRequired")})
}
