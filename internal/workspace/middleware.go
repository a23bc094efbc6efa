package workspace

import (
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/cart"
	"marketplace/internal/checkout"
	"marketplace/internal/registration"
	"marketplace/internal/session"
	"marketplace/internal/util"
)

const CtxKey = "workspace"

var sidPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{32,128}$`)

type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Middleware binds the request to the visitor's workspace through a session-id cookie,
// exposes its components on the gin context and persists the workspace afterwards.
func Middleware(reg *Registry, cc CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cc.Name)
		if err != nil || !sidPattern.MatchString(sid) {
			sid, err = util.RandomToken(32)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session id generation failed"})
				return
			}
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cc.Name, sid, int(cc.TTL.Seconds()), "/", "", cc.Secure, true)

		w := reg.Acquire(c.Request.Context(), sid)
		defer reg.Release(w)
		c.Set(CtxKey, w)
		c.Set(session.CtxStoreKey, w.Session)
		c.Set(cart.CtxStoreKey, w.Cart)
		c.Set(checkout.CtxKey, w.Checkout)
		c.Set(registration.CtxKey, w.Registration)

		c.Next()

		reg.Save(c.Request.Context(), w)
	}
}
