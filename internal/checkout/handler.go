package checkout

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/backend"
	"marketplace/internal/i18n"
	"marketplace/internal/session"
)

type Handler struct {
	defaultLang string
}

func NewHandler(defaultLang string) *Handler {
	return &Handler{defaultLang: defaultLang}
}

func (h *Handler) Start(c *gin.Context) {
	o := orchestrator(c)
	secret, err := o.Start(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": Ready, "clientSecret": secret})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, orchestrator(c).Status())
}

func (h *Handler) Cancel(c *gin.Context) {
	o := orchestrator(c)
	o.Cancel()
	c.JSON(http.StatusOK, o.Status())
}

func (h *Handler) Complete(c *gin.Context) {
	if err := orchestrator(c).Complete(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) fail(c *gin.Context, err error) {
	t := i18n.Lookup(i18n.FromRequest(c.Request, h.defaultLang))

	var be *backend.Error
	switch {
	case errors.Is(err, session.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": t.T("messages.signInRequired")})
	case errors.Is(err, ErrInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": t.T("messages.checkoutInProgress")})
	case errors.Is(err, ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": t.T("messages.emptyCart")})
	case errors.Is(err, ErrStale):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &be):
		c.JSON(http.StatusBadGateway, gin.H{"error": be.Message})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "checkout failed"})
	}
}

func orchestrator(c *gin.Context) *Orchestrator {
	return c.MustGet(CtxKey).(*Orchestrator)
}
