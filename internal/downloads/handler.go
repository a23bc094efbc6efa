package downloads

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/auth"
	"marketplace/internal/i18n"
)

type Handler struct {
	svc         *Service
	defaultLang string
}

func NewHandler(svc *Service, defaultLang string) *Handler {
	return &Handler{svc: svc, defaultLang: defaultLang}
}

// List must run behind auth.RequireSession.
func (h *Handler) List(c *gin.Context) {
	userID := c.GetString(auth.CtxUserIDKey)

	orders, err := h.svc.Library(c.Request.Context(), userID)
	if errors.Is(err, ErrNoClient) {
		t := i18n.Lookup(i18n.FromRequest(c.Request, h.defaultLang))
		c.JSON(http.StatusForbidden, gin.H{"error": t.T("messages.noClient"), "redirect": "/" + t.Lang()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load downloads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": orders})
}
