package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/i18n"
)

type Handler struct {
	svc         *Service
	defaultLang string
}

func NewHandler(svc *Service, defaultLang string) *Handler {
	return &Handler{svc: svc, defaultLang: defaultLang}
}

func (h *Handler) ListPosts(c *gin.Context) {
	items, err := h.svc.Posts(c.Request.Context(), c.Query("subject"))
	if err != nil {
		h.svc.log.Error("list posts failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ListSubjects(c *gin.Context) {
	lang := i18n.FromRequest(c.Request, h.defaultLang)
	c.JSON(http.StatusOK, gin.H{"items": h.svc.Subjects(c.Request.Context(), lang)})
}
