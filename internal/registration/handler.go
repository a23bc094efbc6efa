package registration

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

type draftPatch struct {
	ProviderName      *string  `json:"providerName"`
	FirstName         *string  `json:"firstName"`
	LastName          *string  `json:"lastName"`
	Email             *string  `json:"email" binding:"omitempty,email"`
	Phone             *string  `json:"phone"`
	MajorMunicipality *string  `json:"majorMunicipality"`
	Languages         []string `json:"languages"`
	ImageURL          *string  `json:"imageUrl"`
}

func (p draftPatch) apply(d *Draft) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&d.ProviderName, p.ProviderName)
	set(&d.FirstName, p.FirstName)
	set(&d.LastName, p.LastName)
	set(&d.Email, p.Email)
	set(&d.Phone, p.Phone)
	set(&d.MajorMunicipality, p.MajorMunicipality)
	set(&d.ImageURL, p.ImageURL)
	if p.Languages != nil {
		d.Languages = p.Languages
	}
}

// Get returns the form state with its dropdown options. Anonymous visitors get 401.
func (h *Handler) Get(c *gin.Context) {
	o := orchestrator(c)
	opts, err := o.Options(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": o.Status(), "options": opts})
}

func (h *Handler) Patch(c *gin.Context) {
	var req draftPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := orchestrator(c).Edit(req.apply)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": d})
}

func (h *Handler) Submit(c *gin.Context) {
	o := orchestrator(c)
	lang := i18n.FromRequest(c.Request, h.defaultLang)
	// a completed registration keeps its draft; Submit then replays the stored result
	if _, err := o.Edit(func(d *Draft) { d.Lang = lang }); err != nil && !errors.Is(err, ErrCompleted) {
		h.fail(c, err)
		return
	}

	res, err := o.Submit(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) fail(c *gin.Context, err error) {
	t := i18n.Lookup(i18n.FromRequest(c.Request, h.defaultLang))

	var ve *ValidationError
	var se *StepError
	var be *backend.Error
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": t.T(ve.Key), "field": ve.Field})
	case errors.Is(err, session.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": t.T("messages.createProviderAccount")})
	case errors.Is(err, ErrInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": t.T("messages.registrationInProgress")})
	case errors.Is(err, ErrCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": t.T("messages.registrationCompleted")})
	case errors.Is(err, ErrStale):
		c.JSON(http.StatusConflict, gin.H{"error": t.T("messages.registrationCancelled")})
	case errors.As(err, &se) && errors.As(err, &be):
		status := http.StatusBadGateway
		if be.Status >= 400 && be.Status < 500 {
			status = be.Status
		}
		c.JSON(status, gin.H{"error": be.Message, "step": se.Step})
	case errors.As(err, &se):
		c.JSON(http.StatusBadGateway, gin.H{"error": se.Err.Error(), "step": se.Step})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
	}
}

func orchestrator(c *gin.Context) *Orchestrator {
	return c.MustGet(CtxKey).(*Orchestrator)
}
