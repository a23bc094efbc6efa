package registration

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"marketplace/internal/backend"
	dsession "marketplace/internal/domain/session"
	"marketplace/internal/i18n"
)

// countryID is the only country the backend currently accepts.
const countryID = "1"

var phonePattern = regexp.MustCompile(`^[0-9]{8}$`)

// Draft accumulates the provider form until it is submitted.
type Draft struct {
	ProviderName      string   `json:"providerName"`
	FirstName         string   `json:"firstName"`
	LastName          string   `json:"lastName"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	MajorMunicipality string   `json:"majorMunicipality"`
	Languages         []string `json:"languages"`
	ImageURL          string   `json:"imageUrl,omitempty"`
	Lang              string   `json:"lang"`
}

// ValidationError blocks a submission. Key is the translation key for the user-facing message.
type ValidationError struct {
	Field string
	Key   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

func (d Draft) Validate() error {
	if !phonePattern.MatchString(strings.TrimSpace(d.Phone)) {
		return &ValidationError{Field: "Phone", Key: "messages.phoneLackRequirements"}
	}
	if strings.TrimSpace(d.MajorMunicipality) == "" {
		return &ValidationError{Field: "MajorMunicipality", Key: "messages.municipalityRequired"}
	}
	return nil
}

// DisplayName is the provider name, defaulting to "first last".
func (d Draft) DisplayName() string {
	if n := strings.TrimSpace(d.ProviderName); n != "" {
		return n
	}
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// Form serializes the draft with the session tokens the backend needs to act as the user.
func (d Draft) Form(s *dsession.Session) backend.Form {
	langs := d.Languages
	if langs == nil {
		langs = []string{}
	}
	langJSON, _ := json.Marshal(langs)

	lang := d.Lang
	if !i18n.Supported(lang) {
		lang = i18n.DefaultLang
	}

	v := url.Values{}
	v.Set("ProviderName", d.DisplayName())
	v.Set("FirstName", d.FirstName)
	v.Set("LastName", d.LastName)
	v.Set("Phone", strings.TrimSpace(d.Phone))
	v.Set("MajorMunicipality", d.MajorMunicipality)
	v.Set("country", countryID)
	v.Set("email", d.Email)
	v.Set("lang", lang)
	v.Set("languageArray", string(langJSON))
	v.Set("access_token", s.AccessToken)
	v.Set("refresh_token", s.RefreshToken)
	if d.ImageURL != "" {
		v.Set("image_url", d.ImageURL)
	}
	return backend.Form{Fields: v}
}

func (d Draft) clone() Draft {
	d.Languages = append([]string(nil), d.Languages...)
	return d
}
