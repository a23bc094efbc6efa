package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/domain/session"
	"marketplace/internal/logger"
)

var ErrInvalidCredentials = errors.New("invalid login credentials")

// GoTrueError is a non-2xx answer from the hosted auth service.
type GoTrueError struct {
	Status  int
	Code    string
	Message string
}

func (e *GoTrueError) Error() string {
	return fmt.Sprintf("gotrue status %d: %s", e.Status, e.Message)
}

// GoTrue talks to the hosted auth service under {SUPABASE_URL}/auth/v1.
type GoTrue struct {
	baseURL string
	anonKey string
	http    *http.Client
	log     *slog.Logger
	now     func() time.Time
}

func NewGoTrue(supabaseURL, anonKey string, hc *http.Client, log *slog.Logger) *GoTrue {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = logger.Discard()
	}
	return &GoTrue{
		baseURL: strings.TrimRight(supabaseURL, "/") + "/auth/v1",
		anonKey: anonKey,
		http:    hc,
		log:     log,
		now:     time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	body := map[string]string{"email": email, "password": password}
	s, err := g.token(ctx, "password", body)
	var ge *GoTrueError
	if errors.As(err, &ge) && (ge.Status == http.StatusBadRequest || ge.Status == http.StatusUnauthorized) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, ge.Message)
	}
	return s, err
}

func (g *GoTrue) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	return g.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

// SignOut revokes the refresh tokens behind accessToken.
func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return g.do(req, nil)
}

func (g *GoTrue) token(ctx context.Context, grant string, body map[string]string) (*session.Session, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/token?grant_type="+grant, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out tokenResponse
	if err := g.do(req, &out); err != nil {
		return nil, err
	}
	if out.User.ID == "" || out.AccessToken == "" {
		return nil, errors.New("gotrue: token response without user")
	}

	s := &session.Session{
		UserID:       out.User.ID,
		Email:        out.User.Email,
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
	}
	switch {
	case out.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	case out.ExpiresIn > 0:
		s.ExpiresAt = g.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return s, nil
}

func (g *GoTrue) do(req *http.Request, out any) error {
	req.Header.Set("apikey", g.anonKey)
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+g.anonKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Code             any    `json:"code"`
			ErrorCode        string `json:"error_code"`
			Msg              string `json:"msg"`
			Message          string `json:"message"`
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.Unmarshal(raw, &body)
		e := &GoTrueError{Status: resp.StatusCode, Code: body.ErrorCode}
		for _, m := range []string{body.ErrorDescription, body.Msg, body.Message, body.Error} {
			if m != "" {
				e.Message = m
				break
			}
		}
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		g.log.Warn("gotrue rejected request", slog.String("path", req.URL.Path), slog.Int("status", resp.StatusCode))
		return e
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
