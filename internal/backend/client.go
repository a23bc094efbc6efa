package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"marketplace/internal/domain/cart"
	"marketplace/internal/logger"
)

const (
	PathCreateCheckout      = "/api/createStripeCheckout"
	PathProviderProfile     = "/api/providerProfileSubmit"
	PathUpdateAccountStripe = "/api/updateAccountStripe"
	maxResponseBytes        = 1 << 20
)

var ErrNoClientSecret = errors.New("backend returned no client secret")

// Error is a non-200 answer from the backend. Message is the backend's own text when it sent one.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
}

type CheckoutRequest struct {
	Items  []cart.Item `json:"items"`
	UserID string      `json:"userId"`
}

type Reply struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

type File struct {
	Field   string
	Name    string
	Content []byte
}

// Form is a multipart submission.
type Form struct {
	Fields url.Values
	Files  []File
}

func (f Form) Clone() Form {
	out := Form{Fields: url.Values{}, Files: append([]File(nil), f.Files...)}
	for k, v := range f.Fields {
		out.Fields[k] = append([]string(nil), v...)
	}
	return out
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, hc *http.Client, log *slog.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, log: log}
}

// CreateCheckout asks the backend for a payment intent and returns its client secret.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathCreateCheckout, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.ClientSecret == "" {
		return "", ErrNoClientSecret
	}
	return out.ClientSecret, nil
}

func (c *Client) SubmitProviderProfile(ctx context.Context, form Form) (Reply, error) {
	return c.postForm(ctx, PathProviderProfile, form)
}

func (c *Client) UpdateStripeAccount(ctx context.Context, form Form) (Reply, error) {
	return c.postForm(ctx, PathUpdateAccountStripe, form)
}

func (c *Client) postForm(ctx context.Context, path string, form Form) (Reply, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(form.Fields))
	for k := range form.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range form.Fields[k] {
			if err := mw.WriteField(k, v); err != nil {
				return Reply{}, err
			}
		}
	}
	for _, f := range form.Files {
		w, err := mw.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return Reply{}, err
		}
		if _, err := w.Write(f.Content); err != nil {
			return Reply{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return Reply{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return Reply{}, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out Reply
	if err := c.do(httpReq, &out); err != nil {
		return Reply{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("backend %s: read body: %w", req.URL.Path, err)
	}

	if resp.StatusCode != http.StatusOK {
		e := &Error{Status: resp.StatusCode, Message: errorMessage(raw)}
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		c.log.Warn("backend rejected request",
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", e.Message))
		return e
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("backend %s: decode: %w", req.URL.Path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
