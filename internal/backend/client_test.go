package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/domain/cart"
)

func TestCreateCheckout(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathCreateCheckout, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{"clientSecret":"secret_x"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.Client(), nil)
	secret, err := c.CreateCheckout(context.Background(), CheckoutRequest{
		Items:  []cart.Item{{ItemID: "itemA", Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
		UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "secret_x", secret)

	assert.Equal(t, "user-1", got["userId"])
	items := got["items"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, "itemA", first["itemId"])
	assert.EqualValues(t, 2, first["quantity"])
}

func TestCreateCheckoutMissingSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client(), nil).CreateCheckout(context.Background(), CheckoutRequest{})
	assert.ErrorIs(t, err, ErrNoClientSecret)
}

func TestBackendErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Phone already registered"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client(), nil).SubmitProviderProfile(context.Background(), Form{})
	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "Phone already registered", be.Message)
}

func TestBackendErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client(), nil).UpdateStripeAccount(context.Background(), Form{})
	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "Internal Server Error", be.Message)
}

func TestPostFormMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathUpdateAccountStripe, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "acct_1", r.FormValue("account_id"))
		assert.Equal(t, []string{"a", "b"}, r.MultipartForm.Value["multi"])

		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "avatar.png", hdr.Filename)
		assert.Equal(t, "png-bytes", string(b))

		_, _ = w.Write([]byte(`{"message":"ok","redirect":"/en/provider/profile"}`))
	}))
	defer srv.Close()

	form := Form{
		Fields: url.Values{"account_id": {"acct_1"}, "multi": {"a", "b"}},
		Files:  []File{{Field: "image", Name: "avatar.png", Content: []byte("png-bytes")}},
	}
	reply, err := NewClient(srv.URL, srv.Client(), nil).UpdateStripeAccount(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, "/en/provider/profile", reply.Redirect)
}

func TestNetworkErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL, nil, nil).CreateCheckout(context.Background(), CheckoutRequest{})
	require.Error(t, err)
	var be *Error
	assert.False(t, errors.As(err, &be))
}

func TestFormClone(t *testing.T) {
	orig := Form{Fields: url.Values{"a": {"1"}}}
	c := orig.Clone()
	c.Fields.Set("a", "2")
	c.Fields.Set("b", "3")
	assert.Equal(t, "1", orig.Fields.Get("a"))
	assert.Empty(t, orig.Fields.Get("b"))
}
