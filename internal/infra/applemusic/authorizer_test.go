package applemusic

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicshuffler/internal/app/apperr"
)

func storefrontHandler(valid string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me/storefront", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserTokenHeader) != valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"unauthorized","message":"invalid token"}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"jp","type":"storefronts"}]}`)
	})
	return mux
}

func TestAuthorizer_Configure(t *testing.T) {
	direct, err := New(Config{})
	require.NoError(t, err)
	assert.Error(t, NewAuthorizer(direct, "").Configure(context.Background()))

	signed, err := New(Config{DeveloperToken: "dev"})
	require.NoError(t, err)
	assert.NoError(t, NewAuthorizer(signed, "").Configure(context.Background()))

	proxied, err := New(Config{BaseURL: "http://localhost:8787"})
	require.NoError(t, err)
	assert.NoError(t, NewAuthorizer(proxied, "").Configure(context.Background()))
}

func TestAuthorizer_AuthorizeFromContext(t *testing.T) {
	c := newTestClient(t, storefrontHandler("good"), Config{})
	a := NewAuthorizer(c, "Listener")

	ctx := ContextWithUserToken(context.Background(), "good")
	require.NoError(t, a.Authorize(ctx))
	assert.True(t, a.IsAuthorized())
	assert.Equal(t, "Listener", a.UserName())
	assert.True(t, <-a.StatusChanges())

	// The accepted token is reused by requests without one.
	assert.Equal(t, "good", c.userToken(context.Background()))

	require.NoError(t, a.Unauthorize(context.Background()))
	assert.False(t, a.IsAuthorized())
	assert.False(t, <-a.StatusChanges())
	assert.Empty(t, c.userToken(context.Background()))
}

func TestAuthorizer_Denied(t *testing.T) {
	c := newTestClient(t, storefrontHandler("good"), Config{})
	a := NewAuthorizer(c, "")

	err := a.Authorize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuthorizationDenied), "no token")

	err = a.Authorize(ContextWithUserToken(context.Background(), "bad"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuthorizationDenied), "rejected token")
	assert.False(t, a.IsAuthorized())
}

func TestAuthorizer_ServerFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), Config{UserToken: "u"})

	err := NewAuthorizer(c, "").Authorize(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrAuthorizationDenied))
}

func TestAuthorizer_RejectedAfterAccepted(t *testing.T) {
	var valid atomic.Value
	valid.Store("good")
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me/storefront", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserTokenHeader) != valid.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"jp","type":"storefronts"}]}`)
	})
	c := newTestClient(t, mux, Config{})
	a := NewAuthorizer(c, "")

	require.NoError(t, a.Authorize(ContextWithUserToken(context.Background(), "good")))
	require.True(t, a.IsAuthorized())
	assert.True(t, <-a.StatusChanges())

	a.Invalidate()
	assert.False(t, a.IsAuthorized())
	assert.False(t, <-a.StatusChanges())
	assert.Equal(t, "good", c.userToken(context.Background()), "token kept for revalidation")

	require.NoError(t, a.Authorize(context.Background()))
	assert.True(t, a.IsAuthorized())
	assert.True(t, <-a.StatusChanges())

	// The token expired; a failed revalidation clears the flag.
	valid.Store("renewed")
	err := a.Authorize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuthorizationDenied))
	assert.False(t, a.IsAuthorized())
}
