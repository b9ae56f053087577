package applemusic

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/osa030/musicshuffler/internal/app/apperr"
)

const storefrontPath = "/v1/me/storefront"

// Authorizer manages the Music User Token lifecycle against the API.
// A user is authorized once a token has been accepted by the storefront
// endpoint.
type Authorizer struct {
	client   *Client
	userName string

	mu         sync.RWMutex
	authorized bool
	changes    chan bool
}

// NewAuthorizer creates a new authorizer. userName is reported as the
// display name since the API does not expose one.
func NewAuthorizer(client *Client, userName string) *Authorizer {
	return &Authorizer{
		client:   client,
		userName: userName,
		changes:  make(chan bool, 8),
	}
}

// Configure checks that requests can be signed.
func (a *Authorizer) Configure(ctx context.Context) error {
	if a.client.Direct() && !a.client.HasDeveloperToken() {
		return errors.New("developer token is required when calling the API directly")
	}
	return nil
}

// Authorize validates the Music User Token from the context or the
// configured token source.
func (a *Authorizer) Authorize(ctx context.Context) error {
	token := a.client.userToken(ctx)
	if token == "" {
		a.setAuthorized(false)
		return apperr.New(apperr.ErrAuthorizationDenied, "", "no music user token provided")
	}

	body, err := a.client.get(ContextWithUserToken(ctx, token), storefrontPath)
	if err != nil {
		a.setAuthorized(false)
		if apperr.IsAuthError(err) {
			return apperr.Wrap(errors.Wrap(err, "music user token rejected"), apperr.ErrAuthorizationDenied, "")
		}
		return errors.Wrap(err, "failed to validate music user token")
	}

	a.client.setUserToken(token)
	zlog.Info().Msgf("music user token accepted: storefront=%s", gjson.GetBytes(body, "data.0.id").String())
	a.setAuthorized(true)
	return nil
}

// Unauthorize forgets the user token.
func (a *Authorizer) Unauthorize(ctx context.Context) error {
	a.client.setUserToken("")
	a.setAuthorized(false)
	return nil
}

// Invalidate marks the session unauthorized after the API rejected the
// token. The token is kept so Authorize can revalidate it.
func (a *Authorizer) Invalidate() {
	a.setAuthorized(false)
}

// IsAuthorized reports whether a user token has been accepted.
func (a *Authorizer) IsAuthorized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authorized
}

// UserName returns the configured display name.
func (a *Authorizer) UserName() string {
	return a.userName
}

// StatusChanges delivers authorization changes. Changes are dropped when
// the channel is full.
func (a *Authorizer) StatusChanges() <-chan bool {
	return a.changes
}

func (a *Authorizer) setAuthorized(v bool) {
	a.mu.Lock()
	changed := a.authorized != v
	a.authorized = v
	a.mu.Unlock()
	if !changed {
		return
	}
	select {
	case a.changes <- v:
	default:
	}
}
