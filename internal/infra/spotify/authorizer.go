package spotify

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musicshuffler/internal/app/apperr"
)

// Authorizer reports the session state of the configured refresh token.
type Authorizer struct {
	client *Client

	mu         sync.RWMutex
	authorized bool
	userName   string
	changes    chan bool
}

// NewAuthorizer creates a new authorizer. client may be nil when no
// credentials are configured.
func NewAuthorizer(client *Client) *Authorizer {
	return &Authorizer{client: client, changes: make(chan bool, 8)}
}

// Configure checks that credentials were supplied.
func (a *Authorizer) Configure(ctx context.Context) error {
	if a.client == nil {
		return errors.New("spotify credentials are required")
	}
	return nil
}

// Authorize exchanges the refresh token and reads the user's profile.
func (a *Authorizer) Authorize(ctx context.Context) error {
	if a.client == nil {
		return errors.New("spotify credentials are required")
	}
	user, err := a.client.client.CurrentUser(ctx)
	if err != nil {
		a.setAuthorized(false)
		err = wrapError(err)
		if apperr.IsAuthError(err) {
			return apperr.Wrap(errors.Wrap(err, "refresh token rejected"), apperr.ErrAuthorizationDenied, "")
		}
		return errors.Wrap(err, "failed to get current user")
	}

	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
	a.setAuthorized(true)
	return nil
}

// Unauthorize forgets the session. The refresh token itself stays valid.
func (a *Authorizer) Unauthorize(ctx context.Context) error {
	a.mu.Lock()
	a.userName = ""
	a.mu.Unlock()
	a.setAuthorized(false)
	return nil
}

// Invalidate marks the session unauthorized after the API rejected a call.
func (a *Authorizer) Invalidate() {
	a.setAuthorized(false)
}

// IsAuthorized reports whether the profile was read successfully.
func (a *Authorizer) IsAuthorized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authorized
}

// UserName returns the user's display name.
func (a *Authorizer) UserName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userName
}

// StatusChanges delivers authorization changes.
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
