package apperr

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

type statusErr struct{ status int }

func (e *statusErr) Error() string   { return http.StatusText(e.status) }
func (e *statusErr) HTTPStatus() int { return e.status }

func TestKind(t *testing.T) {
	err := New(ErrNameConflict, "choose a different name", "playlist %q exists", "mix")
	wrapped := errors.Wrap(err, "publish")

	assert.True(t, errors.Is(wrapped, ErrNameConflict))
	assert.Equal(t, ErrNameConflict, Kind(wrapped))
	assert.Equal(t, "choose a different name", UserMessage(wrapped, "fallback"))
	assert.Nil(t, Kind(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrNetwork, "x"))

	err := Wrap(errors.New("dial tcp: refused"), ErrNetwork, "")
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, "fallback", UserMessage(err, "fallback"))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		authStatus bool
	}{
		{name: "unauthorized", err: &statusErr{status: 401}, status: 401, authStatus: true},
		{name: "forbidden wrapped", err: errors.Wrap(&statusErr{status: 403}, "fetch"), status: 403, authStatus: true},
		{name: "server error", err: &statusErr{status: 500}, status: 500, authStatus: false},
		{name: "no status", err: errors.New("boom"), status: 0, authStatus: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusCode(tt.err))
			assert.Equal(t, tt.authStatus, IsAuthError(tt.err))
		})
	}
}

func TestIsAuthError_Marked(t *testing.T) {
	err := Wrap(errors.New("session gone"), ErrAuthExpired, "")
	assert.True(t, IsAuthError(err))
	assert.False(t, IsAuthError(nil))
}
