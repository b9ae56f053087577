package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizationState_String(t *testing.T) {
	tests := []struct {
		state    AuthorizationState
		expected string
	}{
		{Unknown, "unknown"},
		{Unauthorized, "unauthorized"},
		{Authorizing, "authorizing"},
		{Authorized, "authorized"},
		{AuthorizationState(99), "invalid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

func TestManager_Transitions(t *testing.T) {
	m := New()
	assert.Equal(t, Unknown, m.GetState())

	assert.True(t, m.SetState(Authorizing))
	assert.False(t, m.SetState(Authorizing))

	assert.True(t, m.SetAuthorized("User"))
	assert.Equal(t, "User", m.GetUserName())
	assert.False(t, m.SetAuthorized("User"))

	assert.True(t, m.SetUnauthorized("expired"))
	assert.Empty(t, m.GetUserName())
	assert.Equal(t, "expired", m.GetLastError())

	assert.False(t, m.SetUnauthorized(""))
	assert.Equal(t, "expired", m.GetLastError())

	m.SetAuthorized("User")
	assert.Empty(t, m.GetLastError())
}

func TestManager_Snapshot(t *testing.T) {
	m := New()
	m.SetAuthorized("Alex")

	snap := m.Snapshot()
	assert.True(t, snap.IsAuthorized())
	assert.Equal(t, "authorized", snap.StateName)
	assert.Equal(t, "Alex", snap.UserDisplayName)
}
