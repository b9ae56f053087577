// Package state provides session state management.
package state

// AuthorizationState represents where the user is in the sign-in lifecycle.
type AuthorizationState int

const (
	Unknown      AuthorizationState = iota // Provider not initialized yet
	Unauthorized                           // Signed out or session expired
	Authorizing                            // Sign-in in progress
	Authorized                             // Signed in
)

// String returns the string representation of the state.
func (s AuthorizationState) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Unauthorized:
		return "unauthorized"
	case Authorizing:
		return "authorizing"
	case Authorized:
		return "authorized"
	default:
		return "invalid"
	}
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	State           AuthorizationState `json:"-"`
	StateName       string             `json:"state"`
	UserDisplayName string             `json:"user_display_name"`
	LastError       string             `json:"last_error,omitempty"`
}

// IsAuthorized returns true if the snapshot is in the Authorized state.
func (s Snapshot) IsAuthorized() bool {
	return s.State == Authorized
}
