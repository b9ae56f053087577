package state

import "sync"

// Manager holds the session state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	state     AuthorizationState
	userName  string
	lastError string
}

// New creates a new state manager in the Unknown state.
func New() *Manager {
	return &Manager{state: Unknown}
}

// GetState returns the current authorization state.
func (m *Manager) GetState() AuthorizationState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetState sets the authorization state and reports whether it changed.
func (m *Manager) SetState(s AuthorizationState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.state != s
	m.state = s
	return changed
}

// SetAuthorized moves to Authorized with the given display name and clears
// the last error. Reports whether the state changed.
func (m *Manager) SetAuthorized(userName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.state != Authorized || m.userName != userName
	m.state = Authorized
	m.userName = userName
	m.lastError = ""
	return changed
}

// SetUnauthorized moves to Unauthorized and clears the display name.
// An empty message keeps the previous error. Reports whether the state changed.
func (m *Manager) SetUnauthorized(message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.state != Unauthorized
	m.state = Unauthorized
	m.userName = ""
	if message != "" {
		m.lastError = message
	}
	return changed
}

// GetUserName returns the user display name.
func (m *Manager) GetUserName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userName
}

// GetLastError returns the last user-facing error message.
func (m *Manager) GetLastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// SetLastError sets the last user-facing error message.
func (m *Manager) SetLastError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = msg
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:           m.state,
		StateName:       m.state.String(),
		UserDisplayName: m.userName,
		LastError:       m.lastError,
	}
}
