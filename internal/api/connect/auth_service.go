package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/osa030/musicshuffler/internal/app/session"
)

// AuthService implements the AuthService RPC.
type AuthService struct {
	session *session.Manager
}

// NewAuthService creates a new AuthService.
func NewAuthService(session *session.Manager) *AuthService {
	return &AuthService{session: session}
}

// Handler returns the service path and its handler.
func (s *AuthService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(AuthGetSessionProcedure, connect.NewUnaryHandler(AuthGetSessionProcedure, s.GetSession, opts...))
	mux.Handle(AuthAuthorizeProcedure, connect.NewUnaryHandler(AuthAuthorizeProcedure, s.Authorize, opts...))
	mux.Handle(AuthUnauthorizeProcedure, connect.NewUnaryHandler(AuthUnauthorizeProcedure, s.Unauthorize, opts...))
	return "/" + AuthServiceName + "/", mux
}

// GetSession returns the current authorization state.
func (s *AuthService) GetSession(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[SessionResponse], error) {
	return connect.NewResponse(newSessionResponse(s.session.Snapshot())), nil
}

// Authorize signs the user in.
func (s *AuthService) Authorize(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[SessionResponse], error) {
	if err := s.session.Authorize(ctx); err != nil {
		return nil, toConnectError(err, "Authorization failed.")
	}
	return connect.NewResponse(newSessionResponse(s.session.Snapshot())), nil
}

// Unauthorize signs the user out.
func (s *AuthService) Unauthorize(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[SessionResponse], error) {
	if err := s.session.Unauthorize(ctx); err != nil {
		return nil, toConnectError(err, "Sign out failed.")
	}
	return connect.NewResponse(newSessionResponse(s.session.Snapshot())), nil
}
