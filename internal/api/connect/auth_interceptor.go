package connect

import (
	"context"

	"connectrpc.com/connect"
)

const (
	// UserTokenHeader carries the provider user token of the caller.
	UserTokenHeader = "Music-User-Token"
)

// TokenInjector stores a user token in the context for provider calls.
type TokenInjector func(ctx context.Context, token string) context.Context

// NewUserTokenInterceptor creates an interceptor that forwards the caller's
// user token from request metadata to the provider client.
func NewUserTokenInterceptor(inject TokenInjector) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token := req.Header().Get(UserTokenHeader); token != "" && inject != nil {
				ctx = inject(ctx, token)
			}
			return next(ctx, req)
		}
	}
}
