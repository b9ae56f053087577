package connect

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

var errInvalidDirection = errors.New("direction must be left or right")

// NewHandler mounts both services on one mux using the JSON codec.
func NewHandler(auth *AuthService, shuffler *ShufflerService, inject TokenInjector) http.Handler {
	opts := []connect.HandlerOption{
		connect.WithCodec(Codec()),
		connect.WithInterceptors(NewUserTokenInterceptor(inject)),
	}

	mux := http.NewServeMux()
	mux.Handle(auth.Handler(opts...))
	mux.Handle(shuffler.Handler(opts...))
	return mux
}
