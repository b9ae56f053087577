package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/app/apperr"
)

// toConnectError maps an application error to a Connect error whose message
// is the user-facing hint when one is attached.
func toConnectError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	code := codeOf(err)
	if code == connect.CodeInternal {
		zlog.Error().Msgf("rpc failed: %v", err)
	}
	msg := apperr.UserMessage(err, "")
	if msg == "" {
		if code == connect.CodeInternal {
			msg = fallback
		} else {
			msg = err.Error()
		}
	}
	return connect.NewError(code, errors.New(msg))
}

func codeOf(err error) connect.Code {
	switch apperr.Kind(err) {
	case apperr.ErrInvalidInput:
		return connect.CodeInvalidArgument
	case apperr.ErrNameConflict:
		return connect.CodeAlreadyExists
	case apperr.ErrAuthExpired, apperr.ErrAuthorizationDenied, apperr.ErrAuthorizationFailed:
		return connect.CodeUnauthenticated
	case apperr.ErrSdkUnavailable, apperr.ErrConfiguration:
		return connect.CodeFailedPrecondition
	case apperr.ErrNetwork:
		return connect.CodeUnavailable
	}
	if apperr.IsAuthError(err) {
		return connect.CodeUnauthenticated
	}
	return connect.CodeInternal
}
