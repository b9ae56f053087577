// Package main provides the Spotify authentication tool.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/musicshuffler/internal/infra/logger"
	"github.com/osa030/musicshuffler/internal/infra/spotify"
)

var (
	app          = kingpin.New("musicshuffler-auth", "Obtain a Spotify refresh token for Music Shuffler")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
)

type callback struct {
	auth   *spotifyauth.Authenticator
	state  string
	tokens chan *oauth2.Token
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	if err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cb := &callback{
		auth: spotifyauth.New(
			spotifyauth.WithRedirectURL(fmt.Sprintf("http://127.0.0.1:%d/callback", *port)),
			spotifyauth.WithClientID(*clientID),
			spotifyauth.WithClientSecret(*clientSecret),
			spotifyauth.WithScopes(spotify.Scopes...),
		),
		state:  uuid.NewString(),
		tokens: make(chan *oauth2.Token, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", cb.complete)
	server := &http.Server{Addr: fmt.Sprintf(":%d", *port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Msgf("Failed to start server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize Music Shuffler:")
	fmt.Println("")
	fmt.Println(cb.auth.AuthURL(cb.state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	token := <-cb.tokens

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Warn().Msgf("Failed to shutdown server: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Add this to config/server.yaml:")
	fmt.Println("")
	fmt.Println("provider:")
	fmt.Println("  type: spotify")
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: \"%s\"\n", token.RefreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", token.RefreshToken)
}

func (cb *callback) complete(w http.ResponseWriter, r *http.Request) {
	if st := r.FormValue("state"); st != cb.state {
		http.Error(w, "State mismatch", http.StatusForbidden)
		zlog.Warn().Msgf("State mismatch: %s != %s", st, cb.state)
		return
	}

	token, err := cb.auth.Token(r.Context(), cb.state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		zlog.Error().Msgf("Failed to get token: %v", err)
		return
	}

	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Music Shuffler - Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 20vh;">
    <h1>Authorization Complete</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`)

	select {
	case cb.tokens <- token:
	default:
	}
}
