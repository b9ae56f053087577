// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/musicshuffler/internal/api/connect"
	"github.com/osa030/musicshuffler/internal/app/filter"
	"github.com/osa030/musicshuffler/internal/app/notification"
	"github.com/osa030/musicshuffler/internal/app/playback"
	"github.com/osa030/musicshuffler/internal/app/publish"
	"github.com/osa030/musicshuffler/internal/app/recommend"
	"github.com/osa030/musicshuffler/internal/app/session"
	"github.com/osa030/musicshuffler/internal/app/shuffle"
	"github.com/osa030/musicshuffler/internal/infra/applemusic"
	"github.com/osa030/musicshuffler/internal/infra/config"
	"github.com/osa030/musicshuffler/internal/infra/logger"
	"github.com/osa030/musicshuffler/internal/infra/metrics"
)

var (
	app        = kingpin.New("musicshuffler-server", "Music Shuffler playlist server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Logging starts on stdout so config errors are visible; the configured
	// level and format are applied once the file is loaded.
	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	loggerConfig.Level = cfg.Log.Level
	loggerConfig.Format = cfg.Log.Format
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()
	m := metrics.New()
	notifications := notification.NewManager()
	defer notifications.Close()

	provider, err := recommend.NewProviderFromConfig(ctx, cfg, m)
	if err != nil {
		return errors.Wrap(err, "failed to create provider")
	}

	sessionMgr := session.NewManager(provider.SDK, session.Config{
		PollInterval:       cfg.Provider.PollInterval,
		ExpiredMessage:     cfg.GetMessage("session_expired"),
		UnavailableMessage: cfg.GetMessage("sdk_unavailable"),
	}, session.WithNotifier(notifications), session.WithMetrics(m))
	if err := sessionMgr.Initialize(ctx); err != nil {
		// The server still starts so clients can see the failure in the
		// session state.
		zlog.Error().Msgf("Failed to initialize session: %v", err)
	}
	defer sessionMgr.Close()

	pipeline, err := recommend.NewPipelineFromConfig(cfg, provider.Source, sessionMgr, m)
	if err != nil {
		return errors.Wrap(err, "failed to create recommendation pipeline")
	}

	publisher := publish.New(provider.Library, publish.Config{
		AppName: publish.DefaultAppName,
		Messages: publish.Messages{
			EmptySelection: cfg.GetMessage("empty_selection"),
			EmptyName:      cfg.GetMessage("empty_name"),
			NameConflict:   cfg.GetMessage("name_conflict"),
			SessionExpired: cfg.GetMessage("session_expired"),
			Failed:         cfg.GetMessage("publish_failed"),
		},
	}, publish.WithErrorHandler(sessionMgr), publish.WithMetrics(m))

	shuffleOpts := []shuffle.Option{shuffle.WithNotifier(notifications), shuffle.WithMetrics(m)}
	if provider.Player != nil {
		player := playback.NewController(provider.Player, playback.Config{Timeout: cfg.Provider.PlayerTimeout})
		defer player.Close()
		go logPlaybackEvents(player.Events())
		shuffleOpts = append(shuffleOpts, shuffle.WithPlayer(player))
	}

	controller := shuffle.NewController(pipeline, publisher, shuffle.Config{
		MinMinutes:     cfg.Shuffle.MinMinutes,
		MaxMinutes:     cfg.Shuffle.MaxMinutes,
		DefaultMinutes: cfg.Shuffle.DefaultMinutes,
		StepMinutes:    cfg.Shuffle.StepMinutes,
		BatchSize:      cfg.Shuffle.BatchCount,
		ReplenishCap:   cfg.Shuffle.ReplenishCap,
		FetchTimeout:   cfg.Shuffle.FetchTimeout,
	}, shuffleOpts...)
	defer controller.Close()

	var inject apiconnect.TokenInjector
	if provider.Name == config.ProviderAppleMusic {
		inject = applemusic.ContextWithUserToken
	}

	// Closed on shutdown so open event streams return
	done := make(chan struct{})

	mux := http.NewServeMux()
	mux.Handle("/", apiconnect.NewHandler(
		apiconnect.NewAuthService(sessionMgr),
		apiconnect.NewShufflerService(controller, notifications, done),
		inject,
	))
	mux.Handle(cfg.Server.MetricsPath, m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Create server with h2c (HTTP/2 cleartext) support for streaming
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s provider=%s", cfg.Server.Addr, provider.Name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Give the listener a moment before running startup hooks
	time.Sleep(100 * time.Millisecond)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	close(done)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return nil
}

func logPlaybackEvents(events <-chan playback.Event) {
	for e := range events {
		if e.Err != nil {
			zlog.Warn().Msgf("playback %s: track_id=%s error=%v", e.Type, e.TrackID, e.Err)
			continue
		}
		zlog.Debug().Msgf("playback %s: track_id=%s", e.Type, e.TrackID)
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.RegisteredNames() {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
