// Package shuffle provides the recommendation session controller that turns
// swipe decisions into a duration-bounded selection.
package shuffle

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/app/notification"
	"github.com/osa030/musicshuffler/internal/app/recommend"
	"github.com/osa030/musicshuffler/internal/domain/playlist"
	"github.com/osa030/musicshuffler/internal/domain/track"
	"github.com/osa030/musicshuffler/internal/infra/metrics"
)

// Fetcher produces batches of recommended tracks.
type Fetcher interface {
	Fetch(ctx context.Context, n int) (*recommend.Batch, error)
	// Reset forgets tracks presented in previous sessions.
	Reset()
}

// Publisher turns the completed selection into a playlist.
type Publisher interface {
	Publish(ctx context.Context, name string, tracks []track.Track) (*playlist.Playlist, error)
}

// Player mirrors swipes onto the user's player. Calls must not block.
type Player interface {
	SkipPast(trackID string)
	Stop()
}

// Notifier receives controller events.
type Notifier interface {
	Notify(eventType notification.EventType, payload any)
}

// Config holds controller configuration.
type Config struct {
	MinMinutes     int
	MaxMinutes     int
	DefaultMinutes int
	StepMinutes    int
	BatchSize      int
	ReplenishCap   int
	FetchTimeout   time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		MinMinutes:     15,
		MaxMinutes:     120,
		DefaultMinutes: 30,
		StepMinutes:    5,
		BatchSize:      25,
		ReplenishCap:   50,
		FetchTimeout:   30 * time.Second,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithPlayer sets the player receiving skip commands.
func WithPlayer(p Player) Option {
	return func(c *Controller) { c.player = p }
}

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

type event struct {
	typ     notification.EventType
	payload any
}

// Controller drives one shuffle session at a time.
type Controller struct {
	cfg       Config
	fetcher   Fetcher
	publisher Publisher
	player    Player
	notifier  Notifier
	metrics   *metrics.Metrics

	mu            sync.Mutex
	state         State
	targetMinutes int
	tracks        []track.Track
	position      int // index of the current unswiped track
	accepted      []track.Track
	cumulative    int
	generation    uint64
	fetching      bool
	exhausted     bool
	lastTrigger   replenishKey
	triggered     bool
	lastErr       string
	playlistName  string
	published     *playlist.Playlist

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a new controller in the CollectingDuration state.
func NewController(fetcher Fetcher, publisher Publisher, cfg Config, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.MinMinutes <= 0 {
		cfg.MinMinutes = def.MinMinutes
	}
	if cfg.MaxMinutes <= 0 {
		cfg.MaxMinutes = def.MaxMinutes
	}
	if cfg.StepMinutes <= 0 {
		cfg.StepMinutes = def.StepMinutes
	}
	if cfg.DefaultMinutes < cfg.MinMinutes || cfg.DefaultMinutes > cfg.MaxMinutes {
		cfg.DefaultMinutes = cfg.MinMinutes
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.ReplenishCap <= 0 {
		cfg.ReplenishCap = def.ReplenishCap
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:           cfg,
		fetcher:       fetcher,
		publisher:     publisher,
		state:         StateCollectingDuration,
		targetMinutes: cfg.DefaultMinutes,
		playlistName:  playlist.DefaultName,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTargetMinutes sets the target playlist duration.
func (c *Controller) SetTargetMinutes(minutes int) error {
	c.mu.Lock()
	if c.state != StateCollectingDuration {
		c.mu.Unlock()
		return apperr.New(apperr.ErrInvalidInput, "", "target can only be changed before swiping starts (state=%s)", c.state)
	}
	if minutes < c.cfg.MinMinutes || minutes > c.cfg.MaxMinutes {
		c.mu.Unlock()
		return apperr.New(apperr.ErrInvalidInput,
			"Choose a duration between the minimum and maximum.",
			"target %d min out of range [%d, %d]", minutes, c.cfg.MinMinutes, c.cfg.MaxMinutes)
	}
	if (minutes-c.cfg.MinMinutes)%c.cfg.StepMinutes != 0 {
		c.mu.Unlock()
		return apperr.New(apperr.ErrInvalidInput, "", "target %d min is not a multiple of %d min steps", minutes, c.cfg.StepMinutes)
	}
	c.targetMinutes = minutes
	p := c.progressLocked()
	c.mu.Unlock()

	zlog.Info().Msgf("target set: minutes=%d", minutes)
	c.emit(event{notification.EventProgressChanged, p})
	return nil
}

// Start begins swiping and fetches the first batch. Tracks received before
// a failure are kept and the failure is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateCollectingDuration {
		c.mu.Unlock()
		return apperr.New(apperr.ErrInvalidInput, "", "session already started (state=%s)", c.state)
	}
	c.state = StateSwiping
	c.generation++
	gen := c.generation
	c.fetching = true
	c.lastErr = ""
	p := c.progressLocked()
	c.mu.Unlock()

	zlog.Info().Msgf("session started: generation=%d target=%dmin", gen, p.TargetMinutes)
	c.emit(event{notification.EventProgressChanged, p})

	batch, err := c.fetcher.Fetch(ctx, c.cfg.BatchSize)

	c.mu.Lock()
	var events []event
	if gen == c.generation {
		c.fetching = false
		if err != nil {
			c.lastErr = apperr.UserMessage(err, "Failed to load recommendations.")
		}
		if c.state == StateSwiping && batch != nil && len(batch.Tracks) > 0 {
			added := c.appendLocked(batch.Tracks)
			events = append(events, event{notification.EventTracksAppended, added})
		}
		events = append(events, c.evaluateLocked()...)
		events = append(events, event{notification.EventProgressChanged, c.progressLocked()})
	}
	c.mu.Unlock()
	c.emit(events...)

	if err != nil {
		zlog.Error().Msgf("failed to fetch first batch: %v", err)
		return errors.Wrap(err, "start session")
	}
	return nil
}

// Swipe records a decision for the current track.
func (c *Controller) Swipe(ctx context.Context, dir Direction, trackID string) error {
	if _, ok := ParseDirection(string(dir)); !ok {
		return apperr.New(apperr.ErrInvalidInput, "", "invalid swipe direction %q", dir)
	}

	c.mu.Lock()
	if c.state != StateSwiping {
		c.mu.Unlock()
		return apperr.New(apperr.ErrInvalidInput, "", "cannot swipe in state %s", c.state)
	}
	if c.position >= len(c.tracks) {
		c.mu.Unlock()
		return apperr.New(apperr.ErrInvalidInput, "", "no track to swipe")
	}
	current := c.tracks[c.position]
	if current.ID != trackID {
		c.mu.Unlock()
		return apperr.New(apperr.ErrInvalidInput, "", "track %s is not the current track", trackID)
	}

	c.position++
	if dir == DirectionRight {
		c.accepted = append(c.accepted, current)
		c.cumulative += current.DurationSeconds
	}
	c.metrics.Swipe(string(dir))

	var events []event
	if c.cumulative >= c.targetMinutes*60 && len(c.accepted) > 0 {
		c.state = StateComplete
		zlog.Info().Msgf("selection complete: accepted=%d seconds=%d swiped=%d",
			len(c.accepted), c.cumulative, c.position)
		events = append(events, event{notification.EventCompleted, c.resultLocked()})
	} else {
		events = append(events, c.evaluateLocked()...)
	}
	events = append(events, event{notification.EventProgressChanged, c.progressLocked()})
	c.mu.Unlock()

	if c.player != nil {
		c.player.SkipPast(current.ID)
	}
	c.emit(events...)
	return nil
}

// EvaluateReplenish applies the replenishment rule. Calling it repeatedly
// without an intervening swipe triggers at most one fetch.
func (c *Controller) EvaluateReplenish(ctx context.Context) {
	c.mu.Lock()
	events := c.evaluateLocked()
	if len(events) > 0 {
		events = append(events, event{notification.EventProgressChanged, c.progressLocked()})
	}
	c.mu.Unlock()
	c.emit(events...)
}

// evaluateLocked starts a background fetch when the presented list has run
// out. It returns the events to emit after unlocking.
func (c *Controller) evaluateLocked() []event {
	if c.state != StateSwiping || c.fetching || c.position < len(c.tracks) {
		return nil
	}
	key := replenishKey{generation: c.generation, swiped: c.position}
	if c.triggered && c.lastTrigger == key {
		return nil
	}
	if len(c.tracks) >= c.cfg.ReplenishCap {
		if !c.exhausted {
			c.exhausted = true
			zlog.Info().Msgf("replenish cap reached: tracks=%d cap=%d", len(c.tracks), c.cfg.ReplenishCap)
			return []event{{notification.EventProgressChanged, c.progressLocked()}}
		}
		return nil
	}

	c.lastTrigger = key
	c.triggered = true
	c.fetching = true
	n := min(c.cfg.BatchSize, c.cfg.ReplenishCap-len(c.tracks))
	gen := c.generation

	zlog.Info().Msgf("replenishing: generation=%d swiped=%d n=%d", gen, c.position, n)
	c.wg.Add(1)
	go c.replenish(gen, n)
	return nil
}

func (c *Controller) replenish(gen uint64, n int) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
	defer cancel()
	batch, err := c.fetcher.Fetch(ctx, n)

	c.mu.Lock()
	if gen != c.generation || c.state != StateSwiping {
		if gen == c.generation {
			c.fetching = false
		}
		c.mu.Unlock()
		c.metrics.Replenish("stale")
		zlog.Debug().Msgf("replenish result discarded: generation=%d current=%d", gen, c.generation)
		return
	}

	c.fetching = false
	var events []event
	switch {
	case batch != nil && len(batch.Tracks) > 0:
		room := c.cfg.ReplenishCap - len(c.tracks)
		tracks := batch.Tracks
		if len(tracks) > room {
			tracks = tracks[:room]
		}
		added := c.appendLocked(tracks)
		c.metrics.Replenish("appended")
		events = append(events, event{notification.EventTracksAppended, added})
	case err != nil:
		// Allow an explicit EvaluateReplenish to retry.
		c.triggered = false
		c.metrics.Replenish("error")
	default:
		c.exhausted = true
		c.metrics.Replenish("empty")
	}
	if err != nil {
		c.lastErr = apperr.UserMessage(err, "Failed to load more recommendations.")
		zlog.Error().Msgf("failed to replenish tracks: %v", err)
	}
	events = append(events, event{notification.EventProgressChanged, c.progressLocked()})
	c.mu.Unlock()
	c.emit(events...)
}

func (c *Controller) appendLocked(tracks []track.Track) []track.Track {
	added := make([]track.Track, len(tracks))
	copy(added, tracks)
	c.tracks = append(c.tracks, added...)
	zlog.Info().Msgf("tracks appended: added=%d total=%d", len(added), len(c.tracks))
	return added
}

// Reset discards the session and returns to CollectingDuration. The target
// duration is kept.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	c.generation++
	c.state = StateCollectingDuration
	c.tracks = nil
	c.position = 0
	c.accepted = nil
	c.cumulative = 0
	c.fetching = false
	c.exhausted = false
	c.triggered = false
	c.lastErr = ""
	c.playlistName = playlist.DefaultName
	c.published = nil
	p := c.progressLocked()
	c.mu.Unlock()

	c.fetcher.Reset()
	if c.player != nil {
		c.player.Stop()
	}
	zlog.Info().Msgf("session reset: generation=%d", p.Generation)
	c.emit(event{notification.EventProgressChanged, p})
}

// SetPlaylistName sets the name used when publishing without an explicit name.
func (c *Controller) SetPlaylistName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name = strings.TrimSpace(name); name == "" {
		name = playlist.DefaultName
	}
	c.playlistName = name
}

// Current returns the track awaiting a decision.
func (c *Controller) Current() (track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSwiping || c.position >= len(c.tracks) {
		return track.Track{}, false
	}
	return c.tracks[c.position], true
}

// Selection returns a copy of the accumulated selection.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Selection{
		Accepted:          append([]track.Track(nil), c.accepted...),
		CumulativeSeconds: c.cumulative,
		SwipedCount:       c.position,
	}
}

// Result returns the completed selection.
func (c *Controller) Result() (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateComplete {
		return nil, apperr.New(apperr.ErrInvalidInput, "", "selection is not complete (state=%s)", c.state)
	}
	return c.resultLocked(), nil
}

func (c *Controller) resultLocked() *Result {
	return &Result{
		Tracks:       append([]track.Track(nil), c.accepted...),
		PlaylistName: c.playlistName,
		TotalSeconds: c.cumulative,
	}
}

// Publish submits the completed selection. An empty name uses the current
// playlist name. The selection survives any failure.
func (c *Controller) Publish(ctx context.Context, name string) (*playlist.Playlist, error) {
	c.mu.Lock()
	if c.state != StateComplete {
		c.mu.Unlock()
		return nil, apperr.New(apperr.ErrInvalidInput, "", "selection is not complete (state=%s)", c.state)
	}
	if strings.TrimSpace(name) == "" {
		name = c.playlistName
	}
	tracks := append([]track.Track(nil), c.accepted...)
	gen := c.generation
	c.mu.Unlock()

	pl, err := c.publisher.Publish(ctx, name, tracks)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return pl, nil
	}
	if err != nil {
		c.lastErr = apperr.UserMessage(err, "Failed to create playlist.")
		p := c.progressLocked()
		c.mu.Unlock()
		c.emit(event{notification.EventProgressChanged, p})
		return nil, err
	}
	c.lastErr = ""
	c.published = pl
	c.playlistName = pl.Name
	c.mu.Unlock()

	zlog.Info().Msgf("playlist published: id=%s name=%s tracks=%d", pl.ID, pl.Name, len(pl.Tracks))
	c.emit(event{notification.EventPublished, pl})
	return pl, nil
}

// Progress returns a snapshot of the controller.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

func (c *Controller) progressLocked() Progress {
	p := Progress{
		State:             c.state.String(),
		TargetMinutes:     c.targetMinutes,
		CumulativeSeconds: c.cumulative,
		SwipedCount:       c.position,
		AcceptedCount:     len(c.accepted),
		TotalTracks:       len(c.tracks),
		Remaining:         len(c.tracks) - c.position,
		Fetching:          c.fetching,
		Exhausted:         c.exhausted,
		Generation:        c.generation,
		LastError:         c.lastErr,
		PlaylistName:      c.playlistName,
		Published:         c.published,
	}
	if c.state == StateSwiping && c.position < len(c.tracks) {
		cur := c.tracks[c.position]
		p.Current = &cur
	}
	return p
}

func (c *Controller) emit(events ...event) {
	if c.notifier == nil {
		return
	}
	for _, e := range events {
		c.notifier.Notify(e.typ, e.payload)
	}
}

// Wait blocks until background replenishment has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels background fetches and waits for them.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}
