package playback

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultQueueSize = 16
)

// Player is the provider's playback surface.
type Player interface {
	// IsPlaying reports whether the user's player is currently playing.
	IsPlaying(ctx context.Context) (bool, error)
	// SkipPast advances the player to the item following trackID.
	SkipPast(ctx context.Context, trackID string) error
	// Stop stops playback.
	Stop(ctx context.Context) error
}

// Config holds controller configuration.
type Config struct {
	Timeout   time.Duration // Per-command timeout
	QueueSize int           // Pending commands before new ones are dropped
}

type command struct {
	stop    bool
	trackID string
}

// Controller forwards playback commands to a Player from a single worker
// goroutine so that rapid swipes reach the player in order. Commands never
// block the caller and their failures are only logged.
type Controller struct {
	player Player
	config Config

	cmds    chan command
	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewController creates a new playback controller and starts its worker.
func NewController(player Player, config Config) *Controller {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		player:  player,
		config:  config,
		cmds:    make(chan command, config.QueueSize),
		eventCh: make(chan Event, config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Events returns the event channel. Events are dropped when nobody reads.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// SkipPast asks the player to move past trackID if it is playing.
func (c *Controller) SkipPast(trackID string) {
	c.enqueue(command{trackID: trackID})
}

// Stop asks the player to stop.
func (c *Controller) Stop() {
	c.enqueue(command{stop: true})
}

// Close stops the worker after pending commands are cancelled.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		close(c.eventCh)
	})
}

func (c *Controller) enqueue(cmd command) {
	select {
	case <-c.ctx.Done():
	case c.cmds <- cmd:
	default:
		zlog.Warn().Msgf("playback command dropped: queue full (stop=%t track=%s)", cmd.stop, cmd.trackID)
	}
}

func (c *Controller) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.cmds:
			c.run(cmd)
		}
	}
}

func (c *Controller) run(cmd command) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.Timeout)
	defer cancel()

	if cmd.stop {
		if err := c.player.Stop(ctx); err != nil {
			zlog.Debug().Msgf("failed to stop playback: %v", err)
			return
		}
		c.sendEvent(Event{Type: EventStopped})
		return
	}

	playing, err := c.player.IsPlaying(ctx)
	if err != nil {
		zlog.Debug().Msgf("failed to read player state: %v", err)
		return
	}
	if !playing {
		return
	}

	if err := c.player.SkipPast(ctx, cmd.trackID); err != nil {
		zlog.Error().Msgf("failed to skip to next item: %v", err)
		c.sendEvent(Event{Type: EventSkipFailed, TrackID: cmd.trackID, Err: err})
		return
	}
	c.sendEvent(Event{Type: EventSkipped, TrackID: cmd.trackID})
}

func (c *Controller) sendEvent(e Event) {
	select {
	case c.eventCh <- e:
	default:
	}
}
