package connect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/app/notification"
	"github.com/osa030/musicshuffler/internal/app/shuffle"
)

// DefaultArtworkSize is the artwork edge length in pixels sent to clients.
const DefaultArtworkSize = 600

// ShufflerService implements the ShufflerService RPC.
type ShufflerService struct {
	controller    *shuffle.Controller
	notifications *notification.Manager
	artworkSize   int
	done          <-chan struct{}
}

// NewShufflerService creates a new ShufflerService. Event streams end when
// done is closed.
func NewShufflerService(controller *shuffle.Controller, notifications *notification.Manager, done <-chan struct{}) *ShufflerService {
	return &ShufflerService{
		controller:    controller,
		notifications: notifications,
		artworkSize:   DefaultArtworkSize,
		done:          done,
	}
}

// Handler returns the service path and its handler.
func (s *ShufflerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ShufflerSetTargetProcedure, connect.NewUnaryHandler(ShufflerSetTargetProcedure, s.SetTarget, opts...))
	mux.Handle(ShufflerStartProcedure, connect.NewUnaryHandler(ShufflerStartProcedure, s.Start, opts...))
	mux.Handle(ShufflerCurrentProcedure, connect.NewUnaryHandler(ShufflerCurrentProcedure, s.Current, opts...))
	mux.Handle(ShufflerSwipeProcedure, connect.NewUnaryHandler(ShufflerSwipeProcedure, s.Swipe, opts...))
	mux.Handle(ShufflerStatusProcedure, connect.NewUnaryHandler(ShufflerStatusProcedure, s.Status, opts...))
	mux.Handle(ShufflerPublishProcedure, connect.NewUnaryHandler(ShufflerPublishProcedure, s.Publish, opts...))
	mux.Handle(ShufflerResetProcedure, connect.NewUnaryHandler(ShufflerResetProcedure, s.Reset, opts...))
	mux.Handle(ShufflerWatchEventsProcedure, connect.NewServerStreamHandler(ShufflerWatchEventsProcedure, s.WatchEvents, opts...))
	return "/" + ShufflerServiceName + "/", mux
}

// SetTarget sets the target duration.
func (s *ShufflerService) SetTarget(
	ctx context.Context,
	req *connect.Request[SetTargetRequest],
) (*connect.Response[shuffle.Progress], error) {
	if err := s.controller.SetTargetMinutes(req.Msg.Minutes); err != nil {
		return nil, toConnectError(err, "")
	}
	p := s.controller.Progress()
	return connect.NewResponse(&p), nil
}

// Start begins swiping. Partial fetch failures still start the session
// and are reported through the progress.
func (s *ShufflerService) Start(
	ctx context.Context,
	req *connect.Request[StartRequest],
) (*connect.Response[CurrentResponse], error) {
	if req.Msg.Minutes > 0 {
		if err := s.controller.SetTargetMinutes(req.Msg.Minutes); err != nil {
			return nil, toConnectError(err, "")
		}
	}
	if err := s.controller.Start(ctx); err != nil {
		if apperr.Kind(err) != apperr.ErrPartialFetchFailure || s.controller.Progress().TotalTracks == 0 {
			return nil, toConnectError(err, "Failed to load recommendations.")
		}
	}
	return connect.NewResponse(s.current()), nil
}

// Current returns the track awaiting a decision.
func (s *ShufflerService) Current(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CurrentResponse], error) {
	return connect.NewResponse(s.current()), nil
}

// Swipe records a decision and returns the next track.
func (s *ShufflerService) Swipe(
	ctx context.Context,
	req *connect.Request[SwipeRequest],
) (*connect.Response[CurrentResponse], error) {
	dir, ok := shuffle.ParseDirection(req.Msg.Direction)
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errInvalidDirection)
	}
	if err := s.controller.Swipe(ctx, dir, req.Msg.TrackID); err != nil {
		return nil, toConnectError(err, "")
	}
	return connect.NewResponse(s.current()), nil
}

// Status returns the controller progress.
func (s *ShufflerService) Status(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[shuffle.Progress], error) {
	s.controller.EvaluateReplenish(ctx)
	p := s.controller.Progress()
	return connect.NewResponse(&p), nil
}

// Publish creates the playlist from the completed selection.
func (s *ShufflerService) Publish(
	ctx context.Context,
	req *connect.Request[PublishRequest],
) (*connect.Response[PublishResponse], error) {
	pl, err := s.controller.Publish(ctx, req.Msg.Name)
	if err != nil {
		return nil, toConnectError(err, "Failed to create playlist.")
	}
	return connect.NewResponse(newPublishResponse(pl)), nil
}

// Reset discards the session.
func (s *ShufflerService) Reset(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[shuffle.Progress], error) {
	s.controller.Reset(ctx)
	p := s.controller.Progress()
	return connect.NewResponse(&p), nil
}

// WatchEvents streams notifications, starting with the current progress.
func (s *ShufflerService) WatchEvents(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[notification.Notification],
) error {
	adapter := &notificationStreamAdapter{stream: stream}

	// Subscribe before reading the snapshot so no change falls in between.
	// Holding the adapter lock keeps broadcasts behind the initial state.
	adapter.mu.Lock()
	subscriptionID := s.notifications.Subscribe(adapter)
	defer s.notifications.Unsubscribe(subscriptionID)

	err := adapter.stream.Send(&notification.Notification{
		Type:    notification.EventInitialState,
		Time:    time.Now(),
		Payload: s.controller.Progress(),
	})
	adapter.mu.Unlock()
	if err != nil {
		return err
	}

	// Wait for the client to leave or the server to stop
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return nil
}

func (s *ShufflerService) current() *CurrentResponse {
	resp := &CurrentResponse{Progress: s.controller.Progress()}
	if t, ok := s.controller.Current(); ok {
		resp.Track = newTrackView(t, s.artworkSize)
	}
	return resp
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Broadcasts may overlap, so sends are serialized.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[notification.Notification]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(n)
}
