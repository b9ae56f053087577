package connect

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/app/notification"
	"github.com/osa030/musicshuffler/internal/app/recommend"
	"github.com/osa030/musicshuffler/internal/app/session"
	"github.com/osa030/musicshuffler/internal/app/shuffle"
	"github.com/osa030/musicshuffler/internal/domain/playlist"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

type fakeSDK struct {
	mu         sync.Mutex
	authorized bool
}

func (s *fakeSDK) Configure(context.Context) error { return nil }

func (s *fakeSDK) Authorize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized = true
	return nil
}

func (s *fakeSDK) Unauthorize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized = false
	return nil
}

func (s *fakeSDK) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized = false
}

func (s *fakeSDK) IsAuthorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized
}

func (s *fakeSDK) UserName() string           { return "Tester" }
func (s *fakeSDK) StatusChanges() <-chan bool { return nil }

type fakeFetcher struct {
	tracks []track.Track
}

func (f *fakeFetcher) Fetch(context.Context, int) (*recommend.Batch, error) {
	return &recommend.Batch{Tracks: f.tracks}, nil
}

func (f *fakeFetcher) Reset() {}

type fakePublisher struct {
	existing map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, name string, tracks []track.Track) (*playlist.Playlist, error) {
	if p.existing[name] {
		return nil, apperr.New(apperr.ErrNameConflict, "Choose a different name.", "playlist %q exists", name)
	}
	p.existing[name] = true
	return &playlist.Playlist{ID: "pl-" + name, Name: name, Tracks: tracks}, nil
}

type testEnv struct {
	client        *Client
	notifications *notification.Manager

	mu     sync.Mutex
	tokens []string
}

func (e *testEnv) Tokens() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.tokens...)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	notifications := notification.NewManager()
	sess := session.NewManager(&fakeSDK{}, session.Config{PollInterval: time.Hour}, session.WithNotifier(notifications))
	require.NoError(t, sess.Initialize(context.Background()))
	t.Cleanup(sess.Close)

	tracks := make([]track.Track, 3)
	for i := range tracks {
		tracks[i] = track.New(fmt.Sprintf("t%d", i), fmt.Sprintf("Song %d", i), "Artist", 400*time.Second)
		tracks[i].ArtworkURLTemplate = "https://img/{w}x{h}.jpg"
	}
	ctrl := shuffle.NewController(&fakeFetcher{tracks: tracks}, &fakePublisher{existing: map[string]bool{}},
		shuffle.DefaultConfig(), shuffle.WithNotifier(notifications))
	t.Cleanup(ctrl.Close)

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	env := &testEnv{notifications: notifications}
	inject := func(ctx context.Context, token string) context.Context {
		env.mu.Lock()
		env.tokens = append(env.tokens, token)
		env.mu.Unlock()
		return ctx
	}
	srv := httptest.NewServer(NewHandler(NewAuthService(sess), NewShufflerService(ctrl, notifications, done), inject))
	t.Cleanup(srv.Close)

	env.client = NewClient(srv.Client(), srv.URL, "user-token")
	return env
}

func TestAuthService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.client.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unauthorized", s.State)
	assert.False(t, s.Authorized)

	s, err = env.client.Authorize(ctx)
	require.NoError(t, err)
	assert.True(t, s.Authorized)
	assert.Equal(t, "Tester", s.UserDisplayName)
	assert.Contains(t, env.Tokens(), "user-token")

	s, err = env.client.Unauthorize(ctx)
	require.NoError(t, err)
	assert.False(t, s.Authorized)
	assert.Empty(t, s.UserDisplayName)
}

func TestShufflerService_Flow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cur, err := env.client.Start(ctx, 15)
	require.NoError(t, err)
	require.NotNil(t, cur.Track)
	assert.Equal(t, "t0", cur.Track.ID)
	assert.Equal(t, "https://img/600x600.jpg", cur.Track.ArtworkURL)
	assert.Equal(t, "swiping", cur.Progress.State)
	assert.Equal(t, 15, cur.Progress.TargetMinutes)

	_, err = env.client.Swipe(ctx, "t2", shuffle.DirectionRight)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = env.client.Swipe(ctx, "t0", shuffle.Direction("down"))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	for _, id := range []string{"t0", "t1", "t2"} {
		cur, err = env.client.Swipe(ctx, id, shuffle.DirectionRight)
		require.NoError(t, err)
	}
	assert.Nil(t, cur.Track)
	assert.Equal(t, "complete", cur.Progress.State)
	assert.Equal(t, 1200, cur.Progress.CumulativeSeconds)

	pub, err := env.client.Publish(ctx, "Commute")
	require.NoError(t, err)
	assert.Equal(t, "pl-Commute", pub.PlaylistID)
	assert.Equal(t, 3, pub.TrackCount)
	assert.Equal(t, int64(1200), pub.TotalSeconds)

	_, err = env.client.Publish(ctx, "Commute")
	require.Error(t, err)
	assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))
	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Choose a different name.", cerr.Message())

	p, err := env.client.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "collecting_duration", p.State)
	assert.Equal(t, 15, p.TargetMinutes)
}

func TestShufflerService_SetTargetOutOfRange(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.SetTarget(context.Background(), 500)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	p, err := env.client.SetTarget(context.Background(), 60)
	require.NoError(t, err)
	assert.Equal(t, 60, p.TargetMinutes)
}

func TestShufflerService_PublishBeforeComplete(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.client.Publish(context.Background(), "Early")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestShufflerService_WatchEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan notification.EventType, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- env.client.WatchEvents(ctx, func(n *notification.Notification) error {
			events <- n.Type
			return nil
		})
	}()

	assert.Equal(t, notification.EventInitialState, <-events)
	// The subscription exists before the initial state is sent.
	require.Equal(t, 1, env.notifications.SubscriberCount())

	_, err := env.client.SetTarget(context.Background(), 45)
	require.NoError(t, err)

	select {
	case got := <-events:
		assert.Equal(t, notification.EventProgressChanged, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{apperr.New(apperr.ErrInvalidInput, "", "bad"), connect.CodeInvalidArgument},
		{apperr.New(apperr.ErrNameConflict, "", "dup"), connect.CodeAlreadyExists},
		{apperr.New(apperr.ErrAuthExpired, "", "expired"), connect.CodeUnauthenticated},
		{apperr.New(apperr.ErrAuthorizationDenied, "", "denied"), connect.CodeUnauthenticated},
		{apperr.New(apperr.ErrSdkUnavailable, "", "no sdk"), connect.CodeFailedPrecondition},
		{apperr.New(apperr.ErrConfiguration, "", "no token"), connect.CodeFailedPrecondition},
		{apperr.New(apperr.ErrNetwork, "", "offline"), connect.CodeUnavailable},
		{errors.New("boom"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, codeOf(tt.err))
		})
	}
}

func TestToConnectError_InternalHidesDetails(t *testing.T) {
	err := toConnectError(errors.New("dial tcp 10.0.0.1: refused"), "Something went wrong.")
	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, connect.CodeInternal, cerr.Code())
	assert.Equal(t, "Something went wrong.", cerr.Message())
}
