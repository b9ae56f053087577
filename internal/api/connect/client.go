package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/musicshuffler/internal/app/notification"
	"github.com/osa030/musicshuffler/internal/app/shuffle"
)

// Client calls both services of a shuffler server.
type Client struct {
	userToken string

	getSession  *connect.Client[Empty, SessionResponse]
	authorize   *connect.Client[Empty, SessionResponse]
	unauthorize *connect.Client[Empty, SessionResponse]

	setTarget   *connect.Client[SetTargetRequest, shuffle.Progress]
	start       *connect.Client[StartRequest, CurrentResponse]
	current     *connect.Client[Empty, CurrentResponse]
	swipe       *connect.Client[SwipeRequest, CurrentResponse]
	status      *connect.Client[Empty, shuffle.Progress]
	publish     *connect.Client[PublishRequest, PublishResponse]
	reset       *connect.Client[Empty, shuffle.Progress]
	watchEvents *connect.Client[Empty, notification.Notification]
}

// NewClient creates a client for the server at baseURL. userToken is sent
// with every call when not empty.
func NewClient(httpClient connect.HTTPClient, baseURL, userToken string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opt := connect.WithCodec(Codec())
	return &Client{
		userToken:   userToken,
		getSession:  connect.NewClient[Empty, SessionResponse](httpClient, baseURL+AuthGetSessionProcedure, opt),
		authorize:   connect.NewClient[Empty, SessionResponse](httpClient, baseURL+AuthAuthorizeProcedure, opt),
		unauthorize: connect.NewClient[Empty, SessionResponse](httpClient, baseURL+AuthUnauthorizeProcedure, opt),
		setTarget:   connect.NewClient[SetTargetRequest, shuffle.Progress](httpClient, baseURL+ShufflerSetTargetProcedure, opt),
		start:       connect.NewClient[StartRequest, CurrentResponse](httpClient, baseURL+ShufflerStartProcedure, opt),
		current:     connect.NewClient[Empty, CurrentResponse](httpClient, baseURL+ShufflerCurrentProcedure, opt),
		swipe:       connect.NewClient[SwipeRequest, CurrentResponse](httpClient, baseURL+ShufflerSwipeProcedure, opt),
		status:      connect.NewClient[Empty, shuffle.Progress](httpClient, baseURL+ShufflerStatusProcedure, opt),
		publish:     connect.NewClient[PublishRequest, PublishResponse](httpClient, baseURL+ShufflerPublishProcedure, opt),
		reset:       connect.NewClient[Empty, shuffle.Progress](httpClient, baseURL+ShufflerResetProcedure, opt),
		watchEvents: connect.NewClient[Empty, notification.Notification](httpClient, baseURL+ShufflerWatchEventsProcedure, opt),
	}
}

func newRequest[T any](c *Client, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if c.userToken != "" {
		req.Header().Set(UserTokenHeader, c.userToken)
	}
	return req
}

func unary[Req, Res any](ctx context.Context, c *Client, call *connect.Client[Req, Res], msg *Req) (*Res, error) {
	resp, err := call.CallUnary(ctx, newRequest(c, msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// GetSession returns the authorization state.
func (c *Client) GetSession(ctx context.Context) (*SessionResponse, error) {
	return unary(ctx, c, c.getSession, &Empty{})
}

// Authorize signs in.
func (c *Client) Authorize(ctx context.Context) (*SessionResponse, error) {
	return unary(ctx, c, c.authorize, &Empty{})
}

// Unauthorize signs out.
func (c *Client) Unauthorize(ctx context.Context) (*SessionResponse, error) {
	return unary(ctx, c, c.unauthorize, &Empty{})
}

// SetTarget sets the target duration in minutes.
func (c *Client) SetTarget(ctx context.Context, minutes int) (*shuffle.Progress, error) {
	return unary(ctx, c, c.setTarget, &SetTargetRequest{Minutes: minutes})
}

// Start begins swiping.
func (c *Client) Start(ctx context.Context, minutes int) (*CurrentResponse, error) {
	return unary(ctx, c, c.start, &StartRequest{Minutes: minutes})
}

// Current returns the track awaiting a decision.
func (c *Client) Current(ctx context.Context) (*CurrentResponse, error) {
	return unary(ctx, c, c.current, &Empty{})
}

// Swipe records a decision.
func (c *Client) Swipe(ctx context.Context, trackID string, dir shuffle.Direction) (*CurrentResponse, error) {
	return unary(ctx, c, c.swipe, &SwipeRequest{TrackID: trackID, Direction: string(dir)})
}

// Status returns the progress.
func (c *Client) Status(ctx context.Context) (*shuffle.Progress, error) {
	return unary(ctx, c, c.status, &Empty{})
}

// Publish creates the playlist.
func (c *Client) Publish(ctx context.Context, name string) (*PublishResponse, error) {
	return unary(ctx, c, c.publish, &PublishRequest{Name: name})
}

// Reset discards the session.
func (c *Client) Reset(ctx context.Context) (*shuffle.Progress, error) {
	return unary(ctx, c, c.reset, &Empty{})
}

// WatchEvents calls fn for every notification until ctx ends, the stream
// closes or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, fn func(*notification.Notification) error) error {
	stream, err := c.watchEvents.CallServerStream(ctx, newRequest(c, &Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) && connect.CodeOf(err) != connect.CodeCanceled {
		return err
	}
	return nil
}
