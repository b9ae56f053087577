// Package main provides the command line client for the shuffler server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/musicshuffler/internal/api/connect"
	"github.com/osa030/musicshuffler/internal/app/notification"
	"github.com/osa030/musicshuffler/internal/app/shuffle"
)

var (
	app       = kingpin.New("musicshuffler-cli", "Music Shuffler command line client")
	server    = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	userToken = app.Flag("user-token", "Provider user token sent with every call").Envar("MUSIC_USER_TOKEN").String()

	sessionCmd     = app.Command("session", "Show the authorization state")
	authorizeCmd   = app.Command("authorize", "Sign in to the music provider")
	unauthorizeCmd = app.Command("unauthorize", "Sign out of the music provider")

	targetCmd     = app.Command("target", "Set the target playlist length")
	targetMinutes = targetCmd.Arg("minutes", "Target length in minutes").Required().Int()

	startCmd     = app.Command("start", "Fetch recommendations and start swiping")
	startMinutes = startCmd.Arg("minutes", "Target length in minutes (optional)").Int()

	currentCmd = app.Command("current", "Show the track awaiting a decision")

	swipeCmd       = app.Command("swipe", "Accept or reject the current track")
	swipeTrackID   = swipeCmd.Arg("track-id", "Current track ID").Required().String()
	swipeDirection = swipeCmd.Arg("direction", "left (reject) or right (accept)").Required().Enum("left", "right")

	playCmd = app.Command("play", "Swipe interactively until the target is reached")

	statusCmd = app.Command("status", "Show session progress")

	publishCmd  = app.Command("publish", "Create the playlist from the selection")
	publishName = publishCmd.Arg("name", "Playlist name (optional)").String()

	resetCmd = app.Command("reset", "Discard the session")
	watchCmd = app.Command("watch", "Stream server events")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *userToken)
	ctx := context.Background()

	var err error
	switch command {
	case sessionCmd.FullCommand():
		err = printSession(client.GetSession(ctx))
	case authorizeCmd.FullCommand():
		err = printSession(client.Authorize(ctx))
	case unauthorizeCmd.FullCommand():
		err = printSession(client.Unauthorize(ctx))
	case targetCmd.FullCommand():
		err = printProgress(client.SetTarget(ctx, *targetMinutes))
	case startCmd.FullCommand():
		err = printCurrent(client.Start(ctx, *startMinutes))
	case currentCmd.FullCommand():
		err = printCurrent(client.Current(ctx))
	case swipeCmd.FullCommand():
		err = printCurrent(client.Swipe(ctx, *swipeTrackID, shuffle.Direction(*swipeDirection)))
	case playCmd.FullCommand():
		err = play(ctx, client)
	case statusCmd.FullCommand():
		err = printProgress(client.Status(ctx))
	case publishCmd.FullCommand():
		err = publish(ctx, client, *publishName)
	case resetCmd.FullCommand():
		err = printProgress(client.Reset(ctx))
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printSession(s *apiconnect.SessionResponse, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("State: %s\n", s.State)
	if s.UserDisplayName != "" {
		fmt.Printf("User: %s\n", s.UserDisplayName)
	}
	if s.LastError != "" {
		fmt.Printf("Last error: %s\n", s.LastError)
	}
	return nil
}

func printProgress(p *shuffle.Progress, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("State: %s\n", p.State)
	fmt.Printf("Target: %d min\n", p.TargetMinutes)
	fmt.Printf("Selected: %d tracks, %s\n", p.AcceptedCount, formatSeconds(p.CumulativeSeconds))
	fmt.Printf("Swiped: %d of %d (%d remaining)\n", p.SwipedCount, p.TotalTracks, p.Remaining)
	if p.Fetching {
		fmt.Println("Fetching more recommendations...")
	}
	if p.Exhausted {
		fmt.Println("No more recommendations available")
	}
	if p.LastError != "" {
		fmt.Printf("Last error: %s\n", p.LastError)
	}
	if p.Published != nil {
		fmt.Printf("Published: %s (%s)\n", p.Published.Name, p.Published.ID)
	}
	return nil
}

func printCurrent(c *apiconnect.CurrentResponse, err error) error {
	if err != nil {
		return err
	}
	if c.Track != nil {
		printTrack(c.Track)
	}
	fmt.Println()
	p := c.Progress
	return printProgress(&p, nil)
}

func printTrack(t *apiconnect.TrackView) {
	fmt.Printf("%s - %s [%s]\n", t.Artist, t.Title, formatSeconds(t.DurationSeconds))
	if t.Album != "" {
		fmt.Printf("  Album: %s\n", t.Album)
	}
	if t.Genre != "" {
		fmt.Printf("  Genre: %s\n", t.Genre)
	}
	if t.ArtworkURL != "" {
		fmt.Printf("  Artwork: %s\n", t.ArtworkURL)
	}
	fmt.Printf("  ID: %s\n", t.ID)
}

// play shows each track and reads l/r from stdin until the session
// completes or the user quits.
func play(ctx context.Context, client *apiconnect.Client) error {
	cur, err := client.Current(ctx)
	if err != nil {
		return err
	}
	if cur.Progress.State == shuffle.StateCollectingDuration.String() {
		if cur, err = client.Start(ctx, 0); err != nil {
			return err
		}
	}

	in := bufio.NewScanner(os.Stdin)
	for cur.Track != nil {
		fmt.Println()
		printTrack(cur.Track)
		fmt.Printf("(%s of %d min) [l]eft / [r]ight / [q]uit: ",
			formatSeconds(cur.Progress.CumulativeSeconds), cur.Progress.TargetMinutes)
		if !in.Scan() {
			return in.Err()
		}

		var dir shuffle.Direction
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "l", "left":
			dir = shuffle.DirectionLeft
		case "r", "right":
			dir = shuffle.DirectionRight
		case "q", "quit":
			return nil
		default:
			continue
		}
		if cur, err = client.Swipe(ctx, cur.Track.ID, dir); err != nil {
			return err
		}
	}

	fmt.Println()
	return printProgress(&cur.Progress, nil)
}

func publish(ctx context.Context, client *apiconnect.Client, name string) error {
	resp, err := client.Publish(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("Created playlist %q: %d tracks, %s\n", resp.Name, resp.TrackCount, formatSeconds(int(resp.TotalSeconds)))
	if resp.URL != "" {
		fmt.Printf("URL: %s\n", resp.URL)
	}
	return nil
}

func watch(ctx context.Context, client *apiconnect.Client) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Watching events. Press Ctrl+C to exit.")
	return client.WatchEvents(ctx, func(n *notification.Notification) error {
		fmt.Printf("[%d] %s %s\n", n.SequenceNo, n.Time.Format("15:04:05"), n.Type)
		return nil
	})
}

func formatSeconds(secs int) string {
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
