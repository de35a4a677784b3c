// Package main provides the pibox remote control CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/pibox/internal/api/web"
	"github.com/osa030/pibox/internal/app/notification"
	"github.com/osa030/pibox/internal/app/playback"
)

var (
	app    = kingpin.New("piboxctl", "pibox remote control")
	server = app.Flag("server", "Player address (or set PIBOX_SERVER env)").Envar("PIBOX_SERVER").Default("http://localhost:5000").String()

	// status command
	statusCmd = app.Command("status", "Show the player status").Default()

	// transport commands
	nextCmd     = app.Command("next", "Skip to the next track")
	previousCmd = app.Command("previous", "Go back to the previous track").Alias("prev")
	pauseCmd    = app.Command("pause", "Toggle pause")
	restartCmd  = app.Command("restart", "Restart the current track")

	// volume command
	volumeCmd   = app.Command("volume", "Set the volume")
	volumeLevel = volumeCmd.Arg("level", "Volume level (0-100)").Required().Int()

	// watch command
	watchCmd = app.Command("watch", "Print playback events as they happen")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := web.NewClient(*server, nil)
	ctx := context.Background()

	var (
		status *web.StatusResponse
		err    error
	)

	// Execute command
	switch command {
	case statusCmd.FullCommand():
		status, err = client.Status(ctx)
	case nextCmd.FullCommand(), previousCmd.FullCommand(), pauseCmd.FullCommand(), restartCmd.FullCommand():
		status, err = client.Action(ctx, command)
	case volumeCmd.FullCommand():
		status, err = client.SetVolume(ctx, *volumeLevel)
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if status != nil {
		printStatus(status)
	}
}

func watch(ctx context.Context, client *web.Client) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Watching playback events. Press Ctrl+C to exit.")
	return client.Watch(ctx, printNotification)
}

func printStatus(s *web.StatusResponse) {
	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("Track:   %d/%d %s\n", s.Index+1, s.Tracks, s.Track.ID)
	fmt.Printf("Title:   %s\n", s.Track.Title)
	if s.Track.Artist != "" {
		fmt.Printf("Artist:  %s\n", s.Track.Artist)
	}
	fmt.Printf("State:   %s\n", s.Status)
	fmt.Printf("Volume:  %d (%s)\n", s.Volume, meter(s.Lit))
	fmt.Printf("Started: %s\n", s.Started)
	fmt.Println()
}

func printNotification(n notification.Notification) {
	e := n.Event
	fmt.Printf("[%d] %s %-16s", n.SequenceNo, e.Time.Format("15:04:05"), e.Type)

	switch e.Type {
	case playback.EventVolumeChanged:
		fmt.Printf(" volume=%d\n", e.Volume)
	case playback.EventStateChanged:
		fmt.Printf(" playing=%t\n", e.Playing)
	case playback.EventShutdown:
		fmt.Println()
	default:
		fmt.Printf(" %d: %s\n", e.Index+1, e.Track.Title)
	}
}

// meter renders a lit indicator count as a four-segment bar.
func meter(lit int) string {
	bar := []rune("○○○○")
	for i := 0; i < lit && i < len(bar); i++ {
		bar[i] = '●'
	}
	return string(bar)
}
