// scanner is the door-side check-in station.  It reads frames from a
// capture directory, redeems every QR code it sees and prints the
// result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/iliyamo/event-checkin/internal/client/api"
	"github.com/iliyamo/event-checkin/internal/client/camera"
	"github.com/iliyamo/event-checkin/internal/client/qr"
	"github.com/iliyamo/event-checkin/internal/client/scanner"
	"github.com/iliyamo/event-checkin/internal/logging"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	timeStyle = lipgloss.NewStyle().Faint(true)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		server      string
		accessToken string
		eventID     string
		frames      string
		interval    time.Duration
		debounce    time.Duration
		logLevel    string
	)
	flagSet := pflag.NewFlagSet("scanner", pflag.ContinueOnError)
	flagSet.StringVar(&server, "server", "http://localhost:8080", "check-in server base URL")
	flagSet.StringVar(&accessToken, "token", os.Getenv("CHECKIN_ACCESS_TOKEN"), "staff access token (default $CHECKIN_ACCESS_TOKEN)")
	flagSet.StringVar(&eventID, "event", "", "only admit tickets for this event")
	flagSet.StringVar(&frames, "frames", "", "directory the camera writes snapshots to (required)")
	flagSet.DurationVar(&interval, "frame-interval", 100*time.Millisecond, "how often a frame is read")
	flagSet.DurationVar(&debounce, "debounce", scanner.DefaultDebounceWindow, "ignore reads this long after a successful check-in")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if frames == "" {
		return fmt.Errorf("--frames is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cam := camera.NewDir(frames)
	cam.Interval = interval

	s := scanner.New(cam, qr.NewDecoder(), api.New(server, accessToken),
		scanner.WithEvent(eventID),
		scanner.WithDebounce(debounce),
		scanner.WithLogger(logging.New(logLevel, true)),
		scanner.OnResult(printOutcome),
	)
	defer s.Close()

	if err := s.Start(ctx); err != nil {
		return err
	}
	fmt.Println("Scanning… press Ctrl-C to stop.")
	<-ctx.Done()
	return nil
}

func printOutcome(o scanner.Outcome) {
	at := timeStyle.Render(o.At.Local().Format("15:04:05"))
	if o.OK() {
		fmt.Printf("%s %s registration %s\n", at, okStyle.Render("CHECKED IN"), o.RegistrationID)
		return
	}
	fmt.Printf("%s %s %s\n", at, failStyle.Render(string(o.ErrKind)), o.ErrMsg)
}
