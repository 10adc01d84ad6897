// ticket shows an attendee's rotating check-in QR code in the terminal.
// The code is replaced before it expires; when the server refuses a
// ticket the reason is shown and Enter retries.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/iliyamo/event-checkin/internal/client/api"
	"github.com/iliyamo/event-checkin/internal/client/display"
	"github.com/iliyamo/event-checkin/internal/logging"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	countdownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle      = lipgloss.NewStyle().Faint(true)
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
		margin      time.Duration
		minDelay    time.Duration
		pngPath     string
		logLevel    string
	)
	flagSet := pflag.NewFlagSet("ticket", pflag.ContinueOnError)
	flagSet.StringVar(&server, "server", "http://localhost:8080", "check-in server base URL")
	flagSet.StringVar(&accessToken, "token", os.Getenv("CHECKIN_ACCESS_TOKEN"), "access token (default $CHECKIN_ACCESS_TOKEN)")
	flagSet.StringVar(&eventID, "event", "", "event ID (required)")
	flagSet.DurationVar(&margin, "early-margin", display.DefaultEarlyMargin, "reload this long before the ticket expires")
	flagSet.DurationVar(&minDelay, "min-delay", display.DefaultMinDelay, "never reload sooner than this")
	flagSet.StringVar(&pngPath, "png", "", "also write the current QR code to this PNG file")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if eventID == "" {
		return fmt.Errorf("--event is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := display.New(api.New(server, accessToken), eventID,
		display.WithSchedule(margin, minDelay),
		display.WithLogger(logging.New(logLevel, true)),
	)
	d.Open(ctx)
	go func() {
		<-ctx.Done()
		d.Close()
	}()

	// Enter retries after a failure.
	go func() {
		in := bufio.NewScanner(os.Stdin)
		for in.Scan() {
			d.Retry()
		}
	}()

	lastToken := ""
	for v := range d.Changes() {
		if err := render(v); err != nil {
			return err
		}
		if pngPath != "" && v.State == display.Showing && v.Token != lastToken {
			png, err := v.PNG(512)
			if err != nil {
				return err
			}
			if err := os.WriteFile(pngPath, png, 0o600); err != nil {
				return err
			}
			lastToken = v.Token
		}
	}
	return nil
}

func render(v display.View) error {
	fmt.Print("\033[H\033[2J")
	switch v.State {
	case display.Idle, display.Loading:
		fmt.Println(hintStyle.Render("Loading ticket…"))
		return nil
	case display.Closed:
		return nil
	}

	if v.Token != "" {
		code, err := v.Terminal()
		if err != nil {
			return err
		}
		fmt.Println(code)
		fmt.Println(titleStyle.Render("Expires in ") + countdownStyle.Render(v.Countdown))
	}
	if v.State == display.Unavailable {
		fmt.Println(errorStyle.Render(string(v.ErrKind)) + " " + v.ErrMsg)
		fmt.Println(hintStyle.Render("Press Enter to retry."))
	}
	return nil
}
