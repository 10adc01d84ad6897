// Package display keeps an attendee's rotating ticket on screen: it
// fetches a ticket, counts down to its expiry and reloads it shortly
// before it runs out.
package display

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-checkin/internal/client/qr"
	"github.com/iliyamo/event-checkin/internal/ticket"
)

// Defaults for the reload schedule.
const (
	DefaultEarlyMargin = 10 * time.Second
	DefaultMinDelay    = 15 * time.Second
)

// State is the lifecycle state of a Display.
type State int

const (
	Idle State = iota
	Loading
	Showing
	Unavailable
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Showing:
		return "showing"
	case Unavailable:
		return "unavailable"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Fetcher obtains a fresh ticket for an event.
type Fetcher interface {
	FetchTicket(ctx context.Context, eventID string) (ticket.Issued, error)
}

// View is a snapshot of what the display shows.
type View struct {
	State     State
	Token     string
	ExpiresAt time.Time
	Remaining int    // whole seconds until ExpiresAt
	Countdown string // Remaining as MM:SS
	ErrKind   ticket.Kind
	ErrMsg    string
}

// Terminal renders the token as a QR code for a terminal.
func (v View) Terminal() (string, error) { return qr.Terminal(v.Token) }

// PNG renders the token as a QR code image.
func (v View) PNG(size int) ([]byte, error) { return qr.Encode(v.Token, size) }

// Option configures a Display.
type Option func(*Display)

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) Option { return func(d *Display) { d.clock = c } }

// WithSchedule overrides the early margin and minimum reload delay.
func WithSchedule(margin, min time.Duration) Option {
	return func(d *Display) { d.margin, d.minDelay = margin, min }
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *zerolog.Logger) Option { return func(d *Display) { d.log = l } }

// Display shows one event's rotating ticket.  All methods are safe for
// concurrent use.  Results of fetches started before a Close, or before
// a newer fetch, are dropped.
type Display struct {
	fetcher  Fetcher
	eventID  string
	margin   time.Duration
	minDelay time.Duration
	clock    clockwork.Clock
	log      *zerolog.Logger

	mu      sync.Mutex
	state   State
	gen     uint64
	issued  *ticket.Issued
	errKind ticket.Kind
	errMsg  string
	reload  clockwork.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	stop    chan struct{}
	ticks   sync.WaitGroup
	changes chan View
}

// New returns an idle Display for eventID.
func New(f Fetcher, eventID string, opts ...Option) *Display {
	nop := zerolog.Nop()
	d := &Display{
		fetcher:  f,
		eventID:  eventID,
		margin:   DefaultEarlyMargin,
		minDelay: DefaultMinDelay,
		clock:    clockwork.NewRealClock(),
		log:      &nop,
		changes:  make(chan View, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open starts the first fetch and the countdown.  It returns at once;
// progress is reported through View and Changes.  Calling Open on a
// Display that is not idle does nothing.
func (d *Display) Open(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Idle {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.stop = make(chan struct{})
	d.ticks.Add(1)
	go d.tick(d.clock.NewTicker(time.Second))
	d.fetchLocked()
}

// Retry fetches a new ticket now.  It is the operator's answer to
// Unavailable and also works as a manual refresh while Showing.
func (d *Display) Retry() {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case Showing, Unavailable:
		d.fetchLocked()
	}
}

// Close stops the countdown, cancels the pending reload and discards the
// ticket.  Changes is closed after the final Closed view.  Close is
// idempotent.
func (d *Display) Close() {
	d.mu.Lock()
	if d.state == Closed {
		d.mu.Unlock()
		return
	}
	wasOpen := d.state != Idle
	d.state = Closed
	d.gen++
	d.stopReloadLocked()
	if wasOpen {
		d.cancel()
		close(d.stop)
	}
	d.issued = nil
	d.errKind, d.errMsg = "", ""
	d.publishLocked()
	close(d.changes)
	d.mu.Unlock()

	d.ticks.Wait()
}

// View returns the current snapshot with a live countdown.
func (d *Display) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewLocked()
}

// Changes delivers views as they change, latest first: a slow reader
// skips intermediate views.
func (d *Display) Changes() <-chan View { return d.changes }

func (d *Display) viewLocked() View {
	v := View{State: d.state, ErrKind: d.errKind, ErrMsg: d.errMsg}
	if d.issued != nil {
		v.Token = d.issued.Token
		v.ExpiresAt = d.issued.ExpiresAt
		v.Remaining = Remaining(d.issued.ExpiresAt, d.clock.Now())
	}
	v.Countdown = FormatCountdown(v.Remaining)
	return v
}

func (d *Display) publishLocked() {
	v := d.viewLocked()
	select {
	case d.changes <- v:
		return
	default:
	}
	select {
	case <-d.changes:
	default:
	}
	select {
	case d.changes <- v:
	default:
	}
}

// fetchLocked cancels any pending reload and starts a fetch tagged with
// a new generation.
func (d *Display) fetchLocked() {
	d.stopReloadLocked()
	d.gen++
	gen := d.gen
	d.state = Loading
	d.publishLocked()
	go d.fetch(d.ctx, gen)
}

func (d *Display) fetch(ctx context.Context, gen uint64) {
	issued, err := d.fetcher.FetchTicket(ctx, d.eventID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Closed || gen != d.gen {
		return
	}
	if err != nil {
		d.state = Unavailable
		d.errKind = ticket.KindOf(err)
		if d.errKind == "" {
			d.errKind = ticket.KindNetworkError
		}
		d.errMsg = ticket.MessageOf(err)
		d.log.Warn().Err(err).Str("event_id", d.eventID).Msg("ticket fetch failed")
		d.publishLocked()
		return
	}

	d.issued = &issued
	d.errKind, d.errMsg = "", ""
	d.state = Showing
	delay := RefreshDelay(issued.ExpiresAt, d.clock.Now(), d.margin, d.minDelay)
	d.reload = d.clock.AfterFunc(delay, func() { d.onReload(gen) })
	d.log.Debug().Dur("reload_in", delay).Time("expires_at", issued.ExpiresAt).Msg("ticket shown")
	d.publishLocked()
}

func (d *Display) onReload(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Showing || gen != d.gen {
		return
	}
	d.reload = nil
	d.fetchLocked()
}

func (d *Display) stopReloadLocked() {
	if d.reload != nil {
		d.reload.Stop()
		d.reload = nil
	}
}

func (d *Display) tick(tk clockwork.Ticker) {
	defer d.ticks.Done()
	defer tk.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-tk.Chan():
			d.mu.Lock()
			if d.state != Closed && d.issued != nil {
				d.publishLocked()
			}
			d.mu.Unlock()
		}
	}
}
