// Package scanner runs the door-side check-in loop: it reads frames from
// a camera, decodes QR codes and submits each new token for redemption,
// skipping re-reads of a code that was just accepted.
package scanner

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-checkin/internal/client/camera"
	"github.com/iliyamo/event-checkin/internal/client/qr"
	"github.com/iliyamo/event-checkin/internal/ticket"
)

// Defaults.
const (
	DefaultDebounceWindow = 2 * time.Second
	DefaultResultTTL      = 5 * time.Second
)

// State is the lifecycle state of a Scanner.
type State int

const (
	Idle State = iota
	Acquiring
	Scanning
	Validating
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Scanning:
		return "scanning"
	case Validating:
		return "validating"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Decoder extracts a QR payload from a frame.  Frames without a symbol
// yield qr.ErrNotFound.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// Redeemer submits a token for check‑in.  An empty eventID means the
// server decides the event from the token.
type Redeemer interface {
	Redeem(ctx context.Context, eventID, token string) (ticket.Redemption, error)
}

// Outcome is the result of one validated candidate.
type Outcome struct {
	Token          string
	RegistrationID string
	ErrKind        ticket.Kind
	ErrMsg         string
	At             time.Time
}

// OK reports whether the token was accepted.
func (o Outcome) OK() bool { return o.ErrKind == "" }

// Option configures a Scanner.
type Option func(*Scanner)

// WithEvent binds the scanner to one event's station endpoint.
func WithEvent(eventID string) Option { return func(s *Scanner) { s.eventID = eventID } }

// WithDebounce sets the window after a success during which candidates
// are dropped.
func WithDebounce(d time.Duration) Option { return func(s *Scanner) { s.gate.window = d } }

// WithResultTTL sets how long the last outcome stays visible.
func WithResultTTL(d time.Duration) Option { return func(s *Scanner) { s.resultTTL = d } }

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) Option { return func(s *Scanner) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option { return func(s *Scanner) { s.log = l } }

// OnResult registers a callback invoked after every validated candidate.
// It runs on the scanning goroutine; it must not call Close.
func OnResult(fn func(Outcome)) Option { return func(s *Scanner) { s.onResult = fn } }

// Scanner owns one camera stream and one decode loop.
type Scanner struct {
	cam       camera.Device
	dec       Decoder
	redeemer  Redeemer
	eventID   string
	resultTTL time.Duration
	clock     clockwork.Clock
	log       *zerolog.Logger
	onResult  func(Outcome)
	gate      gate

	mu        sync.Mutex
	state     State
	stream    camera.Stream
	cancel    context.CancelFunc
	loop      sync.WaitGroup
	result    *Outcome
	resultSeq uint64
	clear     clockwork.Timer
}

// New returns an idle Scanner.
func New(cam camera.Device, dec Decoder, r Redeemer, opts ...Option) *Scanner {
	nop := zerolog.Nop()
	s := &Scanner{
		cam:       cam,
		dec:       dec,
		redeemer:  r,
		resultTTL: DefaultResultTTL,
		clock:     clockwork.NewRealClock(),
		log:       &nop,
	}
	s.gate.window = DefaultDebounceWindow
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start acquires the rear camera and starts the decode loop.  If the
// camera cannot be acquired the error is CameraUnavailable and the
// scanner stays Idle; Start may be called again.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		return errors.New("scanner: cannot start from state " + st.String())
	}
	s.state = Acquiring
	s.mu.Unlock()

	stream, err := s.cam.Acquire(ctx, camera.FacingRear)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.state == Acquiring {
			s.state = Idle
		}
		s.log.Warn().Err(err).Msg("camera unavailable")
		return &ticket.Error{Kind: ticket.KindCameraUnavailable, Message: ticket.ErrCameraUnavailable.Message, Err: err}
	}
	if s.state == Closed {
		// closed while acquiring
		_ = stream.Close()
		return ticket.ErrCameraUnavailable
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.stream = stream
	s.cancel = cancel
	s.state = Scanning
	s.loop.Add(1)
	go s.run(loopCtx, stream.Frames())
	return nil
}

func (s *Scanner) run(ctx context.Context, frames <-chan image.Image) {
	defer s.loop.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case img, ok := <-frames:
			if !ok {
				s.log.Info().Msg("camera stream ended")
				return
			}
			text, err := s.dec.Decode(img)
			if errors.Is(err, qr.ErrNotFound) {
				continue
			}
			if err != nil {
				s.log.Debug().Err(err).Msg("frame decode failed")
				continue
			}
			s.HandleCandidate(ctx, text)
		}
	}
}

// HandleCandidate validates a decoded token while the scanner is
// Scanning.  Candidates arriving in any other state, inside the debounce
// window or while another candidate is being validated are dropped and
// the bool is false.
func (s *Scanner) HandleCandidate(ctx context.Context, token string) (Outcome, bool) {
	if token == "" {
		return Outcome{}, false
	}
	observed, ok := s.gate.enter(s.clock.Now())
	if !ok {
		return Outcome{}, false
	}
	if !s.setState(Scanning, Validating) {
		s.gate.leave(observed, false, time.Time{})
		return Outcome{}, false
	}

	res, err := s.redeemer.Redeem(ctx, s.eventID, token)
	now := s.clock.Now()
	s.gate.leave(observed, err == nil, now)
	_ = s.setState(Validating, Scanning)

	out := Outcome{Token: token, At: now}
	if err != nil {
		out.ErrKind = ticket.KindOf(err)
		if out.ErrKind == "" {
			out.ErrKind = ticket.KindNetworkError
		}
		out.ErrMsg = ticket.MessageOf(err)
		s.log.Info().Str("kind", string(out.ErrKind)).Msg("ticket rejected")
	} else {
		out.RegistrationID = res.RegistrationID
		s.log.Info().Str("registration_id", res.RegistrationID).Msg("checked in")
	}

	if !s.record(out) {
		return Outcome{}, false
	}
	if s.onResult != nil {
		s.onResult(out)
	}
	return out, true
}

// record stores out as the visible result and schedules its removal.
// It reports false when the scanner was closed meanwhile.
func (s *Scanner) record(out Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	s.result = &out
	s.resultSeq++
	seq := s.resultSeq
	if s.clear != nil {
		s.clear.Stop()
	}
	s.clear = s.clock.AfterFunc(s.resultTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.resultSeq == seq {
			s.result = nil
		}
	})
	return true
}

// setState moves from one state to another and reports whether the
// scanner was in from.
func (s *Scanner) setState(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

// State returns the current state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastResult returns the most recent outcome until it is cleared.
func (s *Scanner) LastResult() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Outcome{}, false
	}
	return *s.result, true
}

// Close stops the decode loop, waits for it to exit and releases the
// camera.  It is idempotent and safe to call from any state.
func (s *Scanner) Close() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	cancel, stream := s.cancel, s.stream
	s.cancel, s.stream = nil, nil
	if s.clear != nil {
		s.clear.Stop()
		s.clear = nil
	}
	s.result = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.loop.Wait()
	if stream != nil {
		if err := stream.Close(); err != nil {
			s.log.Warn().Err(err).Msg("camera release failed")
		}
	}
}
