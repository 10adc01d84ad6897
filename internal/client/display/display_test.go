package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/ticket"
)

var t0 = time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{} // when set, every fetch waits for it
}

func (f *fakeFetcher) FetchTicket(ctx context.Context, eventID string) (ticket.Issued, error) {
	f.mu.Lock()
	f.calls++
	n, err, gate := f.calls, f.err, f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return ticket.Issued{}, err
	}
	return ticket.Issued{
		Token:     eventID + "-token-" + string(rune('a'+n-1)),
		ExpiresAt: f.clock.Now().Add(f.ttl),
	}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func open(t *testing.T, ttl time.Duration) (*Display, *fakeFetcher, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	f := &fakeFetcher{clock: clock, ttl: ttl}
	d := New(f, "evt-1", WithClock(clock))
	d.Open(context.Background())
	t.Cleanup(d.Close)
	return d, f, clock
}

func waitState(t *testing.T, d *Display, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return d.View().State == want }, 2*time.Second, 5*time.Millisecond,
		"display never reached %s", want)
}

// waitTimers blocks until the countdown ticker and the reload timer are armed.
func waitTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "01:05", FormatCountdown(65))
	assert.Equal(t, "00:00", FormatCountdown(0))
	assert.Equal(t, "00:00", FormatCountdown(-3))
	assert.Equal(t, "10:00", FormatCountdown(600))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 65, Remaining(t0.Add(65*time.Second), t0))
	assert.Equal(t, 63, Remaining(t0.Add(65*time.Second), t0.Add(1500*time.Millisecond)))
	assert.Equal(t, 0, Remaining(t0, t0.Add(time.Second)))
}

func TestRefreshDelay(t *testing.T) {
	assert.Equal(t, 20*time.Second, RefreshDelay(t0.Add(30*time.Second), t0, DefaultEarlyMargin, DefaultMinDelay))
	assert.Equal(t, 50*time.Second, RefreshDelay(t0.Add(time.Minute), t0, DefaultEarlyMargin, DefaultMinDelay))
}

// A 5s ticket is refreshed after the 15s floor, ten seconds after it
// expired.  The formula is kept as is; this test pins the behavior.
func TestRefreshDelay_ShortTTLReloadsAfterExpiry(t *testing.T) {
	exp := t0.Add(5 * time.Second)
	delay := RefreshDelay(exp, t0, DefaultEarlyMargin, DefaultMinDelay)
	assert.Equal(t, 15*time.Second, delay)
	assert.True(t, t0.Add(delay).After(exp))
}

func TestOpen_ShowsTicketAndCountsDown(t *testing.T) {
	d, _, clock := open(t, 65*time.Second)
	waitState(t, d, Showing)

	v := d.View()
	assert.Equal(t, "evt-1-token-a", v.Token)
	assert.Equal(t, 65, v.Remaining)
	assert.Equal(t, "01:05", v.Countdown)

	clock.Advance(5 * time.Second)
	assert.Equal(t, "01:00", d.View().Countdown)
}

func TestReloadsBeforeExpiry(t *testing.T) {
	d, f, clock := open(t, 30*time.Second)
	waitState(t, d, Showing)
	waitTimers(t, clock, 2)

	clock.Advance(20*time.Second - time.Millisecond)
	assert.Equal(t, 1, f.count())

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return f.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return d.View().Token == "evt-1-token-b" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 30, d.View().Remaining)
}

func TestShortTTL_ShowsZeroUntilFloorReload(t *testing.T) {
	d, f, clock := open(t, 5*time.Second)
	waitState(t, d, Showing)
	waitTimers(t, clock, 2)

	clock.Advance(5 * time.Second)
	v := d.View()
	assert.Equal(t, Showing, v.State)
	assert.Equal(t, "00:00", v.Countdown)

	clock.Advance(10*time.Second - time.Millisecond)
	assert.Equal(t, 1, f.count(), "no refetch when the countdown hits zero")

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return f.count() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRetry_ReplacesPendingReload(t *testing.T) {
	d, f, clock := open(t, 30*time.Second)
	waitState(t, d, Showing)

	d.Retry()
	require.Eventually(t, func() bool { return d.View().Token == "evt-1-token-b" }, 2*time.Second, 5*time.Millisecond)
	waitTimers(t, clock, 2)

	// only the reload scheduled by the second fetch remains
	clock.Advance(20 * time.Second)
	require.Eventually(t, func() bool { return f.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, f.count())
}

func TestFetchFailure_IsUnavailableAndRetryable(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	f := &fakeFetcher{clock: clock, ttl: 30 * time.Second}
	f.fail(ticket.ErrCheckInWindowClosed)
	d := New(f, "evt-1", WithClock(clock))
	d.Open(context.Background())
	defer d.Close()

	waitState(t, d, Unavailable)
	v := d.View()
	assert.Equal(t, ticket.KindCheckInWindowClosed, v.ErrKind)
	assert.Equal(t, ticket.ErrCheckInWindowClosed.Message, v.ErrMsg)
	assert.Empty(t, v.Token)

	// no automatic reload after a failure
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.count())

	f.fail(nil)
	d.Retry()
	waitState(t, d, Showing)
	assert.Empty(t, d.View().ErrKind)
}

func TestFetchFailure_KeepsValidTicketCounting(t *testing.T) {
	d, f, clock := open(t, 30*time.Second)
	waitState(t, d, Showing)

	f.fail(errors.New("dial tcp: connection refused"))
	d.Retry()
	waitState(t, d, Unavailable)

	v := d.View()
	assert.Equal(t, ticket.KindNetworkError, v.ErrKind)
	assert.Equal(t, "evt-1-token-a", v.Token)
	assert.Equal(t, 30, v.Remaining)

	clock.Advance(10 * time.Second)
	assert.Equal(t, "00:20", d.View().Countdown)
}

func TestClose_DiscardsInFlightFetch(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	gate := make(chan struct{})
	f := &fakeFetcher{clock: clock, ttl: 30 * time.Second, gate: gate}
	d := New(f, "evt-1", WithClock(clock))
	d.Open(context.Background())
	waitState(t, d, Loading)
	require.Eventually(t, func() bool { return f.count() == 1 }, time.Second, time.Millisecond)

	d.Close()
	close(gate)
	time.Sleep(20 * time.Millisecond)

	v := d.View()
	assert.Equal(t, Closed, v.State)
	assert.Empty(t, v.Token)

	var last View
	for v := range d.Changes() {
		last = v
	}
	assert.Equal(t, Closed, last.State)
}

func TestClose_CancelsReload(t *testing.T) {
	d, f, clock := open(t, 30*time.Second)
	waitState(t, d, Showing)
	waitTimers(t, clock, 2)

	d.Close()
	d.Close()
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.count())

	d.Retry()
	assert.Equal(t, Closed, d.View().State)
}

func TestClose_BeforeOpen(t *testing.T) {
	d := New(&fakeFetcher{}, "evt-1")
	d.Close()
	d.Open(context.Background())
	assert.Equal(t, Closed, d.View().State)
}

func TestChanges_ReportsShowing(t *testing.T) {
	d, _, _ := open(t, 30*time.Second)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-d.Changes():
			if v.State == Showing {
				assert.Equal(t, "00:30", v.Countdown)
				return
			}
		case <-deadline:
			t.Fatal("no Showing view delivered")
		}
	}
}

func TestView_RendersQR(t *testing.T) {
	d, _, _ := open(t, 30*time.Second)
	waitState(t, d, Showing)

	out, err := d.View().Terminal()
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	png, err := d.View().PNG(128)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}
