package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheerrors "github.com/Humphrey-He/guardcache/pkg/errors"
)

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func succeed() error { return nil }

func newTestBreaker(threshold int, timeout time.Duration) *Breaker {
	return New(Config{Enabled: true, Threshold: threshold, ResetTimeout: timeout})
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := newTestBreaker(2, time.Hour)

	assert.ErrorIs(t, b.Execute(fail), errBoom)
	assert.Equal(t, Closed, b.State())

	assert.ErrorIs(t, b.Execute(fail), errBoom)
	assert.Equal(t, Open, b.State())
	assert.Eventually(t, func() bool { return b.Trips() == 1 }, time.Second, 5*time.Millisecond)

	calls := 0
	err := b.Execute(func() error { calls++; return nil })
	assert.True(t, IsOpen(err))
	assert.Zero(t, calls, "an open breaker must not run the guarded function")
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := newTestBreaker(2, time.Hour)

	_ = b.Execute(fail)
	require.NoError(t, b.Execute(succeed))
	_ = b.Execute(fail)
	assert.Equal(t, Closed, b.State(), "failures were not consecutive")
}

func TestHalfOpenTrialSuccessCloses(t *testing.T) {
	b := newTestBreaker(1, 30*time.Millisecond)

	_ = b.Execute(fail)
	require.Equal(t, Open, b.State())

	assert.Eventually(t, func() bool { return b.State() == HalfOpen }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Execute(succeed))
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenTrialFailureReopens(t *testing.T) {
	b := newTestBreaker(1, 30*time.Millisecond)

	_ = b.Execute(fail)
	assert.Eventually(t, func() bool { return b.State() == HalfOpen }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, b.Execute(fail), errBoom)
	assert.Equal(t, Open, b.State(), "timer restarts after a failed trial")
	assert.True(t, IsOpen(b.Execute(succeed)))
	assert.Eventually(t, func() bool { return b.Trips() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPanicsAreRecoveredAsFailures(t *testing.T) {
	b := newTestBreaker(1, time.Hour)

	err := b.Execute(func() error { panic("scorer exploded") })
	var pe *cacheerrors.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "scorer exploded", pe.Value)
	assert.True(t, cacheerrors.IsEvictionFailure(err))
	assert.Equal(t, Open, b.State())
}

func TestStateChangeCallback(t *testing.T) {
	type transition struct{ from, to State }
	changes := make(chan transition, 4)
	b := New(Config{
		Enabled:       true,
		Threshold:     1,
		ResetTimeout:  time.Hour,
		OnStateChange: func(from, to State) { changes <- transition{from, to} },
	})

	_ = b.Execute(fail)
	select {
	case c := <-changes:
		assert.Equal(t, transition{Closed, Open}, c)
	case <-time.After(time.Second):
		t.Fatal("no state change reported")
	}
}

func TestDisabledBreaker(t *testing.T) {
	b := New(Config{Enabled: false, Threshold: 1})

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Execute(fail), errBoom)
	}
	assert.Equal(t, Closed, b.State())
	assert.Zero(t, b.Trips())

	err := b.Execute(func() error { panic("still guarded") })
	assert.True(t, cacheerrors.IsEvictionFailure(err))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half_open", HalfOpen.String())
}
