package clock_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/osf/network-sim/internal/clock"
	"github.com/osf/network-sim/internal/events"
	"github.com/osf/network-sim/internal/store"
	testhelpers "github.com/osf/network-sim/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   atomic.Int64
	fail    atomic.Bool
	lastMonth atomic.Int64
	block   chan struct{}
}

func (f *fakeRunner) RunTick(ctx context.Context, month int) (interface{}, error) {
	f.calls.Add(1)
	f.lastMonth.Store(int64(month))
	if f.block != nil {
		<-f.block
	}
	if f.fail.Load() {
		return nil, assert.AnError
	}
	return month, nil
}

func newTestClock(t *testing.T) (*clock.Clock, *events.Bus) {
	t.Helper()
	core, cleanupCore := testhelpers.NewTestDB(t, "core")
	t.Cleanup(cleanupCore)
	ledger, cleanupLedger := testhelpers.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)
	s := store.New(core, ledger, zerolog.Nop())
	bus := events.NewBus()
	c, err := clock.New(s, bus, "test", zerolog.Nop())
	require.NoError(t, err)
	return c, bus
}

func TestGetStateReflectsPreset(t *testing.T) {
	c, _ := newTestClock(t)
	state := c.GetState()
	assert.Equal(t, 30, state.IntervalSeconds)
	assert.Equal(t, 10, state.WarningSeconds)
	assert.Equal(t, clock.ModePaused, state.Mode)
}

func TestSetIntervalRejectsOutOfBounds(t *testing.T) {
	c, _ := newTestClock(t)
	assert.Error(t, c.SetInterval(5))
	assert.Error(t, c.SetInterval(100000))
	assert.NoError(t, c.SetInterval(60))
	assert.Equal(t, 60, c.GetState().IntervalSeconds)
}

func TestForceTickAdvancesMonthOnSuccess(t *testing.T) {
	c, _ := newTestClock(t)
	runner := &fakeRunner{}
	c.SetRunner(runner)

	before := c.GetState().CurrentMonth
	c.ForceTick(context.Background())

	state := c.GetState()
	assert.Equal(t, before+1, state.CurrentMonth)
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestForceTickLeavesMonthUnchangedOnFailure(t *testing.T) {
	c, _ := newTestClock(t)
	runner := &fakeRunner{}
	runner.fail.Store(true)
	c.SetRunner(runner)

	before := c.GetState().CurrentMonth
	c.ForceTick(context.Background())

	assert.Equal(t, before, c.GetState().CurrentMonth)
}

func TestForceTickIsANoOpWhileAlreadyProcessing(t *testing.T) {
	c, _ := newTestClock(t)
	runner := &fakeRunner{block: make(chan struct{})}
	c.SetRunner(runner)

	done := make(chan struct{})
	go func() {
		c.ForceTick(context.Background())
		close(done)
	}()

	// Give the first fire time to claim is_processing before the second.
	time.Sleep(20 * time.Millisecond)
	c.ForceTick(context.Background())
	close(runner.block)
	<-done

	assert.EqualValues(t, 1, runner.calls.Load(), "a concurrent fire must be a no-op, not queued")
}

func TestSetPresetResetsCountdown(t *testing.T) {
	c, _ := newTestClock(t)
	require.NoError(t, c.SetPreset("demo"))
	state := c.GetState()
	assert.Equal(t, "demo", state.Preset)
	assert.Equal(t, 300, state.IntervalSeconds)
	assert.Equal(t, 60, state.WarningSeconds)
}

func TestSetPresetRejectsUnknownName(t *testing.T) {
	c, _ := newTestClock(t)
	assert.Error(t, c.SetPreset("nonexistent"))
}

func TestStartPublishesClockStarted(t *testing.T) {
	c, bus := newTestClock(t)
	sub := bus.Subscribe(events.ClockStarted)
	defer bus.Unsubscribe(sub)

	c.Start()
	defer c.Stop()

	select {
	case evt := <-sub.C:
		assert.Equal(t, events.ClockStarted, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a clock_started event")
	}
}

func TestPauseAndResumePublishLifecycleEvents(t *testing.T) {
	c, bus := newTestClock(t)
	sub := bus.Subscribe(events.ClockPaused, events.ClockResumed)
	defer bus.Unsubscribe(sub)

	c.Pause()
	assert.Equal(t, clock.ModePaused, c.GetState().Mode)
	c.Resume()
	assert.Equal(t, clock.ModeAuto, c.GetState().Mode)

	first := <-sub.C
	second := <-sub.C
	assert.Equal(t, events.ClockPaused, first.Type)
	assert.Equal(t, events.ClockResumed, second.Type)
}

func TestForceTickSurfacesCriticalFailureAfterThreshold(t *testing.T) {
	c, bus := newTestClock(t)
	runner := &fakeRunner{}
	runner.fail.Store(true)
	c.SetRunner(runner)

	sub := bus.Subscribe(events.CriticalFailure)
	defer bus.Unsubscribe(sub)

	c.ForceTick(context.Background())
	c.ForceTick(context.Background())
	select {
	case <-sub.C:
		t.Fatal("must not surface a critical failure before the threshold is crossed")
	default:
	}

	c.ForceTick(context.Background())
	select {
	case evt := <-sub.C:
		assert.Equal(t, events.CriticalFailure, evt.Type)
		data, ok := evt.Data.(*events.CriticalFailureData)
		require.True(t, ok)
		assert.Equal(t, 3, data.ConsecutiveFails)
	case <-time.After(time.Second):
		t.Fatal("expected a critical_failure event after three consecutive failures")
	}
}
