// Package clock implements the Network Clock (C6): the one authoritative
// time source fanning tick events out to every connected client. A single
// background goroutine owns the countdown and invokes the Tick Pipeline;
// everything else (HTTP handlers, NPC-triggered actions) only ever reads
// or requests a state change through the exported methods below.
package clock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/events"
	"github.com/osf/network-sim/internal/store"
	"github.com/rs/zerolog"
)

// Mode is the clock's run mode.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
	ModePaused Mode = "paused"
)

// Preset names a symbolic (interval_seconds, warning_seconds) bundle.
type Preset struct {
	IntervalSeconds int
	WarningSeconds  int
}

// Presets maps the symbolic names the spec names to their tick cadence.
var Presets = map[string]Preset{
	"test":      {IntervalSeconds: 30, WarningSeconds: 10},
	"demo_fast": {IntervalSeconds: 120, WarningSeconds: 30},
	"demo":      {IntervalSeconds: 300, WarningSeconds: 60},
	"casual":    {IntervalSeconds: 900, WarningSeconds: 120},
	"slow":      {IntervalSeconds: 1800, WarningSeconds: 300},
	"realtime":  {IntervalSeconds: 3600, WarningSeconds: 600},
	"daily":     {IntervalSeconds: 86400, WarningSeconds: 3600},
}

const (
	minIntervalSeconds = 10
	maxIntervalSeconds = 86400

	// loopResolution is how often the background goroutine wakes to
	// re-check the countdown; it bounds how late a tick_warning or tick
	// can fire relative to its scheduled second.
	loopResolution = time.Second

	// syncPeriod is the clock_sync heartbeat cadence, at least every 10s
	// per the spec.
	syncPeriod = 10 * time.Second

	// criticalFailThreshold is how many consecutive failed attempts at the
	// same month escalate from a routine processing_failed event to a
	// critical one: a single failed tick retries quietly, but a streak
	// means something structural is wrong and an operator should know.
	criticalFailThreshold = 3
)

// TickRunner is the Tick Pipeline's contract from the clock's point of
// view. Defining it here (rather than importing the pipeline package)
// keeps the clock ignorant of how a tick is actually processed.
type TickRunner interface {
	RunTick(ctx context.Context, month int) (interface{}, error)
}

// State is the read-only snapshot returned by GetState.
type State struct {
	CurrentMonth     int       `json:"current_month"`
	Mode             Mode      `json:"mode"`
	Preset           string    `json:"preset"`
	IntervalSeconds  int       `json:"interval_seconds"`
	WarningSeconds   int       `json:"warning_seconds"`
	LastTickTime     time.Time `json:"last_tick_time"`
	IsProcessing     bool      `json:"is_processing"`
	SecondsUntilTick int       `json:"seconds_until_tick"`
}

// Clock is the Network Clock (C6).
type Clock struct {
	store *store.Store
	bus   *events.Bus
	log   zerolog.Logger

	mu              sync.Mutex
	currentMonth    int
	mode            Mode
	preset          string
	intervalSeconds int
	warningSeconds  int
	lastTickTime    time.Time
	warnedThisCycle bool
	runner          TickRunner
	consecutiveFails int

	isProcessing atomic.Bool

	loopMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Clock at month 0 (or the last committed snapshot's
// month, if any) using defaultPreset, paused until Start is called.
func New(s *store.Store, bus *events.Bus, defaultPreset string, log zerolog.Logger) (*Clock, error) {
	p, ok := Presets[defaultPreset]
	if !ok {
		return nil, fmt.Errorf("clock: unknown preset %q", defaultPreset)
	}

	month := 0
	if snap, err := s.GetLatestSnapshot(); err == nil {
		month = snap.NetworkMonth
	} else if !errors.Is(err, domain.ErrStoreNotFound) {
		return nil, fmt.Errorf("clock: loading latest snapshot: %w", err)
	}

	return &Clock{
		store:           s,
		bus:             bus,
		log:             log.With().Str("component", "clock").Logger(),
		currentMonth:    month,
		mode:            ModePaused,
		preset:          defaultPreset,
		intervalSeconds: p.IntervalSeconds,
		warningSeconds:  p.WarningSeconds,
		lastTickTime:    time.Now(),
	}, nil
}

// SetRunner wires the Tick Pipeline. Done as a separate step from New so
// the pipeline (which depends on the store, market, NPC engine, etc.) can
// be constructed after the clock without a cyclic dependency.
func (c *Clock) SetRunner(r TickRunner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runner = r
}

// GetState returns a point-in-time copy of the clock's state.
func (c *Clock) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		CurrentMonth:     c.currentMonth,
		Mode:             c.mode,
		Preset:           c.preset,
		IntervalSeconds:  c.intervalSeconds,
		WarningSeconds:   c.warningSeconds,
		LastTickTime:     c.lastTickTime,
		IsProcessing:     c.isProcessing.Load(),
		SecondsUntilTick: c.secondsUntilTickLocked(),
	}
}

// secondsUntilTickLocked requires c.mu held.
func (c *Clock) secondsUntilTickLocked() int {
	elapsed := int(time.Since(c.lastTickTime).Seconds())
	remaining := c.intervalSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Start begins the background tick loop (idempotent) and sets the mode to
// auto.
func (c *Clock) Start() {
	c.loopMu.Lock()
	if c.running {
		c.loopMu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.loopMu.Unlock()

	c.mu.Lock()
	c.mode = ModeAuto
	c.lastTickTime = time.Now()
	c.warnedThisCycle = false
	month := c.currentMonth
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop()

	c.publish(events.ClockStarted, &events.ClockLifecycleData{CurrentMonth: month, Mode: string(ModeAuto)})
	c.log.Info().Msg("clock started")
}

// Stop halts the background loop and waits for it to exit.
func (c *Clock) Stop() {
	c.loopMu.Lock()
	if !c.running {
		c.loopMu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.loopMu.Unlock()

	c.wg.Wait()

	c.publish(events.ClockStopped, &events.ClockLifecycleData{CurrentMonth: c.monthSnapshot(), Mode: string(c.modeSnapshot())})
	c.log.Info().Msg("clock stopped")
}

// Pause sets the mode to paused; the loop keeps running (so clock_sync
// heartbeats continue) but the countdown no longer fires ticks.
func (c *Clock) Pause() {
	c.mu.Lock()
	c.mode = ModePaused
	month := c.currentMonth
	c.mu.Unlock()
	c.publish(events.ClockPaused, &events.ClockLifecycleData{CurrentMonth: month, Mode: string(ModePaused)})
}

// Resume returns the mode to auto and restarts the countdown from now.
func (c *Clock) Resume() {
	c.mu.Lock()
	c.mode = ModeAuto
	c.lastTickTime = time.Now()
	c.warnedThisCycle = false
	month := c.currentMonth
	c.mu.Unlock()
	c.publish(events.ClockResumed, &events.ClockLifecycleData{CurrentMonth: month, Mode: string(ModeAuto)})
}

// SetMode changes the mode directly (used by manual-stepping clients that
// never want the auto countdown to fire at all).
func (c *Clock) SetMode(mode Mode) error {
	switch mode {
	case ModeAuto, ModeManual, ModePaused:
	default:
		return fmt.Errorf("clock: unknown mode %q", mode)
	}
	c.mu.Lock()
	c.mode = mode
	if mode == ModeAuto {
		c.lastTickTime = time.Now()
		c.warnedThisCycle = false
	}
	c.mu.Unlock()
	c.publish(events.ModeChanged, &events.ModeChangedData{Mode: string(mode)})
	return nil
}

// SetPreset switches to a named preset, resetting the countdown.
func (c *Clock) SetPreset(name string) error {
	p, ok := Presets[name]
	if !ok {
		return fmt.Errorf("clock: unknown preset %q", name)
	}
	c.mu.Lock()
	c.preset = name
	c.intervalSeconds = p.IntervalSeconds
	c.warningSeconds = p.WarningSeconds
	c.lastTickTime = time.Now()
	c.warnedThisCycle = false
	c.mu.Unlock()
	c.publish(events.ConfigChanged, &events.ConfigChangedData{Preset: name, IntervalSeconds: p.IntervalSeconds})
	return nil
}

// SetInterval sets a custom interval and resets the countdown. Values
// outside [10, 86400] seconds are rejected with an error and leave the
// clock unchanged. The preset label becomes "custom".
func (c *Clock) SetInterval(seconds int) error {
	if seconds < minIntervalSeconds || seconds > maxIntervalSeconds {
		return fmt.Errorf("clock: interval_seconds must be in [%d, %d], got %d", minIntervalSeconds, maxIntervalSeconds, seconds)
	}
	c.mu.Lock()
	c.preset = "custom"
	c.intervalSeconds = seconds
	c.lastTickTime = time.Now()
	c.warnedThisCycle = false
	c.mu.Unlock()
	c.publish(events.ConfigChanged, &events.ConfigChangedData{IntervalSeconds: seconds})
	return nil
}

// ForceTick bypasses the countdown and fires immediately, still subject
// to the is_processing guard.
func (c *Clock) ForceTick(ctx context.Context) {
	c.fire(ctx)
}

// Subscribe registers a new mailbox on the bus.
func (c *Clock) Subscribe(types ...events.EventType) *events.Subscription {
	return c.bus.Subscribe(types...)
}

// Unsubscribe releases a mailbox.
func (c *Clock) Unsubscribe(sub *events.Subscription) {
	c.bus.Unsubscribe(sub)
}

// QueueAction persists a new pending action.
func (c *Clock) QueueAction(action *domain.PendingAction) error {
	return c.store.WithCoreTx(func(tx *sql.Tx) error { return c.store.QueueAction(tx, action) })
}

// RemoveAction deletes one not-yet-processed action from the queue.
func (c *Clock) RemoveAction(id string) error {
	return c.store.WithCoreTx(func(tx *sql.Tx) error { return c.store.RemoveAction(tx, id) })
}

// ClearActions deletes every pending action queued for the clock's
// current month.
func (c *Clock) ClearActions() error {
	month := c.monthSnapshot()
	return c.store.WithCoreTx(func(tx *sql.Tx) error { return c.store.ClearActions(tx, month) })
}

// loop is the single long-running cooperative tick task described in the
// spec: it wakes roughly every second, publishes a periodic clock_sync
// heartbeat, and in auto mode tracks the countdown to the next tick.
func (c *Clock) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(loopResolution)
	defer ticker.Stop()
	lastSync := time.Time{}

	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			if now.Sub(lastSync) >= syncPeriod {
				lastSync = now
				c.publishSync()
			}

			c.mu.Lock()
			mode := c.mode
			remaining := c.secondsUntilTickLocked()
			warningSeconds := c.warningSeconds
			alreadyWarned := c.warnedThisCycle
			nextMonth := c.currentMonth + 1
			if mode == ModeAuto && !alreadyWarned && remaining <= warningSeconds {
				c.warnedThisCycle = true
			}
			shouldWarn := mode == ModeAuto && !alreadyWarned && remaining <= warningSeconds
			shouldTick := mode == ModeAuto && remaining == 0
			c.mu.Unlock()

			if shouldWarn {
				c.publish(events.TickWarning, &events.TickWarningData{NextMonth: nextMonth, SecondsUntilTick: remaining})
			}
			if shouldTick {
				c.fire(context.Background())
			}
		}
	}
}

// fire invokes the Tick Pipeline for the next month, guarding against
// overlap with is_processing. A second fire request while a tick is in
// flight is a no-op that logs a warning, exactly as the spec requires.
func (c *Clock) fire(ctx context.Context) {
	if !c.isProcessing.CompareAndSwap(false, true) {
		c.log.Warn().Msg("tick already in progress, ignoring fire request")
		return
	}
	defer c.isProcessing.Store(false)

	c.mu.Lock()
	runner := c.runner
	nextMonth := c.currentMonth + 1
	c.mu.Unlock()

	if runner == nil {
		c.log.Warn().Msg("force_tick/auto-tick fired with no pipeline wired yet")
		return
	}

	_, err := runner.RunTick(ctx, nextMonth)

	c.mu.Lock()
	if err != nil {
		c.consecutiveFails++
		fails := c.consecutiveFails
		c.mu.Unlock()

		c.log.Error().Err(err).Int("month", nextMonth).Int("consecutive_fails", fails).
			Msg("tick pipeline failed; current_month unchanged")
		// processing_failed is published by the pipeline itself (it owns
		// the transaction and knows exactly what failed); current_month
		// and last_tick_time are left untouched so the same month is
		// retried on the next countdown.
		if fails >= criticalFailThreshold {
			c.surfaceCriticalFailure(nextMonth, fails, err)
		}
		return
	}

	c.consecutiveFails = 0
	c.currentMonth = nextMonth
	c.lastTickTime = time.Now()
	c.warnedThisCycle = false
	c.mu.Unlock()
}

// surfaceCriticalFailure persists a critical-severity network event and
// publishes it on the bus once a month has failed criticalFailThreshold
// times in a row, so a repeatedly failing month surfaces loudly instead of
// blending into the routine processing_failed stream.
func (c *Clock) surfaceCriticalFailure(month, consecutiveFails int, cause error) {
	event := &domain.NetworkEvent{
		Month: month, Category: domain.CategoryEconomic, Severity: domain.SeverityCritical,
		Title:       "Tick processing repeatedly failing",
		Description: fmt.Sprintf("Month %d has failed to process %d times in a row: %s", month, consecutiveFails, cause),
		Payload:     map[string]interface{}{"consecutive_fails": consecutiveFails},
	}
	if err := c.store.WithLedgerTx(func(tx *sql.Tx) error { return c.store.CreateEvent(tx, event) }); err != nil {
		c.log.Warn().Err(err).Int("month", month).Msg("could not persist critical-failure event")
	}
	c.publish(events.CriticalFailure, &events.CriticalFailureData{Month: month, ConsecutiveFails: consecutiveFails, Error: cause.Error()})
}

func (c *Clock) publishSync() {
	c.mu.Lock()
	data := &events.ClockSyncData{
		CurrentMonth:     c.currentMonth,
		Mode:             string(c.mode),
		Preset:           c.preset,
		IntervalSeconds:  c.intervalSeconds,
		WarningSeconds:   c.warningSeconds,
		SecondsUntilTick: c.secondsUntilTickLocked(),
		IsProcessing:     c.isProcessing.Load(),
	}
	c.mu.Unlock()
	c.publish(events.ClockSync, data)
}

func (c *Clock) monthSnapshot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentMonth
}

func (c *Clock) modeSnapshot() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Clock) publish(t events.EventType, data events.EventData) {
	c.bus.Publish(&events.Event{Type: t, Timestamp: time.Now(), Data: data})
}
