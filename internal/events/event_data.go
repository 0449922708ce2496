// Package events implements the Subscription Bus (C8): per-subscriber
// bounded mailboxes fed by a non-blocking publisher, fanning out clock and
// tick lifecycle events over SSE.
package events

import (
	"encoding/json"
	"time"
)

// EventType is the canonical name of a bus event, matching the SSE event
// names listed in the spec's external interface section verbatim.
type EventType string

const (
	ClockSync        EventType = "clock_sync"
	ClockStarted     EventType = "clock_started"
	ClockStopped     EventType = "clock_stopped"
	ClockPaused      EventType = "clock_paused"
	ClockResumed     EventType = "clock_resumed"
	ConfigChanged    EventType = "config_changed"
	ModeChanged      EventType = "mode_changed"
	TickWarning      EventType = "tick_warning"
	ProcessingStarted EventType = "processing_started"
	MonthCompleted   EventType = "month_completed"
	ProcessingFailed EventType = "processing_failed"
	CriticalFailure  EventType = "critical_failure"
)

// EventData is implemented by every typed event payload so the bus can
// carry heterogeneous payloads behind one interface while still supporting
// type-safe JSON round-tripping.
type EventData interface {
	EventType() EventType
}

// ClockSyncData is the heartbeat payload: the full clock state, letting
// late joiners reconcile without replay.
type ClockSyncData struct {
	CurrentMonth    int    `json:"current_month"`
	Mode            string `json:"mode"`
	Preset          string `json:"preset"`
	IntervalSeconds int    `json:"interval_seconds"`
	WarningSeconds  int    `json:"warning_seconds"`
	SecondsUntilTick int   `json:"seconds_until_tick"`
	IsProcessing    bool   `json:"is_processing"`
}

func (d *ClockSyncData) EventType() EventType { return ClockSync }

// ClockLifecycleData is the shared payload for start/stop/pause/resume;
// the concrete event name is carried on Event.Type, set by the publisher.
type ClockLifecycleData struct {
	CurrentMonth int    `json:"current_month"`
	Mode         string `json:"mode"`
}

func (d *ClockLifecycleData) EventType() EventType { return ClockStarted }

// ConfigChangedData reports a preset/interval/mode change.
type ConfigChangedData struct {
	Preset          string `json:"preset,omitempty"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
	Mode            string `json:"mode,omitempty"`
}

func (d *ConfigChangedData) EventType() EventType { return ConfigChanged }

// ModeChangedData reports the new clock mode.
type ModeChangedData struct {
	Mode string `json:"mode"`
}

func (d *ModeChangedData) EventType() EventType { return ModeChanged }

// TickWarningData is broadcast exactly once per tick, warning_seconds
// before a scheduled tick fires.
type TickWarningData struct {
	NextMonth       int `json:"next_month"`
	SecondsUntilTick int `json:"seconds_until_tick"`
}

func (d *TickWarningData) EventType() EventType { return TickWarning }

// ProcessingStartedData announces the start of a tick pipeline run.
type ProcessingStartedData struct {
	NextMonth    int `json:"next_month"`
	PendingCount int `json:"pending_count"`
}

func (d *ProcessingStartedData) EventType() EventType { return ProcessingStarted }

// MonthCompletedData announces a successfully committed tick.
type MonthCompletedData struct {
	Month       int         `json:"month"`
	NextTickIn  int         `json:"next_tick_in"`
	Result      interface{} `json:"result"`
}

func (d *MonthCompletedData) EventType() EventType { return MonthCompleted }

// ProcessingFailedData announces a rolled-back tick.
type ProcessingFailedData struct {
	Month int    `json:"month"`
	Error string `json:"error"`
}

func (d *ProcessingFailedData) EventType() EventType { return ProcessingFailed }

// CriticalFailureData announces that the same month has now failed to
// process criticalFailThreshold times in a row. The clock keeps retrying
// on its normal cadence; this just surfaces the streak to any connected
// operator so it doesn't go unnoticed behind the routine processing_failed
// events.
type CriticalFailureData struct {
	Month            int    `json:"month"`
	ConsecutiveFails int    `json:"consecutive_fails"`
	Error            string `json:"error"`
}

func (d *CriticalFailureData) EventType() EventType { return CriticalFailure }

// Event is one message traveling through the bus: a type, an emission
// time, and a typed payload.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// MarshalJSON flattens Data into the "data" field, keeping the EventData
// interface out of the wire format.
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{Alias: (*Alias)(e)}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}
	return json.Marshal(aux)
}
