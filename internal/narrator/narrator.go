// Package narrator implements the External LLM Bridge (C9): the only
// place the core speaks to an external AI. It is a pure contract —
// given a month's recent events and market context, return a short
// narrative string within a bounded time — and is explicitly not on any
// critical correctness path: every caller must be able to proceed on
// timeout or error using the deterministic fallback.
package narrator

import (
	"context"
	"fmt"

	"github.com/osf/network-sim/internal/domain"
)

// Request is what a tick hands the bridge to summarize.
type Request struct {
	Month  int
	Events []*domain.NetworkEvent
	Market domain.MarketState
}

// Narrator turns a tick's events and market context into a short
// narrative string.
type Narrator interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// FallbackNarrator is the deterministic, always-available narrator used
// when no external bridge is configured or the external call fails.
type FallbackNarrator struct{}

// Summarize never fails: it counts events at or above "notable" severity
// and returns the spec's literal fallback sentence.
func (FallbackNarrator) Summarize(_ context.Context, req Request) (string, error) {
	notable := 0
	for _, e := range req.Events {
		if e.Severity == domain.SeverityNotable || e.Severity == domain.SeverityCritical {
			notable++
		}
	}
	return fmt.Sprintf("Month %d saw %d notable events in the network.", req.Month, notable), nil
}
