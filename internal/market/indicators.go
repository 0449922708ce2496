package market

import "gonum.org/v1/gonum/stat"

// indicatorWindow bounds how many monthly appreciation draws RollingIndicators
// retains; older draws are dropped once the window fills.
const indicatorWindow = 24

// RollingIndicators tracks a trailing window of monthly appreciation draws
// and surfaces their mean/stddev, used to report a smoothed trend on the
// economy endpoint rather than the single most recent (noisy) draw.
type RollingIndicators struct {
	draws []float64
}

// Record appends a new appreciation draw, dropping the oldest once the
// window is full.
func (r *RollingIndicators) Record(rate float64) {
	r.draws = append(r.draws, rate)
	if len(r.draws) > indicatorWindow {
		r.draws = r.draws[len(r.draws)-indicatorWindow:]
	}
}

// Mean returns the trailing-window mean appreciation rate, or 0 if no
// draws have been recorded yet.
func (r *RollingIndicators) Mean() float64 {
	if len(r.draws) == 0 {
		return 0
	}
	return stat.Mean(r.draws, nil)
}

// StdDev returns the trailing-window standard deviation, or 0 with fewer
// than two draws.
func (r *RollingIndicators) StdDev() float64 {
	if len(r.draws) < 2 {
		return 0
	}
	return stat.StdDev(r.draws, nil)
}

// Count reports how many draws are currently in the window.
func (r *RollingIndicators) Count() int {
	return len(r.draws)
}
