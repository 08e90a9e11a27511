// Package sleepperiod finds the onset and offset epochs of a sleep period
// inside a search window, given per-epoch sleep/wake labels.
//
// A missing onset or offset is reported as a nil index, never as an error.
// The only error is a label array that does not line up with its timestamps.
package sleepperiod

import (
	"math"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// Detector applies onset/offset rules inside [start, end] (Unix seconds).
type Detector interface {
	ID() string
	DisplayName() string
	Params() algorithm.Params
	ApplyRules(scores []int, start, end float64, timestamps []float64) (onset, offset *int, err error)
}

// Registry holds every built-in detector.
var Registry = algorithm.NewRegistry[Detector]("sleep period detector", Consecutive3x5ID)

func init() {
	Registry.Register(Consecutive3x5ID, "Consecutive 3 min onset / 5 min offset", func(p algorithm.Params) (Detector, error) {
		return NewConsecutive(Consecutive3x5ID, 3, 5, p)
	})
	Registry.Register(Consecutive5x10ID, "Consecutive 5 min onset / 10 min offset", func(p algorithm.Params) (Detector, error) {
		return NewConsecutive(Consecutive5x10ID, 5, 10, p)
	})
	Registry.Register(TudorLockeID, "Tudor-Locke (2014)", NewTudorLocke)
}

// window resolves the search window to an inclusive index range after
// checking alignment. ok is false for an empty or zero-width window.
func window(scores []int, start, end float64, timestamps []float64) (lo, hi int, ok bool, err error) {
	if err := epoch.CheckAligned("sleep scores", len(timestamps), len(scores)); err != nil {
		return 0, 0, false, err
	}
	if !(end > start) {
		return 0, 0, false, nil
	}
	lo, hi, ok = epoch.IndexRange(timestamps, start, end)
	return lo, hi, ok, nil
}

// firstRun returns the start of the first run of n sleep epochs in [lo, hi].
func firstRun(scores []int, lo, hi, n int) (int, bool) {
	run := 0
	for i := lo; i <= hi; i++ {
		if scores[i] != 1 {
			run = 0
			continue
		}
		run++
		if run == n {
			return i - n + 1, true
		}
	}
	return 0, false
}

// lastRunEnd returns the final epoch of the last run of n sleep epochs in [lo, hi].
func lastRunEnd(scores []int, lo, hi, n int) (int, bool) {
	run := 0
	for i := hi; i >= lo; i-- {
		if scores[i] != 1 {
			run = 0
			continue
		}
		run++
		if run == n {
			return i + n - 1, true
		}
	}
	return 0, false
}

// epochsFor converts a rule length in minutes to a number of epochs.
func epochsFor(minutes, epochSeconds float64) int {
	return max(int(math.Ceil(minutes*60/epochSeconds-1e-9)), 1)
}

func ptr(i int) *int { return &i }
