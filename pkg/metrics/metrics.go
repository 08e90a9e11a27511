// Package metrics derives sleep metrics for one resolved sleep period.
//
// Every window in this package starts at the onset index. Whether the offset
// index itself belongs to the window is chosen by the caller through a single
// InclusiveEnd flag, used identically for time in bed, sleep search, movement
// and nonwear overlap.
package metrics

import (
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/actiscore/pkg/constants"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// ErrInvalidWindow is returned when onset/offset do not describe a window inside the series.
var ErrInvalidWindow = errors.New("invalid scoring window")

// Input is everything needed to score one period.
type Input struct {
	Labels     []int
	Activity   []float64
	Timestamps []float64 // optional; checked for alignment when present
	// NonwearAlgorithm and NonwearSensor are per-epoch masks. Nil means not
	// computed, which is reported as null rather than zero.
	NonwearAlgorithm []bool
	NonwearSensor    []bool
	OnsetIndex       int
	OffsetIndex      int
	EpochSeconds     float64 // defaults to 60
	InclusiveEnd     bool
}

// SleepMetrics is the result for one period. Minute fields are in minutes.
type SleepMetrics struct {
	FirstSleepIndex         *int     `json:"first_sleep_index"`
	LastSleepIndex          *int     `json:"last_sleep_index"`
	SleepEfficiency         *float64 `json:"sleep_efficiency"`
	AverageAwakeningLength  *float64 `json:"average_awakening_length"`
	MovementIndex           *float64 `json:"movement_index"`
	FragmentationIndex      *float64 `json:"fragmentation_index"`
	SleepFragmentationIndex *float64 `json:"sleep_fragmentation_index"`
	LabelAtOnset            *int     `json:"sleep_label_at_onset"`
	// LabelAtOffset is the label of the offset epoch itself, nil when the
	// offset lies past the last epoch.
	LabelAtOffset           *int     `json:"sleep_label_at_offset"`
	NonwearAlgorithmMinutes *float64 `json:"nonwear_algorithm_minutes"`
	NonwearSensorMinutes    *float64 `json:"nonwear_sensor_minutes"`
	OnsetIndex              int      `json:"onset_index"`
	OffsetIndex             int      `json:"offset_index"`
	TotalMinutesInBed       float64  `json:"total_minutes_in_bed"`
	TotalSleepTime          float64  `json:"total_sleep_time"`
	WASO                    float64  `json:"waso"`
	Awakenings              int      `json:"awakenings"`
	TotalActivity           float64  `json:"total_activity"`
	MovementMinutes         float64  `json:"movement_minutes"`
	InclusiveEnd            bool     `json:"inclusive_end"`
}

// bounds returns the half-open epoch range [lo, hi) of the window.
func bounds(onset, offset, n int, inclusive bool) (lo, hi int, err error) {
	hi = offset
	if inclusive {
		hi = offset + 1
	}
	if onset < 0 || hi < onset || hi > n {
		return 0, 0, fmt.Errorf("%w: onset %d offset %d inclusive=%v over %d epochs", ErrInvalidWindow, onset, offset, inclusive, n)
	}
	return onset, hi, nil
}

// Compute scores one period.
func Compute(in Input) (*SleepMetrics, error) {
	n := len(in.Labels)
	if err := epoch.CheckAligned("activity", n, len(in.Activity)); err != nil {
		return nil, err
	}
	if in.Timestamps != nil {
		if err := epoch.CheckAligned("sleep labels", len(in.Timestamps), n); err != nil {
			return nil, err
		}
	}
	if in.NonwearAlgorithm != nil {
		if err := epoch.CheckAligned("algorithm nonwear mask", n, len(in.NonwearAlgorithm)); err != nil {
			return nil, err
		}
	}
	if in.NonwearSensor != nil {
		if err := epoch.CheckAligned("sensor nonwear mask", n, len(in.NonwearSensor)); err != nil {
			return nil, err
		}
	}
	lo, hi, err := bounds(in.OnsetIndex, in.OffsetIndex, n, in.InclusiveEnd)
	if err != nil {
		return nil, err
	}
	epochSec := in.EpochSeconds
	if epochSec <= 0 {
		epochSec = constants.DefaultEpochSeconds
	}
	perEpoch := epochSec / 60

	m := &SleepMetrics{
		OnsetIndex:        in.OnsetIndex,
		OffsetIndex:       in.OffsetIndex,
		InclusiveEnd:      in.InclusiveEnd,
		TotalMinutesInBed: float64(hi-lo) * perEpoch,
	}
	if hi > lo {
		m.LabelAtOnset = intPtr(in.Labels[lo])
		// The offset epoch is read even when the window excludes it.
		if in.OffsetIndex < n {
			m.LabelAtOffset = intPtr(in.Labels[in.OffsetIndex])
		}
	}

	first, last := -1, -1
	moving := 0
	for i := lo; i < hi; i++ {
		if in.Labels[i] == 1 {
			if first < 0 {
				first = i
			}
			last = i
		}
		m.TotalActivity += in.Activity[i]
		if in.Activity[i] > 0 {
			moving++
		}
	}
	m.MovementMinutes = float64(moving) * perEpoch

	if first >= 0 {
		m.FirstSleepIndex = intPtr(first)
		m.LastSleepIndex = intPtr(last)
		sleep := 0
		runs, runLen, wakeTotal := 0, 0, 0
		for i := first; i <= last; i++ {
			if in.Labels[i] == 1 {
				sleep++
				if runLen > 0 {
					runs++
					wakeTotal += runLen
					runLen = 0
				}
				continue
			}
			runLen++
		}
		m.TotalSleepTime = float64(sleep) * perEpoch
		m.WASO = float64(last-first+1-sleep) * perEpoch
		m.Awakenings = runs
		if runs > 0 {
			m.AverageAwakeningLength = floatPtr(float64(wakeTotal) / float64(runs) * perEpoch)
		}
		m.FragmentationIndex = floatPtr(float64(runs) / m.TotalSleepTime * 100)
	}

	if m.TotalMinutesInBed > 0 {
		m.SleepEfficiency = floatPtr(m.TotalSleepTime / m.TotalMinutesInBed * 100)
		m.MovementIndex = floatPtr(float64(moving) / m.TotalMinutesInBed)
		m.SleepFragmentationIndex = floatPtr((m.WASO + m.MovementMinutes) / m.TotalMinutesInBed * 100)
	}

	m.NonwearAlgorithmMinutes = overlap(in.NonwearAlgorithm, lo, hi, perEpoch)
	m.NonwearSensorMinutes = overlap(in.NonwearSensor, lo, hi, perEpoch)
	return m, nil
}

// OverlappingNonwearMinutes sums the mask over the window. It returns nil,
// not zero, when no mask is available.
func OverlappingNonwearMinutes(mask []bool, onset, offset int, inclusive bool, epochSeconds float64) (*float64, error) {
	if mask == nil {
		return nil, nil
	}
	lo, hi, err := bounds(onset, offset, len(mask), inclusive)
	if err != nil {
		return nil, err
	}
	if epochSeconds <= 0 {
		epochSeconds = constants.DefaultEpochSeconds
	}
	return overlap(mask, lo, hi, epochSeconds/60), nil
}

func overlap(mask []bool, lo, hi int, perEpoch float64) *float64 {
	if mask == nil {
		return nil
	}
	count := 0
	for i := lo; i < hi; i++ {
		if mask[i] {
			count++
		}
	}
	return floatPtr(float64(count) * perEpoch)
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
