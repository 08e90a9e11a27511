package nonwear

import (
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// ChoiID identifies the Choi detector.
const ChoiID = "choi_2011"

// Choi implements Choi et al. (2011): nonwear is a run of zero-count epochs of
// at least MinPeriod minutes. A nonzero burst of up to SpikeTolerance minutes
// does not break the run when the Window minutes on either side of it are zero.
type Choi struct {
	column          string
	minPeriodMin    float64
	spikeToleranceM float64
	windowMin       float64
	threshold       float64
}

// NewChoi builds a Choi detector. Params: column, min_period_min,
// spike_tolerance_min, window_min, activity_threshold.
func NewChoi(p algorithm.Params) (Detector, error) {
	c := &Choi{}
	var err error
	if c.column, err = p.String("column", epoch.ColumnVectorMagnitude); err != nil {
		return nil, err
	}
	if c.minPeriodMin, err = p.Float("min_period_min", 90); err != nil {
		return nil, err
	}
	if c.spikeToleranceM, err = p.Float("spike_tolerance_min", 2); err != nil {
		return nil, err
	}
	if c.windowMin, err = p.Float("window_min", 30); err != nil {
		return nil, err
	}
	if c.threshold, err = p.Float("activity_threshold", 0); err != nil {
		return nil, err
	}
	if c.minPeriodMin <= 0 {
		return nil, fmt.Errorf("%w: min_period_min must be positive", algorithm.ErrBadParam)
	}
	return c, nil
}

func (*Choi) ID() string            { return ChoiID }
func (*Choi) DisplayName() string   { return "Choi (2011)" }
func (*Choi) RequiresRawData() bool { return false }

// Params returns the effective configuration.
func (c *Choi) Params() algorithm.Params {
	return algorithm.Params{
		"column":              c.column,
		"min_period_min":      c.minPeriodMin,
		"spike_tolerance_min": c.spikeToleranceM,
		"window_min":          c.windowMin,
		"activity_threshold":  c.threshold,
	}
}

// Detect scans column for qualifying zero runs.
func (c *Choi) Detect(t *epoch.Table, column string) ([]Period, error) {
	if column == "" {
		column = c.column
		// Count exports without a vector magnitude still carry the vertical axis.
		if !t.Has(column) && t.Has(epoch.ColumnAxis1) {
			column = epoch.ColumnAxis1
		}
	}
	x, err := t.Column(column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ChoiID, err)
	}
	epochSec := t.EpochSeconds
	if epochSec <= 0 {
		epochSec = 60
	}
	perMin := 60 / epochSec
	minLen := int(math.Ceil(c.minPeriodMin * perMin))
	spikeTol := int(math.Round(c.spikeToleranceM * perMin))
	win := int(math.Round(c.windowMin * perMin))

	n := len(x)
	zero := make([]bool, n)
	for i, v := range x {
		zero[i] = v <= c.threshold
	}
	allZero := func(lo, hi int) bool {
		if lo < 0 || hi > n {
			return false
		}
		for i := lo; i < hi; i++ {
			if !zero[i] {
				return false
			}
		}
		return true
	}

	var periods []Period
	for i := 0; i < n; {
		if !zero[i] {
			i++
			continue
		}
		start, end := i, i
		for j := i + 1; j < n; {
			if zero[j] {
				end = j
				j++
				continue
			}
			k := j
			for k < n && !zero[k] {
				k++
			}
			if k-j > spikeTol || !allZero(j-win, j) || !allZero(k, k+win) {
				break
			}
			j = k
		}
		if end-start+1 >= minLen {
			periods = append(periods, periodFromIndices(t.Timestamps, start, end, t.EpochSeconds))
		}
		i = end + 1
	}
	return periods, nil
}
