package nonwear

import (
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// VanHeesID identifies the van Hees detector.
const VanHeesID = "van_hees_2013"

// VanHees implements the van Hees (2013) raw-acceleration rule. A window is
// nonwear when at least MinAxes axes have a standard deviation below the SD
// threshold and a value range below the range threshold. Windows slide by
// Step; flagged windows are merged into periods.
type VanHees struct {
	windowMin      float64
	stepMin        float64
	sdThreshold    float64
	rangeThreshold float64
	minAxes        int
}

// NewVanHees builds a van Hees detector. Params: window_min, step_min,
// sd_threshold_g, range_threshold_g, min_axes.
func NewVanHees(p algorithm.Params) (Detector, error) {
	v := &VanHees{}
	var err error
	if v.windowMin, err = p.Float("window_min", 60); err != nil {
		return nil, err
	}
	if v.stepMin, err = p.Float("step_min", 15); err != nil {
		return nil, err
	}
	if v.sdThreshold, err = p.Float("sd_threshold_g", 0.013); err != nil {
		return nil, err
	}
	if v.rangeThreshold, err = p.Float("range_threshold_g", 0.050); err != nil {
		return nil, err
	}
	if v.minAxes, err = p.Int("min_axes", 2); err != nil {
		return nil, err
	}
	if v.windowMin <= 0 || v.stepMin <= 0 {
		return nil, fmt.Errorf("%w: window_min and step_min must be positive", algorithm.ErrBadParam)
	}
	return v, nil
}

func (*VanHees) ID() string            { return VanHeesID }
func (*VanHees) DisplayName() string   { return "van Hees (2013)" }
func (*VanHees) RequiresRawData() bool { return true }

// Params returns the effective configuration.
func (v *VanHees) Params() algorithm.Params {
	return algorithm.Params{
		"window_min":        v.windowMin,
		"step_min":          v.stepMin,
		"sd_threshold_g":    v.sdThreshold,
		"range_threshold_g": v.rangeThreshold,
		"min_axes":          v.minAxes,
	}
}

// Detect runs on a raw table (see epoch.RawTable); the column argument is ignored.
func (v *VanHees) Detect(t *epoch.Table, _ string) ([]Period, error) {
	if t.EpochSeconds <= 0 {
		return nil, fmt.Errorf("%s: sample spacing unknown", VanHeesID)
	}
	axes := make([][]float64, 0, 3)
	for _, name := range []string{epoch.ColumnX, epoch.ColumnY, epoch.ColumnZ} {
		col, err := t.Column(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", VanHeesID, errNoRawColumns, err)
		}
		axes = append(axes, col)
	}
	freq := 1 / t.EpochSeconds
	win := int(math.Round(v.windowMin * 60 * freq))
	step := max(int(math.Round(v.stepMin*60*freq)), 1)
	n := t.Len()

	var periods []Period
	for s := 0; s+win <= n; s += step {
		still := 0
		for _, a := range axes {
			sd, rng := spread(a[s : s+win])
			if sd < v.sdThreshold && rng < v.rangeThreshold {
				still++
			}
		}
		if still < v.minAxes {
			continue
		}
		lo, hi := s, s+win-1
		if k := len(periods) - 1; k >= 0 && lo <= periods[k].EndIndex+1 {
			periods[k] = periodFromIndices(t.Timestamps, periods[k].StartIndex, hi, t.EpochSeconds)
			continue
		}
		periods = append(periods, periodFromIndices(t.Timestamps, lo, hi, t.EpochSeconds))
	}
	return periods, nil
}

// spread returns the sample standard deviation and the range of x.
func spread(x []float64) (sd, rng float64) {
	if len(x) < 2 {
		return 0, 0
	}
	lo, hi := x[0], x[0]
	var mean float64
	for _, v := range x {
		mean += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean /= float64(len(x))
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)-1)), hi - lo
}
