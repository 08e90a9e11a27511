package nonwear

import "github.com/codeGROOVE-dev/actiscore/pkg/epoch"

// Mask marks every index covered by a period. Periods must index the same grid.
func Mask(periods []Period, n int) []bool {
	mask := make([]bool, n)
	for _, p := range periods {
		for i := max(p.StartIndex, 0); i <= p.EndIndex && i < n; i++ {
			mask[i] = true
		}
	}
	return mask
}

// MaskFromPeriods marks every timestamp t with StartTime <= t < EndTime.
// It projects periods found on one grid (raw samples, a sensor log) onto another.
func MaskFromPeriods(periods []Period, timestamps []float64) []bool {
	mask := make([]bool, len(timestamps))
	for _, p := range periods {
		lo, hi, ok := epoch.IndexRange(timestamps, p.StartTime, p.EndTime)
		if !ok {
			continue
		}
		if timestamps[hi] >= p.EndTime {
			hi--
		}
		for i := lo; i <= hi; i++ {
			mask[i] = true
		}
	}
	return mask
}

// PeriodsFromMask converts a boolean mask back into maximal runs on a grid
// spaced step seconds apart.
func PeriodsFromMask(mask []bool, timestamps []float64, step float64) []Period {
	var out []Period
	for i := 0; i < len(mask); {
		if !mask[i] {
			i++
			continue
		}
		j := i
		for j+1 < len(mask) && mask[j+1] {
			j++
		}
		out = append(out, periodFromIndices(timestamps, i, j, step))
		i = j + 1
	}
	return out
}

// CombineOptions selects how algorithm and sensor masks merge.
type CombineOptions struct {
	// PreferSensor picks the sensor mask whenever any sensor nonwear exists,
	// otherwise the algorithm mask. When false the preference is reversed.
	PreferSensor bool
	// Union ORs both masks and overrides the preference.
	Union bool
}

// Combine merges an algorithm-derived and a sensor-derived mask. Either may be
// nil when not available; the result is nil only when both are nil.
func Combine(algorithmMask, sensorMask []bool, opts CombineOptions) []bool {
	switch {
	case algorithmMask == nil && sensorMask == nil:
		return nil
	case algorithmMask == nil:
		return sensorMask
	case sensorMask == nil:
		return algorithmMask
	}
	if opts.Union {
		n := max(len(algorithmMask), len(sensorMask))
		out := make([]bool, n)
		for i := range out {
			out[i] = (i < len(algorithmMask) && algorithmMask[i]) || (i < len(sensorMask) && sensorMask[i])
		}
		return out
	}
	preferred, fallback := algorithmMask, sensorMask
	if opts.PreferSensor {
		preferred, fallback = sensorMask, algorithmMask
	}
	if anySet(preferred) {
		return preferred
	}
	return fallback
}

func anySet(mask []bool) bool {
	for _, v := range mask {
		if v {
			return true
		}
	}
	return false
}
