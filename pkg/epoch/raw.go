package epoch

import (
	"errors"
	"fmt"
	"math"
)

// ErrEpochTooShort is returned when an epoch would hold fewer than one sample.
var ErrEpochTooShort = errors.New("epoch shorter than one sample")

// RawTable wraps uniformly sampled tri-axial data as a Table with x, y and z
// columns. EpochSeconds is the sample spacing.
func RawTable(samples []Sample, timestamps []float64, sampleFreq float64) (*Table, error) {
	if err := CheckAligned("samples", len(timestamps), len(samples)); err != nil {
		return nil, err
	}
	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	z := make([]float64, len(samples))
	for i, s := range samples {
		x[i], y[i], z[i] = s.X, s.Y, s.Z
	}
	t := NewTable(timestamps, 1/sampleFreq)
	t.Columns[ColumnX] = x
	t.Columns[ColumnY] = y
	t.Columns[ColumnZ] = z
	return t, nil
}

// FromRaw aggregates a uniform raw grid into fixed-length epochs.
//
// Each epoch carries ENMO (mean of max(|v|-1, 0), in milli-g) and the mean of
// each axis. A trailing partial epoch is dropped.
func FromRaw(samples []Sample, timestamps []float64, sampleFreq, epochSeconds float64) (*Table, error) {
	if err := CheckAligned("samples", len(timestamps), len(samples)); err != nil {
		return nil, err
	}
	per := int(math.Round(epochSeconds * sampleFreq))
	if per < 1 {
		return nil, fmt.Errorf("%w: %.3fs at %.1fHz", ErrEpochTooShort, epochSeconds, sampleFreq)
	}
	n := len(samples) / per
	ts := make([]float64, n)
	enmo := make([]float64, n)
	mx := make([]float64, n)
	my := make([]float64, n)
	mz := make([]float64, n)
	for e := range n {
		base := e * per
		ts[e] = timestamps[base]
		var sumENMO, sx, sy, sz float64
		for _, s := range samples[base : base+per] {
			sumENMO += math.Max(s.Magnitude()-1, 0)
			sx += s.X
			sy += s.Y
			sz += s.Z
		}
		k := float64(per)
		enmo[e] = sumENMO / k * 1000
		mx[e], my[e], mz[e] = sx/k, sy/k, sz/k
	}
	t := NewTable(ts, epochSeconds)
	t.Columns[ColumnENMO] = enmo
	t.Columns[ColumnX] = mx
	t.Columns[ColumnY] = my
	t.Columns[ColumnZ] = mz
	return t, nil
}
