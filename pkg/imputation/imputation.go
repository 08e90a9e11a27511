// Package imputation repairs missing time and degenerate samples in a
// recording before any scoring happens.
//
// Gaps are filled by row replication: the sample before a gap is repeated so
// that every fixed-length epoch downstream sees exactly the expected number of
// samples. Interpolating or inserting synthetic rows would shift epoch
// boundaries relative to the reference scorer.
package imputation

import (
	"errors"
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/actiscore/pkg/constants"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

var (
	// ErrShape is returned when data and timestamp lengths disagree.
	ErrShape = errors.New("input shape mismatch")
	// ErrFrequency is returned for a non-positive sample frequency.
	ErrFrequency = errors.New("sample frequency must be positive")
)

// QC log keys.
const (
	QCZerosLeading  = "n_zeros_leading"
	QCZerosTrailing = "n_zeros_trailing"
	QCZerosRemoved  = "n_zeros_removed"
	QCGaps          = "n_gaps"
	QCGapsCapped    = "n_gaps_capped"
	QCTotalGapSec   = "total_gap_sec"
	QCSamplesAdded  = "n_samples_added"
	QCNormalized    = "n_normalized"
)

// Config controls gap detection.
type Config struct {
	// GapThresholdSec is the smallest inter-sample delta treated as a gap.
	// It is floored to two sample periods.
	GapThresholdSec float64 `yaml:"gap_threshold_sec"`
	// MaxGapMin caps how much of a single gap is filled.
	MaxGapMin float64 `yaml:"max_gap_min"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{GapThresholdSec: 0.25, MaxGapMin: 90}
}

// Result is the outcome of one imputation call. It is not modified after return.
type Result[T any] struct {
	QC            map[string]float64
	Data          []T
	Timestamps    []float64
	GapCounts     []int // replication count per detected gap, in order
	NGaps         int
	NSamplesAdded int
	TotalGapSec   float64
}

const gridEpsilon = 1e-9

// threshold returns the effective gap threshold in seconds.
func (c Config) threshold(freq float64) float64 {
	return math.Max(c.GapThresholdSec, 2/freq)
}

// maxRows returns the replication cap for one gap.
func (c Config) maxRows(freq float64) int {
	if c.MaxGapMin <= 0 {
		return math.MaxInt
	}
	return max(int(c.MaxGapMin*60*freq), 1)
}

// plan holds per-row replication counts and gap statistics.
type plan struct {
	repeat   []int
	gapCount []int
	gapAt    []int
	totalSec float64
	capped   int
}

func (p *plan) added() int {
	n := 0
	for _, c := range p.gapCount {
		n += c - 1
	}
	return n
}

func makePlan(timestamps []float64, freq float64, cfg Config) plan {
	k := cfg.threshold(freq)
	limit := cfg.maxRows(freq)
	p := plan{repeat: make([]int, len(timestamps))}
	for i := range p.repeat {
		p.repeat[i] = 1
	}
	for i := 0; i+1 < len(timestamps); i++ {
		delta := timestamps[i+1] - timestamps[i]
		// Grid timestamps accumulate rounding error; a delta of exactly two
		// sample periods must still register as a gap.
		if delta+gridEpsilon < k {
			continue
		}
		n := int(math.Round(delta * freq))
		if n > limit {
			n = limit
			p.capped++
		}
		p.repeat[i] = n
		p.gapAt = append(p.gapAt, i)
		p.gapCount = append(p.gapCount, n)
		p.totalSec += delta
	}
	return p
}

func replicate[T any](data []T, repeat []int, total int) []T {
	out := make([]T, 0, total)
	for i, v := range data {
		for range repeat[i] {
			out = append(out, v)
		}
	}
	return out
}

// Impute repairs a raw tri-axial recording sampled at sampleFreq Hz.
//
// Zero vectors at the start become a resting (0, 0, 1g) vector, zero vectors at
// the end repeat the last valid sample, and interior zero vectors are dropped
// so that they become time gaps. Each gap is then filled by repeating the
// sample before it, after rescaling that sample to unit magnitude when it
// deviates from 1g by more than the gravity tolerance. Output timestamps are
// rebuilt on a uniform grid from the first input timestamp.
func Impute(samples []epoch.Sample, timestamps []float64, sampleFreq float64, cfg Config) (*Result[epoch.Sample], error) {
	if len(samples) != len(timestamps) {
		return nil, fmt.Errorf("%w: %d samples, %d timestamps", ErrShape, len(samples), len(timestamps))
	}
	if sampleFreq <= 0 {
		return nil, ErrFrequency
	}

	qc := map[string]float64{}
	data, ts, lead, trail, removed := fixZeros(samples, timestamps)
	qc[QCZerosLeading] = float64(lead)
	qc[QCZerosTrailing] = float64(trail)
	qc[QCZerosRemoved] = float64(removed)

	p := makePlan(ts, sampleFreq, cfg)
	qc[QCGaps] = float64(len(p.gapAt))
	qc[QCGapsCapped] = float64(p.capped)
	qc[QCTotalGapSec] = p.totalSec
	if len(p.gapAt) == 0 {
		qc[QCSamplesAdded] = 0
		qc[QCNormalized] = 0
		// A dropped interior zero shorter than the gap threshold still leaves
		// a hole in ts; close it by re-gridding.
		if removed > 0 {
			ts = epoch.UniformGrid(ts[0], len(data), sampleFreq)
		}
		return &Result[epoch.Sample]{QC: qc, Data: data, Timestamps: ts}, nil
	}

	// Boundary samples are rescaled on a private copy; data may alias the input.
	bounded := make([]epoch.Sample, len(data))
	copy(bounded, data)
	normalized := 0
	for _, i := range p.gapAt {
		m := bounded[i].Magnitude()
		if m > 0 && math.Abs(m-1) > constants.GravityTolerance {
			bounded[i] = epoch.Sample{X: bounded[i].X / m, Y: bounded[i].Y / m, Z: bounded[i].Z / m}
			normalized++
		}
	}

	added := p.added()
	out := replicate(bounded, p.repeat, len(bounded)+added)
	qc[QCSamplesAdded] = float64(added)
	qc[QCNormalized] = float64(normalized)
	return &Result[epoch.Sample]{
		QC:            qc,
		Data:          out,
		Timestamps:    epoch.UniformGrid(ts[0], len(out), sampleFreq),
		GapCounts:     p.gapCount,
		NGaps:         len(p.gapAt),
		NSamplesAdded: added,
		TotalGapSec:   p.totalSec,
	}, nil
}

// ImputeCounts fills time gaps in an activity-count epoch series using the
// same replication rule as Impute. Zero counts are valid observations here and
// are left alone.
func ImputeCounts(values, timestamps []float64, epochSeconds float64, cfg Config) (*Result[float64], error) {
	if len(values) != len(timestamps) {
		return nil, fmt.Errorf("%w: %d values, %d timestamps", ErrShape, len(values), len(timestamps))
	}
	if epochSeconds <= 0 {
		return nil, ErrFrequency
	}
	freq := 1 / epochSeconds
	p := makePlan(timestamps, freq, cfg)
	qc := map[string]float64{
		QCGaps:        float64(len(p.gapAt)),
		QCGapsCapped:  float64(p.capped),
		QCTotalGapSec: p.totalSec,
	}
	if len(p.gapAt) == 0 {
		qc[QCSamplesAdded] = 0
		return &Result[float64]{QC: qc, Data: values, Timestamps: timestamps}, nil
	}
	added := p.added()
	out := replicate(values, p.repeat, len(values)+added)
	qc[QCSamplesAdded] = float64(added)
	return &Result[float64]{
		QC:            qc,
		Data:          out,
		Timestamps:    epochGrid(timestamps[0], len(out), epochSeconds),
		GapCounts:     p.gapCount,
		NGaps:         len(p.gapAt),
		NSamplesAdded: added,
		TotalGapSec:   p.totalSec,
	}, nil
}

// epochGrid multiplies rather than divides so whole-second epochs stay exact.
func epochGrid(start float64, n int, epochSeconds float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*epochSeconds
	}
	return out
}

// fixZeros applies the zero-vector rules. When there are no zero vectors the
// input slices are returned as-is.
func fixZeros(samples []epoch.Sample, timestamps []float64) (data []epoch.Sample, ts []float64, lead, trail, removed int) {
	n := len(samples)
	for lead < n && samples[lead].IsZero() {
		lead++
	}
	if lead == n {
		if n == 0 {
			return samples, timestamps, 0, 0, 0
		}
		// Entirely zero: everything is a leading run.
		out := make([]epoch.Sample, n)
		for i := range out {
			out[i] = epoch.Sample{Z: 1}
		}
		return out, timestamps, lead, 0, 0
	}
	last := n - 1
	for samples[last].IsZero() {
		last--
	}
	trail = n - 1 - last

	interior := 0
	for i := lead; i <= last; i++ {
		if samples[i].IsZero() {
			interior++
		}
	}
	if lead == 0 && trail == 0 && interior == 0 {
		return samples, timestamps, 0, 0, 0
	}

	data = make([]epoch.Sample, 0, n-interior)
	ts = make([]float64, 0, n-interior)
	for i := range lead {
		data = append(data, epoch.Sample{Z: 1})
		ts = append(ts, timestamps[i])
	}
	for i := lead; i <= last; i++ {
		if samples[i].IsZero() {
			continue
		}
		data = append(data, samples[i])
		ts = append(ts, timestamps[i])
	}
	for i := last + 1; i < n; i++ {
		data = append(data, samples[last])
		ts = append(ts, timestamps[i])
	}
	return data, ts, lead, trail, interior
}
