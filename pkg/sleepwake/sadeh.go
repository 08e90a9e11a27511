package sleepwake

import (
	"math"
	"time"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// SadehID identifies the Sadeh classifier.
const SadehID = "sadeh_1994_actilife"

// Sadeh implements the Sadeh (1994) algorithm with ActiLife's count cap and threshold.
//
// For each epoch: AVG is the mean of the 11-epoch centered window, NATS the
// number of window epochs with 50 <= count < 100, SD the sample standard
// deviation of the current and five preceding epochs, and LG is ln(count+1).
// Epochs outside the recording count as zero.
type Sadeh struct {
	column    string
	threshold float64
	countCap  float64
}

// NewSadeh builds a Sadeh classifier. Params: column, threshold, count_cap.
func NewSadeh(p algorithm.Params) (Classifier, error) {
	column, err := p.String("column", epoch.ColumnAxis1)
	if err != nil {
		return nil, err
	}
	threshold, err := p.Float("threshold", -4)
	if err != nil {
		return nil, err
	}
	countCap, err := p.Float("count_cap", 300)
	if err != nil {
		return nil, err
	}
	return &Sadeh{column: column, threshold: threshold, countCap: countCap}, nil
}

func (*Sadeh) ID() string                 { return SadehID }
func (*Sadeh) DisplayName() string        { return "Sadeh (1994, ActiLife)" }
func (*Sadeh) EpochLength() time.Duration { return time.Minute }
func (*Sadeh) RequiresRawData() bool      { return false }

// Params returns the effective configuration.
func (s *Sadeh) Params() algorithm.Params {
	return algorithm.Params{"column": s.column, "threshold": s.threshold, "count_cap": s.countCap}
}

// Score scores the configured column of t.
func (s *Sadeh) Score(t *epoch.Table) ([]int, error) {
	return scoreTable(s, s.column, t)
}

// ScoreArray scores activity counts aligned with timestamps.
func (s *Sadeh) ScoreArray(activity, timestamps []float64) ([]int, error) {
	if err := epoch.CheckAligned("activity", len(timestamps), len(activity)); err != nil {
		return nil, err
	}
	x := make([]float64, len(activity))
	for i, v := range activity {
		x[i] = math.Min(v, s.countCap)
	}

	labels := make([]int, len(x))
	for i := range x {
		var sum float64
		nats := 0
		for j := i - 5; j <= i+5; j++ {
			v := padded(x, j)
			sum += v
			if v >= 50 && v < 100 {
				nats++
			}
		}
		avg := sum / 11

		var mean float64
		for j := i - 5; j <= i; j++ {
			mean += padded(x, j)
		}
		mean /= 6
		var ss float64
		for j := i - 5; j <= i; j++ {
			d := padded(x, j) - mean
			ss += d * d
		}
		sd := math.Sqrt(ss / 5)

		lg := math.Log(x[i] + 1)
		ps := 7.601 - 0.065*avg - 1.08*float64(nats) - 0.056*sd - 0.703*lg
		if ps > s.threshold {
			labels[i] = Sleep
		}
	}
	return labels, nil
}
