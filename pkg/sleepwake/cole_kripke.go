package sleepwake

import (
	"math"
	"time"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// ColeKripkeID identifies the Cole-Kripke classifier.
const ColeKripkeID = "cole_kripke_1992_actilife"

// coleKripkeWeights covers epochs i-4 .. i+2.
var coleKripkeWeights = [7]float64{106, 54, 58, 76, 230, 74, 67}

// ColeKripke implements the Cole-Kripke (1992) one-minute model with ActiLife
// count scaling (counts / 100, capped at 300). An epoch is sleep when the
// weighted sum times 0.001 falls below the threshold.
type ColeKripke struct {
	column    string
	scale     float64
	countCap  float64
	threshold float64
}

// NewColeKripke builds a Cole-Kripke classifier. Params: column, scale, count_cap, threshold.
func NewColeKripke(p algorithm.Params) (Classifier, error) {
	c := &ColeKripke{}
	var err error
	if c.column, err = p.String("column", epoch.ColumnAxis1); err != nil {
		return nil, err
	}
	if c.scale, err = p.Float("scale", 100); err != nil {
		return nil, err
	}
	if c.countCap, err = p.Float("count_cap", 300); err != nil {
		return nil, err
	}
	if c.threshold, err = p.Float("threshold", 1); err != nil {
		return nil, err
	}
	if c.scale <= 0 {
		return nil, algorithm.ErrBadParam
	}
	return c, nil
}

func (*ColeKripke) ID() string                 { return ColeKripkeID }
func (*ColeKripke) DisplayName() string        { return "Cole-Kripke (1992, ActiLife)" }
func (*ColeKripke) EpochLength() time.Duration { return time.Minute }
func (*ColeKripke) RequiresRawData() bool      { return false }

// Params returns the effective configuration.
func (c *ColeKripke) Params() algorithm.Params {
	return algorithm.Params{"column": c.column, "scale": c.scale, "count_cap": c.countCap, "threshold": c.threshold}
}

// Score scores the configured column of t.
func (c *ColeKripke) Score(t *epoch.Table) ([]int, error) {
	return scoreTable(c, c.column, t)
}

// ScoreArray scores activity counts aligned with timestamps.
func (c *ColeKripke) ScoreArray(activity, timestamps []float64) ([]int, error) {
	if err := epoch.CheckAligned("activity", len(timestamps), len(activity)); err != nil {
		return nil, err
	}
	x := make([]float64, len(activity))
	for i, v := range activity {
		x[i] = math.Min(v/c.scale, c.countCap)
	}
	labels := make([]int, len(x))
	for i := range x {
		var d float64
		for k, w := range coleKripkeWeights {
			d += w * padded(x, i-4+k)
		}
		if 0.001*d < c.threshold {
			labels[i] = Sleep
		}
	}
	return labels, nil
}
