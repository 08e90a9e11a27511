// Package nonwear finds intervals where the device was not being worn.
package nonwear

import (
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// ErrInvalidPeriods is returned by Validate for unsorted, overlapping or empty periods.
var ErrInvalidPeriods = errors.New("invalid nonwear periods")

// errNoRawColumns is wrapped when a raw detector gets an epoch table.
var errNoRawColumns = errors.New("raw x, y and z columns required")

// Period is one nonwear interval. Indices are inclusive and refer to the grid
// the detector ran on. Times are Unix seconds and half-open: EndTime is the
// end of the last epoch, so a one-epoch period lasts one epoch.
type Period struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
}

// Minutes returns the period length.
func (p Period) Minutes() float64 {
	return (p.EndTime - p.StartTime) / 60
}

// Detector finds nonwear periods in a table. An empty column selects the
// detector's default column; detectors that need raw data ignore it.
type Detector interface {
	ID() string
	DisplayName() string
	RequiresRawData() bool
	Params() algorithm.Params
	Detect(t *epoch.Table, column string) ([]Period, error)
}

// Registry holds every built-in detector.
var Registry = algorithm.NewRegistry[Detector]("nonwear detector", ChoiID)

func init() {
	Registry.Register(ChoiID, "Choi (2011)", NewChoi)
	Registry.Register(VanHeesID, "van Hees (2013)", NewVanHees)
}

// Validate checks that periods are sorted, pairwise non-overlapping and
// that each ends after it starts.
func Validate(periods []Period) error {
	for i, p := range periods {
		if p.EndTime <= p.StartTime {
			return fmt.Errorf("%w: period %d ends at %.0f before it starts at %.0f", ErrInvalidPeriods, i, p.EndTime, p.StartTime)
		}
		if i > 0 && p.StartTime < periods[i-1].EndTime {
			return fmt.Errorf("%w: period %d overlaps period %d", ErrInvalidPeriods, i, i-1)
		}
	}
	return nil
}

// periodFromIndices builds a Period covering epochs lo..hi of a grid spaced
// step seconds apart. A non-positive step is taken from the grid itself.
func periodFromIndices(timestamps []float64, lo, hi int, step float64) Period {
	if step <= 0 && len(timestamps) > 1 {
		step = timestamps[1] - timestamps[0]
	}
	return Period{
		StartTime:  timestamps[lo],
		EndTime:    timestamps[hi] + step,
		StartIndex: lo,
		EndIndex:   hi,
	}
}
