package sleepperiod

import (
	"fmt"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
)

// Detector identifiers for the consecutive-run rules.
const (
	Consecutive3x5ID  = "consecutive_onset3s_offset5s"
	Consecutive5x10ID = "consecutive_onset5s_offset10s"
)

// Consecutive reports onset at the start of the first run of OnsetMinutes of
// sleep scanning forward from the window start, and offset at the end of the
// last run of OffsetMinutes of sleep scanning backward from the window end.
// The two searches are independent.
type Consecutive struct {
	id            string
	onsetMinutes  float64
	offsetMinutes float64
	epochSeconds  float64
}

// NewConsecutive builds a rule with the given default run lengths.
// Params: onset_min, offset_min, epoch_seconds.
func NewConsecutive(id string, onsetMin, offsetMin float64, p algorithm.Params) (*Consecutive, error) {
	c := &Consecutive{id: id}
	var err error
	if c.onsetMinutes, err = p.Float("onset_min", onsetMin); err != nil {
		return nil, err
	}
	if c.offsetMinutes, err = p.Float("offset_min", offsetMin); err != nil {
		return nil, err
	}
	if c.epochSeconds, err = p.Float("epoch_seconds", 60); err != nil {
		return nil, err
	}
	if c.onsetMinutes <= 0 || c.offsetMinutes <= 0 || c.epochSeconds <= 0 {
		return nil, fmt.Errorf("%w: run lengths and epoch_seconds must be positive", algorithm.ErrBadParam)
	}
	return c, nil
}

// ID returns the registry identifier.
func (c *Consecutive) ID() string { return c.id }

// DisplayName returns a human-readable name.
func (c *Consecutive) DisplayName() string {
	return fmt.Sprintf("Consecutive %g min onset / %g min offset", c.onsetMinutes, c.offsetMinutes)
}

// Params returns the effective configuration.
func (c *Consecutive) Params() algorithm.Params {
	return algorithm.Params{"onset_min": c.onsetMinutes, "offset_min": c.offsetMinutes, "epoch_seconds": c.epochSeconds}
}

// ApplyRules finds onset and offset inside [start, end].
func (c *Consecutive) ApplyRules(scores []int, start, end float64, timestamps []float64) (onset, offset *int, err error) {
	lo, hi, ok, err := window(scores, start, end, timestamps)
	if err != nil || !ok {
		return nil, nil, err
	}
	if i, found := firstRun(scores, lo, hi, epochsFor(c.onsetMinutes, c.epochSeconds)); found {
		onset = ptr(i)
	}
	if i, found := lastRunEnd(scores, lo, hi, epochsFor(c.offsetMinutes, c.epochSeconds)); found {
		offset = ptr(i)
	}
	return onset, offset, nil
}
