package sleepperiod

import (
	"fmt"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
)

// TudorLockeID identifies the Tudor-Locke rule.
const TudorLockeID = "tudor_locke_2014"

// TudorLocke is a composite rule: onset is the first epoch of OnsetMinutes of
// consecutive sleep, and offset is the last sleep epoch before the first run
// of WakeMinutes of consecutive wake after onset. Without such a wake run the
// offset is the last sleep epoch in the window.
type TudorLocke struct {
	onsetMinutes float64
	wakeMinutes  float64
	epochSeconds float64
}

// NewTudorLocke builds the rule. Params: onset_min, wake_min, epoch_seconds.
func NewTudorLocke(p algorithm.Params) (Detector, error) {
	t := &TudorLocke{}
	var err error
	if t.onsetMinutes, err = p.Float("onset_min", 5); err != nil {
		return nil, err
	}
	if t.wakeMinutes, err = p.Float("wake_min", 10); err != nil {
		return nil, err
	}
	if t.epochSeconds, err = p.Float("epoch_seconds", 60); err != nil {
		return nil, err
	}
	if t.onsetMinutes <= 0 || t.wakeMinutes <= 0 || t.epochSeconds <= 0 {
		return nil, fmt.Errorf("%w: run lengths and epoch_seconds must be positive", algorithm.ErrBadParam)
	}
	return t, nil
}

func (*TudorLocke) ID() string          { return TudorLockeID }
func (*TudorLocke) DisplayName() string { return "Tudor-Locke (2014)" }

// Params returns the effective configuration.
func (t *TudorLocke) Params() algorithm.Params {
	return algorithm.Params{"onset_min": t.onsetMinutes, "wake_min": t.wakeMinutes, "epoch_seconds": t.epochSeconds}
}

// ApplyRules finds onset and offset inside [start, end].
func (t *TudorLocke) ApplyRules(scores []int, start, end float64, timestamps []float64) (onset, offset *int, err error) {
	lo, hi, ok, err := window(scores, start, end, timestamps)
	if err != nil || !ok {
		return nil, nil, err
	}
	need := epochsFor(t.onsetMinutes, t.epochSeconds)
	first, found := firstRun(scores, lo, hi, need)
	if !found {
		return nil, nil, nil
	}
	wakeNeed := epochsFor(t.wakeMinutes, t.epochSeconds)
	last := first + need - 1
	wake := 0
	for i := first + need; i <= hi; i++ {
		if scores[i] == 1 {
			last = i
			wake = 0
			continue
		}
		wake++
		if wake == wakeNeed {
			break
		}
	}
	return ptr(first), ptr(last), nil
}
