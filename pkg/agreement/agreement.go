// Package agreement compares two epoch-by-epoch sleep/wake scorings.
package agreement

import (
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// ErrEmpty is returned when there is nothing to compare.
var ErrEmpty = errors.New("no epochs to compare")

// Confusion is a 2x2 table of reference vs candidate labels, sleep as positive.
type Confusion struct {
	SleepSleep int `json:"sleep_sleep"` // both sleep
	SleepWake  int `json:"sleep_wake"`  // reference sleep, candidate wake
	WakeSleep  int `json:"wake_sleep"`  // reference wake, candidate sleep
	WakeWake   int `json:"wake_wake"`   // both wake
}

// Total returns the number of compared epochs.
func (c Confusion) Total() int {
	return c.SleepSleep + c.SleepWake + c.WakeSleep + c.WakeWake
}

// Accuracy is the fraction of epochs on which both scorings agree.
func (c Confusion) Accuracy() float64 {
	n := c.Total()
	if n == 0 {
		return 0
	}
	return float64(c.SleepSleep+c.WakeWake) / float64(n)
}

// Sensitivity is the fraction of reference sleep also scored sleep.
func (c Confusion) Sensitivity() float64 {
	d := c.SleepSleep + c.SleepWake
	if d == 0 {
		return 0
	}
	return float64(c.SleepSleep) / float64(d)
}

// Specificity is the fraction of reference wake also scored wake.
func (c Confusion) Specificity() float64 {
	d := c.WakeSleep + c.WakeWake
	if d == 0 {
		return 0
	}
	return float64(c.WakeWake) / float64(d)
}

// Kappa is Cohen's kappa. Perfect agreement is 1 even when only one class
// occurs, where the chance-corrected ratio would otherwise be 0/0.
func (c Confusion) Kappa() float64 {
	n := float64(c.Total())
	if n == 0 {
		return 0
	}
	po := float64(c.SleepSleep+c.WakeWake) / n
	refSleep := float64(c.SleepSleep+c.SleepWake) / n
	candSleep := float64(c.SleepSleep+c.WakeSleep) / n
	pe := refSleep*candSleep + (1-refSleep)*(1-candSleep)
	if pe == 1 {
		if po == 1 {
			return 1
		}
		return 0
	}
	return (po - pe) / (1 - pe)
}

// Compare builds the confusion table for two aligned label series.
func Compare(reference, candidate []int) (Confusion, error) {
	var c Confusion
	if err := epoch.CheckAligned("candidate labels", len(reference), len(candidate)); err != nil {
		return c, err
	}
	if len(reference) == 0 {
		return c, ErrEmpty
	}
	for i, r := range reference {
		s := candidate[i]
		if (r != 0 && r != 1) || (s != 0 && s != 1) {
			return c, fmt.Errorf("epoch %d: labels must be 0 or 1, got %d and %d", i, r, s)
		}
		switch {
		case r == 1 && s == 1:
			c.SleepSleep++
		case r == 1:
			c.SleepWake++
		case s == 1:
			c.WakeSleep++
		default:
			c.WakeWake++
		}
	}
	return c, nil
}

// CohenKappa is Compare followed by Kappa.
func CohenKappa(reference, candidate []int) (float64, error) {
	c, err := Compare(reference, candidate)
	if err != nil {
		return 0, err
	}
	return c.Kappa(), nil
}
