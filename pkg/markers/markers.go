// Package markers tracks the sleep periods marked for one analysis day and
// decides which of them is the main sleep.
package markers

import (
	"errors"
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/actiscore/pkg/constants"
)

// Type is the role a sleep period plays within its day.
type Type string

// Roles.
const (
	MainSleep Type = "MAIN_SLEEP"
	Nap       Type = "NAP"
)

var (
	// ErrInvalidPeriod is returned when an edit would put offset at or before onset.
	ErrInvalidPeriod = errors.New("offset must be after onset")
	// ErrNoSuchSlot is returned for a slot outside 1..4.
	ErrNoSuchSlot = errors.New("no such marker slot")
)

// durationEpsilon absorbs float noise when comparing durations in seconds.
const durationEpsilon = 1e-6

// SleepPeriod is one marker slot. Timestamps are Unix seconds; nil means unset.
type SleepPeriod struct {
	Onset  *float64 `json:"onset_timestamp"`
	Offset *float64 `json:"offset_timestamp"`
	Type   Type     `json:"marker_type"`
	Index  int      `json:"marker_index"`
}

// Complete reports whether both ends are set and offset is after onset.
func (p SleepPeriod) Complete() bool {
	return p.Onset != nil && p.Offset != nil && *p.Offset > *p.Onset
}

// Empty reports whether neither end is set.
func (p SleepPeriod) Empty() bool {
	return p.Onset == nil && p.Offset == nil
}

// Duration returns offset minus onset in seconds, or 0 when incomplete.
func (p SleepPeriod) Duration() float64 {
	if !p.Complete() {
		return 0
	}
	return *p.Offset - *p.Onset
}

func (p SleepPeriod) clone() SleepPeriod {
	out := p
	if p.Onset != nil {
		v := *p.Onset
		out.Onset = &v
	}
	if p.Offset != nil {
		v := *p.Offset
		out.Offset = &v
	}
	return out
}

// Outcome describes the classification after a committed edit.
type Outcome struct {
	// TiedSlots lists the complete periods sharing the longest duration when Tie is set.
	TiedSlots []int
	// Main is the slot holding the main sleep, or 0 when there is none.
	Main int
	// Tie is set when two or more complete periods share the longest duration.
	// Roles were left as they were before the edit.
	Tie bool
}

// DailySleepMarkers holds the four sleep period slots of one day.
// It is not safe for concurrent use.
type DailySleepMarkers struct {
	slots [constants.MaxMarkerSlots]SleepPeriod
}

// New returns an empty day. Slot 1 defaults to main sleep, the rest to nap.
func New() *DailySleepMarkers {
	d := &DailySleepMarkers{}
	for i := range d.slots {
		d.slots[i] = emptySlot(i + 1)
	}
	return d
}

func emptySlot(index int) SleepPeriod {
	t := Nap
	if index == 1 {
		t = MainSleep
	}
	return SleepPeriod{Index: index, Type: t}
}

func (d *DailySleepMarkers) slot(index int) (*SleepPeriod, error) {
	if index < 1 || index > len(d.slots) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchSlot, index)
	}
	return &d.slots[index-1], nil
}

// Period returns a copy of the given slot.
func (d *DailySleepMarkers) Period(index int) (SleepPeriod, error) {
	s, err := d.slot(index)
	if err != nil {
		return SleepPeriod{}, err
	}
	return s.clone(), nil
}

// Periods returns copies of all slots in index order.
func (d *DailySleepMarkers) Periods() []SleepPeriod {
	out := make([]SleepPeriod, len(d.slots))
	for i := range d.slots {
		out[i] = d.slots[i].clone()
	}
	return out
}

// Complete returns copies of the complete slots in index order.
func (d *DailySleepMarkers) Complete() []SleepPeriod {
	var out []SleepPeriod
	for i := range d.slots {
		if d.slots[i].Complete() {
			out = append(out, d.slots[i].clone())
		}
	}
	return out
}

// Main returns the complete period currently classified as main sleep.
func (d *DailySleepMarkers) Main() (SleepPeriod, bool) {
	for i := range d.slots {
		if d.slots[i].Complete() && d.slots[i].Type == MainSleep {
			return d.slots[i].clone(), true
		}
	}
	return SleepPeriod{}, false
}

// SetOnset commits a new onset for a slot.
func (d *DailySleepMarkers) SetOnset(index int, onset float64) (Outcome, error) {
	return d.commit(index, func(p *SleepPeriod) { p.Onset = &onset })
}

// SetOffset commits a new offset for a slot.
func (d *DailySleepMarkers) SetOffset(index int, offset float64) (Outcome, error) {
	return d.commit(index, func(p *SleepPeriod) { p.Offset = &offset })
}

// SetPeriod commits both ends of a slot at once.
func (d *DailySleepMarkers) SetPeriod(index int, onset, offset float64) (Outcome, error) {
	return d.commit(index, func(p *SleepPeriod) {
		p.Onset = &onset
		p.Offset = &offset
	})
}

// Clear empties a slot and reclassifies the day.
func (d *DailySleepMarkers) Clear(index int) (Outcome, error) {
	s, err := d.slot(index)
	if err != nil {
		return Outcome{}, err
	}
	*s = emptySlot(index)
	return d.classify(), nil
}

// commit validates an edit against a copy of the slot and applies it only
// when the result keeps offset after onset.
func (d *DailySleepMarkers) commit(index int, edit func(*SleepPeriod)) (Outcome, error) {
	s, err := d.slot(index)
	if err != nil {
		return Outcome{}, err
	}
	next := s.clone()
	edit(&next)
	if next.Onset != nil && next.Offset != nil && !(*next.Offset > *next.Onset) {
		return Outcome{}, fmt.Errorf("%w: slot %d onset %.0f offset %.0f", ErrInvalidPeriod, index, *next.Onset, *next.Offset)
	}
	*s = next
	return d.classify(), nil
}

// classify makes the longest complete period the main sleep and every other
// slot a nap. A tie for longest leaves every role unchanged.
func (d *DailySleepMarkers) classify() Outcome {
	longest := -1.0
	var tied []int
	for i := range d.slots {
		if !d.slots[i].Complete() {
			continue
		}
		dur := d.slots[i].Duration()
		switch {
		case dur > longest+durationEpsilon:
			longest = dur
			tied = []int{i + 1}
		case math.Abs(dur-longest) <= durationEpsilon:
			tied = append(tied, i+1)
		}
	}
	if len(tied) == 0 {
		return Outcome{}
	}
	if len(tied) > 1 {
		out := Outcome{Tie: true, TiedSlots: tied}
		if m, ok := d.Main(); ok {
			out.Main = m.Index
		}
		return out
	}
	main := tied[0]
	for i := range d.slots {
		if i+1 == main {
			d.slots[i].Type = MainSleep
		} else {
			d.slots[i].Type = Nap
		}
	}
	return Outcome{Main: main}
}
