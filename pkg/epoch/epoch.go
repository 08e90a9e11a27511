// Package epoch holds the timestamp-indexed series that flow between scoring stages.
//
// Timestamps are Unix seconds stored as float64 so that sub-second sample
// grids (raw accelerometry) and minute epochs share one representation.
// A Table is never mutated once handed to a stage; With returns a copy.
package epoch

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Well-known column names.
const (
	ColumnAxis1           = "axis1"
	ColumnAxis2           = "axis2"
	ColumnAxis3           = "axis3"
	ColumnVectorMagnitude = "vector_magnitude"
	ColumnENMO            = "enmo"
	ColumnX               = "x"
	ColumnY               = "y"
	ColumnZ               = "z"
)

var (
	// ErrMisaligned reports arrays that were expected to share a timestamp grid but do not.
	ErrMisaligned = errors.New("arrays are not aligned to the same timestamp grid")
	// ErrNoColumn reports a column lookup for a column the table does not carry.
	ErrNoColumn = errors.New("column not present")
	// ErrNotIncreasing reports timestamps that are not strictly increasing.
	ErrNotIncreasing = errors.New("timestamps are not strictly increasing")
)

// Sample is one tri-axial reading in units of g.
type Sample struct {
	X float64
	Y float64
	Z float64
}

// Magnitude returns the Euclidean norm of the vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// IsZero reports whether all three axes read exactly zero.
func (s Sample) IsZero() bool {
	return s.X == 0 && s.Y == 0 && s.Z == 0
}

// Table is an ordered series of epochs with one or more named value columns.
type Table struct {
	Columns      map[string][]float64
	Timestamps   []float64
	EpochSeconds float64
}

// NewTable creates a table over the given grid with no columns.
func NewTable(timestamps []float64, epochSeconds float64) *Table {
	return &Table{
		Timestamps:   timestamps,
		Columns:      make(map[string][]float64),
		EpochSeconds: epochSeconds,
	}
}

// With returns a copy of the table carrying an additional column.
func (t *Table) With(name string, values []float64) (*Table, error) {
	if err := CheckAligned(name, len(t.Timestamps), len(values)); err != nil {
		return nil, err
	}
	cols := make(map[string][]float64, len(t.Columns)+1)
	for k, v := range t.Columns {
		cols[k] = v
	}
	cols[name] = values
	return &Table{Timestamps: t.Timestamps, Columns: cols, EpochSeconds: t.EpochSeconds}, nil
}

// Len returns the number of epochs.
func (t *Table) Len() int {
	return len(t.Timestamps)
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.Columns[name]
	return ok
}

// ColumnNames returns the column names in sorted order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for k := range t.Columns {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Column returns the named column, checking it is aligned with the timestamps.
func (t *Table) Column(name string) ([]float64, error) {
	values, ok := t.Columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	if err := CheckAligned(name, len(t.Timestamps), len(values)); err != nil {
		return nil, err
	}
	return values, nil
}

// Start returns the first timestamp, or 0 for an empty table.
func (t *Table) Start() float64 {
	if len(t.Timestamps) == 0 {
		return 0
	}
	return t.Timestamps[0]
}

// End returns the last timestamp, or 0 for an empty table.
func (t *Table) End() float64 {
	if len(t.Timestamps) == 0 {
		return 0
	}
	return t.Timestamps[len(t.Timestamps)-1]
}

// CheckAligned returns ErrMisaligned when any length differs from want.
func CheckAligned(what string, want int, lengths ...int) error {
	for _, n := range lengths {
		if n != want {
			return fmt.Errorf("%w: %s has %d values, grid has %d", ErrMisaligned, what, n, want)
		}
	}
	return nil
}

// Validate checks that timestamps are strictly increasing.
func Validate(timestamps []float64) error {
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] <= timestamps[i-1] {
			return fmt.Errorf("%w: index %d (%.3f <= %.3f)", ErrNotIncreasing, i, timestamps[i], timestamps[i-1])
		}
	}
	return nil
}

// IndexRange returns the inclusive index range of timestamps inside [start, end].
// ok is false when no timestamp falls inside the range.
func IndexRange(timestamps []float64, start, end float64) (lo, hi int, ok bool) {
	if end < start || len(timestamps) == 0 {
		return 0, 0, false
	}
	lo = sort.SearchFloat64s(timestamps, start)
	// First index strictly greater than end, minus one.
	hi = sort.Search(len(timestamps), func(i int) bool { return timestamps[i] > end }) - 1
	if lo > hi || lo >= len(timestamps) || hi < 0 {
		return 0, 0, false
	}
	return lo, hi, true
}

// UniformGrid returns n timestamps spaced 1/freq seconds apart starting at start.
func UniformGrid(start float64, n int, freq float64) []float64 {
	out := make([]float64, n)
	for i := range n {
		out[i] = start + float64(i)/freq
	}
	return out
}

// ToTime converts Unix seconds to a UTC time.Time.
func ToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// FromTime converts a time.Time to Unix seconds.
func FromTime(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
