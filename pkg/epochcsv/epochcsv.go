// Package epochcsv reads epoch-count and raw accelerometer tables from CSV.
package epochcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

var (
	// ErrMissingColumn reports a required column that the header does not contain.
	ErrMissingColumn = errors.New("required column missing")
	// ErrBadValue reports a cell that could not be parsed.
	ErrBadValue = errors.New("unparseable value")
	// ErrEmpty reports a file with a header but no rows.
	ErrEmpty = errors.New("no data rows")
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

// Some vendor exports use these names for the canonical columns.
var aliases = map[string]string{
	"datetime":        "datetime",
	"timestamp":       "datetime",
	"time":            "datetime",
	"date_time":       "datetime",
	"axis_1":          epoch.ColumnAxis1,
	"activity":        epoch.ColumnAxis1,
	"axis_2":          epoch.ColumnAxis2,
	"axis_3":          epoch.ColumnAxis3,
	"vm":              epoch.ColumnVectorMagnitude,
	"vectormagnitude": epoch.ColumnVectorMagnitude,
	"accelerometer_x": epoch.ColumnX,
	"accelerometer_y": epoch.ColumnY,
	"accelerometer_z": epoch.ColumnZ,
	"acc_x":           epoch.ColumnX,
	"acc_y":           epoch.ColumnY,
	"acc_z":           epoch.ColumnZ,
}

// Options controls parsing.
type Options struct {
	// Location interprets timestamps without a zone. Nil means UTC.
	Location *time.Location
	// TimeColumn overrides the timestamp column name (after normalization).
	TimeColumn string
	// Required lists activity columns that must be present.
	Required []string
	// EpochSeconds sets the epoch length; zero infers it from the timestamps.
	EpochSeconds float64
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "\ufeff")
	n = strings.ReplaceAll(n, " ", "_")
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

type sheet struct {
	header map[string]int
	rows   [][]string
	names  []string
}

func readSheet(r io.Reader) (*sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrEmpty)
	}
	s := &sheet{header: make(map[string]int), rows: records[1:]}
	for i, h := range records[0] {
		n := normalize(h)
		if _, dup := s.header[n]; dup {
			continue
		}
		s.header[n] = i
		s.names = append(s.names, n)
	}
	if len(s.rows) == 0 {
		return nil, ErrEmpty
	}
	return s, nil
}

func (s *sheet) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := s.header[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func (s *sheet) cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func (s *sheet) timestamps(col string, loc *time.Location) ([]float64, error) {
	idx := s.header[col]
	out := make([]float64, len(s.rows))
	for i, row := range s.rows {
		v, err := ParseTime(s.cell(row, idx), loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out[i] = v
	}
	if err := epoch.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// numeric parses a column; ok is false when any cell is not a number.
func (s *sheet) numeric(col string) (values []float64, badRow int, ok bool) {
	idx := s.header[col]
	values = make([]float64, len(s.rows))
	for i, row := range s.rows {
		c := s.cell(row, idx)
		if c == "" {
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, i + 2, false
		}
		values[i] = v
	}
	return values, 0, true
}

// ParseTime accepts Unix seconds or one of the common export layouts.
func ParseTime(s string, loc *time.Location) (float64, error) {
	if loc == nil {
		loc = time.UTC
	}
	if s == "" {
		return 0, fmt.Errorf("%w: empty timestamp", ErrBadValue)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return epoch.FromTime(t), nil
		}
	}
	return 0, fmt.Errorf("%w: timestamp %q", ErrBadValue, s)
}

// InferStep returns the median difference between consecutive timestamps.
func InferStep(timestamps []float64) float64 {
	if len(timestamps) < 2 {
		return 0
	}
	d := make([]float64, len(timestamps)-1)
	for i := range d {
		d[i] = timestamps[i+1] - timestamps[i]
	}
	sort.Float64s(d)
	return d[len(d)/2]
}

// Read parses an epoch table. Every fully numeric column becomes a table
// column; required columns that are missing or non-numeric are errors.
func Read(r io.Reader, opts Options) (*epoch.Table, error) {
	s, err := readSheet(r)
	if err != nil {
		return nil, err
	}
	timeCol := opts.TimeColumn
	if timeCol == "" {
		timeCol = "datetime"
	}
	if err := s.require(append([]string{timeCol}, opts.Required...)...); err != nil {
		return nil, err
	}
	ts, err := s.timestamps(timeCol, opts.Location)
	if err != nil {
		return nil, err
	}
	step := opts.EpochSeconds
	if step <= 0 {
		step = InferStep(ts)
	}
	t := epoch.NewTable(ts, step)

	required := make(map[string]bool, len(opts.Required))
	for _, c := range opts.Required {
		required[c] = true
	}
	for _, name := range s.names {
		if name == timeCol {
			continue
		}
		values, badRow, ok := s.numeric(name)
		if !ok {
			if required[name] {
				return nil, fmt.Errorf("%w: column %s row %d", ErrBadValue, name, badRow)
			}
			continue
		}
		t.Columns[name] = values
	}
	return t, nil
}

// ReadRaw parses a raw tri-axial table and returns the samples, their
// timestamps and the sampling frequency in Hz.
func ReadRaw(r io.Reader, opts Options) (samples []epoch.Sample, timestamps []float64, freq float64, err error) {
	s, err := readSheet(r)
	if err != nil {
		return nil, nil, 0, err
	}
	timeCol := opts.TimeColumn
	if timeCol == "" {
		timeCol = "datetime"
	}
	if err := s.require(timeCol, epoch.ColumnX, epoch.ColumnY, epoch.ColumnZ); err != nil {
		return nil, nil, 0, err
	}
	timestamps, err = s.timestamps(timeCol, opts.Location)
	if err != nil {
		return nil, nil, 0, err
	}
	var axes [3][]float64
	for i, name := range []string{epoch.ColumnX, epoch.ColumnY, epoch.ColumnZ} {
		values, badRow, ok := s.numeric(name)
		if !ok {
			return nil, nil, 0, fmt.Errorf("%w: column %s row %d", ErrBadValue, name, badRow)
		}
		axes[i] = values
	}
	samples = make([]epoch.Sample, len(timestamps))
	for i := range samples {
		samples[i] = epoch.Sample{X: axes[0][i], Y: axes[1][i], Z: axes[2][i]}
	}
	if opts.EpochSeconds > 0 {
		freq = 1 / opts.EpochSeconds
	} else if step := InferStep(timestamps); step > 0 {
		freq = 1 / step
	}
	if freq <= 0 {
		return nil, nil, 0, fmt.Errorf("%w: cannot infer sampling frequency from %d rows", ErrBadValue, len(timestamps))
	}
	return samples, timestamps, freq, nil
}
