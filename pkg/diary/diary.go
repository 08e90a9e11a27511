// Package diary resolves sleep-diary entries into search windows.
//
// An analysis date names the night that starts on the evening of that date.
// A main-sleep onset clock time before noon is placed on the following
// calendar day, and the offset is the first occurrence of its clock time
// after the onset. Nap times are placed on the analysis date itself.
package diary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// MaxNaps is the number of nap windows a diary day can carry.
const MaxNaps = 3

// DateLayout is the analysis date format.
const DateLayout = "2006-01-02"

var (
	// ErrMissingColumn reports a diary file without participant or date columns.
	ErrMissingColumn = errors.New("diary column missing")
	// ErrBadTime reports a clock time that could not be parsed.
	ErrBadTime = errors.New("unparseable diary time")
)

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm", "1504"}

var columnAliases = map[string]string{
	"participant":    "participant_id",
	"participant_id": "participant_id",
	"id":             "participant_id",
	"date":           "date",
	"sleep_date":     "date",
	"onset":          "sleep_onset",
	"sleep_onset":    "sleep_onset",
	"in_bed_time":    "sleep_onset",
	"bedtime":        "sleep_onset",
	"offset":         "sleep_offset",
	"sleep_offset":   "sleep_offset",
	"wake_time":      "sleep_offset",
	"out_bed_time":   "sleep_offset",
}

// Window is a search window in Unix seconds.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Entry is one diary row as written.
type Entry struct {
	Participant string
	Date        string
	Onset       string
	Offset      string
	Naps        [MaxNaps][2]string
}

// Day is a resolved diary day. Main is nil when the diary has no usable
// main-sleep times; Problems explains why.
type Day struct {
	Main     *Window
	Naps     []Window
	Problems []string
}

// Book holds diary entries indexed by participant and date.
type Book struct {
	loc     *time.Location
	entries map[string]Entry
}

func bookKey(participant, date string) string {
	return strings.ToLower(strings.TrimSpace(participant)) + "|" + strings.TrimSpace(date)
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	n = strings.ReplaceAll(n, " ", "_")
	if a, ok := columnAliases[n]; ok {
		return a
	}
	return n
}

// Load reads a diary CSV. Recognized columns are participant_id, date,
// sleep_onset, sleep_offset and nap1_start..nap3_end. A nil location means UTC.
func Load(r io.Reader, loc *time.Location) (*Book, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading diary: %w", err)
	}
	b := &Book{loc: loc, entries: make(map[string]Entry)}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty diary", ErrMissingColumn)
	}
	cols := make(map[string]int)
	for i, h := range records[0] {
		cols[normalize(h)] = i
	}
	for _, need := range []string{"participant_id", "date"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, need)
		}
	}
	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	for _, row := range records[1:] {
		e := Entry{
			Participant: get(row, "participant_id"),
			Date:        get(row, "date"),
			Onset:       get(row, "sleep_onset"),
			Offset:      get(row, "sleep_offset"),
		}
		if e.Participant == "" || e.Date == "" {
			continue
		}
		for n := range MaxNaps {
			e.Naps[n][0] = get(row, fmt.Sprintf("nap%d_start", n+1))
			e.Naps[n][1] = get(row, fmt.Sprintf("nap%d_end", n+1))
		}
		b.Add(e)
	}
	return b, nil
}

// NewBook returns an empty book.
func NewBook(loc *time.Location) *Book {
	if loc == nil {
		loc = time.UTC
	}
	return &Book{loc: loc, entries: make(map[string]Entry)}
}

// Add stores or replaces an entry.
func (b *Book) Add(e Entry) {
	b.entries[bookKey(e.Participant, e.Date)] = e
}

// Len returns the number of entries.
func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Lookup resolves the diary day for participant and date. ok is false when
// the diary has no row at all. Unparseable times never fail the lookup; they
// leave the affected window unset and add a problem.
func (b *Book) Lookup(participant, date string) (day Day, ok bool) {
	if b == nil {
		return Day{}, false
	}
	e, ok := b.entries[bookKey(participant, date)]
	if !ok {
		return Day{}, false
	}
	base, err := time.ParseInLocation(DateLayout, strings.TrimSpace(e.Date), b.loc)
	if err != nil {
		day.Problems = append(day.Problems, fmt.Sprintf("date %q: %v", e.Date, err))
		return day, true
	}

	switch {
	case e.Onset == "" && e.Offset == "":
		day.Problems = append(day.Problems, "no main sleep times")
	default:
		w, err := mainWindow(base, e.Onset, e.Offset)
		if err != nil {
			day.Problems = append(day.Problems, fmt.Sprintf("main sleep: %v", err))
		} else {
			day.Main = &w
		}
	}

	for n, nap := range e.Naps {
		if nap[0] == "" && nap[1] == "" {
			continue
		}
		w, err := napWindow(base, nap[0], nap[1])
		if err != nil {
			day.Problems = append(day.Problems, fmt.Sprintf("nap %d: %v", n+1, err))
			continue
		}
		day.Naps = append(day.Naps, w)
	}
	return day, true
}

// ParseClock parses a wall-clock time of day into hour, minute and second.
func ParseClock(s string) (h, m, sec int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, 0, fmt.Errorf("%w: empty", ErrBadTime)
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadTime, s)
}

func at(day time.Time, clock string) (time.Time, error) {
	h, m, s, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, day.Location()), nil
}

func mainWindow(base time.Time, onsetClock, offsetClock string) (Window, error) {
	onset, err := at(base, onsetClock)
	if err != nil {
		return Window{}, fmt.Errorf("onset: %w", err)
	}
	if onset.Hour() < 12 {
		onset = onset.AddDate(0, 0, 1)
	}
	offset, err := at(onset, offsetClock)
	if err != nil {
		return Window{}, fmt.Errorf("offset: %w", err)
	}
	if !offset.After(onset) {
		offset = offset.AddDate(0, 0, 1)
	}
	return Window{Start: epoch.FromTime(onset), End: epoch.FromTime(offset)}, nil
}

func napWindow(base time.Time, startClock, endClock string) (Window, error) {
	start, err := at(base, startClock)
	if err != nil {
		return Window{}, fmt.Errorf("start: %w", err)
	}
	end, err := at(base, endClock)
	if err != nil {
		return Window{}, fmt.Errorf("end: %w", err)
	}
	if !end.After(start) {
		return Window{}, fmt.Errorf("%w: nap ends at or before it starts", ErrBadTime)
	}
	return Window{Start: epoch.FromTime(start), End: epoch.FromTime(end)}, nil
}
