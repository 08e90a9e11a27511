// Package pipeline scores one recording end to end: classification and
// nonwear detection, onset/offset search inside diary windows, main-sleep
// versus nap assignment, and per-period metrics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/constants"
	"github.com/codeGROOVE-dev/actiscore/pkg/diary"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
	"github.com/codeGROOVE-dev/actiscore/pkg/markers"
	"github.com/codeGROOVE-dev/actiscore/pkg/memo"
	"github.com/codeGROOVE-dev/actiscore/pkg/metrics"
	"github.com/codeGROOVE-dev/actiscore/pkg/nonwear"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepperiod"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepwake"
)

// ErrNoData is returned for a recording without epochs.
var ErrNoData = errors.New("recording has no epochs")

// Recording is one participant-day of input.
type Recording struct {
	// Epochs is the epoch table the classifier and count-based detectors read.
	Epochs *epoch.Table
	// Raw is the imputed raw sample grid, needed only by raw nonwear detectors.
	Raw *epoch.Table
	// SensorNonwear holds nonwear periods reported by the device, matched to
	// epochs by time with an exclusive end. Nil means the device reported
	// nothing, which is distinct from an empty list.
	SensorNonwear []nonwear.Period
	Participant   string
	// Date is the analysis date (YYYY-MM-DD); empty derives it from the first epoch.
	Date   string
	Source string
}

// Result is the outcome of scoring one recording.
type Result struct {
	Markers          *markers.DailySleepMarkers
	Labels           []int
	Timestamps       []float64
	Activity         []float64
	NonwearPeriods   []nonwear.Period
	NonwearAlgorithm []bool
	NonwearSensor    []bool
	NonwearCombined  []bool
	Records          []Record
	Warnings         []string
	Date             string
}

// Scorer runs the scoring stages with a fixed set of algorithms. It holds no
// per-call state and may be shared by concurrent goroutines.
type Scorer struct {
	classifier   sleepwake.Classifier
	nonwear      nonwear.Detector
	detector     sleepperiod.Detector
	cache        *memo.Cache
	logger       *slog.Logger
	location     *time.Location
	diary        *diary.Book
	combine      nonwear.CombineOptions
	inclusiveEnd bool
}

// New creates a Scorer. Unset algorithms use each registry's default.
// The offset epoch is inside the scored window unless WithInclusiveEnd(false).
func New(opts ...Option) (*Scorer, error) {
	o := &OptionHolder{inclusiveEnd: true}
	for _, opt := range opts {
		opt(o)
	}
	var err error
	if o.classifier == nil {
		if o.classifier, err = sleepwake.Registry.Create("", nil); err != nil {
			return nil, err
		}
	}
	if o.nonwear == nil && !o.noNonwear {
		if o.nonwear, err = nonwear.Registry.Create("", nil); err != nil {
			return nil, err
		}
	}
	if o.detector == nil {
		if o.detector, err = sleepperiod.Registry.Create("", nil); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.location == nil {
		o.location = time.UTC
	}
	return &Scorer{
		classifier:   o.classifier,
		nonwear:      o.nonwear,
		detector:     o.detector,
		cache:        o.cache,
		logger:       o.logger,
		location:     o.location,
		diary:        o.diary,
		combine:      o.combine,
		inclusiveEnd: o.inclusiveEnd,
	}, nil
}

// Classifier returns the configured classifier.
func (s *Scorer) Classifier() sleepwake.Classifier { return s.classifier }

// NonwearDetector returns the configured nonwear detector, or nil when disabled.
func (s *Scorer) NonwearDetector() nonwear.Detector { return s.nonwear }

// PeriodDetector returns the configured onset/offset rule.
func (s *Scorer) PeriodDetector() sleepperiod.Detector { return s.detector }

// window is a search window plus the marker slot it feeds.
type window struct {
	start, end float64
	slot       int
	source     string
}

// found is a resolved period on the epoch grid.
type found struct {
	onset, offset int
	source        string
}

// Score runs every stage on rec.
func (s *Scorer) Score(ctx context.Context, rec Recording) (*Result, error) {
	t := rec.Epochs
	if t == nil || t.Len() == 0 {
		return nil, ErrNoData
	}
	if err := epoch.Validate(t.Timestamps); err != nil {
		return nil, err
	}
	res := &Result{Timestamps: t.Timestamps, Date: rec.Date}
	if res.Date == "" {
		res.Date = epoch.ToTime(t.Start()).In(s.location).Format(diary.DateLayout)
	}
	log := s.logger.With("participant", rec.Participant, "date", res.Date)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		labels, err := s.classify(t)
		if err != nil {
			return fmt.Errorf("sleep/wake classification: %w", err)
		}
		res.Labels = labels
		return nil
	})
	var nonwearWarning string
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		periods, mask, warning, err := s.detectNonwear(rec)
		if err != nil {
			return fmt.Errorf("nonwear detection: %w", err)
		}
		res.NonwearPeriods, res.NonwearAlgorithm, nonwearWarning = periods, mask, warning
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := epoch.CheckAligned("sleep labels", t.Len(), len(res.Labels)); err != nil {
		return nil, err
	}
	if nonwearWarning != "" {
		res.warn(log, nonwearWarning)
	}
	if rec.SensorNonwear != nil {
		if err := nonwear.Validate(rec.SensorNonwear); err != nil {
			return nil, fmt.Errorf("sensor nonwear: %w", err)
		}
		res.NonwearSensor = nonwear.MaskFromPeriods(rec.SensorNonwear, t.Timestamps)
	}
	res.NonwearCombined = nonwear.Combine(res.NonwearAlgorithm, res.NonwearSensor, s.combine)
	log.Debug("stages complete", "epochs", t.Len(), "nonwear_periods", len(res.NonwearPeriods))

	res.Markers = markers.New()
	resolved := make(map[int]found)
	for _, w := range s.windows(rec, res, log) {
		onset, offset, err := s.detector.ApplyRules(res.Labels, w.start, w.end, t.Timestamps)
		if err != nil {
			return nil, fmt.Errorf("sleep period detection: %w", err)
		}
		if onset == nil || offset == nil {
			res.warn(log, fmt.Sprintf("no complete sleep period in %s window for slot %d", w.source, w.slot))
			continue
		}
		out, err := res.Markers.SetPeriod(w.slot, t.Timestamps[*onset], t.Timestamps[*offset])
		if err != nil {
			res.warn(log, fmt.Sprintf("slot %d: %v", w.slot, err))
			continue
		}
		if out.Tie {
			res.warn(log, fmt.Sprintf("slots %v have equal durations; roles unchanged", out.TiedSlots))
		}
		resolved[w.slot] = found{onset: *onset, offset: *offset, source: w.source}
	}

	activity, err := s.activity(t)
	if err != nil {
		return nil, err
	}
	res.Activity = activity
	for _, p := range res.Markers.Complete() {
		f, ok := resolved[p.Index]
		if !ok {
			continue
		}
		m, err := metrics.Compute(metrics.Input{
			Labels:           res.Labels,
			Activity:         activity,
			Timestamps:       t.Timestamps,
			NonwearAlgorithm: res.NonwearAlgorithm,
			NonwearSensor:    res.NonwearSensor,
			OnsetIndex:       f.onset,
			OffsetIndex:      f.offset,
			EpochSeconds:     t.EpochSeconds,
			InclusiveEnd:     s.inclusiveEnd,
		})
		if err != nil {
			return nil, fmt.Errorf("metrics for slot %d: %w", p.Index, err)
		}
		res.Records = append(res.Records, s.record(rec, res.Date, p, f, m))
	}
	log.Debug("recording scored", "periods", len(res.Records), "warnings", len(res.Warnings))
	return res, nil
}

func (r *Result) warn(log *slog.Logger, msg string) {
	log.Warn(msg)
	r.Warnings = append(r.Warnings, msg)
}

// windows returns the main window (diary or full series) and any diary naps.
func (s *Scorer) windows(rec Recording, res *Result, log *slog.Logger) []window {
	t := rec.Epochs
	full := window{start: t.Start(), end: t.End(), slot: 1, source: WindowFullSeries}
	if s.diary == nil {
		return []window{full}
	}
	day, ok := s.diary.Lookup(rec.Participant, res.Date)
	if !ok {
		res.warn(log, "no diary entry; searching the full series")
		return []window{full}
	}
	for _, p := range day.Problems {
		res.warn(log, "diary: "+p)
	}
	out := make([]window, 0, 1+len(day.Naps))
	if day.Main != nil {
		out = append(out, window{start: day.Main.Start, end: day.Main.End, slot: 1, source: WindowDiary})
	} else {
		res.warn(log, "no usable diary main sleep; searching the full series")
		out = append(out, full)
	}
	for i, n := range day.Naps {
		if i+2 > constants.MaxMarkerSlots {
			break
		}
		out = append(out, window{start: n.Start, end: n.End, slot: i + 2, source: WindowDiary})
	}
	return out
}

func (s *Scorer) classify(t *epoch.Table) ([]int, error) {
	key := tableKey(s.classifier.ID(), s.classifier.Params(), t)
	return memo.Do(s.cache, key, func() ([]int, error) {
		return s.classifier.Score(t)
	})
}

// detectNonwear returns the algorithm periods and their mask on the epoch
// grid. A nil mask means nonwear was not computed.
func (s *Scorer) detectNonwear(rec Recording) (periods []nonwear.Period, mask []bool, warning string, err error) {
	if s.nonwear == nil {
		return nil, nil, "", nil
	}
	src := rec.Epochs
	if s.nonwear.RequiresRawData() {
		if rec.Raw == nil {
			return nil, nil, fmt.Sprintf("%s needs raw data; nonwear not computed", s.nonwear.ID()), nil
		}
		src = rec.Raw
	}
	key := tableKey(s.nonwear.ID(), s.nonwear.Params(), src)
	periods, err = memo.Do(s.cache, key, func() ([]nonwear.Period, error) {
		return s.nonwear.Detect(src, "")
	})
	if err != nil {
		return nil, nil, "", err
	}
	if err := nonwear.Validate(periods); err != nil {
		return nil, nil, "", err
	}
	if src == rec.Epochs {
		return periods, nonwear.Mask(periods, rec.Epochs.Len()), "", nil
	}
	return periods, nonwear.MaskFromPeriods(periods, rec.Epochs.Timestamps), "", nil
}

// activity is the column reported as total activity and movement.
func (s *Scorer) activity(t *epoch.Table) ([]float64, error) {
	col, err := s.classifier.Params().String("column", epoch.ColumnAxis1)
	if err != nil {
		return nil, err
	}
	return t.Column(col)
}

func (s *Scorer) record(rec Recording, date string, p markers.SleepPeriod, f found, m *metrics.SleepMetrics) Record {
	r := Record{
		SleepMetrics:     *m,
		Source:           rec.Source,
		Participant:      rec.Participant,
		Date:             date,
		PeriodIndex:      p.Index,
		PeriodType:       p.Type,
		ClassifierID:     s.classifier.ID(),
		PeriodDetectorID: s.detector.ID(),
		WindowSource:     f.source,
		OnsetTimestamp:   *p.Onset,
		OffsetTimestamp:  *p.Offset,
		OnsetClock:       epoch.ToTime(*p.Onset).In(s.location).Format("15:04"),
		OffsetClock:      epoch.ToTime(*p.Offset).In(s.location).Format("15:04"),
	}
	if s.nonwear != nil {
		r.NonwearAlgorithmID = s.nonwear.ID()
	}
	return r
}

// tableKey fingerprints a table for memoization.
func tableKey(id string, p algorithm.Params, t *epoch.Table) string {
	arrays := []any{t.EpochSeconds, t.Timestamps}
	for _, name := range t.ColumnNames() {
		arrays = append(arrays, name, t.Columns[name])
	}
	return memo.Key(id, p, arrays...)
}
