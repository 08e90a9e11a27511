// Package batch scores many recordings with a bounded worker pool.
//
// A file that cannot be read or scored is skipped with a reason and the run
// continues; only cancellation or a failing sink stops a run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/actiscore/pkg/constants"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
	"github.com/codeGROOVE-dev/actiscore/pkg/epochcsv"
	"github.com/codeGROOVE-dev/actiscore/pkg/imputation"
	"github.com/codeGROOVE-dev/actiscore/pkg/pipeline"
)

var (
	// ErrNoInput is returned for a job with neither an epoch nor a raw file.
	ErrNoInput = errors.New("job has no input file")
	// ErrRawColumn is returned when epochs aggregated from raw data lack the
	// classifier's column.
	ErrRawColumn = errors.New("classifier column not available from raw data")
)

// Job is one recording to score.
type Job struct {
	Participant string
	Date        string
	// EpochPath is an epoch-count CSV. When empty, epochs are aggregated from RawPath.
	EpochPath string
	// RawPath is an optional raw tri-axial CSV.
	RawPath string
}

// Source names the job in skip reasons and records.
func (j Job) Source() string {
	if j.EpochPath != "" {
		return j.EpochPath
	}
	return j.RawPath
}

// Skipped is a job that produced no output.
type Skipped struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Sink receives every record of a run once all jobs are done.
type Sink interface {
	SaveRecords(ctx context.Context, records []pipeline.Record) error
}

// Summary is the outcome of a run.
type Summary struct {
	Warnings map[string][]string
	RunID    string
	Records  []pipeline.Record
	Skipped  []Skipped
	Scored   int
	Elapsed  time.Duration
}

// Runner scores jobs concurrently.
type Runner struct {
	scorer       *pipeline.Scorer
	logger       *slog.Logger
	sinks        []Sink
	onResult     func(Job, *pipeline.Result)
	csv          epochcsv.Options
	imputation   imputation.Config
	epochSeconds float64
	workers      int
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers bounds the number of recordings scored at once.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSink adds a destination for the run's records.
func WithSink(s Sink) Option {
	return func(r *Runner) {
		r.sinks = append(r.sinks, s)
	}
}

// WithResultHandler is called once per scored job, in job order, before the
// sinks run.
func WithResultHandler(fn func(Job, *pipeline.Result)) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// WithImputation sets the gap-filling thresholds.
func WithImputation(cfg imputation.Config) Option {
	return func(r *Runner) {
		r.imputation = cfg
	}
}

// WithCSVOptions sets how input files are parsed.
func WithCSVOptions(o epochcsv.Options) Option {
	return func(r *Runner) {
		r.csv = o
	}
}

// WithEpochSeconds sets the epoch length used when aggregating raw data.
func WithEpochSeconds(sec float64) Option {
	return func(r *Runner) {
		r.epochSeconds = sec
	}
}

// New creates a Runner around scorer.
func New(scorer *pipeline.Scorer, opts ...Option) *Runner {
	r := &Runner{
		scorer:       scorer,
		logger:       slog.Default(),
		imputation:   imputation.DefaultConfig(),
		epochSeconds: constants.DefaultEpochSeconds,
		workers:      4,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r
}

type outcome struct {
	res     *pipeline.Result
	skipped *Skipped
}

// Run scores every job and hands all records to the sinks.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: uuid.NewString(), Warnings: make(map[string][]string)}
	log := r.logger.With("run_id", sum.RunID)
	log.Info("batch started", "jobs", len(jobs), "workers", r.workers)

	outcomes := make([]outcome, len(jobs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.score(gctx, job)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("skipping recording", "source", job.Source(), "error", err)
				outcomes[i] = outcome{skipped: &Skipped{Source: job.Source(), Reason: err.Error()}}
				return nil
			}
			outcomes[i] = outcome{res: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", sum.RunID, err)
	}

	for i, o := range outcomes {
		if o.skipped != nil {
			sum.Skipped = append(sum.Skipped, *o.skipped)
			continue
		}
		sum.Scored++
		src := jobs[i].Source()
		if len(o.res.Warnings) > 0 {
			sum.Warnings[src] = o.res.Warnings
		}
		for _, rec := range o.res.Records {
			rec.RunID = sum.RunID
			sum.Records = append(sum.Records, rec)
		}
		if r.onResult != nil {
			r.onResult(jobs[i], o.res)
		}
	}
	for _, s := range r.sinks {
		if err := s.SaveRecords(ctx, sum.Records); err != nil {
			return sum, fmt.Errorf("saving records: %w", err)
		}
	}
	sum.Elapsed = time.Since(start)
	log.Info("batch finished", "scored", sum.Scored, "skipped", len(sum.Skipped), "records", len(sum.Records), "elapsed", sum.Elapsed)
	return sum, nil
}

func (r *Runner) score(ctx context.Context, job Job) (*pipeline.Result, error) {
	rec, err := r.load(job)
	if err != nil {
		return nil, err
	}
	return r.scorer.Score(ctx, rec)
}

// load reads and imputes a job's files.
func (r *Runner) load(job Job) (pipeline.Recording, error) {
	rec := pipeline.Recording{Participant: job.Participant, Date: job.Date, Source: job.Source()}
	if job.EpochPath == "" && job.RawPath == "" {
		return rec, ErrNoInput
	}
	log := r.logger.With("source", rec.Source)

	if job.RawPath != "" {
		rawOpts := r.csv
		rawOpts.EpochSeconds = 0
		samples, ts, freq, err := readRaw(job.RawPath, rawOpts)
		if err != nil {
			return rec, err
		}
		res, err := imputation.Impute(samples, ts, freq, r.imputation)
		if err != nil {
			return rec, err
		}
		log.Debug("raw imputation", "qc", res.QC)
		if rec.Raw, err = epoch.RawTable(res.Data, res.Timestamps, freq); err != nil {
			return rec, err
		}
		if job.EpochPath == "" {
			if rec.Epochs, err = epoch.FromRaw(res.Data, res.Timestamps, freq, r.epochSeconds); err != nil {
				return rec, err
			}
			if col := r.classifierColumn(); !rec.Epochs.Has(col) {
				return rec, fmt.Errorf("%w: %s needs %q, raw epochs carry %v",
					ErrRawColumn, r.scorer.Classifier().ID(), col, rec.Epochs.ColumnNames())
			}
		}
	}
	if job.EpochPath != "" {
		opts := r.csv
		opts.Required = append([]string{r.classifierColumn()}, opts.Required...)
		t, err := readEpochs(job.EpochPath, opts)
		if err != nil {
			return rec, err
		}
		if rec.Epochs, err = imputeTable(t, r.imputation); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// classifierColumn is the activity column the classifier scores.
func (r *Runner) classifierColumn() string {
	col, err := r.scorer.Classifier().Params().String("column", epoch.ColumnAxis1)
	if err != nil {
		return epoch.ColumnAxis1
	}
	return col
}

// imputeTable fills time gaps in every column of an epoch table.
func imputeTable(t *epoch.Table, cfg imputation.Config) (*epoch.Table, error) {
	if t.EpochSeconds <= 0 {
		return nil, fmt.Errorf("%w: epoch length unknown", imputation.ErrFrequency)
	}
	var out *epoch.Table
	for _, name := range t.ColumnNames() {
		res, err := imputation.ImputeCounts(t.Columns[name], t.Timestamps, t.EpochSeconds, cfg)
		if err != nil {
			return nil, fmt.Errorf("imputing %s: %w", name, err)
		}
		if out == nil {
			out = epoch.NewTable(res.Timestamps, t.EpochSeconds)
		}
		if out, err = out.With(name, res.Data); err != nil {
			return nil, err
		}
	}
	if out == nil {
		return t, nil
	}
	return out, nil
}

func readEpochs(path string, opts epochcsv.Options) (*epoch.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only
	return epochcsv.Read(f, opts)
}

func readRaw(path string, opts epochcsv.Options) ([]epoch.Sample, []float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer f.Close() //nolint:errcheck // read-only
	return epochcsv.ReadRaw(f, opts)
}
