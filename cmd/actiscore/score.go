package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/actiscore/pkg/batch"
	"github.com/codeGROOVE-dev/actiscore/pkg/config"
	"github.com/codeGROOVE-dev/actiscore/pkg/diary"
	"github.com/codeGROOVE-dev/actiscore/pkg/epochcsv"
	"github.com/codeGROOVE-dev/actiscore/pkg/export"
	"github.com/codeGROOVE-dev/actiscore/pkg/memo"
	"github.com/codeGROOVE-dev/actiscore/pkg/pipeline"
	"github.com/codeGROOVE-dev/actiscore/pkg/report"
	"github.com/codeGROOVE-dev/actiscore/pkg/store"
)

var errNoFiles = errors.New("no input files")

var scoreFlags struct {
	raw          []string
	participant  string
	date         string
	classifier   string
	nonwear      string
	detector     string
	diary        string
	output       string
	dialect      string
	dsn          string
	timezone     string
	workers      int
	exclusiveEnd bool
	noCache      bool
	timeline     bool
}

var scoreCmd = &cobra.Command{
	Use:   "score [epochs.csv ...]",
	Short: "Score one or more recordings",
	Long: `score reads epoch-count CSV files, optionally paired with raw tri-axial
CSV files (--raw), and reports the sleep metrics of every detected period.

Participant ids default to the file name without its extension.`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringSliceVar(&scoreFlags.raw, "raw", nil, "Raw x,y,z CSV per recording (paired with epoch files by position)")
	f.StringVar(&scoreFlags.participant, "participant", "", "Participant id (single recording only)")
	f.StringVar(&scoreFlags.date, "date", "", "Analysis date YYYY-MM-DD (single recording only)")
	f.StringVar(&scoreFlags.classifier, "classifier", "", "Sleep/wake classifier id")
	f.StringVar(&scoreFlags.nonwear, "nonwear", "", "Nonwear detector id, or \"none\"")
	f.StringVar(&scoreFlags.detector, "period-detector", "", "Sleep period detector id")
	f.StringVar(&scoreFlags.diary, "diary", "", "Sleep diary CSV")
	f.StringVarP(&scoreFlags.output, "output", "o", "", "Export file (.csv or .xlsx)")
	f.StringVar(&scoreFlags.dialect, "db-dialect", "", "Database dialect: sqlite or postgres")
	f.StringVar(&scoreFlags.dsn, "db-dsn", "", "Database connection string or sqlite file")
	f.StringVar(&scoreFlags.timezone, "timezone", "", "IANA zone for dates and clock times")
	f.IntVar(&scoreFlags.workers, "workers", 0, "Recordings scored at once")
	f.BoolVar(&scoreFlags.exclusiveEnd, "exclusive-end", false, "Leave the offset epoch out of the scored window")
	f.BoolVar(&scoreFlags.noCache, "no-cache", false, "Disable the result cache")
	f.BoolVar(&scoreFlags.timeline, "timeline", false, "Print a sleep/wake timeline per recording")
}

// applyFlags overlays flags that were set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	set := func(name, v string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("classifier", scoreFlags.classifier, &cfg.Classifier.ID)
	set("nonwear", scoreFlags.nonwear, &cfg.Nonwear.ID)
	set("period-detector", scoreFlags.detector, &cfg.PeriodDetector.ID)
	set("diary", scoreFlags.diary, &cfg.DiaryPath)
	set("output", scoreFlags.output, &cfg.Output.Path)
	set("db-dialect", scoreFlags.dialect, &cfg.Output.Dialect)
	set("db-dsn", scoreFlags.dsn, &cfg.Output.DSN)
	set("timezone", scoreFlags.timezone, &cfg.Timezone)
	if cmd.Flags().Changed("workers") {
		cfg.Workers = scoreFlags.workers
	}
	if cmd.Flags().Changed("exclusive-end") {
		cfg.InclusiveEnd = !scoreFlags.exclusiveEnd
	}
	if scoreFlags.noCache {
		cfg.Cache.Disabled = true
	}
}

// buildJobs pairs epoch files with raw files by position. With no epoch
// files, each raw file is a job of its own.
func buildJobs(epochPaths, rawPaths []string, participant, date string) ([]batch.Job, error) {
	n := len(epochPaths)
	if n == 0 {
		n = len(rawPaths)
	}
	if n == 0 {
		return nil, errNoFiles
	}
	if len(epochPaths) > 0 && len(rawPaths) > 0 && len(rawPaths) != len(epochPaths) {
		return nil, fmt.Errorf("%d raw files for %d epoch files", len(rawPaths), len(epochPaths))
	}
	if n > 1 && (participant != "" || date != "") {
		return nil, errors.New("--participant and --date need a single recording")
	}
	jobs := make([]batch.Job, n)
	for i := range jobs {
		var j batch.Job
		if len(epochPaths) > 0 {
			j.EpochPath = epochPaths[i]
		}
		if len(rawPaths) > 0 {
			j.RawPath = rawPaths[i]
		}
		j.Participant = participant
		if j.Participant == "" {
			j.Participant = stem(j.Source())
		}
		j.Date = date
		jobs[i] = j
	}
	return jobs, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	jobs, err := buildJobs(args, scoreFlags.raw, scoreFlags.participant, scoreFlags.date)
	if err != nil {
		return err
	}
	logger := newLogger()
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.ScorerOptions()
	if err != nil {
		return err
	}
	opts = append(opts, pipeline.WithLogger(logger))

	if !cfg.Cache.Disabled {
		cache, err := openCache(ctx, cfg, logger)
		if err != nil {
			logger.Warn("cache disabled", "error", err)
		} else {
			defer func() {
				if err := cache.Close(); err != nil {
					logger.Warn("closing cache", "error", err)
				}
			}()
			opts = append(opts, pipeline.WithCache(cache))
		}
	}

	if cfg.DiaryPath != "" {
		book, err := loadDiary(cfg.DiaryPath, cfg)
		if err != nil {
			return err
		}
		logger.Info("diary loaded", "entries", book.Len())
		opts = append(opts, pipeline.WithDiary(book))
	}

	scorer, err := pipeline.New(opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	runOpts := []batch.Option{
		batch.WithWorkers(cfg.Workers),
		batch.WithLogger(logger),
		batch.WithImputation(cfg.Imputation),
		batch.WithEpochSeconds(cfg.EpochSeconds),
		batch.WithCSVOptions(epochcsv.Options{Location: loc}),
	}
	if scoreFlags.timeline {
		runOpts = append(runOpts, batch.WithResultHandler(func(j batch.Job, res *pipeline.Result) {
			fmt.Fprintf(out, "\n%s %s\n", color.New(color.Bold).Sprint(j.Participant), res.Date)
			fmt.Fprint(out, report.Render(report.Timeline{
				Location:   loc,
				Timestamps: res.Timestamps,
				Labels:     res.Labels,
				Activity:   res.Activity,
				Nonwear:    res.NonwearCombined,
				Periods:    res.Markers.Complete(),
			}))
		}))
	}
	if cfg.Output.Path != "" {
		runOpts = append(runOpts, batch.WithSink(export.FileSink{Path: cfg.Output.Path}))
	}
	if cfg.Output.Dialect != "" {
		db, err := store.Open(ctx, store.Dialect(cfg.Output.Dialect), cfg.Output.DSN, store.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("closing database", "error", err)
			}
		}()
		runOpts = append(runOpts, batch.WithSink(db))
	}

	sum, err := batch.New(scorer, runOpts...).Run(ctx, jobs)
	if sum != nil {
		printSummary(cmd, sum)
	}
	return err
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*memo.Cache, error) {
	dir := cfg.Cache.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "actiscore")
	}
	return memo.New(ctx, uint64(max(cfg.Cache.MaxMB, 1))<<20, memo.WithDir(dir), memo.WithLogger(logger))
}

func loadDiary(path string, cfg *config.Config) (*diary.Book, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening diary: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file
	return diary.Load(f, loc)
}

func printSummary(cmd *cobra.Command, sum *batch.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprint(out, report.Summary(sum.Records))
	warn := color.New(color.FgYellow)
	sources := make([]string, 0, len(sum.Warnings))
	for src := range sum.Warnings {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		for _, m := range sum.Warnings[src] {
			fmt.Fprintf(out, "%s %s: %s\n", warn.Sprint("warning"), src, m)
		}
	}
	skip := color.New(color.FgRed)
	for _, s := range sum.Skipped {
		fmt.Fprintf(out, "%s %s: %s\n", skip.Sprint("skipped"), s.Source, s.Reason)
	}
	fmt.Fprintf(out, "\nrun %s: %d scored, %d skipped, %d periods in %s\n",
		sum.RunID, sum.Scored, len(sum.Skipped), len(sum.Records), sum.Elapsed.Round(time.Millisecond))
}
