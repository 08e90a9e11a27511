package pipeline

import (
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/actiscore/pkg/diary"
	"github.com/codeGROOVE-dev/actiscore/pkg/memo"
	"github.com/codeGROOVE-dev/actiscore/pkg/nonwear"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepperiod"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepwake"
)

// Option configures a Scorer.
type Option func(*OptionHolder)

// OptionHolder holds configuration options.
type OptionHolder struct {
	classifier   sleepwake.Classifier
	nonwear      nonwear.Detector
	detector     sleepperiod.Detector
	cache        *memo.Cache
	logger       *slog.Logger
	location     *time.Location
	diary        *diary.Book
	combine      nonwear.CombineOptions
	inclusiveEnd bool
	noNonwear    bool
}

// WithClassifier sets the sleep/wake classifier.
func WithClassifier(c sleepwake.Classifier) Option {
	return func(o *OptionHolder) {
		o.classifier = c
	}
}

// WithNonwear sets the nonwear detector.
func WithNonwear(d nonwear.Detector) Option {
	return func(o *OptionHolder) {
		o.nonwear = d
	}
}

// WithoutNonwear disables algorithm nonwear detection; overlap is then reported as null.
func WithoutNonwear() Option {
	return func(o *OptionHolder) {
		o.noNonwear = true
	}
}

// WithPeriodDetector sets the onset/offset rule.
func WithPeriodDetector(d sleepperiod.Detector) Option {
	return func(o *OptionHolder) {
		o.detector = d
	}
}

// WithCache memoizes classifier labels and nonwear periods.
func WithCache(c *memo.Cache) Option {
	return func(o *OptionHolder) {
		o.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *OptionHolder) {
		o.logger = logger
	}
}

// WithLocation sets the zone used for analysis dates and clock times.
func WithLocation(loc *time.Location) Option {
	return func(o *OptionHolder) {
		o.location = loc
	}
}

// WithDiary supplies diary search windows.
func WithDiary(b *diary.Book) Option {
	return func(o *OptionHolder) {
		o.diary = b
	}
}

// WithInclusiveEnd selects whether the offset epoch belongs to the scored window.
func WithInclusiveEnd(inclusive bool) Option {
	return func(o *OptionHolder) {
		o.inclusiveEnd = inclusive
	}
}

// WithCombine sets how algorithm and sensor nonwear masks merge for display.
func WithCombine(c nonwear.CombineOptions) Option {
	return func(o *OptionHolder) {
		o.combine = c
	}
}
