// Package sleepwake maps activity epochs to binary sleep/wake labels.
//
// Every Classifier is immutable after construction: identical input arrays
// and an identical configuration always produce identical labels, and one
// instance may be shared by concurrent scoring goroutines.
package sleepwake

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

// Labels.
const (
	Wake  = 0
	Sleep = 1
)

// ErrEpochLength is returned when a table's epoch length does not match the classifier.
var ErrEpochLength = errors.New("epoch length not supported by classifier")

// Classifier scores an activity series into per-epoch sleep labels.
type Classifier interface {
	ID() string
	DisplayName() string
	EpochLength() time.Duration
	RequiresRawData() bool
	Params() algorithm.Params
	// Score reads the classifier's configured column from t.
	Score(t *epoch.Table) ([]int, error)
	// ScoreArray scores a bare activity array aligned with timestamps.
	ScoreArray(activity, timestamps []float64) ([]int, error)
}

// Registry holds every built-in classifier.
var Registry = algorithm.NewRegistry[Classifier]("sleep/wake classifier", SadehID)

func init() {
	Registry.Register(SadehID, "Sadeh (1994, ActiLife)", NewSadeh)
	Registry.Register(ColeKripkeID, "Cole-Kripke (1992, ActiLife)", NewColeKripke)
}

// scoreTable is the shared Score implementation for count-based classifiers.
func scoreTable(c Classifier, column string, t *epoch.Table) ([]int, error) {
	want := c.EpochLength().Seconds()
	if t.EpochSeconds != 0 && math.Abs(t.EpochSeconds-want) > 1e-9 {
		return nil, fmt.Errorf("%w: %s needs %.0fs epochs, table has %.0fs", ErrEpochLength, c.ID(), want, t.EpochSeconds)
	}
	activity, err := t.Column(column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.ID(), err)
	}
	return c.ScoreArray(activity, t.Timestamps)
}

// padded returns x[i], or 0 outside the series.
func padded(x []float64, i int) float64 {
	if i < 0 || i >= len(x) {
		return 0
	}
	return x[i]
}
