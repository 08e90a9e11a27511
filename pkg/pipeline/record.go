package pipeline

import (
	"github.com/codeGROOVE-dev/actiscore/pkg/markers"
	"github.com/codeGROOVE-dev/actiscore/pkg/metrics"
)

// Window sources.
const (
	WindowDiary      = "diary"
	WindowFullSeries = "full_series"
)

// Record is the flat output for one scored sleep period.
type Record struct {
	metrics.SleepMetrics

	RunID              string       `json:"run_id,omitempty"`
	Source             string       `json:"source,omitempty"`
	Participant        string       `json:"participant_id"`
	Date               string       `json:"analysis_date"`
	PeriodType         markers.Type `json:"marker_type"`
	ClassifierID       string       `json:"sleep_algorithm"`
	NonwearAlgorithmID string       `json:"nonwear_algorithm"`
	PeriodDetectorID   string       `json:"sleep_period_detector"`
	WindowSource       string       `json:"window_source"`
	OnsetClock         string       `json:"onset_time"`
	OffsetClock        string       `json:"offset_time"`
	OnsetTimestamp     float64      `json:"onset_timestamp"`
	OffsetTimestamp    float64      `json:"offset_timestamp"`
	PeriodIndex        int          `json:"marker_index"`
}

// Columns returns the flat column names in export order.
func Columns() []string {
	return []string{
		"run_id", "source", "participant_id", "analysis_date", "marker_index", "marker_type",
		"sleep_algorithm", "nonwear_algorithm", "sleep_period_detector", "window_source",
		"onset_time", "offset_time", "onset_timestamp", "offset_timestamp", "inclusive_end",
		"total_sleep_time", "sleep_efficiency", "total_minutes_in_bed", "waso", "awakenings",
		"average_awakening_length", "total_activity", "movement_index", "fragmentation_index",
		"sleep_fragmentation_index", "sleep_label_at_onset", "sleep_label_at_offset",
		"nonwear_algorithm_minutes", "nonwear_sensor_minutes",
	}
}

// Values returns the record's values in Columns order. Null metrics are nil.
func (r *Record) Values() []any {
	return []any{
		r.RunID, r.Source, r.Participant, r.Date, r.PeriodIndex, string(r.PeriodType),
		r.ClassifierID, r.NonwearAlgorithmID, r.PeriodDetectorID, r.WindowSource,
		r.OnsetClock, r.OffsetClock, r.OnsetTimestamp, r.OffsetTimestamp, r.InclusiveEnd,
		r.TotalSleepTime, deref(r.SleepEfficiency), r.TotalMinutesInBed, r.WASO, r.Awakenings,
		deref(r.AverageAwakeningLength), r.TotalActivity, deref(r.MovementIndex), deref(r.FragmentationIndex),
		deref(r.SleepFragmentationIndex), derefInt(r.LabelAtOnset), derefInt(r.LabelAtOffset),
		deref(r.NonwearAlgorithmMinutes), deref(r.NonwearSensorMinutes),
	}
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
