package report

import (
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
	"github.com/codeGROOVE-dev/actiscore/pkg/markers"
	"github.com/codeGROOVE-dev/actiscore/pkg/metrics"
	"github.com/codeGROOVE-dev/actiscore/pkg/pipeline"
)

func init() {
	color.NoColor = true
}

func TestRender(t *testing.T) {
	start := epoch.FromTime(time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC))
	n := 120
	ts := make([]float64, n)
	labels := make([]int, n)
	activity := make([]float64, n)
	nw := make([]bool, n)
	for i := range n {
		ts[i] = start + float64(i)*60
		switch {
		case i < 30:
			activity[i] = 100
		case i < 90:
			labels[i] = 1
			activity[i] = 2
		default:
			nw[i] = true
		}
	}
	out := Render(Timeline{Timestamps: ts, Labels: labels, Activity: activity, Nonwear: nw})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Title, rule, four 30-minute rows.
	if len(lines) != 6 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	want := []string{"22:00   (  0%) " + strings.Repeat("█", barWidth), "22:30 z (100%)", "23:00 z (100%)", "23:30 N (  0%)"}
	for i, w := range want {
		if !strings.HasPrefix(lines[i+2], w) {
			t.Errorf("row %d = %q, want prefix %q", i, lines[i+2], w)
		}
	}
}

func TestRenderMarksPeriodEdges(t *testing.T) {
	start := epoch.FromTime(time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC))
	ts := []float64{start, start + 1800, start + 3600}
	on, off := start+1800, start+3600
	out := Render(Timeline{
		Timestamps: ts, Labels: []int{0, 1, 1}, BucketMinutes: 30,
		Periods: []markers.SleepPeriod{{Onset: &on, Offset: &off, Index: 1, Type: markers.MainSleep}},
	})
	if strings.Count(out, "|") != 2 {
		t.Errorf("expected onset and offset markers:\n%s", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	if out := Render(Timeline{}); !strings.Contains(out, "No epochs") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSummary(t *testing.T) {
	eff := 91.24
	out := Summary([]pipeline.Record{{
		SleepMetrics: metrics.SleepMetrics{TotalMinutesInBed: 480, TotalSleepTime: 438, SleepEfficiency: &eff},
		Participant:  "P01", Date: "2024-03-01", PeriodIndex: 1, PeriodType: markers.MainSleep,
		OnsetClock: "22:30", OffsetClock: "06:30",
	}})
	for _, want := range []string{"MAIN_SLEEP", "22:30-06:30", "TST 438 min", "efficiency 91.2%", "sensor n/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if out := Summary(nil); !strings.Contains(out, "No complete sleep period") {
		t.Errorf("empty summary = %q", out)
	}
}
