// Package report renders a scored recording for the terminal.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
	"github.com/codeGROOVE-dev/actiscore/pkg/markers"
	"github.com/codeGROOVE-dev/actiscore/pkg/pipeline"
)

const barWidth = 40

// Timeline is the input for Render.
type Timeline struct {
	Location   *time.Location
	Timestamps []float64
	Labels     []int
	Activity   []float64
	Nonwear    []bool // nil when nonwear was not computed
	Periods    []markers.SleepPeriod
	// BucketMinutes is the row resolution; zero means 30.
	BucketMinutes int
}

type bucket struct {
	start    float64
	n        int
	sleep    int
	nonwear  int
	activity float64
}

// Render draws one row per bucket: clock time, a state marker, the share of
// sleep epochs and a bar scaled to mean activity.
func Render(t Timeline) string {
	var out strings.Builder
	out.WriteString("Sleep/Wake Timeline\n")
	out.WriteString(strings.Repeat("─", 50) + "\n")
	if len(t.Timestamps) == 0 {
		return out.String() + "No epochs available\n"
	}
	loc := t.Location
	if loc == nil {
		loc = time.UTC
	}
	width := t.BucketMinutes
	if width <= 0 {
		width = 30
	}
	span := float64(width) * 60

	var buckets []*bucket
	origin := math.Floor(t.Timestamps[0]/span) * span
	for i, ts := range t.Timestamps {
		k := int((ts - origin) / span)
		for len(buckets) <= k {
			buckets = append(buckets, &bucket{start: origin + float64(len(buckets))*span})
		}
		b := buckets[k]
		b.n++
		if i < len(t.Labels) && t.Labels[i] == 1 {
			b.sleep++
		}
		if i < len(t.Nonwear) && t.Nonwear[i] {
			b.nonwear++
		}
		if i < len(t.Activity) {
			b.activity += t.Activity[i]
		}
	}

	maxMean := 0.0
	for _, b := range buckets {
		if b.n > 0 {
			maxMean = math.Max(maxMean, b.activity/float64(b.n))
		}
	}

	sleepColor := color.New(color.FgBlue)
	nonwearColor := color.New(color.FgRed)
	markerColor := color.New(color.FgGreen, color.Bold)
	barColor := color.New(color.FgHiBlack)

	for _, b := range buckets {
		line := epoch.ToTime(b.start).In(loc).Format("15:04") + " "
		if b.n == 0 {
			out.WriteString(line + "\n")
			continue
		}
		switch {
		case edge(t.Periods, b.start, span):
			line += markerColor.Sprint("|") + " "
		case b.nonwear*2 > b.n:
			line += nonwearColor.Sprint("N") + " "
		case b.sleep*2 > b.n:
			line += sleepColor.Sprint("z") + " "
		default:
			line += "  "
		}
		line += fmt.Sprintf("(%3d%%) ", b.sleep*100/b.n)
		if maxMean > 0 {
			if n := int(math.Round(b.activity / float64(b.n) / maxMean * barWidth)); n > 0 {
				line += barColor.Sprint(strings.Repeat("█", n))
			}
		}
		out.WriteString(line + "\n")
	}
	return out.String()
}

// edge reports whether a complete period starts or ends inside the bucket.
func edge(periods []markers.SleepPeriod, start, span float64) bool {
	for _, p := range periods {
		if !p.Complete() {
			continue
		}
		if (*p.Onset >= start && *p.Onset < start+span) || (*p.Offset >= start && *p.Offset < start+span) {
			return true
		}
	}
	return false
}

// Summary lists each record's key metrics, main sleep first.
func Summary(records []pipeline.Record) string {
	var out strings.Builder
	out.WriteString("Sleep Periods\n")
	out.WriteString(strings.Repeat("─", 50) + "\n")
	if len(records) == 0 {
		out.WriteString(color.New(color.FgYellow).Sprint("No complete sleep period found") + "\n")
		return out.String()
	}
	title := color.New(color.Bold)
	for _, r := range records {
		fmt.Fprintf(&out, "%s  %s %s  %s-%s\n", title.Sprintf("#%d %-10s", r.PeriodIndex, r.PeriodType),
			r.Participant, r.Date, r.OnsetClock, r.OffsetClock)
		fmt.Fprintf(&out, "    TIB %.0f min  TST %.0f min  WASO %.0f min  efficiency %s\n",
			r.TotalMinutesInBed, r.TotalSleepTime, r.WASO, percent(r.SleepEfficiency))
		fmt.Fprintf(&out, "    awakenings %d  avg awakening %s  fragmentation %s\n",
			r.Awakenings, minutes(r.AverageAwakeningLength), percent(r.FragmentationIndex))
		fmt.Fprintf(&out, "    nonwear overlap: algorithm %s  sensor %s\n",
			minutes(r.NonwearAlgorithmMinutes), minutes(r.NonwearSensorMinutes))
	}
	return out.String()
}

func percent(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *p)
}

func minutes(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f min", *p)
}
