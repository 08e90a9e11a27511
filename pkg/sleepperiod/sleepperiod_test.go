package sleepperiod

import (
	"errors"
	"fmt"
	"testing"

	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

func minuteGrid(n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = 1_700_000_000 + float64(i*60)
	}
	return ts
}

func create(t *testing.T, id string) Detector {
	t.Helper()
	d, err := Registry.Create(id, nil)
	if err != nil {
		t.Fatalf("Create(%q): %v", id, err)
	}
	return d
}

func idx(p *int) string {
	if p == nil {
		return "nil"
	}
	return fmt.Sprint(*p)
}

func TestConsecutiveSingleRun(t *testing.T) {
	d := create(t, Consecutive3x5ID)
	const runStart = 10
	for length := 1; length <= 8; length++ {
		t.Run(fmt.Sprintf("L=%d", length), func(t *testing.T) {
			scores := make([]int, 30)
			for i := runStart; i < runStart+length; i++ {
				scores[i] = 1
			}
			ts := minuteGrid(len(scores))
			onset, offset, err := d.ApplyRules(scores, ts[0], ts[len(ts)-1], ts)
			if err != nil {
				t.Fatalf("ApplyRules: %v", err)
			}
			wantOnset, wantOffset := "nil", "nil"
			if length >= 3 {
				wantOnset = fmt.Sprint(runStart)
			}
			if length >= 5 {
				wantOffset = fmt.Sprint(runStart + length - 1)
			}
			if idx(onset) != wantOnset || idx(offset) != wantOffset {
				t.Errorf("got (%s, %s), want (%s, %s)", idx(onset), idx(offset), wantOnset, wantOffset)
			}
		})
	}
}

func TestConsecutiveMultipleRuns(t *testing.T) {
	d := create(t, Consecutive3x5ID)
	//              0  1  2  3  4  5  6  7  8  9 10 11 12 13 14 15 16 17 18 19
	scores := []int{0, 1, 1, 0, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 0}
	ts := minuteGrid(len(scores))
	onset, offset, err := d.ApplyRules(scores, ts[0], ts[len(ts)-1], ts)
	if err != nil {
		t.Fatalf("ApplyRules: %v", err)
	}
	if idx(onset) != "4" || idx(offset) != "13" {
		t.Errorf("got (%s, %s), want (4, 13)", idx(onset), idx(offset))
	}
}

func TestConsecutiveRespectsWindow(t *testing.T) {
	d := create(t, Consecutive3x5ID)
	scores := make([]int, 40)
	for i := 2; i < 10; i++ { // outside the window
		scores[i] = 1
	}
	for i := 20; i < 27; i++ {
		scores[i] = 1
	}
	ts := minuteGrid(len(scores))
	onset, offset, err := d.ApplyRules(scores, ts[15], ts[35], ts)
	if err != nil {
		t.Fatalf("ApplyRules: %v", err)
	}
	if idx(onset) != "20" || idx(offset) != "26" {
		t.Errorf("got (%s, %s), want (20, 26)", idx(onset), idx(offset))
	}

	// A run cut by the window end is only counted up to the window edge.
	onset, offset, err = d.ApplyRules(scores, ts[15], ts[23], ts)
	if err != nil {
		t.Fatalf("ApplyRules: %v", err)
	}
	if idx(onset) != "20" || idx(offset) != "nil" {
		t.Errorf("truncated window: got (%s, %s), want (20, nil)", idx(onset), idx(offset))
	}
}

func TestEmptyWindows(t *testing.T) {
	scores := []int{1, 1, 1, 1, 1, 1, 1}
	ts := minuteGrid(len(scores))
	for _, id := range Registry.IDs() {
		d := create(t, id)
		for name, w := range map[string][2]float64{
			"zero width":     {ts[3], ts[3]},
			"inverted":       {ts[5], ts[1]},
			"outside":        {ts[6] + 600, ts[6] + 6000},
			"between epochs": {ts[2] + 1, ts[2] + 59},
		} {
			onset, offset, err := d.ApplyRules(scores, w[0], w[1], ts)
			if err != nil || onset != nil || offset != nil {
				t.Errorf("%s/%s: got (%s, %s, %v), want (nil, nil, nil)", id, name, idx(onset), idx(offset), err)
			}
		}
		wake := make([]int, len(scores))
		onset, offset, err := d.ApplyRules(wake, ts[0], ts[len(ts)-1], ts)
		if err != nil || onset != nil || offset != nil {
			t.Errorf("%s/all wake: got (%s, %s, %v), want (nil, nil, nil)", id, idx(onset), idx(offset), err)
		}
	}
}

func TestMisalignedIsFatal(t *testing.T) {
	for _, id := range Registry.IDs() {
		d := create(t, id)
		ts := minuteGrid(5)
		_, _, err := d.ApplyRules([]int{1, 1, 1, 1}, ts[0], ts[4], ts)
		if !errors.Is(err, epoch.ErrMisaligned) {
			t.Errorf("%s: expected ErrMisaligned, got %v", id, err)
		}
	}
}

func TestConsecutiveFiveSecondEpochs(t *testing.T) {
	d, err := Registry.Create(Consecutive3x5ID, map[string]any{"epoch_seconds": 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// 3 minutes of 5s epochs is 36 epochs.
	scores := make([]int, 100)
	for i := 10; i < 45; i++ {
		scores[i] = 1
	}
	ts := make([]float64, len(scores))
	for i := range ts {
		ts[i] = float64(i * 5)
	}
	onset, _, err := d.ApplyRules(scores, ts[0], ts[len(ts)-1], ts)
	if err != nil {
		t.Fatalf("ApplyRules: %v", err)
	}
	if onset != nil {
		t.Errorf("35 epochs of 5s must not satisfy a 3 minute onset, got %s", idx(onset))
	}
}

func TestTudorLocke(t *testing.T) {
	d := create(t, TudorLockeID)
	scores := make([]int, 60)
	for i := 5; i < 30; i++ {
		scores[i] = 1
	}
	scores[32] = 1 // brief sleep inside a short wake bout keeps the period going
	for i := 45; i < 50; i++ {
		scores[i] = 1 // after ten wake epochs: not part of the period
	}
	ts := minuteGrid(len(scores))
	onset, offset, err := d.ApplyRules(scores, ts[0], ts[len(ts)-1], ts)
	if err != nil {
		t.Fatalf("ApplyRules: %v", err)
	}
	if idx(onset) != "5" || idx(offset) != "32" {
		t.Errorf("got (%s, %s), want (5, 32)", idx(onset), idx(offset))
	}
}
