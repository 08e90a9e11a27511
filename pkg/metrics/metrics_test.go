package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
)

func zeros(n int) []float64 { return make([]float64, n) }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeConsolidatedSleep(t *testing.T) {
	labels := []int{0, 0, 1, 1, 1, 1, 1, 1, 0, 0}
	m, err := Compute(Input{Labels: labels, Activity: zeros(10), OnsetIndex: 0, OffsetIndex: 10})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.TotalMinutesInBed != 10 {
		t.Errorf("TIB = %v, want 10", m.TotalMinutesInBed)
	}
	if m.TotalSleepTime != 6 {
		t.Errorf("TST = %v, want 6", m.TotalSleepTime)
	}
	if m.WASO != 0 {
		t.Errorf("WASO = %v, want 0", m.WASO)
	}
	if m.SleepEfficiency == nil || !near(*m.SleepEfficiency, 60) {
		t.Errorf("efficiency = %v, want 60", m.SleepEfficiency)
	}
	if m.Awakenings != 0 || m.AverageAwakeningLength != nil {
		t.Errorf("awakenings = %d avg = %v, want 0 and nil", m.Awakenings, m.AverageAwakeningLength)
	}
	if m.FragmentationIndex == nil || *m.FragmentationIndex != 0 {
		t.Errorf("fragmentation index = %v, want 0", m.FragmentationIndex)
	}
}

func TestComputeInteriorWake(t *testing.T) {
	labels := []int{0, 1, 1, 0, 1, 1, 0, 0}
	m, err := Compute(Input{Labels: labels, Activity: zeros(8), OnsetIndex: 0, OffsetIndex: 8})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if *m.FirstSleepIndex != 1 || *m.LastSleepIndex != 5 {
		t.Errorf("first/last = %d/%d, want 1/5", *m.FirstSleepIndex, *m.LastSleepIndex)
	}
	if m.TotalSleepTime != 4 {
		t.Errorf("TST = %v, want 4", m.TotalSleepTime)
	}
	// One wake epoch lies between the first and last sleep epoch.
	if m.WASO != 1 {
		t.Errorf("WASO = %v, want 1", m.WASO)
	}
	if m.Awakenings != 1 {
		t.Errorf("awakenings = %d, want 1", m.Awakenings)
	}
	if m.AverageAwakeningLength == nil || *m.AverageAwakeningLength != 1 {
		t.Errorf("average awakening = %v, want 1", m.AverageAwakeningLength)
	}
	if m.FragmentationIndex == nil || !near(*m.FragmentationIndex, 25) {
		t.Errorf("fragmentation index = %v, want 25", m.FragmentationIndex)
	}
}

func TestLeadingAndTrailingWakeAreNotAwakenings(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}
	m, err := Compute(Input{Labels: labels, Activity: zeros(len(labels)), OffsetIndex: len(labels)})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.Awakenings != 2 {
		t.Errorf("awakenings = %d, want 2", m.Awakenings)
	}
	if m.AverageAwakeningLength == nil || !near(*m.AverageAwakeningLength, 1.5) {
		t.Errorf("average awakening = %v, want 1.5", m.AverageAwakeningLength)
	}
	if m.WASO != 3 {
		t.Errorf("WASO = %v, want 3", m.WASO)
	}
}

func TestInclusiveEnd(t *testing.T) {
	labels := []int{1, 1, 1, 1, 1}
	excl, err := Compute(Input{Labels: labels, Activity: zeros(5), OnsetIndex: 1, OffsetIndex: 3})
	if err != nil {
		t.Fatalf("Compute exclusive: %v", err)
	}
	incl, err := Compute(Input{Labels: labels, Activity: zeros(5), OnsetIndex: 1, OffsetIndex: 3, InclusiveEnd: true})
	if err != nil {
		t.Fatalf("Compute inclusive: %v", err)
	}
	if excl.TotalMinutesInBed != 2 || incl.TotalMinutesInBed != 3 {
		t.Errorf("TIB exclusive/inclusive = %v/%v, want 2/3", excl.TotalMinutesInBed, incl.TotalMinutesInBed)
	}
	if _, err := Compute(Input{Labels: labels, Activity: zeros(5), OnsetIndex: 0, OffsetIndex: 5, InclusiveEnd: true}); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("inclusive offset past end: expected ErrInvalidWindow, got %v", err)
	}
}

func TestNoSleepInWindow(t *testing.T) {
	m, err := Compute(Input{Labels: []int{0, 0, 0, 0}, Activity: []float64{5, 0, 3, 0}, OffsetIndex: 4})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.TotalSleepTime != 0 || m.FirstSleepIndex != nil || m.FragmentationIndex != nil {
		t.Errorf("expected zero TST, nil first index and nil fragmentation, got %+v", m)
	}
	if m.SleepEfficiency == nil || *m.SleepEfficiency != 0 {
		t.Errorf("efficiency = %v, want 0", m.SleepEfficiency)
	}
	if m.MovementIndex == nil || !near(*m.MovementIndex, 0.5) {
		t.Errorf("movement index = %v, want 0.5", m.MovementIndex)
	}
	if m.TotalActivity != 8 {
		t.Errorf("total activity = %v, want 8", m.TotalActivity)
	}
}

func TestEmptyWindowNullsRatios(t *testing.T) {
	m, err := Compute(Input{Labels: []int{1, 1}, Activity: zeros(2), OnsetIndex: 1, OffsetIndex: 1})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.TotalMinutesInBed != 0 || m.SleepEfficiency != nil || m.MovementIndex != nil || m.SleepFragmentationIndex != nil {
		t.Errorf("expected null ratios for empty window, got %+v", m)
	}
	if m.LabelAtOnset != nil {
		t.Errorf("label at onset should be nil for an empty window")
	}
}

func TestSleepFragmentationIndex(t *testing.T) {
	labels := []int{1, 0, 1, 1, 1, 1, 1, 1, 1, 1}
	activity := []float64{0, 40, 0, 0, 12, 0, 0, 0, 0, 0}
	m, err := Compute(Input{Labels: labels, Activity: activity, OffsetIndex: 10})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// (WASO 1 + movement 2) / TIB 10.
	if m.SleepFragmentationIndex == nil || !near(*m.SleepFragmentationIndex, 30) {
		t.Errorf("SFI = %v, want 30", m.SleepFragmentationIndex)
	}
	if m.LabelAtOnset == nil || *m.LabelAtOnset != 1 {
		t.Errorf("label at onset = %v, want 1", m.LabelAtOnset)
	}
	// An exclusive offset one past the series has no epoch to read.
	if m.LabelAtOffset != nil {
		t.Errorf("label at offset = %d, want nil", *m.LabelAtOffset)
	}
}

func TestLabelAtOffsetReadsOffsetEpoch(t *testing.T) {
	labels := []int{0, 1, 1, 1, 0, 0}
	for _, inclusive := range []bool{false, true} {
		m, err := Compute(Input{Labels: labels, Activity: zeros(6), OnsetIndex: 1, OffsetIndex: 4, InclusiveEnd: inclusive})
		if err != nil {
			t.Fatalf("Compute inclusive=%v: %v", inclusive, err)
		}
		if m.LabelAtOffset == nil || *m.LabelAtOffset != 0 {
			t.Errorf("inclusive=%v: label at offset = %v, want 0 from epoch 4", inclusive, m.LabelAtOffset)
		}
		if m.LabelAtOnset == nil || *m.LabelAtOnset != 1 {
			t.Errorf("inclusive=%v: label at onset = %v, want 1", inclusive, m.LabelAtOnset)
		}
	}
}

func TestNonwearOverlap(t *testing.T) {
	mask := []bool{true, true, false, true, true, true}
	got, err := OverlappingNonwearMinutes(mask, 1, 4, false, 60)
	if err != nil {
		t.Fatalf("OverlappingNonwearMinutes: %v", err)
	}
	if got == nil || *got != 2 {
		t.Errorf("overlap = %v, want 2", got)
	}
	got, err = OverlappingNonwearMinutes(mask, 1, 4, true, 60)
	if err != nil || got == nil || *got != 3 {
		t.Errorf("inclusive overlap = %v, %v; want 3", got, err)
	}
	got, err = OverlappingNonwearMinutes(nil, 1, 4, false, 60)
	if err != nil || got != nil {
		t.Errorf("no mask: got %v, %v; want nil, nil", got, err)
	}
	none, _ := OverlappingNonwearMinutes([]bool{false, false, false}, 0, 3, false, 60)
	if none == nil || *none != 0 {
		t.Errorf("computed-as-zero must be 0, got %v", none)
	}

	m, err := Compute(Input{
		Labels: []int{1, 1, 1, 1, 1, 1}, Activity: zeros(6),
		NonwearAlgorithm: mask, OffsetIndex: 6,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.NonwearAlgorithmMinutes == nil || *m.NonwearAlgorithmMinutes != 5 {
		t.Errorf("algorithm nonwear = %v, want 5", m.NonwearAlgorithmMinutes)
	}
	if m.NonwearSensorMinutes != nil {
		t.Errorf("sensor nonwear should be nil when no mask is given")
	}
}

func TestMisalignedIsFatal(t *testing.T) {
	cases := map[string]Input{
		"activity":   {Labels: []int{1, 1, 1}, Activity: zeros(2), OffsetIndex: 2},
		"timestamps": {Labels: []int{1, 1, 1}, Activity: zeros(3), Timestamps: []float64{0, 60}, OffsetIndex: 2},
		"mask":       {Labels: []int{1, 1, 1}, Activity: zeros(3), NonwearSensor: []bool{true}, OffsetIndex: 2},
	}
	for name, in := range cases {
		if _, err := Compute(in); !errors.Is(err, epoch.ErrMisaligned) {
			t.Errorf("%s: expected ErrMisaligned, got %v", name, err)
		}
	}
}

func TestFiveSecondEpochs(t *testing.T) {
	labels := make([]int, 24)
	for i := range labels {
		labels[i] = 1
	}
	m, err := Compute(Input{Labels: labels, Activity: zeros(24), OffsetIndex: 24, EpochSeconds: 5})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !near(m.TotalMinutesInBed, 2) || !near(m.TotalSleepTime, 2) {
		t.Errorf("TIB/TST = %v/%v, want 2/2", m.TotalMinutesInBed, m.TotalSleepTime)
	}
}
