package nonwear

import (
	"errors"
	"math"
	"testing"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/epoch"
	"github.com/google/go-cmp/cmp"
)

// countTable builds a 60s epoch table from (value, length) segments.
func countTable(segments ...[2]int) *epoch.Table {
	var x []float64
	for _, s := range segments {
		for range s[1] {
			x = append(x, float64(s[0]))
		}
	}
	ts := make([]float64, len(x))
	for i := range ts {
		ts[i] = float64(i * 60)
	}
	t := epoch.NewTable(ts, 60)
	t.Columns[epoch.ColumnVectorMagnitude] = x
	return t
}

func choi(t *testing.T) Detector {
	t.Helper()
	d, err := Registry.Create(ChoiID, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return d
}

func spans(periods []Period) [][2]int {
	out := make([][2]int, 0, len(periods))
	for _, p := range periods {
		out = append(out, [2]int{p.StartIndex, p.EndIndex})
	}
	return out
}

func TestChoi(t *testing.T) {
	tests := []struct {
		name  string
		table *epoch.Table
		want  [][2]int
	}{
		{
			name:  "plain zero run",
			table: countTable([2]int{100, 20}, [2]int{0, 120}, [2]int{100, 20}),
			want:  [][2]int{{20, 139}},
		},
		{
			name:  "tolerated two minute spike",
			table: countTable([2]int{100, 10}, [2]int{0, 60}, [2]int{40, 2}, [2]int{0, 70}, [2]int{100, 19}),
			want:  [][2]int{{10, 141}},
		},
		{
			name:  "three minute spike splits the run",
			table: countTable([2]int{100, 10}, [2]int{0, 60}, [2]int{40, 3}, [2]int{0, 70}, [2]int{100, 19}),
			want:  [][2]int{},
		},
		{
			name:  "spike without a clean upstream window",
			table: countTable([2]int{100, 10}, [2]int{0, 20}, [2]int{40, 1}, [2]int{0, 100}, [2]int{100, 5}),
			want:  [][2]int{{31, 130}},
		},
		{
			name:  "too short",
			table: countTable([2]int{0, 89}),
			want:  [][2]int{},
		},
		{
			name:  "whole recording",
			table: countTable([2]int{0, 90}),
			want:  [][2]int{{0, 89}},
		},
		{
			name:  "two periods",
			table: countTable([2]int{0, 95}, [2]int{500, 50}, [2]int{0, 100}),
			want:  [][2]int{{0, 94}, {145, 244}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := choi(t).Detect(tt.table, "")
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if diff := cmp.Diff(tt.want, spans(got)); diff != "" {
				t.Errorf("periods (-want +got):\n%s", diff)
			}
			if err := Validate(got); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestChoiFallsBackToAxis1(t *testing.T) {
	tbl := countTable([2]int{0, 100})
	tbl.Columns[epoch.ColumnAxis1] = tbl.Columns[epoch.ColumnVectorMagnitude]
	delete(tbl.Columns, epoch.ColumnVectorMagnitude)
	got, err := choi(t).Detect(tbl, "")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected one period, got %v", got)
	}
	if _, err := choi(t).Detect(tbl, epoch.ColumnVectorMagnitude); !errors.Is(err, epoch.ErrNoColumn) {
		t.Errorf("explicit missing column: expected ErrNoColumn, got %v", err)
	}
}

func TestVanHees(t *testing.T) {
	const n = 4 * 3600
	samples := make([]epoch.Sample, n)
	for i := range samples {
		if i < 2*3600 {
			samples[i] = epoch.Sample{X: 0.001 * float64(i%7-3), Y: 0, Z: 1}
			continue
		}
		samples[i] = epoch.Sample{X: 0.5 * math.Sin(float64(i)*0.1), Y: 0.5 * math.Cos(float64(i)*0.1), Z: 1}
	}
	tbl, err := epoch.RawTable(samples, epoch.UniformGrid(0, n, 1), 1)
	if err != nil {
		t.Fatalf("RawTable: %v", err)
	}
	d, err := Registry.Create(VanHeesID, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !d.RequiresRawData() {
		t.Error("van Hees must declare that it needs raw data")
	}
	got, err := d.Detect(tbl, "")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if diff := cmp.Diff([][2]int{{0, 7199}}, spans(got)); diff != "" {
		t.Errorf("periods (-want +got):\n%s", diff)
	}

	if _, err := d.Detect(countTable([2]int{0, 10}), ""); !errors.Is(err, errNoRawColumns) {
		t.Errorf("expected errNoRawColumns, got %v", err)
	}
}

func TestMaskFromPeriodsAcrossGrids(t *testing.T) {
	// A period found on a 1 Hz grid projected onto 60s epochs.
	p := []Period{{StartTime: 120, EndTime: 300, StartIndex: 120, EndIndex: 299}}
	epochs := []float64{0, 60, 120, 180, 240, 300, 360}
	got := MaskFromPeriods(p, epochs)
	want := []bool{false, false, true, true, true, false, false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mask (-want +got):\n%s", diff)
	}
	back := PeriodsFromMask(got, epochs, 60)
	if diff := cmp.Diff([][2]int{{2, 4}}, spans(back)); diff != "" {
		t.Errorf("periods (-want +got):\n%s", diff)
	}
	if len(back) == 1 && (back[0].EndTime != 300 || back[0].Minutes() != 3) {
		t.Errorf("period ends at %v lasting %v min, want 300 and 3", back[0].EndTime, back[0].Minutes())
	}
}

func TestSingleEpochPeriods(t *testing.T) {
	epochs := []float64{0, 60, 120, 180, 240}
	mask := []bool{false, true, false, true, true}
	periods := PeriodsFromMask(mask, epochs, 60)
	want := []Period{
		{StartTime: 60, EndTime: 120, StartIndex: 1, EndIndex: 1},
		{StartTime: 180, EndTime: 300, StartIndex: 3, EndIndex: 4},
	}
	if diff := cmp.Diff(want, periods); diff != "" {
		t.Errorf("periods (-want +got):\n%s", diff)
	}
	if err := Validate(periods); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if periods[0].Minutes() != 1 {
		t.Errorf("one-epoch period lasts %v min, want 1", periods[0].Minutes())
	}
	// Half-open ends do not leak into the following epoch.
	if diff := cmp.Diff(mask, MaskFromPeriods(periods, epochs)); diff != "" {
		t.Errorf("round trip mask (-want +got):\n%s", diff)
	}

	d, err := Registry.Create(ChoiID, algorithm.Params{"min_period_min": 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := d.Detect(countTable([2]int{100, 10}, [2]int{0, 1}, [2]int{100, 5}, [2]int{0, 1}, [2]int{100, 10}), "")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if diff := cmp.Diff([][2]int{{10, 10}, {16, 16}}, spans(got)); diff != "" {
		t.Errorf("choi periods (-want +got):\n%s", diff)
	}
	if err := Validate(got); err != nil {
		t.Errorf("one-epoch choi periods rejected: %v", err)
	}
}

func TestMask(t *testing.T) {
	got := Mask([]Period{{StartIndex: 1, EndIndex: 2}, {StartIndex: 4, EndIndex: 9}}, 6)
	want := []bool{false, true, true, false, true, true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mask (-want +got):\n%s", diff)
	}
}

func TestCombine(t *testing.T) {
	alg := []bool{true, true, false, false}
	sensor := []bool{false, false, true, false}
	none := []bool{false, false, false, false}

	tests := []struct {
		name        string
		alg, sensor []bool
		opts        CombineOptions
		want        []bool
	}{
		{"prefer sensor with sensor periods", alg, sensor, CombineOptions{PreferSensor: true}, sensor},
		{"prefer sensor without sensor periods", alg, none, CombineOptions{PreferSensor: true}, alg},
		{"prefer algorithm", alg, sensor, CombineOptions{}, alg},
		{"prefer algorithm without algorithm periods", none, sensor, CombineOptions{}, sensor},
		{"explicit union", alg, sensor, CombineOptions{Union: true, PreferSensor: true}, []bool{true, true, true, false}},
		{"sensor unavailable", alg, nil, CombineOptions{PreferSensor: true}, alg},
		{"both unavailable", nil, nil, CombineOptions{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Combine(tt.alg, tt.sensor, tt.opts)); diff != "" {
				t.Errorf("Combine (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	ok := []Period{{StartTime: 0, EndTime: 10}, {StartTime: 20, EndTime: 30}}
	if err := Validate(ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	overlapping := []Period{{StartTime: 0, EndTime: 25}, {StartTime: 20, EndTime: 30}}
	if err := Validate(overlapping); !errors.Is(err, ErrInvalidPeriods) {
		t.Errorf("expected ErrInvalidPeriods, got %v", err)
	}
	touching := []Period{{StartTime: 0, EndTime: 20}, {StartTime: 20, EndTime: 30}}
	if err := Validate(touching); err != nil {
		t.Errorf("touching half-open periods: unexpected error %v", err)
	}
	empty := []Period{{StartTime: 5, EndTime: 5}}
	if err := Validate(empty); !errors.Is(err, ErrInvalidPeriods) {
		t.Errorf("expected ErrInvalidPeriods, got %v", err)
	}
}

func TestBadParams(t *testing.T) {
	if _, err := Registry.Create(ChoiID, algorithm.Params{"min_period_min": 0}); !errors.Is(err, algorithm.ErrBadParam) {
		t.Errorf("expected ErrBadParam, got %v", err)
	}
}
