package memo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestKeyStability(t *testing.T) {
	p := algorithm.Params{"threshold": -4.0, "column": "axis1"}
	a := Key("sadeh", p, []float64{1, 2, 3}, []float64{60, 120, 180})
	b := Key("sadeh", algorithm.Params{"column": "axis1", "threshold": -4.0}, []float64{1, 2, 3}, []float64{60, 120, 180})
	if a != b {
		t.Errorf("same inputs gave different keys")
	}
	variants := map[string]string{
		"algorithm": Key("cole", p, []float64{1, 2, 3}, []float64{60, 120, 180}),
		"params":    Key("sadeh", algorithm.Params{"threshold": -3.0, "column": "axis1"}, []float64{1, 2, 3}, []float64{60, 120, 180}),
		"values":    Key("sadeh", p, []float64{1, 2, 4}, []float64{60, 120, 180}),
		"split":     Key("sadeh", p, []float64{1, 2}, []float64{3, 60, 120, 180}),
	}
	for name, k := range variants {
		if k == a {
			t.Errorf("%s change did not change the key", name)
		}
	}
}

func TestDoComputesOnce(t *testing.T) {
	c, err := New(context.Background(), 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	calls := 0
	compute := func() ([]int, error) {
		calls++
		return []int{0, 1, 1, 0}, nil
	}
	for range 3 {
		got, err := Do(c, "k", compute)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		if diff := cmp.Diff([]int{0, 1, 1, 0}, got); diff != "" {
			t.Errorf("Do mismatch (-want +got):\n%s", diff)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if s := c.Stats(); s["hits"] != 2 || s["misses"] != 1 {
		t.Errorf("stats = %v", s)
	}
}

func TestDoDoesNotCacheErrors(t *testing.T) {
	c, err := New(context.Background(), 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	boom := errors.New("boom")
	calls := 0
	for range 2 {
		_, err := Do(c, "k", func() (int, error) {
			calls++
			return 0, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
}

func TestNilCacheComputes(t *testing.T) {
	var c *Cache
	got, err := Do(c, "k", func() (string, error) { return "v", nil })
	if err != nil || got != "v" {
		t.Errorf("Do on nil cache = %q, %v", got, err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil cache: %v", err)
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := New(ctx, 1<<20, WithDir(dir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := Do(c, "periods", func() ([]float64, error) { return []float64{1.5, 2.5}, nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(ctx, 1<<20, WithDir(dir))
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer reopened.Close()
	got, err := Do(reopened, "periods", func() ([]float64, error) {
		t.Error("value should have been loaded from disk")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if diff := cmp.Diff([]float64{1.5, 2.5}, got); diff != "" {
		t.Errorf("reloaded mismatch (-want +got):\n%s", diff)
	}
}
