package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/actiscore/pkg/config"
	"github.com/codeGROOVE-dev/actiscore/pkg/nonwear"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildJobs(t *testing.T) {
	jobs, err := buildJobs([]string{"/data/P01.csv", "/data/P02.csv"}, nil, "", "")
	if err != nil {
		t.Fatalf("buildJobs: %v", err)
	}
	if len(jobs) != 2 || jobs[0].Participant != "P01" || jobs[1].Participant != "P02" {
		t.Errorf("jobs = %+v", jobs)
	}

	jobs, err = buildJobs(nil, []string{"/raw/P03.csv"}, "X", "2024-03-01")
	if err != nil {
		t.Fatalf("buildJobs raw: %v", err)
	}
	if jobs[0].RawPath != "/raw/P03.csv" || jobs[0].Participant != "X" || jobs[0].Date != "2024-03-01" {
		t.Errorf("raw job = %+v", jobs[0])
	}

	if _, err := buildJobs(nil, nil, "", ""); err != errNoFiles {
		t.Errorf("expected errNoFiles, got %v", err)
	}
	if _, err := buildJobs([]string{"a.csv", "b.csv"}, []string{"r.csv"}, "", ""); err == nil {
		t.Error("expected pairing error")
	}
	if _, err := buildJobs([]string{"a.csv", "b.csv"}, nil, "P", ""); err == nil {
		t.Error("expected error for --participant with two files")
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().AddFlagSet(scoreCmd.Flags())
	if err := cmd.Flags().Parse([]string{"--nonwear", "none", "--exclusive-end", "--workers", "2"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	t.Cleanup(func() {
		for _, name := range []string{"nonwear", "exclusive-end", "workers"} {
			f := cmd.Flags().Lookup(name)
			_ = f.Value.Set(f.DefValue) //nolint:errcheck // defaults always parse
			f.Changed = false
		}
	})
	cfg := config.Default()
	applyFlags(cmd, cfg)
	if cfg.Nonwear.ID != config.NonwearDisabled || cfg.InclusiveEnd || cfg.Workers != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Classifier.ID != config.Default().Classifier.ID {
		t.Errorf("unset flag changed classifier to %q", cfg.Classifier.ID)
	}
}

func TestAlgorithmsCommand(t *testing.T) {
	out, err := run(t, "algorithms")
	if err != nil {
		t.Fatalf("algorithms: %v", err)
	}
	for _, want := range []string{nonwear.ChoiID, nonwear.VanHeesID, "* " + nonwear.ChoiID} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAgreeCommand(t *testing.T) {
	dir := t.TempDir()
	header := "datetime,sleep\n"
	ref, cand := header, header
	start := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	refLabels := []int{1, 1, 1, 0, 0, 1}
	candLabels := []int{1, 1, 0, 0, 1, 1}
	for i := range refLabels {
		ts := start.Add(time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05")
		ref += fmt.Sprintf("%s,%d\n", ts, refLabels[i])
		cand += fmt.Sprintf("%s,%d\n", ts, candLabels[i])
	}
	out, err := run(t, "agree", writeFile(t, dir, "ref.csv", ref), writeFile(t, dir, "cand.csv", cand))
	if err != nil {
		t.Fatalf("agree: %v", err)
	}
	// po = 4/6, pe = (4*4 + 2*2)/36 = 20/36, kappa = 0.25.
	for _, want := range []string{"epochs       6", "accuracy     0.667", "kappa        0.250"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScoreCommand(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("datetime,axis1\n")
	start := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	for i := range 720 {
		c := 200
		if i >= 120 && i < 600 {
			c = 5
		}
		fmt.Fprintf(&b, "%s,%d\n", start.Add(time.Duration(i)*time.Minute).Format("2006-01-02 15:04:05"), c)
	}
	epochs := writeFile(t, dir, "P07.csv", b.String())
	export := filepath.Join(dir, "out.csv")

	out, err := run(t, "score",
		"--config", filepath.Join(dir, "absent.yaml"),
		"--env-file", filepath.Join(dir, "absent.env"),
		"--no-cache", "--timeline", "-o", export, epochs)
	if err != nil {
		t.Fatalf("score: %v\n%s", err, out)
	}
	for _, want := range []string{"Sleep/Wake Timeline", "MAIN_SLEEP", "P07 2024-03-01", "1 scored, 0 skipped, 1 periods"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Errorf("export has %d lines, want header plus one record", lines)
	}
}
