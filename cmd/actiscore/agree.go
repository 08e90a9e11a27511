package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/actiscore/pkg/agreement"
	"github.com/codeGROOVE-dev/actiscore/pkg/epochcsv"
)

var labelColumn string

var agreeCmd = &cobra.Command{
	Use:   "agree <reference.csv> <candidate.csv>",
	Short: "Compare two epoch-by-epoch sleep/wake scorings",
	Long: `agree reads a 0/1 sleep label column from two epoch CSV files covering the
same epochs and prints their confusion matrix and Cohen's kappa.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := readLabels(args[0])
		if err != nil {
			return err
		}
		cand, err := readLabels(args[1])
		if err != nil {
			return err
		}
		c, err := agreement.Compare(ref, cand)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "epochs       %d\n", c.Total())
		fmt.Fprintf(w, "             cand sleep  cand wake\n")
		fmt.Fprintf(w, "ref sleep    %10d  %9d\n", c.SleepSleep, c.SleepWake)
		fmt.Fprintf(w, "ref wake     %10d  %9d\n", c.WakeSleep, c.WakeWake)
		fmt.Fprintf(w, "accuracy     %.3f\n", c.Accuracy())
		fmt.Fprintf(w, "sensitivity  %.3f\n", c.Sensitivity())
		fmt.Fprintf(w, "specificity  %.3f\n", c.Specificity())
		fmt.Fprintf(w, "kappa        %.3f\n", c.Kappa())
		return nil
	},
}

func init() {
	agreeCmd.Flags().StringVar(&labelColumn, "column", "sleep", "Column holding 1 for sleep and 0 for wake")
}

func readLabels(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only file
	t, err := epochcsv.Read(f, epochcsv.Options{Required: []string{labelColumn}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	col, err := t.Column(labelColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	labels := make([]int, len(col))
	for i, v := range col {
		labels[i] = int(v)
	}
	return labels, nil
}
