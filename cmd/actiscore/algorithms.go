package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
	"github.com/codeGROOVE-dev/actiscore/pkg/nonwear"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepperiod"
	"github.com/codeGROOVE-dev/actiscore/pkg/sleepwake"
)

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List the available algorithms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		listRegistry(w, sleepwake.Registry)
		listRegistry(w, nonwear.Registry)
		listRegistry(w, sleepperiod.Registry)
		return nil
	},
}

func listRegistry[T any](w io.Writer, r *algorithm.Registry[T]) {
	names := r.Available()
	fmt.Fprintln(w, color.New(color.Bold).Sprint(r.Family()))
	for _, id := range r.IDs() {
		mark := " "
		if id == r.DefaultID() {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %-22s %s\n", mark, id, names[id])
	}
}
