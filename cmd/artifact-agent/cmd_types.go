package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgealpha/artifact-agent/internal/deliverable"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported deliverable types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, t := range deliverable.All() {
				p, ok := deliverable.Lookup(t)
				if !ok {
					continue
				}
				boost := dimLabel("no score signal")
				if p.Boost.Points > 0 {
					boost = okLabel(fmt.Sprintf("+%d %s", p.Boost.Points, p.Boost.Label))
				}
				fmt.Fprintf(w, "%-20s %-22s %-11s %s\n", string(t), p.Label, string(p.Dimension), boost)
			}
			return nil
		},
	}
}
