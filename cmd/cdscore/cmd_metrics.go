package main

import (
	"github.com/cdmetadl/cdscore/internal/metrics"
	"github.com/spf13/cobra"
)

func newMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the implemented metrics",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			t := &table{header: []string{"Name", "Label"}}
			for _, m := range metrics.All {
				t.add(m.Name(), m.Label())
			}
			t.write(cmd.OutOrStdout())
		},
	}
}
