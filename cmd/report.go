package cmd

import (
	"github.com/spf13/cobra"

	"github.com/PAXECT-Interface/paxect-harness/internal/report"
)

var reportFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [summary.json]",
		Short: "Render a stored run summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				path = cfg.Report.Path
			}
			return report.Generate(path, reportFormat, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&reportFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
