package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured demos and observability endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DEMO\tMETHOD\tTIMEOUT\tPATH")
			for i := range cfg.Tasks {
				t := &cfg.Tasks[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.ResolveMethod(), t.Timeout, cfg.TaskPath(t))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nEndpoints (%s):\n", cfg.Observability.BaseURL)
			for _, ep := range cfg.Observability.Endpoints {
				fmt.Fprintf(cmd.OutOrStdout(), "  /%s\n", ep)
			}
			return nil
		},
	}
}
