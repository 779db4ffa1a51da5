package cmd

import (
	"errors"
	"io/fs"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/PAXECT-Interface/paxect-harness/internal/config"
	"github.com/PAXECT-Interface/paxect-harness/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	appLog   zerolog.Logger
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paxect-harness",
		Short:         "Verification harness for the PAXECT demo suite",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			appLog = logging.New(cmd.ErrOrStderr(), logLevel)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "paxect.yaml", "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to $"+logging.EnvLogLevel)
	root.AddCommand(newRunCmd())
	root.AddCommand(newSelftuneCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	return root
}

// loadConfig reads --config. When the flag was left at its default and the
// file does not exist, the built-in suite is used instead.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err == nil {
		return cfg, nil
	}
	if !cmd.Flags().Changed("config") && errors.Is(err, fs.ErrNotExist) {
		appLog.Debug().Str("path", cfgFile).Msg("no config file, using built-in defaults")
		return config.Default(), nil
	}
	return nil, err
}
