package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PAXECT-Interface/paxect-harness/internal/metrics"
	"github.com/PAXECT-Interface/paxect-harness/internal/selftune"
)

var (
	flagCycles         int
	flagStatePath      string
	flagPace           time.Duration
	flagReset          bool
	flagSeed           uint64
	flagTuneMetricFile string
)

func newSelftuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftune",
		Short: "Run adaptive tuning cycles, resuming from the persisted state",
		RunE:  runSelftune,
	}
	cmd.Flags().IntVar(&flagCycles, "cycles", 0, "number of cycles (default from config)")
	cmd.Flags().StringVar(&flagStatePath, "state", "", "tuning state file")
	cmd.Flags().DurationVar(&flagPace, "pace", 0, "delay between cycles, e.g. 150ms")
	cmd.Flags().BoolVar(&flagReset, "reset", false, "discard the stored state before running")
	cmd.Flags().Uint64Var(&flagSeed, "seed", 0, "random seed; 0 picks one")
	cmd.Flags().StringVar(&flagTuneMetricFile, "metrics-textfile", "", "write Prometheus metrics to this file")
	return cmd
}

func runSelftune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	statePath := cfg.SelfTune.StatePath
	if flagStatePath != "" {
		statePath = flagStatePath
	}
	cycles := cfg.SelfTune.Cycles
	if flagCycles > 0 {
		cycles = flagCycles
	}
	textfile := cfg.Metrics.Textfile
	if flagTuneMetricFile != "" {
		textfile = flagTuneMetricFile
	}

	store := selftune.NewStore(statePath, appLog)
	if flagReset {
		if err := store.Reset(); err != nil {
			return err
		}
	}

	m := metrics.New()
	out := cmd.OutOrStdout()
	loop := selftune.NewLoop(store, cycles)
	if flagSeed != 0 {
		loop.Rand = rand.New(rand.NewPCG(flagSeed, flagSeed))
	}
	if flagPace > 0 {
		loop.Pace = selftune.Sleep(flagPace)
	}
	loop.OnCycle = func(o selftune.CycleOutcome) {
		m.ObserveCycle(o)
		printCycle(out, o)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := store.Load()
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	fmt.Fprintln(out, "  PAXECT Self-Tuning Adaptive System")
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	fmt.Fprintln(out)
	if start.Cycle > 0 {
		fmt.Fprintf(out, "[INFO] Continuing from previous run (cycle %d)\n", start.Cycle)
	} else {
		fmt.Fprintln(out, "[INFO] Starting fresh - system will learn optimal settings")
	}
	fmt.Fprintf(out, "       Current tuning: %s exploration\n\n", percent(start.TuningValue))
	fmt.Fprintf(out, "Running %d adaptive cycles...\n%s\n", cycles, rule)

	rep, runErr := loop.Run(ctx)
	if rep == nil {
		return runErr
	}
	m.ObserveState(rep.Final)
	if textfile != "" {
		if err := m.WriteTextfile(textfile); err != nil {
			appLog.Warn().Err(err).Msg("metrics export failed")
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(out, "%s\n\n", rule)
	fmt.Fprintln(out, "[SUCCESS] Adaptive learning complete")
	fmt.Fprintf(out, "          Final tuning level: %s exploration\n", percent(rep.Final.TuningValue))
	fmt.Fprintf(out, "          Total cycles run: %d\n\n", rep.Final.Cycle)
	fmt.Fprintf(out, "          Progress saved to: %s\n", statePath)
	fmt.Fprintln(out, "          Run again to continue learning from where it left off")
	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", len(rule)))
	return nil
}

func printCycle(w io.Writer, o selftune.CycleOutcome) {
	fmt.Fprintf(w, "Cycle %3d: %-10s | Performance: %.2f (%-4s) | Tuning: %s\n",
		o.Cycle, o.Mode, o.Performance, o.Status(), percent(o.TuningNext))
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
