package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vjranagit/scandata/internal/config"
	"github.com/vjranagit/scandata/internal/logging"
	"github.com/vjranagit/scandata/pkg/experiment"
)

const (
	version = "0.3.0"
)

// globals set by persistent flags
var (
	settingsPath string
	logLevel     string
	noCache      bool
	showStats    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scandata",
		Short:         "Inspect fluorescence imaging recordings",
		Long:          "scandata decodes .tsm and .da imaging recordings and prints traces and images derived through the modifier chain.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logLevel, false)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = zap.L().Sync()
			if showStats {
				return printStats(cmd)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings YAML (default: embedded settings, or $SCANDATA_SETTINGS)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the derived trace cache")
	root.PersistentFlags().BoolVar(&showStats, "stats", false, "print scandata metrics after the command")

	root.AddCommand(newInfoCmd(), newTraceCmd(), newImageCmd(), newWatchCmd())
	return root
}

// openExperiment applies the persistent flags on top of the environment
// configuration and opens path
func openExperiment(path string, opts ...experiment.Option) (*experiment.Experiment, error) {
	cfg := config.DefaultConfig()
	if settingsPath != "" {
		cfg.SettingsPath = settingsPath
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	cfg.Log.Level = logLevel
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts = append([]experiment.Option{experiment.WithConfig(cfg), experiment.WithLogger(zap.L())}, opts...)
	return experiment.Open(path, opts...)
}

func printStats(cmd *cobra.Command) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# stats")
	for _, mf := range families {
		name := mf.GetName()
		if len(name) < 9 || name[:9] != "scandata_" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(out, "%s%s %g\n", name, labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(out, "%s%s count=%d sum=%g\n", name, labels, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}
