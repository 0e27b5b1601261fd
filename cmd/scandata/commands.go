package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vjranagit/scandata/pkg/experiment"
	"github.com/vjranagit/scandata/pkg/modifier"
	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print the header, stored items and default chain of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExperiment(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			descs := e.Descriptors(types.Descriptor{})
			items := make([]string, len(descs))
			for i, d := range descs {
				items[i] = d.String()
			}
			report := struct {
				Snapshot experiment.Snapshot `yaml:"experiment"`
				Items    []string            `yaml:"items"`
			}{e.Snapshot(), items}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("failed to encode info: %w", err)
			}
			return enc.Close()
		},
	}
}

// chainFlags are the flags shared by commands that pull data through the chain
type chainFlags struct {
	channel int
	stages  []string
	sets    []string
}

func (f *chainFlags) register(cmd *cobra.Command, stages []string) {
	cmd.Flags().IntVarP(&f.channel, "channel", "c", 1, "acquisition channel (0 is the interleaved stack)")
	cmd.Flags().StringSliceVarP(&f.stages, "stages", "s", stages, "stages to apply, by name")
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "stage parameter, e.g. Roi1=10,12,4,3 or Scale0=DFoF or TagMaker0=Category:Baseline (repeatable)")
}

// apply sets every --set parameter. Stages named in --set or --stages that
// the default chain lacks are added first.
func (f *chainFlags) apply(e *experiment.Experiment) error {
	have := map[string]bool{}
	for _, s := range e.Snapshot().Chain.Stages {
		have[s.Name] = true
	}
	ensure := func(name string) error {
		if have[name] {
			return nil
		}
		if _, err := e.AddStage(name); err != nil {
			return err
		}
		have[name] = true
		return nil
	}

	for _, name := range f.stages {
		if err := ensure(name); err != nil {
			return err
		}
	}
	for _, s := range f.sets {
		name, raw, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("--set %q: want Stage=value", s)
		}
		if err := ensure(name); err != nil {
			return err
		}
		cat, _, _, err := modifier.ParseStageName(name)
		if err != nil {
			return err
		}
		p, err := modifier.ParseParam(cat, parseRaw(raw))
		if err != nil {
			return fmt.Errorf("--set %s: %w", name, err)
		}
		if err := e.SetParameter(name, p); err != nil {
			return fmt.Errorf("--set %s: %w", name, err)
		}
	}
	return nil
}

// parseRaw turns a flag value into the shape decoded settings have: a list
// of integers, a key:value map, or a plain string
func parseRaw(s string) any {
	if strings.Contains(s, ":") {
		m := map[string]any{}
		for _, kv := range strings.Split(s, ",") {
			k, v, _ := strings.Cut(kv, ":")
			m[k] = v
		}
		return m
	}
	parts := strings.Split(s, ",")
	ints := make([]any, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return s
		}
		ints = append(ints, n)
	}
	return ints
}

func newTraceCmd() *cobra.Command {
	var flags chainFlags
	var baseline []string
	cmd := &cobra.Command{
		Use:   "trace <file>",
		Short: "Print a fluorescence trace as time,value rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExperiment(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			if err := flags.apply(e); err != nil {
				return err
			}
			if err := registerProviders(e, flags.stages, baseline); err != nil {
				return err
			}
			return printTraces(cmd.OutOrStdout(), e, flags)
		},
	}
	flags.register(cmd, []string{"Roi0", "Average0"})
	cmd.Flags().StringSliceVar(&baseline, "baseline-stages", []string{"Roi0", "Average1"}, "stages producing the BlComp baseline / DifImage reference")
	return cmd
}

// registerProviders wires a chain provider to every BlComp and DifImage stage
// in stages
func registerProviders(e *experiment.Experiment, stages, providerStages []string) error {
	for _, name := range stages {
		cat, _, _, err := modifier.ParseStageName(name)
		if err != nil {
			return err
		}
		if cat != modifier.CategoryBlComp && cat != modifier.CategoryDifImage {
			continue
		}
		if err := e.RegisterSecondObjectProvider(name, e.ChainProvider(providerStages)); err != nil {
			return err
		}
	}
	return nil
}

func printTraces(w io.Writer, e *experiment.Experiment, flags chainFlags) error {
	target := types.Descriptor{Category: types.CategoryData, Kind: types.KindFluoTrace, Channel: types.ChannelOf(flags.channel)}
	got, err := e.Get(target, flags.stages)
	if err != nil {
		return err
	}
	if len(got) == 0 {
		return fmt.Errorf("no data for %s", target.Label())
	}
	for _, obj := range got {
		tr, ok := obj.(*value.Trace)
		if !ok {
			return fmt.Errorf("stages %v produced %T, not a trace; add an Average stage in Roi mode", flags.stages, obj)
		}
		fmt.Fprintf(w, "# %s\n", tr.Descriptor())
		times := tr.Time()
		for i, v := range tr.Values() {
			fmt.Fprintf(w, "%g,%g\n", times[i], v)
		}
	}
	return nil
}

func newImageCmd() *cobra.Command {
	var flags chainFlags
	var reference []string
	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Print a mean image as whitespace separated rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExperiment(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			if err := flags.apply(e); err != nil {
				return err
			}
			if err := registerProviders(e, flags.stages, reference); err != nil {
				return err
			}

			target := types.Descriptor{Category: types.CategoryData, Kind: types.KindFluoImage, Channel: types.ChannelOf(flags.channel)}
			got, err := e.Get(target, flags.stages)
			if err != nil {
				return err
			}
			if len(got) == 0 {
				return fmt.Errorf("no data for %s", target.Label())
			}
			img, ok := got[0].(*value.Image)
			if !ok {
				return fmt.Errorf("stages %v produced %T, not an image; add an Average stage in Image mode", flags.stages, got[0])
			}
			return printImage(cmd.OutOrStdout(), img)
		},
	}
	flags.register(cmd, []string{"Average2"})
	cmd.Flags().StringSliceVar(&reference, "reference-stages", []string{"Average2"}, "stages producing the DifImage reference")
	return cmd
}

func printImage(w io.Writer, img *value.Image) error {
	nx, ny := img.Dims()
	fmt.Fprintf(w, "# %s %dx%d\n", img.Descriptor(), nx, ny)
	var b strings.Builder
	for x := 0; x < nx; x++ {
		b.Reset()
		for y := 0; y < ny; y++ {
			if y > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(img.At(x, y), 'g', 6, 64))
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func newWatchCmd() *cobra.Command {
	var flags chainFlags
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Reprint a trace whenever the recording is rewritten",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExperiment(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			if err := flags.apply(e); err != nil {
				return err
			}
			if len(flags.stages) == 0 {
				return fmt.Errorf("watch needs at least one stage")
			}

			reloaded := make(chan struct{}, 1)
			unregister, err := e.RegisterListener(flags.stages[0], modifier.ListenerFunc(func(string) {
				select {
				case reloaded <- struct{}{}:
				default:
				}
			}))
			if err != nil {
				return err
			}
			defer unregister()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := e.Watch(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := printTraces(out, e, flags); err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-reloaded:
					if err := printTraces(out, e, flags); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
					}
				}
			}
		},
	}
	flags.register(cmd, []string{"Roi0", "Average0"})
	return cmd
}
