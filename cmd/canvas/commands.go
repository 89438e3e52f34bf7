package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brain2-canvas/internal/config"
	"brain2-canvas/internal/di"
	"brain2-canvas/internal/export"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/surface"
)

var (
	title  = color.New(color.FgHiGreen, color.Bold)
	subtle = color.New(color.FgHiBlack)
	good   = color.New(color.FgGreen)
	bad    = color.New(color.FgRed)
)

type rootOptions struct {
	configDir string
	seed      uint64
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "canvas",
		Short:        "Lay out, check and export diagram snapshots",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "directory with base/<env>/local config files")
	cmd.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "seed for the layout scatter; 0 picks one from the clock")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(
		newLayoutCmd(opts),
		newRoutesCmd(opts),
		newFlowchartCmd(opts),
		newValidateCmd(opts),
	)
	return cmd
}

func (o *rootOptions) surfaceOptions() (surface.Options, error) {
	cfg := config.Default(config.Development)
	if o.configDir != "" {
		loaded, err := config.NewLoader(o.configDir, config.Development).Load()
		if err != nil {
			return surface.Options{}, err
		}
		cfg = loaded
	}
	opts := di.SurfaceOptions(cfg)
	if o.seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(o.seed, o.seed>>1|1))
	}
	return opts, nil
}

func (o *rootOptions) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	l, err := observability.NewLogger(string(config.Development))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func readSnapshot(path string) (export.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return export.Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}
	return export.DecodeSnapshot(data)
}

// open builds a surface from a snapshot. A saved layout is kept unless
// fresh is set.
func (o *rootOptions) open(ctx context.Context, snap export.Snapshot, fresh bool) (*surface.Surface, error) {
	opts, err := o.surfaceOptions()
	if err != nil {
		return nil, err
	}
	if snap.Layout != nil && !fresh {
		return surface.Restore(snap.Document, *snap.Layout, opts, o.logger()), nil
	}
	return surface.New(ctx, snap.Document, opts, o.logger())
}

func newLayoutCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		fresh  bool
	)
	cmd := &cobra.Command{
		Use:   "layout <snapshot.json|->",
		Short: "Run the force layout and write the snapshot with positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			sf, err := root.open(cmd.Context(), snap, fresh)
			if err != nil {
				return err
			}
			l := sf.Layout()
			data, err := export.EncodeSnapshot(sf.Document(), &l)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d nodes laid out into %s\n", good.Sprint("✓"), len(l.Positions), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; stdout when empty")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore any saved layout and simulate from scratch")
	return cmd
}

func newRoutesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes <snapshot.json|->",
		Short: "Print the routed path of every relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			sf, err := root.open(cmd.Context(), snap, false)
			if err != nil {
				return err
			}
			paths := sf.Paths()
			sort.Slice(paths, func(i, j int) bool { return paths[i].RelationshipID < paths[j].RelationshipID })

			out := cmd.OutOrStdout()
			title.Fprintf(out, "%d relationships\n", len(paths))
			subtle.Fprintf(out, "%-20s %-9s %-20s %-20s %s\n", "ID", "KIND", "START", "END", "LABEL")
			for _, p := range paths {
				fmt.Fprintf(out, "%-20s %-9s %-20s %-20s %s\n",
					p.RelationshipID, p.Kind,
					fmt.Sprintf("(%.1f, %.1f)", p.Start.X, p.Start.Y),
					fmt.Sprintf("(%.1f, %.1f)", p.End.X, p.End.Y),
					fmt.Sprintf("(%.1f, %.1f)", p.Label.X, p.Label.Y))
			}
			return nil
		},
	}
}

func newFlowchartCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flowchart <snapshot.json|->",
		Short: "Print the diagram as flowchart text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), export.Flowchart(snap.Document))
			return err
		},
	}
}

func newValidateCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <snapshot.json|->",
		Short: "Check a snapshot for duplicate ids and dangling references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			problems := snap.Document.Check()
			if len(problems) == 0 {
				good.Fprintf(out, "✓ %s: %d nodes, %d relationships, no problems\n",
					args[0], len(snap.Document.Nodes), len(snap.Document.Relationships))
				return nil
			}
			for _, p := range problems {
				bad.Fprintf(out, "✗ %s\n", p)
			}
			return fmt.Errorf("%d problems found", len(problems))
		},
	}
}
