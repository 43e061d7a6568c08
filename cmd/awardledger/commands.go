package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yungbote/award-ledger/internal/app"
	"github.com/yungbote/award-ledger/internal/services"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "awardledger",
		Short:         "Classify student awards and keep the ledger in sync across its stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("AWARD_CONFIG"),
		"path to a YAML config file (environment variables override it)")

	root.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newClassifyCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newCheckCmd(opts),
		newConfigCmd(),
	)
	return root
}

// withApp loads configuration, opens the ledger and closes it after fn.
func withApp(ctx context.Context, opts *rootOptions, fn func(context.Context, *app.App) error) error {
	cfg, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, opts, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every student record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				recs := a.Awards.List(ctx)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), recs)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "STUDENT_ID\tNAME\tCLASS\tCERT\tAWARD\tRECORDED")
				for _, r := range recs {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%d\n",
						r.StudentID, r.Name, r.ClassName, r.CertTotalPoints, r.AwardTotalPoints, r.RecordedAwardCount)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <student-id>",
		Short: "Show one student's record and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				rec, err := a.Awards.Get(ctx, id)
				if err != nil {
					return err
				}
				p, err := a.Awards.Progress(ctx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"student": rec, "progress": p})
			})
		},
	}
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var name, className string
	cmd := &cobra.Command{
		Use:   "classify <student-id> <slot> <category>",
		Short: "Set, replace or toggle off the category of one award slot",
		Long: `Classify one award slot. Categories: Cert, National, ProvinceCity,
School, College, None. Classifying a slot with the category it already
holds clears it.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			slot, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("slot %q is not a number", args[1])
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				res, err := a.Awards.Classify(ctx, services.ClassifyRequest{
					StudentID: id,
					Slot:      slot,
					Category:  args[2],
					Name:      name,
					ClassName: className,
				})
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "student name, used only when the record is created")
	cmd.Flags().StringVar(&className, "class", "", "class name, used only when the record is created")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var compressed bool
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write a snapshot of every record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				res, err := a.Awards.Export(ctx, args[0], compressed)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&compressed, "compressed", false, "gzip the snapshot (adds .gz to the path)")
	return cmd
}

var errConfirmRebuild = errors.New("rebuild deletes the summary, raw source and all stored records; pass --yes to confirm")

func newImportCmd(opts *rootOptions) *cobra.Command {
	var rebuild, yes, overwrite bool
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Load a snapshot, merging by default",
		Long: `Load a snapshot written by export. By default records are merged
into the ledger by student id. --overwrite replaces the ledger's records
with the snapshot's. --rebuild --yes deletes the summary and raw source
files, clears both stores and loads the snapshot into them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rebuild && !yes {
				return errConfirmRebuild
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				if rebuild {
					rep, err := a.Awards.ImportAndRebuild(ctx, args[0])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), rep)
				}
				rep, err := a.Awards.ImportMerge(ctx, args[0], overwrite)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "destructive: clear all storage and rebuild from the snapshot")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm a destructive rebuild")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing records instead of merging")
	cmd.MarkFlagsMutuallyExclusive("rebuild", "overwrite")
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report file presence and classification progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				rep, err := a.Awards.Integrity(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
}

func newConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write a config file with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.WriteDefaultConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	return cfg
}

func parseStudentID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("student id %q is not a number", s)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
