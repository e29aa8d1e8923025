/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ssargent/nifkit/pkg/batch"
	"github.com/ssargent/nifkit/pkg/config"
	"github.com/ssargent/nifkit/pkg/graph"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <file>...",
	Short: "Re-encode NIF files, optionally at another version",
	Long: `Convert decodes each file and encodes it again at the target version.
Files are overwritten in place unless --output-dir is given. In-place
overwrites are saved to the backup store first unless --no-backup is set.

Flags override the convert section of the config file.

Examples:
  nifkit convert --version 20.2.0.7 --user 12 --bs 83 meshes/*.nif
  nifkit convert --output-dir out --base-dir meshes --rename '_old$' meshes/a/*.nif
  nifkit convert --skip-errors --skip-unchanged meshes/*.nif`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := container.Config()
		applyConvertFlags(cmd.Flags(), &cfg.Convert)
		if err := cfg.Convert.Validate(); err != nil {
			return errors.Wrap(err, "invalid convert options")
		}

		opts, err := batchOptions(cmd, cfg)
		if err != nil {
			return err
		}
		c, err := container.Codec()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		report, err := batch.New(c, opts, container.Logger()).Run(ctx, args)
		if report != nil {
			printReport(cmd, report)
		}
		if err != nil {
			return err
		}
		if n := len(report.Failed()); n > 0 {
			return errors.Newf("%d file(s) failed", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	f := convertCmd.Flags()
	f.String("version", "", "Target version (default: keep each file's version)")
	f.Uint32("user", 0, "Target user version")
	f.Uint32("bs", 0, "Target Bethesda version")
	f.StringP("output-dir", "o", "", "Write outputs here instead of overwriting inputs")
	f.String("base-dir", "", "Inputs are placed under --output-dir relative to this directory")
	f.String("rename", "", "Regular expression removed from output file names")
	f.String("filter", "", "Only convert paths matching this regular expression")
	f.IntP("workers", "w", 0, "Files converted concurrently")
	f.Bool("skip-errors", false, "Continue with the next file after a failure")
	f.Bool("only-modified", false, "Do not rewrite files whose bytes would not change")
	f.Bool("skip-unchanged", false, "Skip files unchanged since their last journaled conversion")
	f.Bool("no-backup", false, "Do not save originals before overwriting them")
	f.Bool("no-journal", false, "Do not record outcomes in the conversion journal")
	f.Bool("prune", false, "Drop records unreachable from the roots")
	f.Bool("preserve-unknown", false, "Keep records of unknown types as opaque bytes")
}

// applyConvertFlags copies explicitly set flags over the configured defaults.
func applyConvertFlags(f *pflag.FlagSet, c *config.Convert) {
	if f.Changed("version") {
		c.TargetVersion, _ = f.GetString("version")
	}
	if f.Changed("user") {
		c.UserVersion, _ = f.GetUint32("user")
	}
	if f.Changed("bs") {
		c.BSVersion, _ = f.GetUint32("bs")
	}
	if f.Changed("output-dir") {
		c.OutputDir, _ = f.GetString("output-dir")
	}
	if f.Changed("rename") {
		c.RenamePattern, _ = f.GetString("rename")
	}
	if f.Changed("filter") {
		c.FilterPattern, _ = f.GetString("filter")
	}
	if f.Changed("workers") {
		c.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("skip-errors") {
		c.SkipErrors, _ = f.GetBool("skip-errors")
	}
	if f.Changed("only-modified") {
		c.OnlyModified, _ = f.GetBool("only-modified")
	}
	if f.Changed("preserve-unknown") {
		c.PreserveUnknown, _ = f.GetBool("preserve-unknown")
	}
	if noBackup, _ := f.GetBool("no-backup"); noBackup {
		c.Backup = false
	}
}

func batchOptions(cmd *cobra.Command, cfg *config.Config) (batch.Options, error) {
	target, err := cfg.Convert.Target()
	if err != nil {
		return batch.Options{}, err
	}
	rename, err := cfg.Convert.Rename()
	if err != nil {
		return batch.Options{}, errors.Wrap(err, "rename pattern")
	}
	filter, err := cfg.Convert.Filter()
	if err != nil {
		return batch.Options{}, errors.Wrap(err, "filter pattern")
	}

	opts := batch.Options{
		Target:       target,
		OutputDir:    cfg.Convert.OutputDir,
		Rename:       rename,
		Filter:       filter,
		OnlyModified: cfg.Convert.OnlyModified,
		SkipErrors:   cfg.Convert.SkipErrors,
		Workers:      cfg.Convert.Workers,
	}
	opts.BaseDir, _ = cmd.Flags().GetString("base-dir")
	opts.SkipUnchanged, _ = cmd.Flags().GetBool("skip-unchanged")
	if prune, _ := cmd.Flags().GetBool("prune"); prune {
		opts.Transform = graph.PruneUnreachable
	}

	if opts.OutputDir == "" && cfg.Convert.Backup {
		if opts.Backup, err = container.BackupStore(); err != nil {
			return batch.Options{}, err
		}
	}
	noJournal, _ := cmd.Flags().GetBool("no-journal")
	if !noJournal || opts.SkipUnchanged {
		if opts.Journal, err = container.Journal(); err != nil {
			return batch.Options{}, err
		}
	}
	return opts, nil
}

func printReport(cmd *cobra.Command, report *batch.Report) {
	w := cmd.OutOrStdout()
	for _, res := range report.Results {
		switch res.Status {
		case batch.StatusConverted:
			success(w, "%s -> %s (%s -> %s)", res.Path, res.Output, res.From, res.To)
		case batch.StatusFailed:
			warning(w, "%s: %v", res.Path, res.Err)
		default:
			reason := res.Reason
			if reason == "" {
				reason = string(res.Status)
			}
			fmt.Fprintf(w, "  %s: %s\n", res.Path, reason)
		}
	}
	fmt.Fprintf(w, "\n%d converted, %d unchanged, %d skipped, %d failed in %s\n",
		report.Count(batch.StatusConverted), report.Count(batch.StatusUnchanged),
		report.Count(batch.StatusSkipped), report.Count(batch.StatusFailed),
		report.Elapsed.Round(time.Millisecond))
}
