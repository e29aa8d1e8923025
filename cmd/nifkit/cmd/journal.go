/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/nifkit/pkg/journal"
)

// journalCmd represents the journal command
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recorded conversion outcomes",
	Long: `List the entries of the conversion journal, oldest first. A torn entry
at the end of the journal is reported after the complete ones.

Examples:
  nifkit journal
  nifkit journal --last --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		lastOnly, _ := cmd.Flags().GetBool("last")
		path := container.Config().Storage.JournalPath()

		var entries []journal.Entry
		var readErr error
		if lastOnly {
			var last map[string]journal.Entry
			last, readErr = journal.LastByPath(path)
			for _, e := range last {
				entries = append(entries, e)
			}
			sortEntries(entries)
		} else {
			entries, readErr = journal.ReadAll(path)
		}
		if readErr != nil && !errors.Is(readErr, journal.ErrCorruption) {
			return readErr
		}

		if asJSON {
			if err := writeJSON(cmd.OutOrStdout(), entries); err != nil {
				return err
			}
		} else if len(entries) == 0 {
			cmd.Println("Journal is empty.")
		} else {
			rows := [][]string{{"Time", "Status", "From", "To", "Path", "Detail"}}
			for _, e := range entries {
				detail := e.Error
				if detail == "" && e.BackupID != "" {
					detail = "backup " + e.BackupID
				}
				rows = append(rows, []string{
					e.Time.Local().Format(time.DateTime), e.Status, e.From, e.To, e.Path, detail,
				})
			}
			if err := renderTable(cmd.OutOrStdout(), rows); err != nil {
				return err
			}
		}
		if readErr != nil {
			warning(cmd.OutOrStdout(), "%v", readErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().Bool("json", false, "Print entries as JSON")
	journalCmd.Flags().Bool("last", false, "Only the latest successful entry per file")
}

func sortEntries(entries []journal.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Time.Equal(entries[j].Time) {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Time.Before(entries[j].Time)
	})
}
