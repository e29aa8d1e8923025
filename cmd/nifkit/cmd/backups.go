/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/nifkit/pkg/storage"
)

// backupsCmd represents the backups command
var backupsCmd = &cobra.Command{
	Use:   "backups [file]",
	Short: "List saved originals",
	Long: `List the originals saved before in-place conversions, oldest first.
With a file argument only that file's backups are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			path = abs
		}
		store, err := container.BackupStore()
		if err != nil {
			return err
		}
		list, err := store.List(path)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			cmd.Println("No backups.")
			return nil
		}

		rows := [][]string{{"ID", "Created", "Version", "Size", "Path"}}
		for _, b := range list {
			rows = append(rows, []string{
				b.ID.String(),
				b.Created.Local().Format(time.DateTime),
				b.Version,
				strconv.Itoa(b.Size),
				b.Path,
			})
		}
		return renderTable(cmd.OutOrStdout(), rows)
	},
}

// backupsRmCmd removes a backup
var backupsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return errors.Wrap(err, "backup id")
		}
		store, err := container.BackupStore()
		if err != nil {
			return err
		}
		if err := store.Delete(id); err != nil {
			return errors.Wrapf(err, "backup %s", id)
		}
		success(cmd.OutOrStdout(), "Deleted backup %s", id)
		return nil
	},
}

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore <id | file>",
	Short: "Write a saved original back to its path",
	Long: `Restore writes a backup back to the path it was taken from. Given a
file instead of a backup ID, the most recent backup of that file is used.

Examples:
  nifkit restore 2zBtD9g8lQ0m4J5xM6uKXyWbC1f
  nifkit restore meshes/clutter/bucket.nif`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := container.BackupStore()
		if err != nil {
			return err
		}
		id, err := resolveBackup(store, args[0])
		if err != nil {
			return err
		}
		b, err := store.Restore(id)
		if err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "Restored %s (%s, %d bytes)", b.Path, b.Version, b.Size)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.AddCommand(backupsRmCmd)
	rootCmd.AddCommand(restoreCmd)
}

// resolveBackup accepts a backup ID or a path with at least one backup.
func resolveBackup(store *storage.BackupStore, arg string) (ksuid.KSUID, error) {
	if id, err := ksuid.Parse(arg); err == nil {
		return id, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return ksuid.Nil, err
	}
	b, err := store.Latest(abs)
	if err != nil {
		return ksuid.Nil, errors.Wrapf(err, "no backup of %s", arg)
	}
	return b.ID, nil
}
