/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/nifkit/pkg/nif"
)

// versionsCmd represents the versions command
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the version table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := container.Codec()
		if err != nil {
			return err
		}
		rows := [][]string{{"Version", "Name", "Types", "Status"}}
		for _, e := range c.Registry().Table().Entries() {
			status := "inherited"
			switch {
			case e.Unsupported:
				status = "unsupported"
			case e.Explicit:
				status = "explicit"
			}
			rows = append(rows, []string{e.Version.String(), e.Name, strconv.Itoa(len(e.Types())), status})
		}
		return renderTable(cmd.OutOrStdout(), rows)
	},
}

// typesCmd represents the types command
var typesCmd = &cobra.Command{
	Use:   "types <version>",
	Short: "List the record types valid at a version",
	Example: `  nifkit types 20.2.0.7
  nifkit types 20.2.0.7 --user 12 --bs 83`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := nif.ParseVersion(args[0])
		if err != nil {
			return err
		}
		v.User, _ = cmd.Flags().GetUint32("user")
		v.BSVersion, _ = cmd.Flags().GetUint32("bs")
		c, err := container.Codec()
		if err != nil {
			return err
		}
		set, err := c.Registry().Table().SchemasFor(v)
		if err != nil {
			return errors.Wrapf(err, "version %s", v)
		}

		var names []string
		for _, name := range c.Registry().Types() {
			if set.Has(name) {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		rows := [][]string{{"Type", "Parent"}}
		for _, name := range names {
			parent := ""
			if rs, ok := c.Registry().Record(name); ok {
				parent = rs.Parent
			}
			rows = append(rows, []string{name, parent})
		}
		return renderTable(cmd.OutOrStdout(), rows)
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(typesCmd)
	typesCmd.Flags().Uint32("user", 0, "User version")
	typesCmd.Flags().Uint32("bs", 0, "Bethesda version")
}
