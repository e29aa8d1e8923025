/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ssargent/nifkit/pkg/graph"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the header and records of a NIF file",
	Long: `Decode a NIF file and list its header and records.

Examples:
  nifkit inspect meshes/clutter/bucket.nif
  nifkit inspect --json meshes/clutter/bucket.nif`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "read file")
		}
		c, err := container.Codec()
		if err != nil {
			return err
		}
		g, err := c.Decode(data)
		if err != nil {
			return errors.Wrapf(err, "%s", args[0])
		}

		summary := g.Summarize()
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		return printSummary(cmd, args[0], summary)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("json", false, "Print the summary as JSON")
}

func printSummary(cmd *cobra.Command, path string, s *graph.Summary) error {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, pterm.DefaultSection.Sprint(path))
	fmt.Fprintf(w, "Version:  %s\n", s.Version)
	if s.User != 0 || s.BSVersion != 0 {
		fmt.Fprintf(w, "User:     %d (bs %d)\n", s.User, s.BSVersion)
	}
	if s.BigEndian {
		fmt.Fprintln(w, "Endian:   big")
	}
	if s.Export.Author != "" {
		fmt.Fprintf(w, "Exporter: %s\n", s.Export.Author)
	}
	fmt.Fprintf(w, "Records:  %d\n", len(s.Records))
	fmt.Fprintf(w, "Roots:    %s\n\n", joinRefs(s.Roots))

	rows := [][]string{{"#", "Type", "Name", "Refs"}}
	for _, r := range s.Records {
		typ := r.Type
		if r.Opaque {
			typ += fmt.Sprintf(" (opaque, %d bytes)", r.Size)
		}
		rows = append(rows, []string{strconv.Itoa(r.Index), typ, r.Name, joinRefs(r.Refs)})
	}
	return renderTable(w, rows)
}

func joinRefs(refs []graph.Ref) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = strconv.Itoa(int(r))
	}
	return strings.Join(parts, ", ")
}
