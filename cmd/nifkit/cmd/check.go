/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/nifkit/pkg/codec"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Validate NIF files",
	Long: `Decode each file and check its references against the schema of its
version. Every problem is listed; the command fails when any file has one.

Example:
  nifkit check meshes/*.nif`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := container.Codec()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		bad := 0
		for _, path := range args {
			problems := checkFile(c, path)
			if len(problems) == 0 {
				success(w, "%s", path)
				continue
			}
			bad++
			warning(w, "%s: %d problem(s)", path, len(problems))
			for _, p := range problems {
				fmt.Fprintf(w, "  %v\n", p)
			}
		}
		if bad > 0 {
			return errors.Newf("%d of %d file(s) failed", bad, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkFile(c *codec.GraphCodec, path string) []error {
	data, err := os.ReadFile(path)
	if err != nil {
		return []error{err}
	}
	g, err := c.Decode(data)
	if err != nil {
		return []error{err}
	}
	return codec.Check(g, c.Registry())
}
