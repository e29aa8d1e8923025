package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/nifkit/pkg/codec"
	"github.com/ssargent/nifkit/pkg/di"
	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

// execute runs the root command with args against c and returns its output.
func execute(t *testing.T, c *di.Container, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	if c == nil {
		c = di.NewContainer()
	}
	SetContainer(c)
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	require.NoError(t, c.Close())
	return out.String(), err
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func node(name string, children ...graph.Ref) *graph.Record {
	rot := &graph.Struct{}
	for i, m := range []string{"m11", "m12", "m13", "m21", "m22", "m23", "m31", "m32", "m33"} {
		v := float32(0)
		if i%4 == 0 {
			v = 1
		}
		rot.Set(m, v)
	}
	rec := graph.NewRecord("NiNode")
	rec.Set("Name", name)
	rec.Set("Extra Data List", graph.RefArray())
	rec.Set("Controller", graph.NullRef)
	rec.Set("Flags", uint16(14))
	rec.Set("Translation", (&graph.Struct{}).With("x", float32(0)).With("y", float32(0)).With("z", float32(0)))
	rec.Set("Rotation", rot)
	rec.Set("Scale", float32(1))
	rec.Set("Properties", graph.RefArray())
	rec.Set("Collision Object", graph.NullRef)
	rec.Set("Children", graph.RefArray(children...))
	rec.Set("Effects", graph.RefArray())
	return rec
}

// writeScene writes a two-node scene at v and returns its bytes.
func writeScene(t *testing.T, path string, v nif.FormatVersion) []byte {
	t.Helper()
	g := graph.New(v)
	g.Append(node("Scene Root", 1))
	g.Append(node("Child"))
	g.Roots = []graph.Ref{0}
	data, err := codec.New(schema.MustDefault()).Encode(g, v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, data, 0600))
	return data
}

func decodeFile(t *testing.T, path string) *graph.Graph {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	g, err := codec.New(schema.MustDefault()).Decode(data)
	require.NoError(t, err)
	return g
}
