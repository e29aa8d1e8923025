//go:build fuzz
// +build fuzz

package codec

import (
	"errors"
	"testing"

	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
)

// FuzzDecode feeds arbitrary bytes to the decoder. Failures must be
// *nif.Error values with no graph; successes must survive a re-encode.
func FuzzDecode(f *testing.F) {
	f.Add(sceneFile().bytes())
	f.Add(file{
		version: nif.V20_2_0_7,
		strings: []string{"Scene Root"},
		blocks:  []block{{"NiNode", nodeBody(0)}},
		roots:   []int32{0},
	}.bytes())
	f.Add([]byte("Gamebryo File Format, Version 20.2.0.7\n"))
	f.Add([]byte{})

	c := newCodec(f)
	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 1<<20 {
			t.Skip("Input too large for fuzz test")
		}
		g, err := c.Decode(data)
		if err != nil {
			if g != nil {
				t.Fatalf("Decode returned a graph alongside %v", err)
			}
			var fe *nif.Error
			if !errors.As(err, &fe) {
				t.Fatalf("Decode error %v (%T) is not a *nif.Error", err, err)
			}
			return
		}

		out, err := c.Encode(g, g.Header.Version)
		if err != nil {
			t.Fatalf("re-Encode of a decoded graph failed: %v", err)
		}
		back, err := c.Decode(out)
		if err != nil {
			t.Fatalf("Decode of re-encoded bytes failed: %v", err)
		}
		if !graph.Equal(g, back) {
			t.Fatalf("graph changed across re-encode:\n%s", graph.Diff(g, back))
		}
	})
}

// FuzzDecode_Mutation flips one byte of a valid file.
func FuzzDecode_Mutation(f *testing.F) {
	f.Add(uint(0), byte(0xFF))
	f.Add(uint(45), byte(0x01))
	f.Add(uint(120), byte(0x80))

	c := newCodec(f)
	base := sceneFile().bytes()
	f.Fuzz(func(t *testing.T, pos uint, mask byte) {
		if int(pos) >= len(base) || mask == 0 {
			t.Skip("no mutation")
		}
		data := append([]byte(nil), base...)
		data[pos] ^= mask
		g, err := c.Decode(data)
		if err != nil && g != nil {
			t.Fatalf("Decode returned a graph alongside %v", err)
		}
	})
}
