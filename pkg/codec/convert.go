package codec

import (
	"github.com/cockroachdb/errors"

	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
)

// Conversion is the outcome of Convert.
type Conversion struct {
	Output []byte
	Graph  *graph.Graph
	From   nif.FormatVersion
	To     nif.FormatVersion
}

// Convert decodes data, applies t, and encodes the result at target. A nil
// target keeps the source version. A nil transform changes nothing.
func (c *GraphCodec) Convert(data []byte, target *nif.FormatVersion, t graph.Transform) (*Conversion, error) {
	g, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	conv := &Conversion{Graph: g, From: g.Header.Version, To: g.Header.Version}
	if target != nil {
		conv.To = *target
	}
	if t != nil {
		if err := t(g); err != nil {
			return nil, errors.Wrap(err, "transform")
		}
	}
	if conv.Output, err = c.Encode(g, conv.To); err != nil {
		return nil, err
	}
	return conv, nil
}
