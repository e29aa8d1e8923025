package codec

import (
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/nifkit/pkg/schema"
)

// Observer receives one call per Decode or Encode. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveDecode(elapsed time.Duration, size int, err error)
	ObserveEncode(elapsed time.Duration, size int, err error)
}

// GraphCodec converts between NIF bytes and object graphs using a schema
// registry. It holds no per-call state and is safe for concurrent use.
type GraphCodec struct {
	reg             *schema.Registry
	log             *zap.Logger
	preserveUnknown bool
	obs             Observer
}

// Option configures a GraphCodec.
type Option func(*GraphCodec)

// WithLogger sets the logger used for per-record debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *GraphCodec) {
		if l != nil {
			c.log = l
		}
	}
}

// WithPreserveUnknown keeps records of unregistered types as raw bytes when
// the file carries block sizes.
func WithPreserveUnknown(preserve bool) Option {
	return func(c *GraphCodec) { c.preserveUnknown = preserve }
}

// WithMetrics reports every call to obs.
func WithMetrics(obs Observer) Option {
	return func(c *GraphCodec) { c.obs = obs }
}

// New returns a codec over reg.
func New(reg *schema.Registry, opts ...Option) *GraphCodec {
	c := &GraphCodec{reg: reg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the schema registry the codec reads layouts from.
func (c *GraphCodec) Registry() *schema.Registry { return c.reg }

type op int

const (
	opDecode op = iota
	opEncode
)

func (c *GraphCodec) observe(o op, start time.Time, size int, err error) {
	if c.obs == nil {
		return
	}
	elapsed := time.Since(start)
	if o == opDecode {
		c.obs.ObserveDecode(elapsed, size, err)
		return
	}
	c.obs.ObserveEncode(elapsed, size, err)
}
