package graph

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var cmpOpts = []cmp.Option{
	cmpopts.EquateNaNs(),
	cmpopts.EquateEmpty(),
}

// Equal reports whether a and b are structurally identical: same header,
// same records in the same order, same field values.
func Equal(a, b *Graph) bool {
	return cmp.Equal(a, b, cmpOpts...)
}

// Diff returns a human-readable difference, empty when Equal.
func Diff(a, b *Graph) string {
	return cmp.Diff(a, b, cmpOpts...)
}
