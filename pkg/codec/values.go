package codec

import (
	"math"

	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

// scope is the expression environment for one record or struct: the
// values written or read so far, by field name.
type scope struct {
	v    nif.FormatVersion
	arg  int64
	vals map[string]int64
}

func newScope(v nif.FormatVersion, arg int64) *scope {
	return &scope{v: v, arg: arg, vals: make(map[string]int64)}
}

func (s *scope) Version() nif.FormatVersion { return s.v }

func (s *scope) Value(name string) (int64, bool) {
	n, ok := s.vals[name]
	return n, ok
}

func (s *scope) Arg() int64 { return s.arg }

// note records a scalar sibling so later expressions can see it.
func (s *scope) note(name string, v any) {
	if n, ok := asInt64(v); ok {
		s.vals[name] = n
	}
}

var _ schema.Env = (*scope)(nil)

// asInt64 reads any integer-like value. Floats are truncated.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case uint8:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case int16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case uint:
		return int64(x), true
	case graph.Ref:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case float32:
		return int64(x), true
	case float64:
		return int64(x), true
	}
	return 0, false
}

// integerValue accepts any Go integer, or a float with no fractional
// part, for an integer field.
func integerValue(v any) (int64, bool) {
	switch x := v.(type) {
	case float32:
		if float32(int64(x)) != x {
			return 0, false
		}
		return int64(x), true
	case float64:
		if float64(int64(x)) != x {
			return 0, false
		}
		return int64(x), true
	case bool, graph.Ref:
		return 0, false
	}
	return asInt64(v)
}

func floatValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case bool, graph.Ref:
		return 0, false
	}
	n, ok := asInt64(v)
	return float64(n), ok
}

func boolValue(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	n, ok := integerValue(v)
	return n != 0, ok
}

// fitsPrim reports whether n is representable in an integer primitive.
func fitsPrim(p schema.Primitive, n int64) bool {
	switch p {
	case schema.PrimU8:
		return n >= 0 && n <= math.MaxUint8
	case schema.PrimI8:
		return n >= math.MinInt8 && n <= math.MaxInt8
	case schema.PrimU16:
		return n >= 0 && n <= math.MaxUint16
	case schema.PrimI16:
		return n >= math.MinInt16 && n <= math.MaxInt16
	case schema.PrimU32:
		return n >= 0 && n <= math.MaxUint32
	case schema.PrimI32:
		return n >= math.MinInt32 && n <= math.MaxInt32
	case schema.PrimU64:
		return n >= 0
	}
	return true
}

// arrayLen returns the element count of an array value.
func arrayLen(v any) (int, bool) {
	switch x := v.(type) {
	case []any:
		return len(x), true
	case []byte:
		return len(x), true
	}
	return 0, false
}

// countFrom derives a count field from the first of its arrays present in
// st.
func countFrom(st *graph.Struct, arrays []string) (int64, bool) {
	for _, name := range arrays {
		v, ok := st.Get(name)
		if !ok {
			continue
		}
		if n, ok := arrayLen(v); ok {
			return int64(n), true
		}
	}
	return 0, false
}

// boolWidth is the on-disk size of a bool at v.
func boolWidth(v nif.FormatVersion) int {
	if v.AtLeast(nif.V4_1_0_1) {
		return 1
	}
	return 4
}

// indexedStrings reports whether string fields are header table indices.
func indexedStrings(v nif.FormatVersion) bool {
	return v.AtLeast(nif.V20_1_0_1)
}

// hasBlockMarker reports whether each block is prefixed with a zero uint32.
func hasBlockMarker(v nif.FormatVersion) bool {
	return v.AtLeast(nif.V5_0_0_1) && !nif.V10_1_0_106.Less(v)
}

// nullString is the string table index of the empty string.
const nullString = math.MaxUint32
