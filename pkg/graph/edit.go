package graph

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Transform is a structural edit applied between decode and encode. A
// transform owns reference integrity: after it returns, every reference in
// the graph must point at a valid current index.
type Transform func(*Graph) error

// Chain runs transforms in order, stopping at the first error.
func Chain(ts ...Transform) Transform {
	return func(g *Graph) error {
		for _, t := range ts {
			if t == nil {
				continue
			}
			if err := t(g); err != nil {
				return err
			}
		}
		return nil
	}
}

// ErrOpaqueRecords is returned by edits that would move or drop records
// while an opaque record remains. Its raw bytes may hold references that
// cannot be rewritten.
var ErrOpaqueRecords = errors.New("graph: edit would invalidate references held by opaque records")

// Identity leaves the graph untouched.
func Identity(*Graph) error { return nil }

// Remove deletes the records at the given indices. References to removed
// records become NullRef, roots pointing at them are dropped, and every
// other reference is shifted to the record's new position. It fails with
// ErrOpaqueRecords if any opaque record would be kept.
func (g *Graph) Remove(indices ...int) error {
	if len(indices) == 0 {
		return nil
	}
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(g.Records) {
			return errors.Newf("remove: index %d outside %d records", i, len(g.Records))
		}
		drop[i] = true
	}
	for i, rec := range g.Records {
		if !drop[i] && rec.IsOpaque() {
			return errors.Wrapf(ErrOpaqueRecords, "remove: record %d (%s) is opaque", i, rec.Type)
		}
	}

	remap := make([]Ref, len(g.Records))
	kept := g.Records[:0]
	for i, rec := range g.Records {
		if drop[i] {
			remap[i] = NullRef
			continue
		}
		remap[i] = Ref(len(kept))
		kept = append(kept, rec)
	}
	for i := len(kept); i < len(g.Records); i++ {
		g.Records[i] = nil
	}
	g.Records = kept

	g.rewriteWith(remap)
	roots := g.Roots[:0]
	for _, r := range g.Roots {
		if !r.IsNull() {
			roots = append(roots, r)
		}
	}
	g.Roots = roots
	return nil
}

// Reorder permutes the record table so that the record previously at
// order[i] ends up at i, rewriting every reference to match. Only the
// identity permutation is allowed while the graph holds opaque records.
func (g *Graph) Reorder(order []int) error {
	if len(order) != len(g.Records) {
		return errors.Newf("reorder: permutation has %d entries for %d records", len(order), len(g.Records))
	}
	remap := make([]Ref, len(order))
	seen := make([]bool, len(order))
	records := make([]*Record, len(order))
	for newIdx, oldIdx := range order {
		if oldIdx < 0 || oldIdx >= len(order) || seen[oldIdx] {
			return errors.Newf("reorder: invalid permutation entry %d", oldIdx)
		}
		seen[oldIdx] = true
		remap[oldIdx] = Ref(newIdx)
		records[newIdx] = g.Records[oldIdx]
	}
	if !identity(order) {
		for i, rec := range g.Records {
			if rec.IsOpaque() {
				return errors.Wrapf(ErrOpaqueRecords, "reorder: record %d (%s) is opaque", i, rec.Type)
			}
		}
	}
	g.Records = records
	g.rewriteWith(remap)
	return nil
}

func identity(order []int) bool {
	for i, v := range order {
		if i != v {
			return false
		}
	}
	return true
}

func (g *Graph) rewriteWith(remap []Ref) {
	g.RewriteRefs(func(r Ref) Ref {
		if r < 0 || int(r) >= len(remap) {
			return r
		}
		return remap[r]
	})
}

// Reachable marks every record reachable from the roots by following
// references. A reachable opaque record keeps every record alive, since its
// references are unknown.
func (g *Graph) Reachable() []bool {
	seen := make([]bool, len(g.Records))
	stack := make([]Ref, 0, len(g.Roots))
	for _, r := range g.Roots {
		stack = append(stack, r)
	}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if r < 0 || int(r) >= len(g.Records) || seen[r] {
			continue
		}
		seen[r] = true
		if g.Records[r].IsOpaque() {
			for i := range seen {
				seen[i] = true
			}
			return seen
		}
		for _, f := range g.Records[r].Fields {
			_ = walkValue(f.Value, "", func(_ string, child Ref) error {
				stack = append(stack, child)
				return nil
			})
		}
	}
	return seen
}

// PruneUnreachable removes records that cannot be reached from the roots.
func PruneUnreachable(g *Graph) error {
	reach := g.Reachable()
	var dead []int
	for i, ok := range reach {
		if !ok {
			dead = append(dead, i)
		}
	}
	sort.Ints(dead)
	return g.Remove(dead...)
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Header: g.Header,
		Roots:  append([]Ref(nil), g.Roots...),
	}
	out.Header.Strings = append([]string(nil), g.Header.Strings...)
	out.Header.Groups = append([]uint32(nil), g.Header.Groups...)
	out.Records = make([]*Record, len(g.Records))
	for i, rec := range g.Records {
		out.Records[i] = rec.Clone()
	}
	return out
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := &Record{Type: r.Type, Struct: *r.Struct.Clone()}
	if r.Raw != nil {
		out.Raw = append([]byte{}, r.Raw...)
	}
	return out
}

// Clone returns a deep copy of the struct.
func (s *Struct) Clone() *Struct {
	out := &Struct{}
	if s.Fields != nil {
		out.Fields = make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			out.Fields[i] = Field{Name: f.Name, Value: cloneValue(f.Value)}
		}
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case *Struct:
		if x == nil {
			return x
		}
		return x.Clone()
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		if x == nil {
			return x
		}
		return append([]byte{}, x...)
	}
	return v
}
