package graph

import (
	"fmt"

	"github.com/ssargent/nifkit/pkg/nif"
)

// Ref is an index into Graph.Records. NullRef marks an empty reference.
type Ref int32

// NullRef is the on-disk encoding of "no record".
const NullRef Ref = -1

// IsNull reports whether r refers to nothing.
func (r Ref) IsNull() bool { return r == NullRef }

// ExportInfo is the Bethesda stream header carried by files with a user
// version of 3 or more. Strings keep their on-disk bytes, including any
// trailing NUL.
type ExportInfo struct {
	Author        string `json:"author,omitempty"`
	Unknown       uint32 `json:"unknown,omitempty"`
	ProcessScript string `json:"process_script,omitempty"`
	ExportScript  string `json:"export_script,omitempty"`
	MaxFilepath   string `json:"max_filepath,omitempty"`
}

// Header holds file-level metadata that is not part of any record.
type Header struct {
	Version   nif.FormatVersion `json:"version"`
	BigEndian bool              `json:"big_endian,omitempty"`
	Export    ExportInfo        `json:"export"`
	// Strings is the header string table for versions that index strings.
	Strings []string `json:"strings,omitempty"`
	Groups  []uint32 `json:"groups,omitempty"`
}

// Graph is a decoded NIF file. Record order is significant: references are
// positions in Records, and encoding writes records in slice order.
type Graph struct {
	Header  Header    `json:"header"`
	Records []*Record `json:"records"`
	Roots   []Ref     `json:"roots"`
}

// New returns an empty graph for version v.
func New(v nif.FormatVersion) *Graph {
	return &Graph{Header: Header{Version: v}}
}

// Len returns the number of records.
func (g *Graph) Len() int { return len(g.Records) }

// At returns the record r points to, or nil for null or out-of-range refs.
func (g *Graph) At(r Ref) *Record {
	if r < 0 || int(r) >= len(g.Records) {
		return nil
	}
	return g.Records[r]
}

// Append adds rec at the end of the record table and returns its ref.
func (g *Graph) Append(rec *Record) Ref {
	g.Records = append(g.Records, rec)
	return Ref(len(g.Records) - 1)
}

// Types returns the distinct record types in first-seen order.
func (g *Graph) Types() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range g.Records {
		if _, ok := seen[rec.Type]; ok {
			continue
		}
		seen[rec.Type] = struct{}{}
		out = append(out, rec.Type)
	}
	return out
}

// EachRef calls fn for every reference value in the graph, including
// roots (reported with record -1). fn receives a dotted path to the value.
func (g *Graph) EachRef(fn func(record int, path string, r Ref) error) error {
	for i, root := range g.Roots {
		if err := fn(-1, fmt.Sprintf("Roots[%d]", i), root); err != nil {
			return err
		}
	}
	for i, rec := range g.Records {
		if err := walkRefs(rec.Fields, "", func(path string, r Ref) error {
			return fn(i, path, r)
		}); err != nil {
			return err
		}
	}
	return nil
}

// RewriteRefs replaces every reference value, roots included, with fn(r).
func (g *Graph) RewriteRefs(fn func(Ref) Ref) {
	for i, root := range g.Roots {
		g.Roots[i] = fn(root)
	}
	for _, rec := range g.Records {
		for i := range rec.Fields {
			rec.Fields[i].Value = rewriteValue(rec.Fields[i].Value, fn)
		}
	}
}

// Validate checks that every non-null reference is inside the record
// table. It reports the first offender.
func (g *Graph) Validate() error {
	n := len(g.Records)
	return g.EachRef(func(record int, path string, r Ref) error {
		if r.IsNull() || (r >= 0 && int(r) < n) {
			return nil
		}
		e := nif.Errorf(nif.InvalidReference, -1, "reference %d outside %d records", r, n)
		e.Record = record
		e.Field = path
		if record >= 0 {
			e.Type = g.Records[record].Type
		}
		return e
	})
}

func walkRefs(fields []Field, prefix string, fn func(string, Ref) error) error {
	for _, f := range fields {
		if err := walkValue(f.Value, prefix+f.Name, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkValue(v any, path string, fn func(string, Ref) error) error {
	switch x := v.(type) {
	case Ref:
		return fn(path, x)
	case *Struct:
		if x == nil {
			return nil
		}
		return walkRefs(x.Fields, path+".", fn)
	case []any:
		for i, e := range x {
			if err := walkValue(e, fmt.Sprintf("%s[%d]", path, i), fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func rewriteValue(v any, fn func(Ref) Ref) any {
	switch x := v.(type) {
	case Ref:
		return fn(x)
	case *Struct:
		if x != nil {
			for i := range x.Fields {
				x.Fields[i].Value = rewriteValue(x.Fields[i].Value, fn)
			}
		}
	case []any:
		for i := range x {
			x[i] = rewriteValue(x[i], fn)
		}
	}
	return v
}
