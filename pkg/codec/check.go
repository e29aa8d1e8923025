package codec

import (
	"fmt"

	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

// Check verifies every reference in g against its field's declared target:
// the referenced record must exist and be of the target type or a subtype.
// Unlike Graph.Validate it reports every problem, not just the first.
func Check(g *graph.Graph, reg *schema.Registry) []error {
	var problems []error
	for i, root := range g.Roots {
		if !root.IsNull() && g.At(root) == nil {
			e := nif.Errorf(nif.InvalidReference, -1, "root %d outside %d records", root, len(g.Records))
			e.Field = fmt.Sprintf("Roots[%d]", i)
			problems = append(problems, e)
		}
	}

	set, err := reg.Table().SchemasFor(g.Header.Version)
	if err != nil {
		return append(problems, err)
	}
	for i, rec := range g.Records {
		if rec.IsOpaque() {
			continue
		}
		rs, err := set.Schema(rec.Type)
		if err != nil {
			problems = append(problems, nif.InRecord(err, i, rec.Type))
			continue
		}
		c := &checker{g: g, reg: reg, record: i, typeName: rec.Type}
		c.layout(&rs.Layout, &rec.Struct, "")
		problems = append(problems, c.problems...)
	}
	return problems
}

type checker struct {
	g        *graph.Graph
	reg      *schema.Registry
	record   int
	typeName string
	problems []error
}

func (c *checker) layout(l *schema.Layout, st *graph.Struct, prefix string) {
	done := make(map[string]bool)
	for _, f := range l.Fields {
		if done[f.Name] {
			continue
		}
		v, ok := st.Get(f.Name)
		if !ok {
			continue
		}
		done[f.Name] = true
		c.value(f, v, prefix+f.Name)
	}
}

func (c *checker) value(f *schema.Field, v any, path string) {
	switch x := v.(type) {
	case []any:
		for i, e := range x {
			c.value(f, e, fmt.Sprintf("%s[%d]", path, i))
		}
	case *graph.Struct:
		if f.Struct != nil && x != nil {
			c.layout(&f.Struct.Layout, x, path+".")
		}
	case graph.Ref:
		if f.Prim.IsRef() {
			c.ref(f, x, path)
		}
	}
}

func (c *checker) ref(f *schema.Field, r graph.Ref, path string) {
	if r.IsNull() {
		return
	}
	target := c.g.At(r)
	if target == nil {
		c.fail(path, "reference %d outside %d records", r, len(c.g.Records))
		return
	}
	if f.Target != "" && !c.reg.IsA(target.Type, f.Target) {
		c.fail(path, "reference %d is a %s, want %s", r, target.Type, f.Target)
	}
}

func (c *checker) fail(path, format string, args ...any) {
	e := nif.Errorf(nif.InvalidReference, -1, format, args...)
	e.Record = c.record
	e.Type = c.typeName
	e.Field = path
	c.problems = append(c.problems, e)
}
