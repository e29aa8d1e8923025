package schema

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/nifkit/pkg/nif"
)

// Registry holds every compiled record and struct schema together with the
// version table derived from them. It is immutable once built and safe for
// concurrent use.
type Registry struct {
	records map[string]*RecordSchema
	structs map[string]*StructSchema
	table   *Table
}

// Compile checks and flattens parsed definitions.
func Compile(defs *Definitions) (*Registry, error) {
	r := &Registry{
		records: make(map[string]*RecordSchema, len(defs.Records)),
		structs: make(map[string]*StructSchema, len(defs.Structs)),
	}

	for name, sd := range defs.Structs {
		if _, ok := LookupPrimitive(name); ok {
			return nil, errors.Newf("struct %q shadows a primitive type", name)
		}
		st := &StructSchema{Name: name}
		for _, fd := range sd.Fields {
			f, err := compileField(fd)
			if err != nil {
				return nil, errors.Wrapf(err, "struct %q", name)
			}
			st.Fields = append(st.Fields, f)
		}
		r.structs[name] = st
	}

	c := &flattener{defs: defs, reg: r, visiting: make(map[string]bool)}
	for name := range defs.Records {
		if _, err := c.flatten(name); err != nil {
			return nil, err
		}
	}

	for _, st := range r.structs {
		if err := r.finishLayout(st.Name, &st.Layout); err != nil {
			return nil, err
		}
	}
	for _, rec := range r.records {
		if err := r.finishLayout(rec.Name, &rec.Layout); err != nil {
			return nil, err
		}
	}
	sizing := make(map[string]bool)
	for _, st := range r.structs {
		r.structMinSize(st, sizing)
	}

	table, err := buildTable(defs.Versions, r.records)
	if err != nil {
		return nil, err
	}
	r.table = table
	return r, nil
}

type flattener struct {
	defs     *Definitions
	reg      *Registry
	visiting map[string]bool
}

func (c *flattener) flatten(name string) (*RecordSchema, error) {
	if rec, ok := c.reg.records[name]; ok {
		return rec, nil
	}
	d, ok := c.defs.Records[name]
	if !ok {
		return nil, errors.Newf("record %q is not defined", name)
	}
	if c.visiting[name] {
		return nil, errors.Newf("record %q inherits from itself", name)
	}
	c.visiting[name] = true
	defer delete(c.visiting, name)

	rec := &RecordSchema{
		Name:     name,
		Parent:   d.Inherit,
		Abstract: d.Abstract,
		Opaque:   d.Opaque,
		Doc:      d.Doc,
	}
	var err error
	if rec.Since, err = parseOptVersion(d.Since); err != nil {
		return nil, errors.Wrapf(err, "record %q since", name)
	}
	if rec.Until, err = parseOptVersion(d.Until); err != nil {
		return nil, errors.Wrapf(err, "record %q until", name)
	}
	if rec.VerCond, err = parseOptExpr(d.VerCond); err != nil {
		return nil, errors.Wrapf(err, "record %q", name)
	}
	if rec.VerCond != nil && len(rec.VerCond.Idents()) > 0 {
		return nil, errors.Newf("record %q: vercond may only use ver, user and bsver", name)
	}

	if d.Inherit != "" {
		parent, err := c.flatten(d.Inherit)
		if err != nil {
			return nil, errors.Wrapf(err, "record %q", name)
		}
		rec.Fields = append(rec.Fields, parent.Fields...)
	}
	for _, fd := range d.Fields {
		f, err := compileField(fd)
		if err != nil {
			return nil, errors.Wrapf(err, "record %q", name)
		}
		rec.Fields = append(rec.Fields, f)
	}
	if rec.Opaque && len(d.Fields) > 0 {
		return nil, errors.Newf("record %q: opaque records cannot declare fields", name)
	}
	c.reg.records[name] = rec
	return rec, nil
}

// finishLayout resolves struct types and targets, checks that expressions
// only refer to earlier siblings, and derives the count fields.
func (r *Registry) finishLayout(owner string, l *Layout) error {
	seen := make(map[string]bool, len(l.Fields))
	l.counts = make(map[string][]string)
	for _, f := range l.Fields {
		if f.Prim == PrimNone {
			st, ok := r.structs[f.Type]
			if !ok {
				return errors.Newf("%s.%s: unknown type %q", owner, f.Name, f.Type)
			}
			f.Struct = st
		}
		if f.Target != "" {
			if _, ok := r.records[f.Target]; !ok {
				return errors.Newf("%s.%s: unknown target %q", owner, f.Name, f.Target)
			}
		}
		for _, e := range []*Expr{f.Length, f.Length2, f.Cond, f.Arg} {
			if e == nil {
				continue
			}
			for _, id := range e.Idents() {
				if !seen[id] {
					return errors.Newf("%s.%s: %q does not name an earlier field", owner, f.Name, id)
				}
			}
		}
		if f.VerCond != nil && len(f.VerCond.Idents()) > 0 {
			return errors.Newf("%s.%s: vercond may only use ver, user and bsver", owner, f.Name)
		}
		if f.Lengths != "" && !seen[f.Lengths] {
			return errors.Newf("%s.%s: lengths %q does not name an earlier field", owner, f.Name, f.Lengths)
		}
		if f.Length != nil {
			if id, ok := f.Length.Ident(); ok {
				l.counts[id] = append(l.counts[id], f.Name)
			}
		}
		seen[f.Name] = true
	}
	return nil
}

func (r *Registry) structMinSize(st *StructSchema, visiting map[string]bool) int {
	if st.minSize > 0 || visiting[st.Name] {
		return st.minSize
	}
	visiting[st.Name] = true
	size := 0
	for _, f := range st.Fields {
		if f.IsArray() || f.Since != nil || f.Until != nil || f.VerCond != nil || f.Cond != nil {
			continue
		}
		if f.Struct != nil {
			size += r.structMinSize(f.Struct, visiting)
			continue
		}
		size += f.MinElemSize()
	}
	st.minSize = size
	return size
}

// Table returns the version table.
func (r *Registry) Table() *Table { return r.table }

// Record returns the schema of a type regardless of version.
func (r *Registry) Record(name string) (*RecordSchema, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

// Struct returns a compound schema by name.
func (r *Registry) Struct(name string) (*StructSchema, bool) {
	st, ok := r.structs[name]
	return st, ok
}

// SchemaOf returns the layout of typeName at version v.
func (r *Registry) SchemaOf(typeName string, v nif.FormatVersion) (*RecordSchema, error) {
	set, err := r.table.SchemasFor(v)
	if err != nil {
		return nil, err
	}
	return set.Schema(typeName)
}

// IsA reports whether typeName is base or inherits from it.
func (r *Registry) IsA(typeName, base string) bool {
	for name := typeName; name != ""; {
		if name == base {
			return true
		}
		rec, ok := r.records[name]
		if !ok {
			return false
		}
		name = rec.Parent
	}
	return false
}

// Types returns every record type name in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.records))
	for name := range r.records {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Structs returns every struct name in sorted order.
func (r *Registry) Structs() []string {
	out := make([]string, 0, len(r.structs))
	for name := range r.structs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
