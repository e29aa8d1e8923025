package schema

import (
	"github.com/ssargent/nifkit/pkg/nif"
)

// Primitive identifies a scalar wire type.
type Primitive int

const (
	PrimNone Primitive = iota // a compound struct
	PrimU8
	PrimI8
	PrimU16
	PrimI16
	PrimU32
	PrimI32
	PrimU64
	PrimI64
	PrimF32
	PrimF64
	PrimBool
	PrimChar
	PrimString
	PrimSizedString
	PrimShortString
	PrimRef
	PrimPtr
)

var primitiveNames = map[string]Primitive{
	"byte":        PrimU8,
	"sbyte":       PrimI8,
	"ushort":      PrimU16,
	"short":       PrimI16,
	"uint":        PrimU32,
	"int":         PrimI32,
	"ulong":       PrimU64,
	"int64":       PrimI64,
	"float":       PrimF32,
	"double":      PrimF64,
	"bool":        PrimBool,
	"char":        PrimChar,
	"string":      PrimString,
	"sizedstring": PrimSizedString,
	"shortstring": PrimShortString,
	"ref":         PrimRef,
	"ptr":         PrimPtr,
}

// LookupPrimitive maps a schema type name to its primitive.
func LookupPrimitive(name string) (Primitive, bool) {
	p, ok := primitiveNames[name]
	return p, ok
}

// IsRef reports whether p is a reference to another record.
func (p Primitive) IsRef() bool { return p == PrimRef || p == PrimPtr }

// IsInteger reports whether values of p are stored as Go integers.
func (p Primitive) IsInteger() bool { return p >= PrimU8 && p <= PrimI64 }

// MinSize is the fewest bytes one value of p can occupy.
func (p Primitive) MinSize() int {
	switch p {
	case PrimU8, PrimI8, PrimBool:
		return 1
	case PrimU16, PrimI16, PrimShortString:
		return 2
	case PrimU32, PrimI32, PrimF32, PrimString, PrimSizedString, PrimRef, PrimPtr:
		return 4
	case PrimU64, PrimI64, PrimF64:
		return 8
	}
	return 0
}

// Field describes one member of a record or struct.
type Field struct {
	Name string
	// Type is the schema name: a primitive or a struct.
	Type   string
	Prim   Primitive
	Struct *StructSchema
	// Target is the record type a ref or ptr must point to.
	Target string
	// Size is the byte length of a char field.
	Size int

	// Length is the element count, or the row count of a two-dimensional
	// array. Length2 is the width of every row. Lengths names a sibling
	// array holding a per-row width.
	Length  *Expr
	Length2 *Expr
	Lengths string

	Since   *nif.FormatVersion
	Until   *nif.FormatVersion
	VerCond *Expr
	Cond    *Expr
	// Arg is evaluated and passed into a struct-typed field.
	Arg *Expr
}

// IsArray reports whether the field holds a list of values.
func (f *Field) IsArray() bool { return f.Length != nil }

// Is2D reports whether the field is an array of arrays.
func (f *Field) Is2D() bool { return f.Length2 != nil || f.Lengths != "" }

// InVersion reports whether the field exists at v, ignoring conditions on
// sibling values. since and until are inclusive.
func (f *Field) InVersion(v nif.FormatVersion) bool {
	if f.Since != nil && v.Less(*f.Since) {
		return false
	}
	if f.Until != nil && f.Until.Less(v) {
		return false
	}
	return true
}

// Present reports whether the field is serialized under env.
func (f *Field) Present(env Env) bool {
	if !f.InVersion(env.Version()) {
		return false
	}
	if f.VerCond != nil && !f.VerCond.Bool(env) {
		return false
	}
	if f.Cond != nil && !f.Cond.Bool(env) {
		return false
	}
	return true
}

// MinElemSize is the fewest bytes one element of the field can occupy. A
// struct whose members may all be absent reports 0.
func (f *Field) MinElemSize() int {
	if f.Prim == PrimChar {
		return f.Size
	}
	if f.Prim != PrimNone {
		return f.Prim.MinSize()
	}
	if f.Struct == nil {
		return 0
	}
	return f.Struct.minSize
}

// Layout is an ordered field list with the count fields derived from it.
type Layout struct {
	Fields []*Field
	// counts maps a count field to the arrays whose length it stores.
	counts map[string][]string
}

// CountFor lists the arrays whose length is stored in the named field.
func (l *Layout) CountFor(name string) []string { return l.counts[name] }

// IsCount reports whether the named field only stores an array length.
func (l *Layout) IsCount(name string) bool { return len(l.counts[name]) > 0 }

// Field returns the first field called name.
func (l *Layout) Field(name string) (*Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// StructSchema is a named compound used as a field type.
type StructSchema struct {
	Name string
	Layout
	minSize int
}

// RecordSchema is the flattened layout of one block type: inherited fields
// first, then its own.
type RecordSchema struct {
	Name   string
	Parent string
	// Abstract types are never serialized on their own.
	Abstract bool
	// Opaque types are known by name but have no described layout.
	Opaque  bool
	Since   *nif.FormatVersion
	Until   *nif.FormatVersion
	VerCond *Expr
	Doc     string
	Layout
}

// AvailableAt reports whether the type exists at v, including its user and
// Bethesda version condition.
func (r *RecordSchema) AvailableAt(v nif.FormatVersion) bool {
	if r.Since != nil && v.Less(*r.Since) {
		return false
	}
	if r.Until != nil && r.Until.Less(v) {
		return false
	}
	return r.VerCond == nil || r.VerCond.Bool(versionEnv{v})
}
