// Package schema describes NIF block layouts and the versions they apply to.
//
// Layouts are declared in YAML (see nif.yaml, embedded as the default set)
// and compiled into a Registry. Compilation flattens inheritance, resolves
// struct field types and reference targets, parses every condition, and
// derives which integer fields are array counts. Errors in the definitions
// are reported by Load, never while decoding.
//
// # Versions
//
// The registry's Table maps any concrete version to the Entry in force for
// it: the greatest entry not above the version. Explicit entries come from
// the definitions; an entry is also added automatically wherever a record
// type starts or stops existing, so every entry has a fixed set of types.
//
//	reg := schema.MustDefault()
//	set, err := reg.Table().SchemasFor(v)
//	if err != nil {
//	    return err // UnsupportedVersion
//	}
//	node, err := set.Schema("NiNode")
//
// # Conditions
//
// Fields may carry four kinds of condition:
//
//	since, until  inclusive version bounds
//	vercond       an expression over ver, user and bsver
//	cond          an expression that may also name earlier fields
//	length        an element count, usually the name of a count field
//
// Expressions support ||, &&, the six comparisons, bitwise & and a leading
// !. Parentheses are not supported. A field name that is absent at the
// current version evaluates to zero.
//
// # Preamble
//
// Detect and ReadPreamble parse the part of a stream header that does not
// depend on any schema: the signature line, binary version, byte order,
// user versions and the Bethesda export block.
package schema
