package schema

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/nifkit/pkg/nif"
)

// Entry is one row of the version table. It governs every version from
// its own up to, but excluding, the next entry's.
type Entry struct {
	Version nif.FormatVersion
	// Name is a human label such as a game or toolset release.
	Name string
	// Explicit entries come from the definitions. The rest were added at
	// a type's since or until boundary.
	Explicit    bool
	Unsupported bool

	types map[string]*RecordSchema
}

// Types lists the concrete record types encodable under this entry, sorted.
func (e *Entry) Types() []string {
	out := make([]string, 0, len(e.types))
	for name, rec := range e.types {
		if !rec.Abstract && !rec.Opaque {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Table maps any version to the schema set in force for it.
type Table struct {
	entries []*Entry
	all     map[string]*RecordSchema
}

func buildTable(defs []VersionDef, records map[string]*RecordSchema) (*Table, error) {
	if len(defs) == 0 {
		return nil, errors.New("version table has no entries")
	}
	byVersion := make(map[uint32]*Entry)
	for _, d := range defs {
		v, err := nif.ParseVersion(d.Version)
		if err != nil {
			return nil, errors.Wrap(err, "version table")
		}
		if _, dup := byVersion[v.Uint32()]; dup {
			return nil, errors.Newf("version table lists %s twice", v)
		}
		byVersion[v.Uint32()] = &Entry{Version: v, Name: d.Name, Explicit: true, Unsupported: d.Unsupported}
	}

	var floor, ceiling uint32 = ^uint32(0), ^uint32(0)
	for k, e := range byVersion {
		if k < floor {
			floor = k
		}
		if e.Unsupported && k < ceiling {
			ceiling = k
		}
	}
	addBoundary := func(k uint32) {
		if k <= floor || k >= ceiling {
			return
		}
		if _, ok := byVersion[k]; !ok {
			byVersion[k] = &Entry{Version: nif.VersionFromUint32(k)}
		}
	}
	for _, rec := range records {
		if rec.Since != nil {
			addBoundary(rec.Since.Uint32())
		}
		if rec.Until != nil && rec.Until.Uint32() < ^uint32(0) {
			addBoundary(rec.Until.Uint32() + 1)
		}
	}

	t := &Table{all: records}
	for _, e := range byVersion {
		t.entries = append(t.entries, e)
	}
	sort.Slice(t.entries, func(i, j int) bool {
		return t.entries[i].Version.Less(t.entries[j].Version)
	})
	name := ""
	for _, e := range t.entries {
		if e.Explicit {
			name = e.Name
		} else {
			e.Name = name
		}
		e.types = make(map[string]*RecordSchema)
		for n, rec := range records {
			if rec.Since != nil && e.Version.Less(*rec.Since) {
				continue
			}
			if rec.Until != nil && rec.Until.Less(e.Version) {
				continue
			}
			e.types[n] = rec
		}
	}
	return t, nil
}

// Entries returns the table rows in ascending version order.
func (t *Table) Entries() []*Entry {
	return append([]*Entry(nil), t.entries...)
}

// Resolve finds the entry in force for v: the greatest entry not above it.
func (t *Table) Resolve(v nif.FormatVersion) (*Entry, error) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return v.Less(t.entries[i].Version)
	})
	if i == 0 {
		return nil, nif.Errorf(nif.UnsupportedVersion, -1, "version %s predates the oldest supported version %s",
			v, t.entries[0].Version)
	}
	e := t.entries[i-1]
	if e.Unsupported {
		return nil, nif.Errorf(nif.UnsupportedVersion, -1, "version %s is not supported", v)
	}
	return e, nil
}

// Supports reports whether v resolves to a supported entry.
func (t *Table) Supports(v nif.FormatVersion) bool {
	_, err := t.Resolve(v)
	return err == nil
}

// SchemasFor returns the schema set in force for v.
func (t *Table) SchemasFor(v nif.FormatVersion) (*SchemaSet, error) {
	e, err := t.Resolve(v)
	if err != nil {
		return nil, err
	}
	return &SchemaSet{Entry: e, Version: v, all: t.all}, nil
}

// SchemaSet is the set of record layouts valid for one concrete version.
type SchemaSet struct {
	Entry   *Entry
	Version nif.FormatVersion
	all     map[string]*RecordSchema
}

// Schema returns the layout for typeName, or an UnknownType error when the
// type is undefined, abstract, without a layout, or unavailable at this
// version.
func (s *SchemaSet) Schema(typeName string) (*RecordSchema, error) {
	rec, ok := s.Entry.types[typeName]
	if !ok {
		if _, known := s.all[typeName]; known {
			return nil, nif.Errorf(nif.UnknownType, -1, "type %q does not exist at version %s", typeName, s.Version)
		}
		return nil, nif.Errorf(nif.UnknownType, -1, "type %q is not defined", typeName)
	}
	switch {
	case rec.Abstract:
		return nil, nif.Errorf(nif.UnknownType, -1, "type %q is abstract", typeName)
	case rec.Opaque:
		return nil, nif.Errorf(nif.UnknownType, -1, "type %q has no described layout", typeName)
	case rec.VerCond != nil && !rec.VerCond.Bool(versionEnv{s.Version}):
		return nil, nif.Errorf(nif.UnknownType, -1, "type %q does not exist at %s", typeName, s.Version.Describe())
	}
	return rec, nil
}

// Has reports whether typeName can be encoded at this version.
func (s *SchemaSet) Has(typeName string) bool {
	_, err := s.Schema(typeName)
	return err == nil
}
