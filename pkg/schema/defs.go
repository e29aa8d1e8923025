package schema

import (
	_ "embed"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/nifkit/pkg/nif"
)

//go:embed nif.yaml
var defaultDefinitions []byte

// Definitions is the YAML form of a schema file.
type Definitions struct {
	Versions []VersionDef         `yaml:"versions"`
	Structs  map[string]StructDef `yaml:"structs"`
	Records  map[string]RecordDef `yaml:"records"`
}

// VersionDef declares an explicit version table entry.
type VersionDef struct {
	Version     string `yaml:"version"`
	Name        string `yaml:"name"`
	Unsupported bool   `yaml:"unsupported"`
}

// StructDef declares a compound field type.
type StructDef struct {
	Doc    string     `yaml:"doc"`
	Fields []FieldDef `yaml:"fields"`
}

// RecordDef declares a block type.
type RecordDef struct {
	Doc      string     `yaml:"doc"`
	Inherit  string     `yaml:"inherit"`
	Abstract bool       `yaml:"abstract"`
	Opaque   bool       `yaml:"opaque"`
	Since    string     `yaml:"since"`
	Until    string     `yaml:"until"`
	VerCond  string     `yaml:"vercond"`
	Fields   []FieldDef `yaml:"fields"`
}

// FieldDef declares one member.
type FieldDef struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Target  string `yaml:"target"`
	Size    int    `yaml:"size"`
	Length  string `yaml:"length"`
	Length2 string `yaml:"length2"`
	Lengths string `yaml:"lengths"`
	Since   string `yaml:"since"`
	Until   string `yaml:"until"`
	VerCond string `yaml:"vercond"`
	Cond    string `yaml:"cond"`
	Arg     string `yaml:"arg"`
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry compiled from the built-in definitions.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Load(defaultDefinitions)
	})
	return defaultReg, defaultErr
}

// MustDefault is Default that panics on a broken built-in schema.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultDefinitions returns the embedded YAML source.
func DefaultDefinitions() []byte {
	return append([]byte(nil), defaultDefinitions...)
}

// Load parses and compiles a YAML schema.
func Load(data []byte) (*Registry, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, errors.Wrap(err, "parse schema definitions")
	}
	return Compile(&defs)
}

func parseOptVersion(s string) (*nif.FormatVersion, error) {
	if s == "" {
		return nil, nil
	}
	v, err := nif.ParseVersion(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptExpr(s string) (*Expr, error) {
	if s == "" {
		return nil, nil
	}
	return ParseExpr(s)
}

func compileField(d FieldDef) (*Field, error) {
	if d.Name == "" {
		return nil, errors.New("field without a name")
	}
	f := &Field{
		Name:    d.Name,
		Type:    d.Type,
		Target:  d.Target,
		Size:    d.Size,
		Lengths: d.Lengths,
	}
	if p, ok := LookupPrimitive(d.Type); ok {
		f.Prim = p
	}
	if f.Prim == PrimChar && f.Size <= 0 {
		return nil, errors.Newf("field %q: char needs a positive size", d.Name)
	}
	if f.Target != "" && !f.Prim.IsRef() {
		return nil, errors.Newf("field %q: target on non-reference type %q", d.Name, d.Type)
	}
	var err error
	if f.Since, err = parseOptVersion(d.Since); err != nil {
		return nil, errors.Wrapf(err, "field %q since", d.Name)
	}
	if f.Until, err = parseOptVersion(d.Until); err != nil {
		return nil, errors.Wrapf(err, "field %q until", d.Name)
	}
	for _, e := range []struct {
		dst **Expr
		src string
	}{
		{&f.Length, d.Length},
		{&f.Length2, d.Length2},
		{&f.VerCond, d.VerCond},
		{&f.Cond, d.Cond},
		{&f.Arg, d.Arg},
	} {
		if *e.dst, err = parseOptExpr(e.src); err != nil {
			return nil, errors.Wrapf(err, "field %q", d.Name)
		}
	}
	if f.Lengths != "" && f.Length == nil {
		return nil, errors.Newf("field %q: lengths without length", d.Name)
	}
	if f.Length2 != nil && f.Lengths != "" {
		return nil, errors.Newf("field %q: length2 and lengths are exclusive", d.Name)
	}
	return f, nil
}
