package graph

// Field is one named value. Values are Go primitives (uint8 ... float64,
// bool, string), Ref, *Struct, []byte for byte arrays, or []any for other
// arrays.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Struct is an ordered list of fields. Order follows the schema the values
// were decoded with; lookups are by name.
type Struct struct {
	Fields []Field `json:"fields"`
}

// Record is one block of the file.
type Record struct {
	Type string `json:"type"`
	Struct
	// Raw holds the undecoded payload of a record whose type the schema
	// registry does not know. Such records have no Fields.
	Raw []byte `json:"raw,omitempty"`
}

// NewRecord returns an empty record of the given type.
func NewRecord(typeName string) *Record {
	return &Record{Type: typeName}
}

// IsOpaque reports whether the record was kept as raw bytes.
func (r *Record) IsOpaque() bool { return r.Raw != nil }

// Get returns the first field called name.
func (s *Struct) Get(name string) (any, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return s.Fields[i].Value, true
		}
	}
	return nil, false
}

// Has reports whether a field called name is present.
func (s *Struct) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Set replaces the value of name, or appends the field if absent.
func (s *Struct) Set(name string, v any) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			s.Fields[i].Value = v
			return
		}
	}
	s.Fields = append(s.Fields, Field{Name: name, Value: v})
}

// With is Set returning s, for building values inline.
func (s *Struct) With(name string, v any) *Struct {
	s.Set(name, v)
	return s
}

// Delete removes the first field called name.
func (s *Struct) Delete(name string) bool {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			s.Fields = append(s.Fields[:i], s.Fields[i+1:]...)
			return true
		}
	}
	return false
}

// Ref returns a reference field's value.
func (s *Struct) Ref(name string) (Ref, bool) {
	v, ok := s.Get(name)
	if !ok {
		return NullRef, false
	}
	r, ok := v.(Ref)
	return r, ok
}

// Array returns an array field's elements.
func (s *Struct) Array(name string) ([]any, bool) {
	v, ok := s.Get(name)
	if !ok {
		return nil, false
	}
	a, ok := v.([]any)
	return a, ok
}

// Refs returns the references stored in an array field, skipping anything
// that is not a Ref.
func (s *Struct) Refs(name string) []Ref {
	arr, _ := s.Array(name)
	out := make([]Ref, 0, len(arr))
	for _, v := range arr {
		if r, ok := v.(Ref); ok {
			out = append(out, r)
		}
	}
	return out
}

// Sub returns a nested struct field.
func (s *Struct) Sub(name string) (*Struct, bool) {
	v, ok := s.Get(name)
	if !ok {
		return nil, false
	}
	st, ok := v.(*Struct)
	return st, ok
}

// RefArray converts refs into an array value.
func RefArray(refs ...Ref) []any {
	out := make([]any, len(refs))
	for i, r := range refs {
		out[i] = r
	}
	return out
}
