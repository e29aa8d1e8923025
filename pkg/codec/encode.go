package codec

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/nifkit/pkg/cursor"
	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

// Encode serializes g at version v. Fields the target layout lacks are
// dropped; fields it needs that a record lacks fail with
// MissingRequiredField, except count fields, which are derived from the
// arrays they govern. References are written as they are and must be in
// range. No bytes are returned on error.
func (c *GraphCodec) Encode(g *graph.Graph, v nif.FormatVersion) (out []byte, err error) {
	start := time.Now()
	defer func() { c.observe(opEncode, start, len(out), err) }()

	set, err := c.reg.Table().SchemasFor(v)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	bigEndian := g.Header.BigEndian && v.AtLeast(nif.V20_0_0_3)
	order := cursor.LittleEndian
	if bigEndian {
		order = cursor.BigEndian
	}

	tbl := &blockTable{
		index:  make([]uint16, len(g.Records)),
		sizes:  make([]uint32, len(g.Records)),
		groups: g.Header.Groups,
	}
	typeIdx := make(map[string]uint16)
	for i, rec := range g.Records {
		idx, ok := typeIdx[rec.Type]
		if !ok {
			if len(tbl.types) > 0xFFFF {
				return nil, nif.Errorf(nif.InvalidValue, -1, "more than %d distinct record types", 0xFFFF)
			}
			idx = uint16(len(tbl.types))
			typeIdx[rec.Type] = idx
			tbl.types = append(tbl.types, rec.Type)
		}
		tbl.index[i] = idx
	}

	e := &encoder{
		v:       v,
		w:       cursor.NewWriter(len(g.Records) * 64),
		strings: newStringTable(g.Header.Strings),
		records: len(g.Records),
		big:     bigEndian,
	}
	e.w.SetByteOrder(order)
	for i, rec := range g.Records {
		size, err := c.encodeRecord(e, set, g, i, rec)
		if err != nil {
			return nil, nif.InRecord(err, i, rec.Type)
		}
		tbl.sizes[i] = uint32(size)
	}
	if indexedStrings(v) {
		tbl.strings = e.strings.list
	}

	w := cursor.NewWriter(e.w.Len() + 1024)
	pre := schema.Preamble{
		Version:   v,
		BigEndian: bigEndian,
		NumBlocks: uint32(len(g.Records)),
		Export:    g.Header.Export,
	}
	if err := schema.WritePreamble(w, pre); err != nil {
		return nil, err
	}
	writeBlockTable(w, v, tbl)
	w.WriteBytes(e.w.Bytes())
	w.WriteU32(uint32(len(g.Roots)))
	for _, r := range g.Roots {
		w.WriteI32(int32(r))
	}

	c.log.Debug("encoded file",
		zap.String("version", v.Describe()),
		zap.Int("records", len(g.Records)),
		zap.Int("bytes", w.Len()),
	)
	return w.Bytes(), nil
}

func (c *GraphCodec) encodeRecord(e *encoder, set *schema.SchemaSet, g *graph.Graph, i int, rec *graph.Record) (int, error) {
	start := e.w.Len()
	if hasBlockMarker(e.v) {
		e.w.WriteU32(0)
	}
	bodyStart := e.w.Len()

	if rec.IsOpaque() {
		if !sameVersion(g.Header.Version, e.v) || g.Header.BigEndian != e.big {
			return 0, nif.Errorf(nif.UnknownType, start,
				"opaque %s record can only be written at %s", rec.Type, g.Header.Version.Describe())
		}
		e.w.WriteBytes(rec.Raw)
	} else {
		rs, err := set.Schema(rec.Type)
		if err != nil {
			return 0, atOffset(err, start)
		}
		if err := e.writeLayout(&rs.Layout, &rec.Struct, 0); err != nil {
			return 0, err
		}
	}

	size := e.w.Len() - bodyStart
	c.log.Debug("encoded record",
		zap.Int("index", i),
		zap.String("type", rec.Type),
		zap.Int("size", size),
	)
	return size, nil
}

func sameVersion(a, b nif.FormatVersion) bool {
	return a.Compare(b) == 0 && a.User == b.User && a.BSVersion == b.BSVersion
}

type encoder struct {
	v       nif.FormatVersion
	w       *cursor.Writer
	strings *stringTable
	records int
	big     bool
}

func (e *encoder) writeLayout(l *schema.Layout, st *graph.Struct, arg int64) error {
	env := newScope(e.v, arg)
	for _, f := range l.Fields {
		if !f.Present(env) {
			continue
		}
		val, ok := st.Get(f.Name)
		if arrays := l.CountFor(f.Name); len(arrays) > 0 {
			if n, found := countFrom(st, arrays); found {
				val, ok = n, true
			}
		}
		if !ok {
			return nif.InField(nif.Errorf(nif.MissingRequiredField, e.w.Len(),
				"%s field is required at %s", f.Type, e.v), f.Name)
		}
		if err := e.writeField(f, val, env, st); err != nil {
			return nif.InField(err, f.Name)
		}
		env.note(f.Name, val)
	}
	return nil
}

func (e *encoder) lengthError(got int, want int64) error {
	return nif.Errorf(nif.LengthMismatch, e.w.Len(), "array has %d elements, length evaluates to %d", got, want)
}

func (e *encoder) writeField(f *schema.Field, val any, env *scope, st *graph.Struct) error {
	if !f.IsArray() {
		return e.writeElem(f, val, env)
	}
	rows := f.Length.Eval(env)
	if !f.Is2D() {
		return e.writeArray(f, val, rows, env)
	}

	list, ok := val.([]any)
	if !ok {
		return nif.Errorf(nif.InvalidValue, e.w.Len(), "want a list of rows, have %T", val)
	}
	if int64(len(list)) != rows {
		return e.lengthError(len(list), rows)
	}
	var widths []any
	if f.Lengths != "" {
		widths, _ = st.Array(f.Lengths)
	}
	for i, row := range list {
		var width int64
		if f.Length2 != nil {
			width = f.Length2.Eval(env)
		} else if i < len(widths) {
			width, _ = asInt64(widths[i])
		}
		if err := e.writeArray(f, row, width, env); err != nil {
			return nif.InField(err, fmt.Sprintf("[%d]", i))
		}
	}
	return nil
}

func (e *encoder) writeArray(f *schema.Field, val any, n int64, env *scope) error {
	if b, ok := val.([]byte); ok && f.Prim == schema.PrimU8 {
		if int64(len(b)) != n {
			return e.lengthError(len(b), n)
		}
		e.w.WriteBytes(b)
		return nil
	}
	list, ok := val.([]any)
	if !ok {
		return nif.Errorf(nif.InvalidValue, e.w.Len(), "want an array, have %T", val)
	}
	if int64(len(list)) != n {
		return e.lengthError(len(list), n)
	}
	for i, elem := range list {
		if err := e.writeElem(f, elem, env); err != nil {
			return nif.InField(err, fmt.Sprintf("[%d]", i))
		}
	}
	return nil
}

func (e *encoder) writeElem(f *schema.Field, val any, env *scope) error {
	w := e.w
	bad := func() error {
		return nif.Errorf(nif.InvalidValue, w.Len(), "%T value %v does not fit %s", val, val, f.Type)
	}

	switch p := f.Prim; {
	case p == schema.PrimU64:
		if u, ok := val.(uint64); ok {
			w.WriteU64(u)
			return nil
		}
		n, ok := integerValue(val)
		if !ok || n < 0 {
			return bad()
		}
		w.WriteU64(uint64(n))
		return nil
	case p.IsInteger():
		n, ok := integerValue(val)
		if !ok || !fitsPrim(p, n) {
			return bad()
		}
		switch p {
		case schema.PrimU8:
			w.WriteU8(uint8(n))
		case schema.PrimI8:
			w.WriteI8(int8(n))
		case schema.PrimU16:
			w.WriteU16(uint16(n))
		case schema.PrimI16:
			w.WriteI16(int16(n))
		case schema.PrimU32:
			w.WriteU32(uint32(n))
		case schema.PrimI32:
			w.WriteI32(int32(n))
		case schema.PrimI64:
			w.WriteI64(n)
		}
		return nil
	case p == schema.PrimF32 || p == schema.PrimF64:
		x, ok := floatValue(val)
		if !ok {
			return bad()
		}
		if p == schema.PrimF32 {
			if f32, ok := val.(float32); ok {
				w.WriteF32(f32)
			} else {
				w.WriteF32(float32(x))
			}
		} else {
			w.WriteF64(x)
		}
		return nil
	case p == schema.PrimBool:
		b, ok := boolValue(val)
		if !ok {
			return bad()
		}
		w.WriteBool(b, boolWidth(e.v))
		return nil
	case p == schema.PrimChar || p == schema.PrimString || p == schema.PrimSizedString || p == schema.PrimShortString:
		s, ok := val.(string)
		if !ok {
			return bad()
		}
		return e.writeString(p, f, s)
	case p.IsRef():
		n, ok := val.(graph.Ref)
		if !ok {
			i, isInt := integerValue(val)
			if !isInt {
				return bad()
			}
			n = graph.Ref(i)
		}
		if n < graph.NullRef || int(n) >= e.records {
			return nif.Errorf(nif.InvalidReference, w.Len(), "reference %d outside %d records", n, e.records)
		}
		w.WriteI32(int32(n))
		return nil
	}

	sub, ok := val.(*graph.Struct)
	if !ok || sub == nil {
		return bad()
	}
	var arg int64
	if f.Arg != nil {
		arg = f.Arg.Eval(env)
	}
	return e.writeLayout(&f.Struct.Layout, sub, arg)
}

func (e *encoder) writeString(p schema.Primitive, f *schema.Field, s string) error {
	switch p {
	case schema.PrimChar:
		return e.w.WriteFixedString(s, f.Size)
	case schema.PrimShortString:
		return e.w.WriteShortString(s)
	case schema.PrimString:
		if indexedStrings(e.v) {
			e.w.WriteU32(e.strings.ref(s))
			return nil
		}
	}
	e.w.WriteSizedString(s)
	return nil
}
