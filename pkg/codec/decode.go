package codec

import (
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ssargent/nifkit/pkg/cursor"
	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

// Decode parses a complete NIF file. It either returns a fully decoded
// graph whose references are all in range, or an error and no graph.
func (c *GraphCodec) Decode(data []byte) (g *graph.Graph, err error) {
	start := time.Now()
	defer func() { c.observe(opDecode, start, len(data), err) }()

	r := cursor.NewReader(data)
	pre, err := schema.ReadPreamble(r)
	if err != nil {
		return nil, err
	}
	set, err := c.reg.Table().SchemasFor(pre.Version)
	if err != nil {
		return nil, err
	}
	tbl, err := readBlockTable(r, pre)
	if err != nil {
		return nil, err
	}

	g = graph.New(pre.Version)
	g.Header.BigEndian = pre.BigEndian
	g.Header.Export = pre.Export
	g.Header.Strings = tbl.strings
	g.Header.Groups = tbl.groups
	g.Records = make([]*graph.Record, 0, pre.NumBlocks)

	d := &decoder{r: r, v: pre.Version, strings: tbl.strings}
	for i := 0; i < int(pre.NumBlocks); i++ {
		rec, err := c.decodeRecord(d, set, tbl, i)
		if err != nil {
			return nil, err
		}
		g.Records = append(g.Records, rec)
	}

	n, err := r.ReadU32()
	if err != nil {
		return nil, nif.InField(err, "Roots")
	}
	if err := guardCount(r, n, 4, "root"); err != nil {
		return nil, nif.InField(err, "Roots")
	}
	g.Roots = make([]graph.Ref, n)
	for i := range g.Roots {
		ref, err := r.ReadI32()
		if err != nil {
			return nil, nif.InField(err, fmt.Sprintf("Roots[%d]", i))
		}
		g.Roots[i] = graph.Ref(ref)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	c.log.Debug("decoded file",
		zap.String("version", pre.Version.Describe()),
		zap.Int("records", len(g.Records)),
		zap.Int("bytes", len(data)),
		zap.Int("trailing", r.Remaining()),
	)
	return g, nil
}

func (c *GraphCodec) decodeRecord(d *decoder, set *schema.SchemaSet, tbl *blockTable, i int) (*graph.Record, error) {
	typeName := tbl.types[tbl.index[i]]
	start := d.r.Offset()
	fail := func(err error) error {
		return nif.InRecord(atOffset(err, start), i, typeName)
	}

	if hasBlockMarker(d.v) {
		marker, err := d.r.ReadU32()
		if err != nil {
			return nil, fail(err)
		}
		if marker != 0 {
			return nil, fail(nif.Errorf(nif.InvalidValue, start, "block marker is %d, want 0", marker))
		}
	}
	bodyStart := d.r.Offset()

	rs, err := set.Schema(typeName)
	if err != nil {
		if !c.preserveUnknown || tbl.sizes == nil || nif.KindOf(err) != nif.UnknownType {
			return nil, fail(err)
		}
		raw, err := d.r.ReadBytes(int(tbl.sizes[i]))
		if err != nil {
			return nil, fail(err)
		}
		c.log.Debug("kept opaque record",
			zap.Int("index", i),
			zap.String("type", typeName),
			zap.Int("offset", bodyStart),
			zap.Int("size", len(raw)),
		)
		return &graph.Record{Type: typeName, Raw: append([]byte{}, raw...)}, nil
	}

	rec := graph.NewRecord(typeName)
	if err := d.readLayout(&rs.Layout, &rec.Struct, 0); err != nil {
		return nil, fail(err)
	}
	consumed := d.r.Offset() - bodyStart
	if tbl.sizes != nil && uint32(consumed) != tbl.sizes[i] {
		return nil, fail(nif.Errorf(nif.SizeMismatch, bodyStart,
			"schema read %d bytes, block size table says %d", consumed, tbl.sizes[i]))
	}
	c.log.Debug("decoded record",
		zap.Int("index", i),
		zap.String("type", typeName),
		zap.Int("offset", bodyStart),
		zap.Int("size", consumed),
	)
	return rec, nil
}

// atOffset fills in the offset of a format error that lacks one.
func atOffset(err error, off int) error {
	var e *nif.Error
	if errors.As(err, &e) && e.Offset < 0 {
		e.Offset = off
	}
	return err
}

type decoder struct {
	r       *cursor.Reader
	v       nif.FormatVersion
	strings []string
}

func (d *decoder) readLayout(l *schema.Layout, st *graph.Struct, arg int64) error {
	env := newScope(d.v, arg)
	for _, f := range l.Fields {
		if !f.Present(env) {
			continue
		}
		val, err := d.readField(f, env, st)
		if err != nil {
			return nif.InField(err, f.Name)
		}
		st.Fields = append(st.Fields, graph.Field{Name: f.Name, Value: val})
		env.note(f.Name, val)
	}
	return nil
}

func (d *decoder) readField(f *schema.Field, env *scope, st *graph.Struct) (any, error) {
	if !f.IsArray() {
		return d.readElem(f, env)
	}
	rows := f.Length.Eval(env)
	if rows < 0 {
		return nil, nif.Errorf(nif.InvalidValue, d.r.Offset(), "length %q is %d", f.Length, rows)
	}
	switch {
	case f.Length2 != nil:
		width := f.Length2.Eval(env)
		if width < 0 {
			return nil, nif.Errorf(nif.InvalidValue, d.r.Offset(), "length %q is %d", f.Length2, width)
		}
		if err := d.guardRows(rows, 0); err != nil {
			return nil, err
		}
		if err := d.guard(f, width); err != nil {
			return nil, err
		}
		if width > 0 && rows > math.MaxInt64/width {
			return nil, nif.Errorf(nif.OutOfBounds, d.r.Offset(), "%d rows of %d elements overflow", rows, width)
		}
		if err := d.guard(f, rows*width); err != nil {
			return nil, err
		}
		out := make([]any, rows)
		for i := range out {
			row, err := d.readArray(f, width, env)
			if err != nil {
				return nil, nif.InField(err, fmt.Sprintf("[%d]", i))
			}
			out[i] = row
		}
		return out, nil
	case f.Lengths != "":
		widths, _ := st.Array(f.Lengths)
		if err := d.guardRows(rows, int64(len(widths))); err != nil {
			return nil, err
		}
		out := make([]any, rows)
		for i := range out {
			var width int64
			if i < len(widths) {
				width, _ = asInt64(widths[i])
			}
			row, err := d.readArray(f, width, env)
			if err != nil {
				return nil, nif.InField(err, fmt.Sprintf("[%d]", i))
			}
			out[i] = row
		}
		return out, nil
	}
	return d.readArray(f, rows, env)
}

// guard rejects counts that cannot fit in the remaining input before any
// allocation is made for them.
func (d *decoder) guard(f *schema.Field, n int64) error {
	size := int64(f.MinElemSize())
	if size >= 1 && n > int64(d.r.Remaining())/size {
		return nif.Errorf(nif.OutOfBounds, d.r.Offset(), "%d elements of at least %d bytes exceed %d remaining", n, size, d.r.Remaining())
	}
	return nil
}

// guardRows bounds the row count of a nested array. Rows may be empty, so
// more rows than remaining bytes are allowed only up to known, an in-memory
// bound such as the length of the row-width array.
func (d *decoder) guardRows(rows, known int64) error {
	if rows > known && rows > int64(d.r.Remaining()) {
		return nif.Errorf(nif.OutOfBounds, d.r.Offset(), "%d rows exceed %d remaining bytes", rows, d.r.Remaining())
	}
	return nil
}

func (d *decoder) readArray(f *schema.Field, n int64, env *scope) (any, error) {
	if err := d.guard(f, n); err != nil {
		return nil, err
	}
	if f.Prim == schema.PrimU8 {
		b, err := d.r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		return append([]byte{}, b...), nil
	}
	out := make([]any, n)
	for i := range out {
		v, err := d.readElem(f, env)
		if err != nil {
			return nil, nif.InField(err, fmt.Sprintf("[%d]", i))
		}
		out[i] = v
	}
	return out, nil
}

func (d *decoder) readElem(f *schema.Field, env *scope) (any, error) {
	r := d.r
	switch f.Prim {
	case schema.PrimU8:
		return r.ReadU8()
	case schema.PrimI8:
		return r.ReadI8()
	case schema.PrimU16:
		return r.ReadU16()
	case schema.PrimI16:
		return r.ReadI16()
	case schema.PrimU32:
		return r.ReadU32()
	case schema.PrimI32:
		return r.ReadI32()
	case schema.PrimU64:
		return r.ReadU64()
	case schema.PrimI64:
		return r.ReadI64()
	case schema.PrimF32:
		return r.ReadF32()
	case schema.PrimF64:
		return r.ReadF64()
	case schema.PrimBool:
		return r.ReadBool(boolWidth(d.v))
	case schema.PrimChar:
		return r.ReadFixedString(f.Size)
	case schema.PrimString:
		return d.readString()
	case schema.PrimSizedString:
		return r.ReadSizedString()
	case schema.PrimShortString:
		return r.ReadShortString()
	case schema.PrimRef, schema.PrimPtr:
		v, err := r.ReadI32()
		return graph.Ref(v), err
	}

	var arg int64
	if f.Arg != nil {
		arg = f.Arg.Eval(env)
	}
	sub := &graph.Struct{}
	if err := d.readLayout(&f.Struct.Layout, sub, arg); err != nil {
		return nil, err
	}
	return sub, nil
}

func (d *decoder) readString() (string, error) {
	if !indexedStrings(d.v) {
		return d.r.ReadSizedString()
	}
	off := d.r.Offset()
	idx, err := d.r.ReadU32()
	if err != nil {
		return "", err
	}
	if idx == nullString {
		return "", nil
	}
	if int64(idx) >= int64(len(d.strings)) {
		return "", nif.Errorf(nif.InvalidValue, off, "string index %d outside %d strings", idx, len(d.strings))
	}
	return d.strings[idx], nil
}
