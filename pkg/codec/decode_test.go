package codec

import (
	"bytes"
	"testing"

	"github.com/ssargent/nifkit/pkg/cursor"
	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

func TestDecode_MinimalNode(t *testing.T) {
	f := file{
		version: nif.V20_2_0_7,
		strings: []string{"Scene Root"},
		blocks:  []block{{"NiNode", nodeBody(0)}},
		roots:   []int32{0},
	}
	data := f.bytes()
	c := newCodec(t)

	g, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if g.Header.Version != nif.V20_2_0_7 {
		t.Errorf("version = %s, want 20.2.0.7", g.Header.Version.Describe())
	}
	if len(g.Records) != 1 || g.Records[0].Type != "NiNode" {
		t.Fatalf("records = %+v, want one NiNode", g.Records)
	}
	if len(g.Roots) != 1 || g.Roots[0] != 0 {
		t.Errorf("roots = %v, want [0]", g.Roots)
	}

	node := g.Records[0]
	checks := map[string]any{
		"Name":             "Scene Root",
		"Flags":            uint16(14),
		"Scale":            float32(1),
		"Controller":       graph.NullRef,
		"Collision Object": graph.NullRef,
		"Num Children":     uint32(0),
	}
	for name, want := range checks {
		if got := mustGet(t, &node.Struct, name); got != want {
			t.Errorf("%s = %#v, want %#v", name, got, want)
		}
	}
	if kids := node.Refs("Children"); len(kids) != 0 {
		t.Errorf("Children = %v, want none", kids)
	}
	rot, ok := node.Sub("Rotation")
	if !ok {
		t.Fatal("Rotation is not a struct")
	}
	if m22, _ := rot.Get("m22"); m22 != float32(1) {
		t.Errorf("Rotation.m22 = %v, want 1", m22)
	}

	out, err := c.Encode(g, g.Header.Version)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("re-encoded bytes differ:\n got %x\nwant %x", out, data)
	}
}

func TestDecode_MinimalNodeBodyIs82Bytes(t *testing.T) {
	data := file{
		version: nif.V20_2_0_7,
		strings: []string{"Scene Root"},
		blocks:  []block{{"NiNode", nodeBody(0)}},
		roots:   []int32{0},
	}.bytes()

	// Header: signature line, version, endian, user, block count, one type
	// name, one type index, one block size, string table, group count.
	header := len("Gamebryo File Format, Version 20.2.0.7\n") + 4 + 1 + 4 + 4 +
		2 + 4 + len("NiNode") + 2 + 4 +
		4 + 4 + 4 + len("Scene Root") + 4
	if got := len(data) - header - 8; got != 82 {
		t.Fatalf("NiNode body is %d bytes, want 82", got)
	}
}

func TestDecode_SceneRoundTrip(t *testing.T) {
	data := sceneFile().bytes()
	c := newCodec(t)

	g, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := g.Records[0].Refs("Children"); len(got) != 1 || got[0] != 1 {
		t.Errorf("root children = %v, want [1]", got)
	}
	extra := g.Records[2]
	if name := mustGet(t, &extra.Struct, "Name"); name != "" {
		t.Errorf("null string decoded as %q", name)
	}
	if s := mustGet(t, &extra.Struct, "String Data"); s != "note" {
		t.Errorf("String Data = %q, want note", s)
	}

	again, err := c.Decode(data)
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	if !graph.Equal(g, again) {
		t.Errorf("decoding the same bytes twice differs:\n%s", graph.Diff(g, again))
	}

	out, err := c.Encode(g, g.Header.Version)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("re-encoded bytes differ:\n got %x\nwant %x", out, data)
	}
}

func TestDecode_BigEndian(t *testing.T) {
	little := sceneFile()
	big := sceneFile()
	big.bigEndian = true
	c := newCodec(t)

	lg, err := c.Decode(little.bytes())
	if err != nil {
		t.Fatalf("little endian Decode failed: %v", err)
	}
	bdata := big.bytes()
	bg, err := c.Decode(bdata)
	if err != nil {
		t.Fatalf("big endian Decode failed: %v", err)
	}
	if !bg.Header.BigEndian {
		t.Error("Header.BigEndian not set")
	}

	bg.Header.BigEndian = false
	if !graph.Equal(lg, bg) {
		t.Fatalf("byte order changed decoded values:\n%s", graph.Diff(lg, bg))
	}

	bg.Header.BigEndian = true
	out, err := c.Encode(bg, bg.Header.Version)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(out, bdata) {
		t.Fatal("big endian re-encode differs")
	}
}

func TestDecode_EveryTruncationFails(t *testing.T) {
	data := sceneFile().bytes()
	c := newCodec(t)
	for n := 0; n < len(data); n++ {
		g, err := c.Decode(data[:n])
		if err == nil {
			t.Fatalf("Decode of %d/%d bytes succeeded", n, len(data))
		}
		if g != nil {
			t.Fatalf("Decode of %d bytes returned a graph with an error", n)
		}
		formatError(t, err)
	}
}

func TestDecode_TruncatedBodyReportsField(t *testing.T) {
	data := file{
		version: nif.V20_2_0_7,
		strings: []string{"Scene Root"},
		blocks:  []block{{"NiNode", nodeBody(0)}},
		roots:   []int32{0},
	}.bytes()
	// Drop the roots and the last ten body bytes: two bytes of Collision
	// Object remain.
	cut := data[:len(data)-8-10]
	bodyStart := len(data) - 8 - 82

	_, err := newCodec(t).Decode(cut)
	fe := formatError(t, err)
	if fe.Kind != nif.OutOfBounds {
		t.Errorf("kind = %s, want out of bounds", fe.Kind)
	}
	if fe.Record != 0 || fe.Type != "NiNode" || fe.Field != "Collision Object" {
		t.Errorf("location = record %d type %q field %q", fe.Record, fe.Type, fe.Field)
	}
	if fe.Offset != bodyStart+70 {
		t.Errorf("offset = %d, want %d", fe.Offset, bodyStart+70)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		f     file
		kind  nif.Kind
		field string
	}{
		{
			name: "size table disagrees",
			f: file{
				version: nif.V20_2_0_7,
				strings: []string{"a"},
				blocks:  []block{{"NiNode", nodeBody(0)}},
				sizes:   []uint32{80},
				roots:   []int32{0},
			},
			kind: nif.SizeMismatch,
		},
		{
			name: "unknown type",
			f: file{
				version: nif.V20_2_0_7,
				blocks:  []block{{"NiMysteryBlock", rawBody(1, 2, 3)}},
			},
			kind: nif.UnknownType,
		},
		{
			name: "child out of range",
			f: file{
				version: nif.V20_2_0_7,
				strings: []string{"a"},
				blocks:  []block{{"NiNode", nodeBody(0, 5)}},
				roots:   []int32{0},
			},
			kind:  nif.InvalidReference,
			field: "Children[0]",
		},
		{
			name: "root out of range",
			f: file{
				version: nif.V20_2_0_7,
				strings: []string{"a"},
				blocks:  []block{{"NiNode", nodeBody(0)}},
				roots:   []int32{3},
			},
			kind:  nif.InvalidReference,
			field: "Roots[0]",
		},
		{
			name: "string index out of range",
			f: file{
				version: nif.V20_2_0_7,
				strings: []string{"a"},
				blocks:  []block{{"NiNode", nodeBody(4)}},
				roots:   []int32{0},
			},
			kind:  nif.InvalidValue,
			field: "Name",
		},
		{
			name: "huge child count",
			f: file{
				version: nif.V20_2_0_7,
				strings: []string{"a"},
				blocks:  []block{{"NiNode", nodeBodyCount(0, 0x7FFFFFFF)}},
				roots:   []int32{0},
			},
			kind:  nif.OutOfBounds,
			field: "Children",
		},
		{
			name: "unsupported version",
			f:    file{version: nif.MustParseVersion("20.3.0.9")},
			kind: nif.UnsupportedVersion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := newCodec(t).Decode(tt.f.bytes())
			if g != nil {
				t.Fatal("got a graph alongside an error")
			}
			fe := formatError(t, err)
			if fe.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", fe.Kind, tt.kind, err)
			}
			if tt.field != "" && fe.Field != tt.field {
				t.Errorf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestDecode_PreserveUnknown(t *testing.T) {
	f := file{
		version: nif.V20_2_0_7,
		strings: []string{"root"},
		blocks: []block{
			{"NiNode", nodeBody(0)},
			{"NiMysteryBlock", rawBody(0xDE, 0xAD, 0xBE, 0xEF, 0x01)},
			{"NiPixelData", rawBody(9, 9)},
		},
		roots: []int32{0},
	}
	data := f.bytes()
	c := newCodec(t, WithPreserveUnknown(true))

	g, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	mystery := g.Records[1]
	if !mystery.IsOpaque() || !bytes.Equal(mystery.Raw, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}) {
		t.Fatalf("mystery record = %+v", mystery)
	}
	if !g.Records[2].IsOpaque() {
		t.Error("record without a described layout was not kept raw")
	}

	out, err := c.Encode(g, g.Header.Version)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("opaque records did not round trip")
	}

	_, err = c.Encode(g, nif.V20_0_0_5)
	fe := formatError(t, err)
	if fe.Kind != nif.UnknownType || fe.Record != 1 {
		t.Errorf("downgrade with opaque record: kind %s record %d", fe.Kind, fe.Record)
	}

	fo3 := g.Header.Version
	fo3.User, fo3.BSVersion = 11, 34
	if _, err := c.Encode(g, fo3); nif.KindOf(err) != nif.UnknownType {
		t.Errorf("opaque record encoded under a different user version: %v", err)
	}
}

const nestedArraySchema = `
versions:
  - {version: 20.2.0.7, name: "Test"}
records:
  Grid:
    fields:
      - {name: Rows, type: uint}
      - {name: Cols, type: uint}
      - {name: Cells, type: float, length: Rows, length2: Cols}
  Jagged:
    fields:
      - {name: NumWidths, type: uint}
      - {name: Widths, type: ushort, length: NumWidths}
      - {name: NumRows, type: uint}
      - {name: Points, type: ushort, length: NumRows, lengths: Widths}
`

func TestDecode_NestedArrayCountsAreBounded(t *testing.T) {
	reg, err := schema.Load([]byte(nestedArraySchema))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := New(reg)

	u32s := func(vs ...uint32) func(*cursor.Writer) {
		return func(w *cursor.Writer) {
			for _, v := range vs {
				w.WriteU32(v)
			}
		}
	}
	tests := []struct {
		name string
		typ  string
		body func(*cursor.Writer)
		kind nif.Kind
	}{
		{"grid with empty rows", "Grid", u32s(0xFFFFFFFF, 0), nif.OutOfBounds},
		{"grid size overflows", "Grid", u32s(0xFFFFFFFF, 0xFFFFFFFF), nif.OutOfBounds},
		{"jagged rows without widths", "Jagged", u32s(0, 0xFFFFFFF0), nif.OutOfBounds},
		{"small grid", "Grid", u32s(2, 1, 0, 0), 0},
		{"jagged empty rows", "Jagged", func(w *cursor.Writer) {
			w.WriteU32(2)
			w.WriteU16(0)
			w.WriteU16(0)
			w.WriteU32(2)
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := file{
				version: nif.V20_2_0_7,
				blocks:  []block{{tt.typ, tt.body}},
				roots:   []int32{0},
			}
			_, err := c.Decode(f.bytes())
			if tt.kind == 0 {
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				return
			}
			if got := nif.KindOf(err); got != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", got, tt.kind, err)
			}
		})
	}
}

func TestDecode_TwoDimensionalArrays(t *testing.T) {
	c := newCodec(t)
	g := graph.New(nif.V20_2_0_7)
	g.Append(newTriShapeData())
	g.Append(newTriStripsData())

	data, err := c.Encode(g, nif.V20_2_0_7)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	uv, _ := back.Records[0].Array("UV Sets")
	if len(uv) != 1 {
		t.Fatalf("UV Sets has %d rows, want 1", len(uv))
	}
	if row, _ := uv[0].([]any); len(row) != 3 {
		t.Fatalf("UV Sets row has %d entries, want 3", len(row))
	}

	points, _ := back.Records[1].Array("Points")
	if len(points) != 2 {
		t.Fatalf("Points has %d strips, want 2", len(points))
	}
	for i, want := range []int{3, 4} {
		if row, _ := points[i].([]any); len(row) != want {
			t.Errorf("strip %d has %d points, want %d", i, len(row), want)
		}
	}

	again, err := c.Encode(back, nif.V20_2_0_7)
	if err != nil {
		t.Fatalf("re-Encode failed: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Fatal("geometry did not round trip")
	}
}
