package codec

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/nifkit/pkg/cursor"
	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

// block is one hand-assembled record body.
type block struct {
	typ  string
	body func(w *cursor.Writer)
}

// file describes a hand-assembled stream at 20.2.0.5 or later with user
// version 0, so it carries block sizes and an indexed string table.
type file struct {
	version   nif.FormatVersion
	bigEndian bool
	strings   []string
	blocks    []block
	roots     []int32
	// sizes overrides the computed block sizes when set.
	sizes []uint32
}

func (f file) bytes() []byte {
	order := cursor.LittleEndian
	if f.bigEndian {
		order = cursor.BigEndian
	}

	var types []string
	typeIdx := map[string]uint16{}
	var index []uint16
	var sizes []uint32
	var bodies [][]byte
	for _, b := range f.blocks {
		if _, ok := typeIdx[b.typ]; !ok {
			typeIdx[b.typ] = uint16(len(types))
			types = append(types, b.typ)
		}
		index = append(index, typeIdx[b.typ])
		bw := cursor.NewWriter(128)
		bw.SetByteOrder(order)
		b.body(bw)
		bodies = append(bodies, bw.Bytes())
		sizes = append(sizes, uint32(bw.Len()))
	}
	if f.sizes != nil {
		sizes = f.sizes
	}

	w := cursor.NewWriter(512)
	w.WriteLine(f.version.HeaderString())
	w.WriteU32(f.version.Uint32())
	if f.bigEndian {
		w.WriteU8(0)
	} else {
		w.WriteU8(1)
	}
	w.SetByteOrder(order)
	w.WriteU32(0)
	w.WriteU32(uint32(len(f.blocks)))

	w.WriteU16(uint16(len(types)))
	for _, t := range types {
		w.WriteSizedString(t)
	}
	for _, i := range index {
		w.WriteU16(i)
	}
	for _, s := range sizes {
		w.WriteU32(s)
	}

	longest := 0
	for _, s := range f.strings {
		if len(s) > longest {
			longest = len(s)
		}
	}
	w.WriteU32(uint32(len(f.strings)))
	w.WriteU32(uint32(longest))
	for _, s := range f.strings {
		w.WriteSizedString(s)
	}
	w.WriteU32(0) // groups

	for _, b := range bodies {
		w.WriteBytes(b)
	}
	w.WriteU32(uint32(len(f.roots)))
	for _, r := range f.roots {
		w.WriteI32(r)
	}
	return w.Bytes()
}

// nodeBody writes an NiNode at 20.2.0.7 with bsver 0: 82 bytes plus four
// per child.
func nodeBody(name uint32, children ...int32) func(*cursor.Writer) {
	return nodeBodyCount(name, uint32(len(children)), children...)
}

func nodeBodyCount(name, numChildren uint32, children ...int32) func(*cursor.Writer) {
	return func(w *cursor.Writer) {
		w.WriteU32(name)
		w.WriteU32(0)  // Num Extra Data List
		w.WriteI32(-1) // Controller
		w.WriteU16(14) // Flags
		for i := 0; i < 3; i++ {
			w.WriteF32(0)
		}
		for i := 0; i < 9; i++ {
			if i%4 == 0 {
				w.WriteF32(1)
			} else {
				w.WriteF32(0)
			}
		}
		w.WriteF32(1)  // Scale
		w.WriteU32(0)  // Num Properties
		w.WriteI32(-1) // Collision Object
		w.WriteU32(numChildren)
		for _, c := range children {
			w.WriteI32(c)
		}
		w.WriteU32(0) // Num Effects
	}
}

func stringExtraBody(name, data uint32) func(*cursor.Writer) {
	return func(w *cursor.Writer) {
		w.WriteU32(name)
		w.WriteU32(data)
	}
}

func rawBody(b ...byte) func(*cursor.Writer) {
	return func(w *cursor.Writer) { w.WriteBytes(b) }
}

// sceneFile is a root node with one child node and a string extra data
// record that nothing references.
func sceneFile() file {
	return file{
		version: nif.V20_2_0_7,
		strings: []string{"Scene Root", "Child", "note"},
		blocks: []block{
			{"NiNode", nodeBody(0, 1)},
			{"NiNode", nodeBody(1)},
			{"NiStringExtraData", stringExtraBody(nullString, 2)},
		},
		roots: []int32{0},
	}
}

func vec3(x, y, z float32) *graph.Struct {
	return (&graph.Struct{}).With("x", x).With("y", y).With("z", z)
}

func identity() *graph.Struct {
	m := &graph.Struct{}
	for i, name := range []string{"m11", "m12", "m13", "m21", "m22", "m23", "m31", "m32", "m33"} {
		if i%4 == 0 {
			m.Set(name, float32(1))
		} else {
			m.Set(name, float32(0))
		}
	}
	return m
}

// newNode builds an NiNode carrying every field any supported version
// reads, with the Go types the decoder produces.
func newNode(name string, children ...graph.Ref) *graph.Record {
	rec := graph.NewRecord("NiNode")
	rec.Set("Name", name)
	rec.Set("Num Extra Data List", uint32(0))
	rec.Set("Extra Data List", graph.RefArray())
	rec.Set("Controller", graph.NullRef)
	rec.Set("Flags", uint16(14))
	rec.Set("Translation", vec3(0, 0, 0))
	rec.Set("Rotation", identity())
	rec.Set("Scale", float32(1))
	rec.Set("Num Properties", uint32(0))
	rec.Set("Properties", graph.RefArray())
	rec.Set("Collision Object", graph.NullRef)
	rec.Set("Num Children", uint32(len(children)))
	rec.Set("Children", graph.RefArray(children...))
	rec.Set("Num Effects", uint32(0))
	rec.Set("Effects", graph.RefArray())
	return rec
}

func newSourceTexture(file string) *graph.Record {
	rec := graph.NewRecord("NiSourceTexture")
	rec.Set("Name", "")
	rec.Set("Num Extra Data List", uint32(0))
	rec.Set("Extra Data List", graph.RefArray())
	rec.Set("Controller", graph.NullRef)
	rec.Set("Use External", uint8(1))
	rec.Set("File Name", file)
	rec.Set("Unknown Link", graph.NullRef)
	rec.Set("Format Prefs", (&graph.Struct{}).
		With("Pixel Layout", uint32(6)).
		With("Use Mipmaps", uint32(1)).
		With("Alpha Format", uint32(3)))
	rec.Set("Is Static", uint8(1))
	rec.Set("Direct Render", true)
	rec.Set("Persist Render Data", false)
	return rec
}

func newCodec(t testing.TB, opts ...Option) *GraphCodec {
	t.Helper()
	reg, err := schema.Default()
	if err != nil {
		t.Fatalf("default schema: %v", err)
	}
	return New(reg, opts...)
}

func formatError(t *testing.T, err error) *nif.Error {
	t.Helper()
	var fe *nif.Error
	if !errors.As(err, &fe) {
		t.Fatalf("error %v (%T) is not a *nif.Error", err, err)
	}
	return fe
}

func mustGet(t *testing.T, st *graph.Struct, name string) any {
	t.Helper()
	v, ok := st.Get(name)
	if !ok {
		t.Fatalf("field %q missing", name)
	}
	return v
}

// geometryBase sets the NiGeometryData fields present at 20.2.0.7 with
// bsver 0: three vertices, no normals, one UV set.
func geometryBase(rec *graph.Record) {
	uv := func(u, v float32) *graph.Struct {
		return (&graph.Struct{}).With("u", u).With("v", v)
	}
	rec.Set("Group ID", int32(0))
	rec.Set("Num Vertices", uint16(3))
	rec.Set("Keep Flags", uint8(0))
	rec.Set("Compress Flags", uint8(0))
	rec.Set("Has Vertices", true)
	rec.Set("Vertices", []any{vec3(0, 0, 0), vec3(1, 0, 0), vec3(0, 1, 0)})
	rec.Set("Data Flags", uint16(1))
	rec.Set("Has Normals", false)
	rec.Set("Center", vec3(0.5, 0.5, 0))
	rec.Set("Radius", float32(0.75))
	rec.Set("Has Vertex Colors", false)
	rec.Set("UV Sets", []any{[]any{uv(0, 0), uv(1, 0), uv(0, 1)}})
	rec.Set("Consistency Flags", uint16(0x4000))
	rec.Set("Additional Data", graph.NullRef)
}

func newTriShapeData() *graph.Record {
	rec := graph.NewRecord("NiTriShapeData")
	geometryBase(rec)
	rec.Set("Num Triangles", uint16(1))
	rec.Set("Num Triangle Points", uint32(3))
	rec.Set("Has Triangles", true)
	rec.Set("Triangles", []any{(&graph.Struct{}).
		With("v1", uint16(0)).
		With("v2", uint16(1)).
		With("v3", uint16(2))})
	rec.Set("Num Match Groups", uint16(0))
	rec.Set("Match Groups", []any{})
	return rec
}

func newTriStripsData() *graph.Record {
	rec := graph.NewRecord("NiTriStripsData")
	geometryBase(rec)
	rec.Set("Num Triangles", uint16(3))
	rec.Set("Num Strips", uint16(2))
	rec.Set("Strip Lengths", []any{uint16(3), uint16(4)})
	rec.Set("Has Points", true)
	rec.Set("Points", []any{
		[]any{uint16(0), uint16(1), uint16(2)},
		[]any{uint16(2), uint16(1), uint16(0), uint16(1)},
	})
	return rec
}
