// Package codec converts between NIF files and object graphs.
//
// The codec is driven entirely by a schema registry: it knows nothing about
// specific block types, only how to read and write the primitive and
// compound field types a layout is made of.
//
// # File Format
//
// A file is laid out as:
//
//	[signature line][version][endian?][user?][num blocks][export info?]
//	[block types][block type index][block sizes?][string table?][groups?]
//	[block 0] ... [block n-1]
//	[num roots][roots]
//
// Optional parts are present depending on the version:
//   - endian byte: 20.0.0.3 and later
//   - user version: 10.0.1.8 and later
//   - export info: Bethesda files, see nif.FormatVersion.HasBSHeader
//   - block sizes: 20.2.0.5 and later
//   - string table: 20.1.0.1 and later; string fields are then indices
//   - a zero uint32 before each block: 5.0.0.1 through 10.1.0.106
//
// # Decoding
//
// Decode reads the header, resolves the schema set for the file's version
// and decodes every block in order. References stay raw indices into the
// record table. The result is all or nothing: on any error no graph is
// returned, and the error is a *nif.Error locating the problem by byte
// offset, record index, type and field path:
//
//	out of bounds: need 4 bytes, 2 remain (offset 311, record 3, type NiNode, field "Children[2]")
//
// When the file carries block sizes each record must consume exactly its
// declared size. WithPreserveUnknown uses those sizes to keep records of
// types without a layout as raw bytes.
//
// # Encoding
//
// Encode writes a graph at any supported version. Field order comes from
// the target layout, so encoding at another version converts the file:
//
//	g, err := c.Decode(data)
//	if err != nil {
//	    return err
//	}
//	out, err := c.Encode(g, nif.MustParseVersion("20.0.0.5"))
//
// Fields the target does not have are dropped. Fields it requires that a
// record lacks fail with MissingRequiredField. Count fields are the
// exception: they are always derived from the arrays they size, so a
// transform can append to Children without touching Num Children.
//
// # Validation
//
// Decode and Encode only check that references are in range. Check goes
// further and verifies each reference against the target type its field
// declares.
//
// # Thread Safety
//
// A GraphCodec is safe for concurrent use. Graphs are not; give each
// goroutine its own.
package codec
