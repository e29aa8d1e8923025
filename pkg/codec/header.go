package codec

import (
	"github.com/ssargent/nifkit/pkg/cursor"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

// blockTable is the header section after the preamble.
type blockTable struct {
	types   []string
	index   []uint16
	sizes   []uint32
	strings []string
	groups  []uint32
}

// guardCount fails when n elements of at least size bytes cannot fit in
// what remains of r.
func guardCount(r *cursor.Reader, n uint32, size int, what string) error {
	if size > 0 && int64(n)*int64(size) > int64(r.Remaining()) {
		return nif.Errorf(nif.OutOfBounds, r.Offset(), "%s count %d exceeds %d remaining bytes", what, n, r.Remaining())
	}
	return nil
}

func readBlockTable(r *cursor.Reader, pre schema.Preamble) (*blockTable, error) {
	v := pre.Version
	t := &blockTable{}
	if v.AtLeast(nif.V5_0_0_1) {
		n, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		if err := guardCount(r, uint32(n), 4, "block type"); err != nil {
			return nil, err
		}
		t.types = make([]string, n)
		for i := range t.types {
			if t.types[i], err = r.ReadSizedString(); err != nil {
				return nil, err
			}
		}
		if err := guardCount(r, pre.NumBlocks, 2, "block"); err != nil {
			return nil, err
		}
		t.index = make([]uint16, pre.NumBlocks)
		for i := range t.index {
			if t.index[i], err = r.ReadU16(); err != nil {
				return nil, err
			}
			if int(t.index[i]) >= len(t.types) {
				return nil, nif.Errorf(nif.InvalidValue, r.Offset()-2, "block %d has type index %d of %d types", i, t.index[i], len(t.types))
			}
		}
	}
	if v.AtLeast(nif.V20_2_0_5) {
		if err := guardCount(r, pre.NumBlocks, 4, "block size"); err != nil {
			return nil, err
		}
		t.sizes = make([]uint32, pre.NumBlocks)
		for i := range t.sizes {
			var err error
			if t.sizes[i], err = r.ReadU32(); err != nil {
				return nil, err
			}
		}
	}
	if indexedStrings(v) {
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadU32(); err != nil { // max string length
			return nil, err
		}
		if err := guardCount(r, n, 4, "string"); err != nil {
			return nil, err
		}
		t.strings = make([]string, n)
		for i := range t.strings {
			if t.strings[i], err = r.ReadSizedString(); err != nil {
				return nil, err
			}
		}
	}
	if v.AtLeast(nif.V5_0_0_6) {
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if err := guardCount(r, n, 4, "group"); err != nil {
			return nil, err
		}
		t.groups = make([]uint32, n)
		for i := range t.groups {
			if t.groups[i], err = r.ReadU32(); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func writeBlockTable(w *cursor.Writer, v nif.FormatVersion, t *blockTable) {
	if v.AtLeast(nif.V5_0_0_1) {
		w.WriteU16(uint16(len(t.types)))
		for _, name := range t.types {
			w.WriteSizedString(name)
		}
		for _, idx := range t.index {
			w.WriteU16(idx)
		}
	}
	if v.AtLeast(nif.V20_2_0_5) {
		for _, size := range t.sizes {
			w.WriteU32(size)
		}
	}
	if indexedStrings(v) {
		longest := 0
		for _, s := range t.strings {
			if len(s) > longest {
				longest = len(s)
			}
		}
		w.WriteU32(uint32(len(t.strings)))
		w.WriteU32(uint32(longest))
		for _, s := range t.strings {
			w.WriteSizedString(s)
		}
	}
	if v.AtLeast(nif.V5_0_0_6) {
		w.WriteU32(uint32(len(t.groups)))
		for _, g := range t.groups {
			w.WriteU32(g)
		}
	}
}

// stringTable assigns header string indices. Seeded entries keep their
// positions; a string listed twice maps to its first index.
type stringTable struct {
	list  []string
	index map[string]uint32
}

func newStringTable(seed []string) *stringTable {
	t := &stringTable{
		list:  append([]string(nil), seed...),
		index: make(map[string]uint32, len(seed)),
	}
	for i, s := range seed {
		if _, dup := t.index[s]; !dup {
			t.index[s] = uint32(i)
		}
	}
	return t
}

func (t *stringTable) ref(s string) uint32 {
	if s == "" {
		return nullString
	}
	if i, ok := t.index[s]; ok {
		return i
	}
	i := uint32(len(t.list))
	t.list = append(t.list, s)
	t.index[s] = i
	return i
}
