package graph

// RecordSummary describes one record without its field values.
type RecordSummary struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Opaque bool   `json:"opaque,omitempty"`
	// Size is the raw payload length of an opaque record.
	Size int   `json:"size,omitempty"`
	Refs []Ref `json:"refs,omitempty"`
}

// Summary is a compact listing of a graph for display.
type Summary struct {
	Version   string          `json:"version"`
	User      uint32          `json:"user_version,omitempty"`
	BSVersion uint32          `json:"bs_version,omitempty"`
	BigEndian bool            `json:"big_endian,omitempty"`
	Export    ExportInfo      `json:"export"`
	Records   []RecordSummary `json:"records"`
	Roots     []Ref           `json:"roots"`
	// Types counts records per type.
	Types map[string]int `json:"types"`
}

// Summarize lists every record with its name and outgoing non-null refs.
func (g *Graph) Summarize() *Summary {
	v := g.Header.Version
	s := &Summary{
		Version:   v.String(),
		User:      v.User,
		BSVersion: v.BSVersion,
		BigEndian: g.Header.BigEndian,
		Export:    g.Header.Export,
		Records:   make([]RecordSummary, len(g.Records)),
		Roots:     append([]Ref{}, g.Roots...),
		Types:     make(map[string]int),
	}
	for i, rec := range g.Records {
		rs := RecordSummary{Index: i, Type: rec.Type, Opaque: rec.IsOpaque(), Size: len(rec.Raw)}
		if name, ok := rec.Get("Name"); ok {
			rs.Name, _ = name.(string)
		}
		s.Records[i] = rs
		s.Types[rec.Type]++
	}
	_ = g.EachRef(func(record int, _ string, r Ref) error {
		if record >= 0 && !r.IsNull() {
			s.Records[record].Refs = append(s.Records[record].Refs, r)
		}
		return nil
	})
	return s
}
