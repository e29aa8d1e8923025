package schema

import (
	"strings"

	"github.com/ssargent/nifkit/pkg/cursor"
	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
)

// maxSignature bounds the scan for the signature line terminator.
const maxSignature = 128

// Preamble is the part of a stream header that identifies the format: the
// signature, the binary version, byte order, user version, block count and
// the Bethesda export block. Everything after it depends on the schema set.
type Preamble struct {
	Version   nif.FormatVersion
	BigEndian bool
	NumBlocks uint32
	Export    graph.ExportInfo
}

// Detect reads just enough of data to identify its format version,
// including user and Bethesda versions.
func Detect(data []byte) (nif.FormatVersion, error) {
	p, err := ReadPreamble(cursor.NewReader(data))
	if err != nil {
		return nif.FormatVersion{}, err
	}
	return p.Version, nil
}

// ReadPreamble parses the preamble and leaves r positioned after it, with
// its byte order set to the stream's.
func ReadPreamble(r *cursor.Reader) (Preamble, error) {
	var p Preamble
	r.SetByteOrder(cursor.LittleEndian)

	line, err := r.ReadLine(maxSignature)
	if err != nil {
		return p, headerError(0, "missing signature line")
	}
	var text string
	switch {
	case strings.HasPrefix(line, nif.GamebryoPrefix):
		text = strings.TrimPrefix(line, nif.GamebryoPrefix)
	case strings.HasPrefix(line, nif.NetImmersePrefix):
		text = strings.TrimPrefix(line, nif.NetImmersePrefix)
	default:
		return p, headerError(0, "signature %q is not a NIF signature", truncate(line, 48))
	}
	sig, err := nif.ParseVersion(text)
	if err != nil || sig.Major == 0 {
		return p, headerError(0, "signature version %q", text)
	}
	p.Version = sig

	if sig.AtLeast(nif.V4_0_0_2) {
		off := r.Offset()
		raw, err := r.ReadU32()
		if err != nil {
			return p, err
		}
		if bin := nif.VersionFromUint32(raw); bin.Compare(sig) != 0 {
			return p, headerError(off, "binary version %s disagrees with signature %s", bin, sig)
		}
	}
	if p.Version.AtLeast(nif.V20_0_0_3) {
		off := r.Offset()
		e, err := r.ReadU8()
		if err != nil {
			return p, err
		}
		switch e {
		case 0:
			p.BigEndian = true
			r.SetByteOrder(cursor.BigEndian)
		case 1:
		default:
			return p, headerError(off, "endian flag %d", e)
		}
	}
	if p.Version.AtLeast(nif.V10_0_1_8) {
		if p.Version.User, err = r.ReadU32(); err != nil {
			return p, err
		}
	}
	if p.NumBlocks, err = r.ReadU32(); err != nil {
		return p, err
	}
	if p.Version.HasBSHeader() {
		if err := readExportInfo(r, &p); err != nil {
			return p, err
		}
	}
	return p, nil
}

func readExportInfo(r *cursor.Reader, p *Preamble) error {
	var err error
	if p.Version.BSVersion, err = r.ReadU32(); err != nil {
		return err
	}
	bs := p.Version.BSVersion
	if p.Export.Author, err = r.ReadShortString(); err != nil {
		return err
	}
	if bs > 130 {
		if p.Export.Unknown, err = r.ReadU32(); err != nil {
			return err
		}
	}
	if bs < 131 {
		if p.Export.ProcessScript, err = r.ReadShortString(); err != nil {
			return err
		}
	}
	if p.Export.ExportScript, err = r.ReadShortString(); err != nil {
		return err
	}
	if bs >= 103 {
		if p.Export.MaxFilepath, err = r.ReadShortString(); err != nil {
			return err
		}
	}
	return nil
}

// WritePreamble emits p and switches w to the stream's byte order.
func WritePreamble(w *cursor.Writer, p Preamble) error {
	v := p.Version
	w.SetByteOrder(cursor.LittleEndian)
	w.WriteLine(v.HeaderString())
	if v.AtLeast(nif.V4_0_0_2) {
		w.WriteU32(v.Uint32())
	}
	if v.AtLeast(nif.V20_0_0_3) {
		if p.BigEndian {
			w.WriteU8(0)
			w.SetByteOrder(cursor.BigEndian)
		} else {
			w.WriteU8(1)
		}
	}
	if v.AtLeast(nif.V10_0_1_8) {
		w.WriteU32(v.User)
	}
	w.WriteU32(p.NumBlocks)
	if !v.HasBSHeader() {
		return nil
	}
	bs := v.BSVersion
	w.WriteU32(bs)
	if err := w.WriteShortString(p.Export.Author); err != nil {
		return nif.InField(err, "Export.Author")
	}
	if bs > 130 {
		w.WriteU32(p.Export.Unknown)
	}
	if bs < 131 {
		if err := w.WriteShortString(p.Export.ProcessScript); err != nil {
			return nif.InField(err, "Export.ProcessScript")
		}
	}
	if err := w.WriteShortString(p.Export.ExportScript); err != nil {
		return nif.InField(err, "Export.ExportScript")
	}
	if bs >= 103 {
		if err := w.WriteShortString(p.Export.MaxFilepath); err != nil {
			return nif.InField(err, "Export.MaxFilepath")
		}
	}
	return nil
}

func headerError(off int, format string, args ...any) *nif.Error {
	return nif.Errorf(nif.UnrecognizedHeader, off, format, args...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
