package xref

import (
	"bytes"

	"github.com/arnaudgrv/pdfobj/bytesource"
	"github.com/arnaudgrv/pdfobj/internal/token"
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// RegionKind classifies one top-level span of a PDF file.
type RegionKind uint8

const (
	RegionHeader RegionKind = iota
	RegionObject
	RegionXrefTable
	RegionStartXref
	RegionEOF
	RegionVoid
)

func (k RegionKind) String() string {
	switch k {
	case RegionHeader:
		return "header"
	case RegionObject:
		return "object"
	case RegionXrefTable:
		return "xref-table"
	case RegionStartXref:
		return "startxref"
	case RegionEOF:
		return "eof"
	case RegionVoid:
		return "void"
	default:
		return "<invalid region>"
	}
}

// Region is one contiguous top-level span: the header comment, an
// indirect-object definition, a classic xref table with its trailer,
// a startxref pointer, an %%EOF marker, or a void gap (comments,
// damaged bytes) between any of those.
type Region struct {
	Kind  RegionKind
	Start int64
	End   int64
	Num   uint32 // RegionObject only
	Gen   uint16 // RegionObject only
}

// Regions parses the file sequentially from the top, classifying every
// top-level region in file order. Unlike Reconstruct it never consults
// startxref; this is the linear pass disasm builds on, and it keeps
// going over spans it cannot make sense of, reporting them as void.
func Regions(provider bytesource.Provider) ([]Region, error) {
	data, err := bytesource.ReadAll(provider)
	if err != nil {
		return nil, pdferr.WrapIOError("reading file for region scan", err)
	}

	var out []Region
	pos := 0
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		end := lineEnd(data, 0)
		// a high-byte binary marker comment right after the header
		// belongs to it
		if end < len(data) && data[end] == '%' && !bytes.HasPrefix(data[end:], []byte("%%EOF")) {
			end = lineEnd(data, end)
		}
		out = append(out, Region{Kind: RegionHeader, Start: 0, End: int64(end)})
		pos = end
	}

	for pos < len(data) {
		start := skipWhite(data, pos)
		if start >= len(data) {
			break
		}
		r, next, ok := classifyRegion(data, start)
		if ok {
			out = append(out, r)
			pos = next
			continue
		}
		// unrecognized bytes: walk forward a line at a time until
		// something classifies again, folding the span into one void.
		stop := start
		for stop < len(data) {
			stop = lineEnd(data, stop)
			probe := skipWhite(data, stop)
			if probe >= len(data) {
				stop = len(data)
				break
			}
			if _, _, ok := classifyRegion(data, probe); ok {
				stop = probe
				break
			}
		}
		out = append(out, Region{Kind: RegionVoid, Start: int64(start), End: int64(stop)})
		pos = stop
	}
	return out, nil
}

// classifyRegion attempts to parse exactly one region starting at
// data[start], returning it plus the offset just past its end.
func classifyRegion(data []byte, start int) (Region, int, bool) {
	rest := data[start:]
	switch {
	case bytes.HasPrefix(rest, []byte("%%EOF")):
		return Region{Kind: RegionEOF, Start: int64(start), End: int64(start + 5)}, start + 5, true
	case rest[0] == '%':
		// a lone comment line is a void gap, not a structure
		end := lineEnd(data, start)
		return Region{Kind: RegionVoid, Start: int64(start), End: int64(end)}, end, true
	}

	tk := token.New(rest)
	first, err := tk.PeekToken()
	if err != nil {
		return Region{}, 0, false
	}
	switch {
	case first.Kind == token.Keyword && first.Value == "xref":
		return classifyXrefTable(data, start)
	case first.Kind == token.Keyword && first.Value == "startxref":
		tk.NextToken()
		val, err := tk.NextToken()
		if err != nil || val.Kind != token.Integer {
			return Region{}, 0, false
		}
		end := start + tk.Pos()
		return Region{Kind: RegionStartXref, Start: int64(start), End: int64(end)}, end, true
	case first.Kind == token.Integer:
		return classifyObject(data, start)
	default:
		return Region{}, 0, false
	}
}

func classifyObject(data []byte, start int) (Region, int, bool) {
	p := object.NewParser(data[start:], int64(start), nil)
	tk := p.Tok()
	numTok, err := tk.NextToken()
	if err != nil || numTok.Kind != token.Integer {
		return Region{}, 0, false
	}
	genTok, err := tk.NextToken()
	if err != nil || genTok.Kind != token.Integer {
		return Region{}, 0, false
	}
	kw, err := tk.NextToken()
	if err != nil || kw.Kind != token.Keyword || kw.Value != "obj" {
		return Region{}, 0, false
	}
	if _, err := p.ParseObject(); err != nil {
		return Region{}, 0, false
	}
	end, err := tk.NextToken()
	if err != nil || end.Kind != token.Keyword || end.Value != "endobj" {
		return Region{}, 0, false
	}
	num, _ := numTok.Int()
	gen, _ := genTok.Int()
	stop := start + tk.Pos()
	return Region{
		Kind:  RegionObject,
		Start: int64(start),
		End:   int64(stop),
		Num:   uint32(num),
		Gen:   uint16(gen),
	}, stop, true
}

func classifyXrefTable(data []byte, start int) (Region, int, bool) {
	tk := token.New(data[start:])
	tk.NextToken() // the xref keyword
	body := tk.Bytes()
	bodyStart := start + (len(data) - start - len(body))
	_, trailerRel, err := parseClassicTable(body, int64(start))
	if err != nil {
		return Region{}, 0, false
	}
	dp := object.NewParser(body[trailerRel:], int64(bodyStart+trailerRel), nil)
	obj, err := dp.ParseObject()
	if err != nil {
		return Region{}, 0, false
	}
	if _, isDict := obj.(object.Dict); !isDict {
		return Region{}, 0, false
	}
	end := bodyStart + trailerRel + dp.Tok().Pos()
	return Region{Kind: RegionXrefTable, Start: int64(start), End: int64(end)}, end, true
}

func skipWhite(data []byte, pos int) int {
	for pos < len(data) {
		switch data[pos] {
		case 0, 9, 10, 12, 13, 32:
			pos++
		default:
			return pos
		}
	}
	return pos
}

// lineEnd returns the offset just past pos's line, consuming the EOL.
func lineEnd(data []byte, pos int) int {
	for pos < len(data) {
		switch data[pos] {
		case '\n':
			return pos + 1
		case '\r':
			if pos+1 < len(data) && data[pos+1] == '\n' {
				return pos + 2
			}
			return pos + 1
		}
		pos++
	}
	return pos
}
