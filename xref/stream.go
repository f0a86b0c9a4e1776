package xref

import (
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// parseXrefStream parses an indirect `N G obj << /Type /XRef ... >>
// stream ... endstream` object, already known to begin at data[0], and
// expands its fixed-width records per the /W array into rawRows plus
// the parsed dict (an xref stream's dict doubles as its trailer).
func parseXrefStream(data []byte, pos int64) ([]rawRow, object.Dict, uint32, error) {
	p := object.NewParser(data, pos, nil)
	numTok, err := p.Tok().NextToken()
	if err != nil {
		return nil, object.Dict{}, 0, pdferr.WrapXrefError(pos, "xref stream: missing object header", err)
	}
	num, err := numTok.Int()
	if err != nil {
		return nil, object.Dict{}, 0, pdferr.WrapXrefError(pos, "xref stream: malformed object number", err)
	}
	if _, err := p.Tok().NextToken(); err != nil { // generation
		return nil, object.Dict{}, 0, pdferr.WrapXrefError(pos, "xref stream: missing generation", err)
	}
	kw, err := p.Tok().NextToken()
	if err != nil || kw.Value != "obj" {
		return nil, object.Dict{}, 0, pdferr.NewXrefError(pos, "xref stream: expected 'obj' keyword")
	}
	obj, err := p.ParseObject()
	if err != nil {
		return nil, object.Dict{}, 0, pdferr.WrapXrefError(pos, "xref stream: body parse failed", err)
	}
	stm, ok := obj.(*object.Stream)
	if !ok {
		return nil, object.Dict{}, 0, pdferr.NewXrefError(pos, "xref stream: object is not a stream")
	}
	typeName, _ := stm.Entries.GetName("Type")
	if string(typeName) != "XRef" {
		return nil, object.Dict{}, 0, pdferr.NewXrefError(pos, "xref stream: /Type is not /XRef")
	}
	dec := stm.Decode()
	if !dec.Ok() {
		return nil, object.Dict{}, 0, pdferr.WrapXrefError(pos, "xref stream: decode failed", dec.Err)
	}
	widths, err := fieldWidths(stm.Entries)
	if err != nil {
		return nil, object.Dict{}, 0, pdferr.WrapXrefError(pos, "xref stream: bad /W", err)
	}
	index, err := objectIndex(stm.Entries)
	if err != nil {
		return nil, object.Dict{}, 0, pdferr.WrapXrefError(pos, "xref stream: bad /Index", err)
	}
	rows, err := decodeRecords(dec.Bytes, widths, index)
	if err != nil {
		return nil, object.Dict{}, 0, pdferr.WrapXrefError(pos, "xref stream: record decode failed", err)
	}
	return rows, stm.Entries, uint32(num), nil
}

type widths struct{ w1, w2, w3 int }

func fieldWidths(d object.Dict) (widths, error) {
	arr, ok := d.GetArray("W")
	if !ok || len(arr) != 3 {
		return widths{}, pdferr.NewParseError(0, "/W must be a 3-element array")
	}
	ints := make([]int, 3)
	for i, v := range arr {
		n, ok := v.(object.Int)
		if !ok {
			return widths{}, pdferr.NewParseError(0, "/W entries must be integers")
		}
		ints[i] = int(n)
	}
	return widths{ints[0], ints[1], ints[2]}, nil
}

// objectIndex returns the (first, count) subsection pairs from /Index,
// defaulting to a single subsection covering the whole /Size when
// /Index is absent.
func objectIndex(d object.Dict) ([][2]int, error) {
	arr, ok := d.GetArray("Index")
	if !ok {
		size, ok := d.GetInt("Size")
		if !ok {
			return nil, pdferr.NewParseError(0, "xref stream missing /Size")
		}
		return [][2]int{{0, int(size)}}, nil
	}
	if len(arr)%2 != 0 {
		return nil, pdferr.NewParseError(0, "/Index must have an even number of entries")
	}
	out := make([][2]int, 0, len(arr)/2)
	for i := 0; i < len(arr); i += 2 {
		first, ok1 := arr[i].(object.Int)
		count, ok2 := arr[i+1].(object.Int)
		if !ok1 || !ok2 {
			return nil, pdferr.NewParseError(0, "/Index entries must be integers")
		}
		out = append(out, [2]int{int(first), int(count)})
	}
	return out, nil
}

func decodeRecords(data []byte, w widths, index [][2]int) ([]rawRow, error) {
	recLen := w.w1 + w.w2 + w.w3
	if recLen == 0 {
		return nil, pdferr.NewParseError(0, "xref stream record width is zero")
	}
	var rows []rawRow
	offset := 0
	for _, sub := range index {
		for i := 0; i < sub[1]; i++ {
			if offset+recLen > len(data) {
				return rows, pdferr.NewParseError(int64(offset), "xref stream data truncated")
			}
			rec := data[offset : offset+recLen]
			offset += recLen
			typ := int64(1)
			if w.w1 > 0 {
				typ = beUint(rec[:w.w1])
			}
			f2 := beUint(rec[w.w1 : w.w1+w.w2])
			f3 := beUint(rec[w.w1+w.w2 : recLen])
			num := uint32(sub[0] + i)
			switch typ {
			case 0:
				rows = append(rows, rawRow{Num: num, Offset: f2, Gen: uint16(f3), Type: 0})
			case 2:
				// f2 = containing object-stream number, f3 = ordinal within it;
				// packed into Offset (high 32 bits envelope, low 32 bits ordinal)
				// since Entry carries dedicated EnvNum/OPos fields downstream.
				rows = append(rows, rawRow{Num: num, Offset: int64(f2)<<32 | int64(uint32(f3)), Gen: 0, Type: 2})
			default:
				rows = append(rows, rawRow{Num: num, Offset: f2, Gen: uint16(f3), Type: 1})
			}
		}
	}
	return rows, nil
}

func beUint(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// embeddedRow decodes a type-2 xref-stream record back into its
// envelope object number and ordinal, stashed by decodeRecords into
// Offset's two halves (high 32 bits envelope, low 32 bits ordinal).
func embeddedRow(r rawRow) (envNum uint32, ordinal int) {
	return uint32(r.Offset >> 32), int(uint32(r.Offset))
}
