package revwriter

// Xref-stream emission: the alternate encoding pdfdoc.Compress asks
// the next Commit for via Doc.UseXrefStream. Eligible objects move
// into a single /ObjStm envelope and the cross-reference section is
// written as a /Type /XRef stream of fixed-width binary records
// (ISO 32000 §7.5.8) instead of a classic table.

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/arnaudgrv/pdfobj/filter"
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdfdoc"
	"github.com/arnaudgrv/pdfobj/pdferr"
	"github.com/arnaudgrv/pdfobj/xref"
)

// xsRow is one row of the xref stream's eventual /W-width record.
type xsRow struct {
	num    uint32
	typ    byte  // 0 free, 1 in-use direct object, 2 embedded in an /ObjStm
	field2 int64 // type 0: next free num; type 1: byte offset; type 2: envelope object number
	field3 int64 // type 0/1: generation; type 2: ordinal within the envelope
	after  int64 // type 1 only: offset just past the written block, for AbsNext
}

// writeXrefStreamRevision serializes d's staged objects as a new
// appended revision whose cross-reference section is a single xref
// stream: eligible staged objects (plain, generation-0, non-stream
// values) are packed into one /ObjStm envelope; streams and the
// envelope itself are written as ordinary indirect objects and given
// type-1 rows; deletions keep the same free-list chaining the classic
// writer uses.
func writeXrefStreamRevision(d *pdfdoc.Doc) ([]byte, *xref.Index, error) {
	oldIndex := d.Index()
	size, err := d.Provider().Size()
	if err != nil {
		return nil, nil, pdferr.WrapIOError("sizing file before commit", err)
	}
	newest := oldIndex.Newest()
	staged := d.StagedObjects()

	nums := make([]uint32, 0, len(staged))
	for n := range staged {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	var buf bytes.Buffer
	buf.WriteByte('\n') // margin between the prior revision's %%EOF and the first object
	var rows []xsRow
	var deleted []uint32

	type embedded struct {
		num  uint32
		gen  uint16
		obj  object.Object
		body []byte
	}
	var embed []embedded
	var direct []embedded

	// pass 1: classify and serialize the eligible (plain, generation-0,
	// non-stream) objects into /ObjStm member bodies.
	for _, num := range nums {
		obj := staged[num]
		if obj == nil {
			deleted = append(deleted, num)
			continue
		}
		gen := uint16(0)
		if e, ok := newest.Objects[num]; ok {
			gen = e.Gen
		}
		_, isStream := obj.(*object.Stream)
		if isStream || gen != 0 {
			direct = append(direct, embedded{num: num, gen: gen, obj: obj})
			continue
		}
		var objBuf bytes.Buffer
		if err := object.Serialize(&objBuf, obj); err != nil {
			return nil, nil, pdferr.NewMutationError("commit: " + err.Error())
		}
		embed = append(embed, embedded{num: num, body: objBuf.Bytes()})
	}

	// the finalized envelope precedes the direct-object blocks in the
	// appended bytes; its children keep their insertion order.
	envelopeNum := d.NextNum()
	xrefNum := envelopeNum
	if len(embed) > 0 {
		var header bytes.Buffer
		var body bytes.Buffer
		for _, e := range embed {
			fmt.Fprintf(&header, "%d %d ", e.num, body.Len())
			body.Write(e.body)
			body.WriteByte(' ')
		}
		entries := object.NewDict()
		entries.Set("Type", object.Name("ObjStm"))
		entries.Set("N", object.Int(len(embed)))
		entries.Set("First", object.Int(header.Len()))
		stm := object.NewStream(entries, append(header.Bytes(), body.Bytes()...))

		pos := size + int64(buf.Len())
		if err := object.SerializeIndirect(&buf, envelopeNum, 0, stm); err != nil {
			return nil, nil, pdferr.NewMutationError("commit: " + err.Error())
		}
		buf.WriteByte('\n')
		rows = append(rows, xsRow{num: envelopeNum, typ: 1, field2: pos, after: size + int64(buf.Len())})
		for i, e := range embed {
			rows = append(rows, xsRow{num: e.num, typ: 2, field2: int64(envelopeNum), field3: int64(i)})
		}
		xrefNum = envelopeNum + 1
	}

	// pass 2: the non-embedded updated/added objects.
	for _, e := range direct {
		pos := size + int64(buf.Len())
		if err := object.SerializeIndirect(&buf, e.num, e.gen, e.obj); err != nil {
			return nil, nil, pdferr.NewMutationError("commit: " + err.Error())
		}
		buf.WriteByte('\n')
		rows = append(rows, xsRow{num: e.num, typ: 1, field2: pos, field3: int64(e.gen), after: size + int64(buf.Len())})
	}

	if len(deleted) > 0 {
		sort.Slice(deleted, func(i, j int) bool { return deleted[i] < deleted[j] })
		chain := append([]uint32{0}, deleted...)
		for i, num := range chain {
			next := chain[(i+1)%len(chain)]
			gen := uint16(0)
			if num == 0 {
				gen = 65535
			} else if e, ok := newest.Objects[num]; ok {
				gen = e.Gen + 1
			}
			rows = append(rows, xsRow{num: num, typ: 0, field2: int64(next), field3: int64(gen)})
		}
	}

	if freshFile(oldIndex) && len(deleted) == 0 {
		// a squashed file starts its table with the canonical free head
		rows = append(rows, xsRow{num: 0, typ: 0, field3: 65535})
	}

	xrefPos := size + int64(buf.Len())
	rows = append(rows, xsRow{num: xrefNum, typ: 1, field2: xrefPos})
	sort.Slice(rows, func(i, j int) bool { return rows[i].num < rows[j].num })

	docVer := len(oldIndex.Revisions)
	if freshFile(oldIndex) {
		docVer = 0
	}
	maxNum := oldIndex.MaxObjNum
	if xrefNum > maxNum {
		maxNum = xrefNum
	}
	if n := d.NextNum(); n > 0 && n-1 > maxNum {
		maxNum = n - 1
	}

	newObjects := xsNextObjects(newest, rows, docVer)

	fieldWidth := xsFieldWidth(rows)
	trailerDict := buildTrailer(d, newest, maxNum)
	trailerDict.Set("Type", object.Name("XRef"))
	trailerDict.Set("W", object.Array{object.Int(1), object.Int(fieldWidth), object.Int(fieldWidth)})
	trailerDict.Set("Index", xsIndexArray(rows))
	trailerDict.Set("Filter", object.Name("ASCIIHexDecode"))

	recordBytes := xsEncodeRows(rows, fieldWidth)
	encoded, err := filter.Encode(filter.ASCIIHex, recordBytes)
	if err != nil {
		return nil, nil, pdferr.WrapMutationError("commit: encoding xref stream", err)
	}
	if err := object.SerializeIndirect(&buf, xrefNum, 0, object.NewStream(trailerDict, encoded)); err != nil {
		return nil, nil, pdferr.NewMutationError("commit: " + err.Error())
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)

	newTrailer := xref.Trailer{StartXrefPos: xrefPos, XrefStreamPos: xrefPos, XrefStreamNum: xrefNum, Dict: trailerDict}
	newIndex := appendRevision(oldIndex, xref.Revision{
		Trailers: []xref.Trailer{newTrailer},
		Objects:  newObjects,
	}, maxNum)
	return buf.Bytes(), newIndex, nil
}

// xsIndexArray builds the /Index pairs covering rows' (possibly
// non-contiguous) object numbers, grouped into contiguous runs the
// same way the classic writer groups xref-table subsections.
func xsIndexArray(rows []xsRow) object.Array {
	var out object.Array
	for i := 0; i < len(rows); {
		j := i
		for j+1 < len(rows) && rows[j+1].num == rows[j].num+1 {
			j++
		}
		out = append(out, object.Int(rows[i].num), object.Int(j-i+1))
		i = j + 1
	}
	return out
}

// xsFieldWidth returns the narrowest byte width that holds every row's
// second and third field, so the /W array stays as compact as the
// largest offset actually written requires.
func xsFieldWidth(rows []xsRow) int {
	var max int64
	for _, r := range rows {
		if r.field2 > max {
			max = r.field2
		}
		if r.field3 > max {
			max = r.field3
		}
	}
	w := 1
	for w < 8 && max >= 1<<(8*uint(w)) {
		w++
	}
	return w
}

// xsEncodeRows packs rows into fixed-width (1, fieldWidth, fieldWidth)
// big-endian records, matching the /W array written alongside.
func xsEncodeRows(rows []xsRow, fieldWidth int) []byte {
	var buf bytes.Buffer
	for _, r := range rows {
		buf.WriteByte(r.typ)
		writeBigEndian(&buf, uint64(r.field2), fieldWidth)
		writeBigEndian(&buf, uint64(r.field3), fieldWidth)
	}
	return buf.Bytes()
}

func writeBigEndian(buf *bytes.Buffer, v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}

func xsNextObjects(newest *xref.Revision, rows []xsRow, docVer int) map[uint32]*xref.Entry {
	out := make(map[uint32]*xref.Entry, len(newest.Objects)+len(rows))
	for k, v := range newest.Objects {
		out[k] = v
	}
	for _, r := range rows {
		switch r.typ {
		case 0:
			old, existed := newest.Objects[r.num]
			objVer := 0
			if existed {
				objVer = old.ObjVer + 1
			}
			out[r.num] = &xref.Entry{Kind: xref.KindDeleted, Num: r.num, Gen: uint16(r.field3), ObjVer: objVer, DocVer: docVer}
		case 2:
			old, existed := newest.Objects[r.num]
			objVer := 0
			if existed {
				objVer = old.ObjVer + 1
			}
			out[r.num] = &xref.Entry{Kind: xref.KindEmbedded, Num: r.num, ObjVer: objVer, DocVer: docVer, EnvNum: uint32(r.field2), OPos: int(r.field3)}
		default:
			old, existed := newest.Objects[r.num]
			objVer := 0
			if existed {
				objVer = old.ObjVer + 1
			}
			out[r.num] = &xref.Entry{
				Kind: xref.KindInUse, Num: r.num, Gen: uint16(r.field3),
				ObjVer: objVer, DocVer: docVer,
				AbsPos: r.field2, AbsNext: r.after,
			}
		}
	}
	return out
}
