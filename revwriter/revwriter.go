// Package revwriter implements the incremental revision writer: it
// serializes a Doc's staged changes as an appended cross-reference
// section, chaining it to the prior revision via /Prev, and registers
// itself into pdfdoc.RevisionWriter so Doc.Commit can call it without
// pdfdoc importing this package (revwriter depends on pdfdoc, not the
// reverse).
//
// Only object numbers the Doc actually staged get a row (plus the
// object-0 free-list head when one is written), grouped into
// contiguous-run subsections the way a classic incremental update
// does.
package revwriter

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdfdoc"
	"github.com/arnaudgrv/pdfobj/pdferr"
	"github.com/arnaudgrv/pdfobj/xref"
)

func init() {
	pdfdoc.RevisionWriter = writeRevision
}

type writtenObject struct {
	num        uint32
	pos, after int64
}

// writeRevision serializes d's staged objects as a new appended
// revision and returns the bytes to append plus the Index reflecting
// it. A Doc that just went through Compress asks for an xref-stream
// revision instead (writeXrefStreamRevision); every other caller gets
// the classic incremental table below.
func writeRevision(d *pdfdoc.Doc) ([]byte, *xref.Index, error) {
	if d.UseXrefStream() {
		return writeXrefStreamRevision(d)
	}
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
	var added []writtenObject
	var deleted []uint32
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
		pos := size + int64(buf.Len())
		if err := object.SerializeIndirect(&buf, num, gen, obj); err != nil {
			return nil, nil, pdferr.NewMutationError("commit: " + err.Error())
		}
		buf.WriteByte('\n')
		added = append(added, writtenObject{num: num, pos: pos, after: size + int64(buf.Len())})
	}

	rows := buildRows(added, deleted, newest)
	if freshFile(oldIndex) && len(deleted) == 0 {
		// a squashed file starts its table with the canonical free head
		rows = append([]row{{num: 0, gen: 65535, free: true}}, rows...)
	}
	xrefPos := size + int64(buf.Len())
	writeClassicTable(&buf, rows)

	docVer := len(oldIndex.Revisions)
	if freshFile(oldIndex) {
		docVer = 0
	}
	newObjects := nextObjects(newest, added, deleted, docVer)
	maxNum := oldIndex.MaxObjNum
	if n := d.NextNum(); n > 0 && n-1 > maxNum {
		maxNum = n - 1
	}

	trailerDict := buildTrailer(d, newest, maxNum)
	buf.WriteString("trailer\n")
	if err := object.Serialize(&buf, trailerDict); err != nil {
		return nil, nil, pdferr.NewMutationError("commit: " + err.Error())
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)

	newTrailer := xref.Trailer{StartXrefPos: xrefPos, XrefTablePos: xrefPos, Dict: trailerDict}
	newIndex := appendRevision(oldIndex, xref.Revision{
		Trailers: []xref.Trailer{newTrailer},
		Objects:  newObjects,
	}, maxNum)
	return buf.Bytes(), newIndex, nil
}

// freshFile reports whether oldIndex is the placeholder a just-squashed
// Doc carries: a single revision indexing nothing. The revision written
// on top of it replaces the placeholder rather than chaining to it, so
// a squashed document really does end up with one revision.
func freshFile(oldIndex *xref.Index) bool {
	return len(oldIndex.Revisions) == 1 && len(oldIndex.Revisions[0].Objects) == 0
}

func appendRevision(oldIndex *xref.Index, rev xref.Revision, maxNum uint32) *xref.Index {
	if freshFile(oldIndex) {
		return &xref.Index{Revisions: []xref.Revision{rev}, MaxObjNum: maxNum}
	}
	newRevisions := append(append([]xref.Revision(nil), oldIndex.Revisions...), rev)
	return &xref.Index{Revisions: newRevisions, MaxObjNum: maxNum}
}

type row struct {
	num    uint32
	offset int64
	gen    uint16
	free   bool
}

// buildRows assembles one xref-table row per touched object number.
// Deletions are chained into a fresh free list headed at object 0;
// the file's pre-existing free chain (if any) is not walked, since the
// Index does not retain each free entry's "next free" pointer; only
// objects this revision deletes are linked. The result is still a
// valid free chain, just not a file-spanning one.
func buildRows(added []writtenObject, deleted []uint32, newest *xref.Revision) []row {
	var rows []row
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
			rows = append(rows, row{num: num, offset: int64(next), gen: gen, free: true})
		}
	}
	for _, w := range added {
		gen := uint16(0)
		if e, ok := newest.Objects[w.num]; ok {
			gen = e.Gen
		}
		rows = append(rows, row{num: w.num, offset: w.pos, gen: gen})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].num < rows[j].num })
	return rows
}

func writeClassicTable(buf *bytes.Buffer, rows []row) {
	buf.WriteString("xref\n")
	for i := 0; i < len(rows); {
		j := i
		for j+1 < len(rows) && rows[j+1].num == rows[j].num+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", rows[i].num, j-i+1)
		for k := i; k <= j; k++ {
			flag := byte('n')
			if rows[k].free {
				flag = 'f'
			}
			fmt.Fprintf(buf, "%010d %05d %c \n", rows[k].offset, rows[k].gen, flag)
		}
		i = j + 1
	}
}

func nextObjects(newest *xref.Revision, added []writtenObject, deleted []uint32, docVer int) map[uint32]*xref.Entry {
	out := make(map[uint32]*xref.Entry, len(newest.Objects)+len(added)+len(deleted))
	for k, v := range newest.Objects {
		out[k] = v
	}
	for _, w := range added {
		old, existed := newest.Objects[w.num]
		objVer, gen := 0, uint16(0)
		if existed {
			objVer, gen = old.ObjVer+1, old.Gen
		}
		out[w.num] = &xref.Entry{
			Kind: xref.KindInUse, Num: w.num, Gen: gen,
			ObjVer: objVer, DocVer: docVer,
			AbsPos: w.pos, AbsNext: w.after,
		}
	}
	for _, num := range deleted {
		old, existed := newest.Objects[num]
		objVer, gen := 0, uint16(0)
		if existed {
			objVer, gen = old.ObjVer+1, old.Gen+1
		}
		out[num] = &xref.Entry{Kind: xref.KindDeleted, Num: num, Gen: gen, ObjVer: objVer, DocVer: docVer}
	}
	return out
}

// buildTrailer derives the new revision's trailer dict from the prior
// one, chaining /Prev to it and substituting /Root when the Doc is
// carrying a pendingRoot from a just-squashed object graph.
func buildTrailer(d *pdfdoc.Doc, newest *xref.Revision, maxNum uint32) object.Dict {
	old := newest.MergedTrailer()
	out := object.NewDict()
	out.Set("Size", object.Int(maxNum+1))
	root := d.PendingRoot()
	if root == (object.Ref{}) {
		if r, ok := old.GetRef("Root"); ok {
			root = r
		}
	}
	out.Set("Root", root)
	if info := d.PendingInfo(); info != (object.Ref{}) {
		out.Set("Info", info)
	} else if info, ok := old.GetRef("Info"); ok {
		out.Set("Info", info)
	}
	if prev := newest.Trailers[0].StartXrefPos; prev > 0 {
		out.Set("Prev", object.Int(prev))
	}
	return out
}
