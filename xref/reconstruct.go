package xref

import (
	"bytes"
	"log"
	"sort"

	"github.com/arnaudgrv/pdfobj/bytesource"
	"github.com/arnaudgrv/pdfobj/internal/token"
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// section is one xref section as parsed off the backward walk, before
// it has been folded into a cumulative Revision.
type section struct {
	rows         []rawRow
	trailer      object.Dict
	pos          int64 // absolute offset of the "xref" keyword or the indirect xref-stream object
	streamPos    int64 // equals pos when this section is an xref stream, 0 for classic
	streamNum    uint32
	startXrefPos int64 // set only on the section reached directly via the file-tail startxref
	linearized   bool  // this section's own /Prev pointed forward: the linearized first-page trailer
}

// Reconstruct walks the cross-reference history of a PDF file backward
// from its trailing startxref, following /Prev (and folding any
// /XRefStm hybrid) at each step, and returns the resulting per-revision
// Index, oldest revision first.
func Reconstruct(provider bytesource.Provider) (*Index, error) {
	size, err := provider.Size()
	if err != nil {
		return nil, pdferr.WrapIOError("reading file size", err)
	}
	startXrefPos, err := findStartXref(provider, size)
	if err != nil {
		return nil, err
	}

	var chrono []section
	var linearizedTrailer *section
	visited := map[int64]bool{}
	pos := startXrefPos
	sxp := startXrefPos
	for pos != 0 && !visited[pos] {
		visited[pos] = true
		sec, err := parseSection(provider, pos)
		if err != nil {
			return nil, err
		}
		sec.startXrefPos = sxp
		sxp = 0 // only the very first section is reached via the file-tail startxref

		if m, ok := sec.trailer.GetInt("XRefStm"); ok && m > 0 {
			stmRows, _, _, err := parseEmbeddedStream(provider, m)
			if err == nil {
				merged, overlap := mergeRows(sec.rows, stmRows)
				if overlap > 0 {
					log.Printf("xref: hybrid /XRefStm at %d disagrees with the classic table on %d object number(s); classic wins", m, overlap)
				}
				sec.rows = merged
			}
		}

		prev, hasPrev := sec.trailer.GetInt("Prev")
		if hasPrev && prev > 0 && prev >= pos {
			// a forward-pointing /Prev: this is a linearized file's
			// first-page trailer pointing back at the main xref section
			// already processed. Stop the walk; fold it in separately.
			sec.linearized = true
			lt := sec
			linearizedTrailer = &lt
			break
		}
		chrono = append(chrono, sec)
		if !hasPrev || prev <= 0 {
			break
		}
		pos = prev
	}

	if len(chrono) == 0 {
		return nil, pdferr.NewXrefError(startXrefPos, "no xref sections found")
	}

	succSecs := chrono
	if linearizedTrailer != nil {
		succSecs = append(append([]section(nil), chrono...), *linearizedTrailer)
	}
	nxt := buildSuccessorMap(succSecs, size)

	// chrono is newest-first; walk it oldest-first to build cumulative
	// per-revision object tables, copying the previous revision's map
	// forward and overlaying this section's own rows on top.
	revisions := make([]Revision, 0, len(chrono))
	cumulative := map[uint32]*Entry{}
	var maxObjNum uint32
	for i := len(chrono) - 1; i >= 0; i-- {
		sec := chrono[i]
		docVer := len(revisions)
		next := make(map[uint32]*Entry, len(cumulative))
		for k, v := range cumulative {
			next[k] = v
		}
		for _, r := range sec.rows {
			if r.Num > maxObjNum {
				maxObjNum = r.Num
			}
			prevEntry := next[r.Num]
			objVer := 0
			if prevEntry != nil {
				objVer = prevEntry.ObjVer + 1
			}
			entry := rowToEntry(r, docVer, objVer, nxt)
			next[r.Num] = entry
		}
		cumulative = next
		rev := Revision{
			Trailers: []Trailer{sectionTrailer(sec)},
			Objects:  cumulative,
		}
		revisions = append(revisions, rev)
	}

	if linearizedTrailer != nil && len(revisions) > 0 {
		oldest := &revisions[0]
		merged, _ := mergeRows(nil, linearizedTrailer.rows)
		for _, r := range merged {
			if _, already := oldest.Objects[r.Num]; already {
				continue
			}
			if r.Num > maxObjNum {
				maxObjNum = r.Num
			}
			oldest.Objects[r.Num] = rowToEntry(r, 0, 0, nxt)
		}
		oldest.Trailers = append(oldest.Trailers, sectionTrailer(*linearizedTrailer))
	}

	return &Index{Revisions: revisions, MaxObjNum: maxObjNum}, nil
}

func sectionTrailer(sec section) Trailer {
	t := Trailer{
		StartXrefPos: sec.startXrefPos,
		Dict:         sec.trailer,
	}
	if sec.streamPos != 0 {
		t.XrefStreamPos = sec.streamPos
		t.XrefStreamNum = sec.streamNum
	} else {
		t.XrefTablePos = sec.pos
	}
	if m, ok := sec.trailer.GetInt("XRefStm"); ok && m > 0 {
		t.Hybrid = true
	}
	return t
}

func rowToEntry(r rawRow, docVer, objVer int, nxt map[int64]int64) *Entry {
	switch r.Type {
	case 0:
		return &Entry{Kind: KindFree, Num: r.Num, Gen: r.Gen, DocVer: docVer, ObjVer: objVer}
	case 2:
		env, ord := embeddedRow(r)
		return &Entry{Kind: KindEmbedded, Num: r.Num, DocVer: docVer, ObjVer: objVer, EnvNum: env, OPos: ord}
	default:
		return &Entry{
			Kind:    KindInUse,
			Num:     r.Num,
			Gen:     r.Gen,
			DocVer:  docVer,
			ObjVer:  objVer,
			AbsPos:  r.Offset,
			AbsNext: nxt[r.Offset],
		}
	}
}

// mergeRows folds stream rows into base, with base's entries for a
// given object number always winning (the classic table beats the
// /XRefStm stream in a hybrid file). Rows already present
// in base by object number are never overwritten; rows absent from
// base are appended, filling the gap.
func mergeRows(base, stream []rawRow) ([]rawRow, int) {
	seen := make(map[uint32]bool, len(base))
	for _, r := range base {
		seen[r.Num] = true
	}
	overlap := 0
	out := append([]rawRow(nil), base...)
	for _, r := range stream {
		if seen[r.Num] {
			overlap++
			continue
		}
		seen[r.Num] = true
		out = append(out, r)
	}
	return out, overlap
}

// buildSuccessorMap computes, for every InUse object's absolute start
// offset (plus every xref section's own start and the file's size as a
// sentinel), the next greater such offset in the whole file, which
// rowToEntry stores as Entry.AbsNext so that a lone object's byte span
// is bounded without needing /Length for every caller. Built once, file-wide, not per revision:
// object spans cross revision boundaries only at the file's seams.
func buildSuccessorMap(chrono []section, size int64) map[int64]int64 {
	seen := map[int64]bool{}
	var positions []int64
	add := func(p int64) {
		if !seen[p] {
			seen[p] = true
			positions = append(positions, p)
		}
	}
	for _, sec := range chrono {
		add(sec.pos)
		for _, r := range sec.rows {
			if r.Type == 1 {
				add(r.Offset)
			}
		}
	}
	add(size)
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	nxt := make(map[int64]int64, len(positions))
	for i, p := range positions {
		if i+1 < len(positions) {
			nxt[p] = positions[i+1]
		} else {
			nxt[p] = size
		}
	}
	return nxt
}

// findStartXref locates the last `startxref` keyword near the file's
// tail and parses the integer offset that follows it.
func findStartXref(provider bytesource.Provider, size int64) (int64, error) {
	const tailWindow = 2048
	length := int64(tailWindow)
	if length > size {
		length = size
	}
	chunk, err := provider.Read(-length, length)
	if err != nil {
		return 0, pdferr.WrapIOError("reading file tail", err)
	}
	data := chunk.Bytes()
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, pdferr.NewXrefError(size, "no startxref keyword found near end of file")
	}
	rest := data[idx+len("startxref"):]
	tk := token.New(rest)
	tok, err := tk.NextToken()
	if err != nil || tok.Kind != token.Integer {
		return 0, pdferr.NewXrefError(size, "malformed startxref value")
	}
	n, err := tok.Int()
	if err != nil {
		return 0, pdferr.WrapXrefError(size, "malformed startxref value", err)
	}
	return int64(n), nil
}

// parseSection fetches bytes from pos to end of file and dispatches to
// the classic-table or xref-stream parser depending on what it finds.
func parseSection(provider bytesource.Provider, pos int64) (section, error) {
	chunk, err := provider.Read(pos, -1)
	if err != nil {
		return section{}, pdferr.WrapIOError("reading xref section", err)
	}
	data := chunk.Bytes()

	tk := token.New(data)
	first, err := tk.PeekToken()
	if err != nil {
		return section{}, pdferr.WrapXrefError(pos, "tokenizer error at xref section", err)
	}
	if first.Kind == token.Keyword && first.Value == "xref" {
		tk.NextToken()
		body := tk.Bytes()
		consumed := len(data) - len(body)
		rows, trailerRelPos, err := parseClassicTable(body, pos)
		if err != nil {
			return section{}, err
		}
		bodyAbs := pos + int64(consumed)
		dp := object.NewParser(body[trailerRelPos:], bodyAbs+int64(trailerRelPos), nil)
		obj, err := dp.ParseObject()
		if err != nil {
			return section{}, pdferr.WrapXrefError(pos, "malformed trailer dictionary", err)
		}
		trailer, ok := obj.(object.Dict)
		if !ok {
			return section{}, pdferr.NewXrefError(pos, "trailer is not a dictionary")
		}
		return section{rows: rows, trailer: trailer, pos: pos}, nil
	}

	rows, dict, num, err := parseXrefStream(data, pos)
	if err != nil {
		return section{}, err
	}
	return section{rows: rows, trailer: dict, pos: pos, streamPos: pos, streamNum: num}, nil
}

// parseEmbeddedStream parses an xref stream referenced by /XRefStm,
// returning its rows, dict and object number; its dict is not the
// governing trailer, and Reconstruct uses only the rows.
func parseEmbeddedStream(provider bytesource.Provider, pos int64) ([]rawRow, object.Dict, uint32, error) {
	chunk, err := provider.Read(pos, -1)
	if err != nil {
		return nil, object.Dict{}, 0, pdferr.WrapIOError("reading /XRefStm section", err)
	}
	return parseXrefStream(chunk.Bytes(), pos)
}
