// Package xref reconstructs the per-revision cross-reference index of
// a PDF file: it walks backward from startxref through the /Prev chain
// and any /XRefStm hybrids, parsing classic xref tables and xref
// streams alike, and produces one location Entry per object number per
// revision.
package xref

import (
	"github.com/arnaudgrv/pdfobj/object"
)

// Kind discriminates what an object number's slot currently is.
type Kind uint8

const (
	KindInUse Kind = iota
	KindEmbedded
	KindFree
	KindDeleted
)

// Entry is one object number's location record, as of some revision.
type Entry struct {
	Kind Kind
	Num  uint32
	Gen  uint16

	ObjVer int // incremented across revisions that redefine this number
	DocVer int // the revision this version was introduced in

	AbsPos  int64 // InUse: start of "N G obj"
	AbsNext int64 // InUse: successor position (next object/xref/EOF)

	EnvNum uint32 // Embedded: containing object-stream's object number
	OPos   int    // Embedded: ordinal within that stream
}

// Trailer is the per-revision object-number-0 slot. A linearized file's
// oldest revision carries two: the main trailer and the first-page
// trailer, unioned by MergedTrailer.
type Trailer struct {
	StartXrefPos  int64
	XrefTablePos  int64 // 0 if this section used an xref stream instead
	XrefStreamPos int64 // 0 if this section used a classic table
	XrefStreamNum uint32
	Hybrid        bool // trailer carried /XRefStm
	Dict          object.Dict
}

// Revision is one cross-reference section's resulting state: the
// cumulative object table as of that point in the file (older
// revisions' entries carried forward unless superseded) plus the
// trailer slot(s) for object number 0.
type Revision struct {
	Trailers []Trailer
	Objects  map[uint32]*Entry
}

// MergedTrailer unions a revision's trailer dictionaries (there is
// more than one only for a linearized file's oldest revision); the
// first-listed (main) trailer's entries win on conflict.
func (r Revision) MergedTrailer() object.Dict {
	if len(r.Trailers) == 1 {
		return r.Trailers[0].Dict
	}
	out := NewDict()
	for i := len(r.Trailers) - 1; i >= 0; i-- {
		for _, k := range r.Trailers[i].Dict.Keys() {
			v, _ := r.Trailers[i].Dict.Get(k)
			out.Set(k, v)
		}
	}
	return out
}

func NewDict() object.Dict { return object.NewDict() }

// Index is the full per-revision cross-reference history of a file,
// oldest revision first; Newest is the file's current state.
type Index struct {
	Revisions []Revision
	MaxObjNum uint32
}

func (ix *Index) Newest() *Revision {
	return &ix.Revisions[len(ix.Revisions)-1]
}

// Lookup resolves an object number against the newest revision.
func (ix *Index) Lookup(num uint32) (*Entry, bool) {
	e, ok := ix.Newest().Objects[num]
	return e, ok
}
