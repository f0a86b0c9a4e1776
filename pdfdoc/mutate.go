package pdfdoc

import (
	"github.com/arnaudgrv/pdfobj/bytesource"
	"github.com/arnaudgrv/pdfobj/filter"
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdferr"
	"github.com/arnaudgrv/pdfobj/xref"
)

// UpdateObject stages obj as the new value for n. Passing a nil obj
// marks n Deleted (folded into the free chain on the next commit).
func (d *Doc) UpdateObject(n uint32, obj object.Object) (*Doc, error) {
	if _, ok := d.index.Lookup(n); !ok {
		if _, staged := d.staged[n]; !staged {
			return nil, pdferr.NewMutationError("UpdateObject: object does not exist")
		}
	}
	nd := d.clone()
	nd.staged[n] = obj
	delete(nd.cache, n)
	return nd, nil
}

// AddObject stages a brand new object under the next unused object
// number and returns the Ref addressing it.
func (d *Doc) AddObject(obj object.Object) (*Doc, object.Ref) {
	nd := d.clone()
	num := nd.nextNum
	nd.nextNum++
	nd.staged[num] = obj
	return nd, object.Ref{Num: num, Gen: 0}
}

// ApplyFilter re-encodes each listed stream with name (one of
// FlateDecode/ASCIIHexDecode/ASCII85Decode, or "" to strip filtering
// entirely), staging the updated stream.
func (d *Doc) ApplyFilter(streams []object.Ref, name string) (*Doc, error) {
	if name != "" && !filter.Supported(name) {
		return nil, pdferr.NewMutationError("ApplyFilter: unsupported filter " + name)
	}
	nd := d.clone()
	for _, ref := range streams {
		v, err := nd.Get(ref)
		if err != nil {
			return nil, err
		}
		stm, ok := v.(*object.Stream)
		if !ok {
			return nil, pdferr.NewMutationError("ApplyFilter: target is not a stream")
		}
		dec := stm.Decode()
		if !dec.Ok() {
			return nil, pdferr.WrapMutationError("ApplyFilter: cannot decode source stream", dec.Err)
		}
		entries := stm.Entries.Clone()
		if name == "" {
			entries.Delete("Filter")
			entries.Delete("DecodeParms")
			stm.Encoded = append([]byte(nil), dec.Bytes...)
		} else {
			encoded, err := encodeWith(name, dec.Bytes)
			if err != nil {
				return nil, err
			}
			entries.Set("Filter", object.Name(name))
			entries.Delete("DecodeParms")
			stm.Encoded = encoded
		}
		stm.Entries = entries
		nd.staged[ref.Num] = object.NewStream(entries, stm.Encoded)
	}
	return nd, nil
}

// Commit finalizes the staged changes into a new revision, delegating
// the actual byte emission to package revwriter, which registers
// itself here via RevisionWriter at init time to avoid an import
// cycle (revwriter depends on pdfdoc, not the reverse).
var RevisionWriter func(d *Doc) (appended []byte, newIndex *xref.Index, err error)

func (d *Doc) Commit() (*Doc, error) {
	if len(d.staged) == 0 {
		return d.clone(), nil
	}
	if RevisionWriter == nil {
		return nil, pdferr.NewMutationError("commit: no revision writer registered")
	}
	appended, newIndex, err := RevisionWriter(d)
	if err != nil {
		return nil, err
	}
	before := d.clone()
	nd := &Doc{
		provider: bytesource.Composite(d.provider, appended),
		index:    newIndex,
		version:  d.version,
		cache:    map[uint32]object.Object{},
		staged:   map[uint32]object.Object{},
		nextNum:  newIndex.MaxObjNum + 1,
		history:  append(append([]*Doc(nil), d.history...), before),
	}
	return nd, nil
}

// Rewind drops the most recently committed revision, restoring the Doc
// exactly as it stood beforehand. At least one committed revision must
// exist.
func (d *Doc) Rewind() (*Doc, error) {
	if len(d.history) == 0 {
		return nil, pdferr.NewMutationError("rewind: no committed revision to drop")
	}
	prev := d.history[len(d.history)-1]
	return prev.clone(), nil
}

// Concatenate squashes b, renumbers its references past a's highest
// object number, and splices its page tree into a's /Pages kids,
// summing /Count.
func Concatenate(a, b *Doc) (*Doc, error) {
	squashedB, remap, err := Squash(b, a.index.MaxObjNum)
	if err != nil {
		return nil, err
	}

	aRoot, err := a.Root()
	if err != nil {
		return nil, err
	}
	aPagesRef, ok := aRoot.GetRef("Pages")
	if !ok {
		return nil, pdferr.NewMutationError("concatenate: a has no /Pages")
	}

	bOldRoot, err := b.Root()
	if err != nil {
		return nil, err
	}
	bOldPagesRef, ok := bOldRoot.GetRef("Pages")
	if !ok {
		return nil, pdferr.NewMutationError("concatenate: b has no /Pages")
	}
	bNewPagesRef, ok := remap[bOldPagesRef]
	if !ok {
		return nil, pdferr.NewMutationError("concatenate: b's /Pages was not carried into the squash")
	}

	nd := a.clone()
	for num, obj := range squashedB.staged {
		nd.staged[num] = obj
	}
	if squashedB.nextNum > nd.nextNum {
		nd.nextNum = squashedB.nextNum
	}

	aPagesVal, err := nd.Get(aPagesRef)
	if err != nil {
		return nil, err
	}
	aPages, ok := aPagesVal.(object.Dict)
	if !ok {
		return nil, pdferr.NewMutationError("concatenate: a's /Pages is not a dictionary")
	}
	kids, _ := aPages.GetArray("Kids")
	kids = append(kids, bNewPagesRef)
	aPages.Set("Kids", kids)
	aCount, _ := aPages.GetInt("Count")

	bNewPagesVal, err := nd.Get(bNewPagesRef)
	if err != nil {
		return nil, err
	}
	bPages, ok := bNewPagesVal.(object.Dict)
	if !ok {
		return nil, pdferr.NewMutationError("concatenate: b's /Pages is not a dictionary")
	}
	c, _ := bPages.GetInt("Count")
	aPages.Set("Count", object.Int(aCount+c))
	// b's former root /Pages is a child node now; without the /Parent
	// link the ancestor walk of a later page removal would stop here
	// and leave a's /Count stale.
	bPages.Set("Parent", aPagesRef)
	nd.staged[bNewPagesRef.Num] = bPages

	nd.staged[aPagesRef.Num] = aPages
	return nd, nil
}
