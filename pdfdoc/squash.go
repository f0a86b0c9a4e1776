package pdfdoc

import (
	"sort"

	"github.com/arnaudgrv/pdfobj/bytesource"
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/xref"
)

// Squash collects every in-use and embedded object listed in the
// newest revision's index, assigns contiguous numbers starting at
// baseOffset+1, and returns a Doc whose staged map holds the
// renumbered objects plus the old-ref -> new-ref substitution table.
// The returned Doc is backed by nothing but a fresh `%PDF-<version>`
// header: committing it yields a single-revision file rather than an
// append to the source bytes.
func Squash(d *Doc, baseOffset uint32) (*Doc, map[object.Ref]object.Ref, error) {
	newest := d.index.Newest()
	var live []uint32
	for num, e := range newest.Objects {
		if num == 0 {
			continue
		}
		if e.Kind == xref.KindFree || e.Kind == xref.KindDeleted {
			continue
		}
		live = append(live, num)
	}
	sort.Slice(live, func(i, j int) bool { return live[i] < live[j] })

	remap := make(map[object.Ref]object.Ref, len(live))
	next := baseOffset + 1
	for _, num := range live {
		remap[object.Ref{Num: num}] = object.Ref{Num: next}
		next++
	}

	nd := &Doc{
		provider: headerProvider(d.version),
		index:    freshIndex(),
		version:  d.version,
		cache:    map[uint32]object.Object{},
		staged:   map[uint32]object.Object{},
		nextNum:  next,
	}
	for _, num := range live {
		oldRef := object.Ref{Num: num}
		v, err := d.Get(oldRef)
		if err != nil {
			return nil, nil, err
		}
		nd.staged[remap[oldRef].Num] = remapRefs(v, remap)
	}

	trailer := newest.MergedTrailer()
	if rootRef, ok := trailer.GetRef("Root"); ok {
		if nr, ok := remap[object.Ref{Num: rootRef.Num}]; ok {
			nd.pendingRoot = nr
		}
	}
	if infoRef, ok := trailer.GetRef("Info"); ok {
		if nr, ok := remap[object.Ref{Num: infoRef.Num}]; ok {
			nd.pendingInfo = nr
		}
	}
	return nd, remap, nil
}

func headerProvider(version string) bytesource.Provider {
	return bytesource.FromBytes([]byte("%PDF-" + version + "\n"))
}

// freshIndex is the index of a file that holds nothing but its header:
// one revision, no objects, an empty trailer slot. The first Commit on
// a Doc carrying it replaces this placeholder revision instead of
// chaining a /Prev to it.
func freshIndex() *xref.Index {
	return &xref.Index{Revisions: []xref.Revision{{
		Trailers: []xref.Trailer{{Dict: object.NewDict()}},
		Objects:  map[uint32]*xref.Entry{},
	}}}
}

// remapRefs deep-walks o, substituting any Ref whose object number
// appears in remap (generation is ignored: squash always produces
// generation-0 references).
func remapRefs(o object.Object, remap map[object.Ref]object.Ref) object.Object {
	switch v := o.(type) {
	case object.Ref:
		if nr, ok := remap[object.Ref{Num: v.Num}]; ok {
			return nr
		}
		return v
	case object.Array:
		out := make(object.Array, len(v))
		for i, e := range v {
			out[i] = remapRefs(e, remap)
		}
		return out
	case object.Dict:
		out := v.Clone()
		for _, k := range out.Keys() {
			val, _ := out.Get(k)
			out.Set(k, remapRefs(val, remap))
		}
		return out
	case *object.Stream:
		entries, _ := remapRefs(v.Entries, remap).(object.Dict)
		return object.NewStream(entries, append([]byte(nil), v.Encoded...))
	default:
		return o
	}
}

// Compress squashes doc, then re-Flates every stream and marks the
// result for xref-stream emission. The actual /ObjStm packing and
// xref-stream serialization happen in package revwriter at commit
// time (UseXrefStream); Compress itself only stages the squashed,
// re-filtered object graph and sets that flag.
func Compress(d *Doc) (*Doc, error) {
	squashed, _, err := Squash(d, 0)
	if err != nil {
		return nil, err
	}
	for num, obj := range squashed.staged {
		stm, ok := obj.(*object.Stream)
		if !ok {
			continue
		}
		dec := stm.Decode()
		if !dec.Ok() {
			continue // leave undecodable streams as-is rather than aborting compress
		}
		encoded, err := encodeWith("FlateDecode", dec.Bytes)
		if err != nil {
			return nil, err
		}
		entries := stm.Entries.Clone()
		entries.Set("Filter", object.Name("FlateDecode"))
		entries.Delete("DecodeParms")
		squashed.staged[num] = object.NewStream(entries, encoded)
	}
	if squashed.version < "1.5" {
		squashed.version = "1.5"
		squashed.provider = headerProvider(squashed.version)
	}
	squashed.xrefStreamMode = true
	return squashed, nil
}
