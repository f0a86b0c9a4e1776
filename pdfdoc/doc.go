// Package pdfdoc implements the Document Store: a revision-aware,
// lazily-decoded view over a reconstructed cross-reference Index,
// plus the mutation API that stages changes for the next commit. It
// loads once and resolves indirect references on demand, operating on
// the raw object.Object variant rather than a typed semantic model:
// this module's scope is file/object-level introspection, not full
// PDF semantics.
package pdfdoc

import (
	"io"
	"os"

	"github.com/arnaudgrv/pdfobj/bytesource"
	"github.com/arnaudgrv/pdfobj/filter"
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdferr"
	"github.com/arnaudgrv/pdfobj/xref"
)

// Doc is a cross-reference Index, a lazy decode cache keyed by object
// number, and the byte Provider backing them. Mutation methods return
// a new *Doc; prior revisions embedded in index are never mutated in
// place.
type Doc struct {
	provider bytesource.Provider
	index    *xref.Index
	version  string

	cache map[uint32]object.Object

	// staged holds object-level changes made since the last commit. A
	// key present with a nil Object means deletion; otherwise it is an
	// add or update pending the next commit.
	staged map[uint32]object.Object

	// nextNum is the object number the next AddObject call mints;
	// numbers are never reused, even after deletions.
	nextNum uint32

	// history holds the Doc as it stood immediately before each commit,
	// letting Rewind restore it exactly rather than recomputing byte
	// offsets backward.
	history []*Doc

	// pendingRoot/pendingInfo are set by Squash/Compress to the
	// renumbered /Root and /Info references; RevisionWriter consults
	// them (instead of the old index's trailer) when finalizing a
	// squashed Doc's trailer.
	pendingRoot object.Ref
	pendingInfo object.Ref

	// xrefStreamMode is set by Compress to ask the next Commit to emit
	// an xref stream with the eligible staged objects folded into a
	// single /ObjStm, instead of the default classic xref table.
	xrefStreamMode bool
}

// PendingRoot reports the /Root a just-squashed Doc's eventual trailer
// must carry, overriding the stale one in the old Index.
func (d *Doc) PendingRoot() object.Ref { return d.pendingRoot }

// PendingInfo is PendingRoot's counterpart for the renumbered /Info.
func (d *Doc) PendingInfo() object.Ref { return d.pendingInfo }

// UseXrefStream reports whether the next Commit should emit an xref
// stream (with an /ObjStm envelope for eligible staged objects) rather
// than a classic xref table. Set by Compress.
func (d *Doc) UseXrefStream() bool { return d.xrefStreamMode }

// StagedObjects exposes the pending add/update/delete set for package
// revwriter's Commit-time serialization. A nil value means the object
// is staged for deletion.
func (d *Doc) StagedObjects() map[uint32]object.Object { return d.staged }

// NextNum reports the object number the next AddObject call will use;
// revwriter needs it to size the new revision's /Size entry correctly
// even when the highest added number was never actually serialized
// (e.g. every AddObject call was later overwritten by UpdateObject).
func (d *Doc) NextNum() uint32 { return d.nextNum }

// Load reads the PDF header, reconstructs the cross-reference index,
// and returns a Doc ready for Get calls. No object bodies are parsed
// yet beyond the trailer.
func Load(provider bytesource.Provider) (*Doc, error) {
	version, err := readHeaderVersion(provider)
	if err != nil {
		return nil, err
	}
	idx, err := xref.Reconstruct(provider)
	if err != nil {
		return nil, err
	}
	return &Doc{
		provider: provider,
		index:    idx,
		version:  version,
		cache:    map[uint32]object.Object{},
		staged:   map[uint32]object.Object{},
		nextNum:  idx.MaxObjNum + 1,
	}, nil
}

// Options configures LoadFile: a few named knobs instead of a
// parameter list.
type Options struct {
	// InMemory loads the whole file up-front and closes the handle,
	// instead of keeping it open and seeking on every read.
	InMemory bool
}

// LoadFile opens path and loads it per opts. The returned close
// function releases the underlying handle (a no-op for InMemory) and
// must be called once the Doc is no longer needed.
func LoadFile(path string, opts Options) (*Doc, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if opts.InMemory {
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, pdferr.WrapIOError("reading "+path, err)
		}
		doc, err := Load(bytesource.FromBytes(data))
		if err != nil {
			return nil, nil, err
		}
		return doc, func() error { return nil }, nil
	}
	doc, err := Load(bytesource.FromReadSeeker(f))
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return doc, f.Close, nil
}

// WriteTo copies the document's committed bytes to w: the original
// revisions verbatim plus every revision committed since. Staged,
// not-yet-committed changes are not included; Commit first.
func (d *Doc) WriteTo(w io.Writer) (int64, error) {
	data, err := bytesource.ReadAll(d.provider)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

func readHeaderVersion(provider bytesource.Provider) (string, error) {
	chunk, err := provider.Read(0, 16)
	if err != nil {
		return "", pdferr.WrapIOError("reading file header", err)
	}
	data := chunk.Bytes()
	const prefix = "%PDF-"
	if len(data) < len(prefix)+3 || string(data[:len(prefix)]) != prefix {
		return "", pdferr.NewParseError(0, "missing %PDF- header")
	}
	return string(data[len(prefix) : len(prefix)+3]), nil
}

func (d *Doc) Version() string               { return d.version }
func (d *Doc) Index() *xref.Index            { return d.index }
func (d *Doc) Provider() bytesource.Provider { return d.provider }

// clone makes a shallow copy suitable as the basis for a new *Doc
// returned by a mutation: the cache and staged maps are copied (cheap,
// object-number keyed), the index and provider are shared.
func (d *Doc) clone() *Doc {
	cache := make(map[uint32]object.Object, len(d.cache))
	for k, v := range d.cache {
		cache[k] = v
	}
	staged := make(map[uint32]object.Object, len(d.staged))
	for k, v := range d.staged {
		staged[k] = v
	}
	return &Doc{
		provider:       d.provider,
		index:          d.index,
		version:        d.version,
		cache:          cache,
		staged:         staged,
		nextNum:        d.nextNum,
		history:        d.history,
		pendingRoot:    d.pendingRoot,
		pendingInfo:    d.pendingInfo,
		xrefStreamMode: d.xrefStreamMode,
	}
}

// Get resolves ref against the newest revision (falling back to any
// staged, not-yet-committed change first) and returns a deep copy, so
// callers may mutate the result without corrupting the cache.
func (d *Doc) Get(ref object.Ref) (object.Object, error) {
	if v, ok := d.staged[ref.Num]; ok {
		if v == nil {
			return object.Null{}, nil
		}
		return cloneObject(v), nil
	}
	if v, ok := d.cache[ref.Num]; ok {
		return cloneObject(v), nil
	}
	v, err := d.resolve(ref.Num)
	if err != nil {
		return nil, err
	}
	d.cache[ref.Num] = v
	return cloneObject(v), nil
}

// Deref follows o if it is a Ref, otherwise returns o unchanged. Errors
// from a broken reference are swallowed into Null: a dangling ref
// should not abort an otherwise-successful walk.
func (d *Doc) Deref(o object.Object) object.Object {
	r, ok := o.(object.Ref)
	if !ok {
		return o
	}
	v, err := d.Get(r)
	if err != nil {
		return object.Null{}
	}
	return v
}

func (d *Doc) resolve(num uint32) (object.Object, error) {
	entry, ok := d.index.Lookup(num)
	if !ok || entry.Kind == xref.KindFree || entry.Kind == xref.KindDeleted {
		return object.Null{}, nil
	}
	switch entry.Kind {
	case xref.KindInUse:
		return d.resolveInUse(entry)
	case xref.KindEmbedded:
		return d.resolveEmbedded(entry)
	default:
		return object.Null{}, nil
	}
}

func (d *Doc) resolveInUse(entry *xref.Entry) (object.Object, error) {
	chunk, err := d.provider.Read(entry.AbsPos, entry.AbsNext-entry.AbsPos)
	if err != nil {
		return nil, pdferr.WrapIOError("reading object body", err)
	}
	data := chunk.Bytes()
	p := object.NewParser(data, entry.AbsPos, d.lengthResolver())

	// skip the "N G obj" header tokens before parsing the value.
	tk := p.Tok()
	for i := 0; i < 3; i++ {
		if _, err := tk.NextToken(); err != nil {
			return nil, pdferr.WrapParseError(entry.AbsPos, "reading object header", err)
		}
	}
	return p.ParseObject()
}

// lengthResolver lets the object parser resolve an indirect /Length by
// consulting the index, now that one exists (unlike at xref
// reconstruction time, when no index was available yet).
func (d *Doc) lengthResolver() object.LengthResolver {
	return func(r object.Ref) (int, bool) {
		v, err := d.Get(r)
		if err != nil {
			return 0, false
		}
		n, ok := v.(object.Int)
		if !ok {
			return 0, false
		}
		return int(n), true
	}
}

// resolveEmbedded materializes the containing object stream and
// populates the cache for every child it holds in one pass.
func (d *Doc) resolveEmbedded(entry *xref.Entry) (object.Object, error) {
	envRef := object.Ref{Num: entry.EnvNum}
	env, err := d.Get(envRef)
	if err != nil {
		return nil, err
	}
	stm, ok := env.(*object.Stream)
	if !ok {
		return object.Null{}, pdferr.NewMutationError("embedded object's envelope is not a stream")
	}
	dec := stm.Decode()
	if !dec.Ok() {
		return nil, pdferr.NewFilterError("object stream", dec.Err)
	}
	n, _ := stm.Entries.GetInt("N")
	first, _ := stm.Entries.GetInt("First")

	headerParser := object.NewParser(dec.Bytes, 0, nil)
	type pair struct{ num uint32; offset int }
	pairs := make([]pair, 0, n)
	for i := int64(0); i < n; i++ {
		numTok, err := headerParser.Tok().NextToken()
		if err != nil {
			return nil, pdferr.WrapParseError(0, "object stream header", err)
		}
		num, err := numTok.Int()
		if err != nil {
			return nil, pdferr.WrapParseError(0, "object stream header", err)
		}
		offTok, err := headerParser.Tok().NextToken()
		if err != nil {
			return nil, pdferr.WrapParseError(0, "object stream header", err)
		}
		off, err := offTok.Int()
		if err != nil {
			return nil, pdferr.WrapParseError(0, "object stream header", err)
		}
		pairs = append(pairs, pair{uint32(num), off})
	}

	var target object.Object
	for _, p := range pairs {
		bodyParser := object.NewParser(dec.Bytes[int(first)+p.offset:], 0, nil)
		obj, err := bodyParser.ParseObject()
		if err != nil {
			continue
		}
		d.cache[p.num] = obj
		if p.num == entry.Num {
			target = obj
		}
	}
	if target == nil {
		return object.Null{}, nil
	}
	return target, nil
}

func cloneObject(o object.Object) object.Object {
	switch v := o.(type) {
	case object.Array:
		out := make(object.Array, len(v))
		for i, e := range v {
			out[i] = cloneObject(e)
		}
		return out
	case object.Dict:
		return cloneDict(v)
	case object.LString:
		return append(object.LString(nil), v...)
	case object.HString:
		return append(object.HString(nil), v...)
	case *object.Stream:
		return object.NewStream(cloneDict(v.Entries), append([]byte(nil), v.Encoded...))
	default:
		return o
	}
}

func cloneDict(d object.Dict) object.Dict {
	out := object.NewDict()
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		out.Set(k, cloneObject(v))
	}
	return out
}

// Trailer returns the newest revision's merged trailer dictionary.
func (d *Doc) Trailer() object.Dict {
	return d.index.Newest().MergedTrailer()
}

// Root returns the document catalog (/Root).
func (d *Doc) Root() (object.Dict, error) {
	r, ok := d.Trailer().GetRef("Root")
	if !ok {
		return object.Dict{}, pdferr.NewMutationError("trailer has no /Root")
	}
	v, err := d.Get(r)
	if err != nil {
		return object.Dict{}, err
	}
	root, ok := v.(object.Dict)
	if !ok {
		return object.Dict{}, pdferr.NewMutationError("/Root is not a dictionary")
	}
	return root, nil
}

func encodeWith(name string, raw []byte) ([]byte, error) {
	out, err := filter.Encode(name, raw)
	if err != nil {
		return nil, pdferr.NewFilterError(name, err)
	}
	return out, nil
}
