package pdfdoc

import (
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// PageContent returns the decoded bytes of pages[idx]'s /Contents,
// concatenating every stream in a content-stream array with a newline
// between them per the operator-stream splicing rule. This is the raw
// operator stream, not extracted text or spatial layout.
func (d *Doc) PageContent(idx int) ([]byte, error) {
	pages, err := d.Pages()
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(pages) {
		return nil, pdferr.NewMutationError("page index out of range")
	}
	page, err := d.Get(pages[idx])
	if err != nil {
		return nil, err
	}
	dict, ok := page.(object.Dict)
	if !ok {
		return nil, pdferr.NewMutationError("page is not a dictionary")
	}
	contents, ok := dict.Get("Contents")
	if !ok {
		return nil, nil
	}
	var refs []object.Ref
	switch c := contents.(type) {
	case object.Ref:
		refs = []object.Ref{c}
	case object.Array:
		for _, e := range c {
			if r, ok := e.(object.Ref); ok {
				refs = append(refs, r)
			}
		}
	}
	var out []byte
	for i, r := range refs {
		v, err := d.Get(r)
		if err != nil {
			return nil, err
		}
		stm, ok := v.(*object.Stream)
		if !ok {
			continue
		}
		dec := stm.Decode()
		if !dec.Ok() {
			continue
		}
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, dec.Bytes...)
	}
	return out, nil
}
