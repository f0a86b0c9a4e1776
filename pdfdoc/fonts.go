package pdfdoc

import "github.com/arnaudgrv/pdfobj/object"

// FontInfo is one entry of a page's /Resources /Font dictionary: the
// raw dictionary fields, not a full glyph/encoding model.
type FontInfo struct {
	Page     int
	Name     string // the resource dictionary key, e.g. "F1"
	BaseFont string
	Subtype  string
}

// Fonts tabulates every font resource referenced by the document's
// pages, one entry per (page, resource-name) pair.
func (d *Doc) Fonts() ([]FontInfo, error) {
	pages, err := d.Pages()
	if err != nil {
		return nil, err
	}
	var out []FontInfo
	for i, ref := range pages {
		res, err := d.pageResources(ref)
		if err != nil || res == nil {
			continue
		}
		fontsVal := d.Deref(mustGet(*res, "Font"))
		fontDict, ok := fontsVal.(object.Dict)
		if !ok {
			continue
		}
		for _, key := range fontDict.Keys() {
			v, _ := fontDict.Get(key)
			fv := d.Deref(v)
			fd, ok := fv.(object.Dict)
			if !ok {
				continue
			}
			base, _ := fd.GetName("BaseFont")
			subtype, _ := fd.GetName("Subtype")
			out = append(out, FontInfo{Page: i, Name: string(key), BaseFont: string(base), Subtype: string(subtype)})
		}
	}
	return out, nil
}

// pageResources returns a page's /Resources dictionary, walking
// /Parent the same way mediaBox does for inheritance.
func (d *Doc) pageResources(ref object.Ref) (*object.Dict, error) {
	for depth := 0; depth < 64; depth++ {
		v, err := d.Get(ref)
		if err != nil {
			return nil, err
		}
		node, ok := v.(object.Dict)
		if !ok {
			return nil, nil
		}
		if resVal, ok := node.Get("Resources"); ok {
			res, ok := d.Deref(resVal).(object.Dict)
			if ok {
				return &res, nil
			}
		}
		parent, ok := node.GetRef("Parent")
		if !ok {
			return nil, nil
		}
		ref = parent
	}
	return nil, nil
}

func mustGet(d object.Dict, name object.Name) object.Object {
	v, _ := d.Get(name)
	return v
}
