package pdfdoc

import (
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// Structure is the one-call document summary: version, page count,
// revision count, the encryption and hybrid flags carried by the
// newest revision's trailer bookkeeping, and whether the oldest
// revision carries a linearized first-page trailer.
type Structure struct {
	Version    string
	Pages      int
	Revisions  int
	Encrypted  bool
	Hybrid     bool
	Linearized bool
}

func (d *Doc) Structure() (Structure, error) {
	pages, err := d.Pages()
	if err != nil {
		return Structure{}, err
	}
	newest := d.index.Newest()
	_, encrypted := d.Trailer().Get("Encrypt")
	hybrid := false
	for _, t := range newest.Trailers {
		if t.Hybrid {
			hybrid = true
		}
	}
	return Structure{
		Version:    d.version,
		Pages:      len(pages),
		Revisions:  len(d.index.Revisions),
		Encrypted:  encrypted,
		Hybrid:     hybrid,
		Linearized: len(d.index.Revisions[0].Trailers) > 1,
	}, nil
}

// Metadata is the decoded text-string view of the /Info dictionary.
type Metadata struct {
	Title, Author, Subject, Keywords string
	Creator, Producer                string
	CreationDate, ModDate            string
}

func (d *Doc) Metadata() (Metadata, error) {
	infoRef, ok := d.Trailer().GetRef("Info")
	if !ok {
		return Metadata{}, nil
	}
	v, err := d.Get(infoRef)
	if err != nil {
		return Metadata{}, err
	}
	info, ok := v.(object.Dict)
	if !ok {
		return Metadata{}, nil
	}
	field := func(name object.Name) string {
		val, ok := info.Get(name)
		if !ok {
			return ""
		}
		switch s := val.(type) {
		case object.LString:
			return object.DecodeTextString(s)
		case object.HString:
			return object.DecodeTextString(s)
		default:
			return ""
		}
	}
	return Metadata{
		Title:        field("Title"),
		Author:       field("Author"),
		Subject:      field("Subject"),
		Keywords:     field("Keywords"),
		Creator:      field("Creator"),
		Producer:     field("Producer"),
		CreationDate: field("CreationDate"),
		ModDate:      field("ModDate"),
	}, nil
}

// Paper classifies a MediaBox against the standard sizes, or "Custom"
// when none match within a point of tolerance.
type Paper struct {
	Name          string
	WidthPts      float64
	HeightPts     float64
}

// paperSizes lists the standard US/A-series page dimensions in points,
// portrait orientation (width, height).
var paperSizes = []Paper{
	{"Letter", 612, 792},
	{"Legal", 612, 1008},
	{"Tabloid", 792, 1224},
	{"A3", 841.89, 1190.55},
	{"A4", 595.28, 841.89},
	{"A5", 419.53, 595.28},
}

// PaperSize classifies the page at pages[idx]'s /MediaBox, checking
// both portrait and landscape orientation.
func (d *Doc) PaperSize(idx int) (Paper, error) {
	pages, err := d.Pages()
	if err != nil {
		return Paper{}, err
	}
	if idx < 0 || idx >= len(pages) {
		return Paper{}, pdferr.NewMutationError("page index out of range")
	}
	box, err := d.mediaBox(pages[idx])
	if err != nil {
		return Paper{}, err
	}
	w, h := box[2]-box[0], box[3]-box[1]
	const tolerance = 1.0
	for _, p := range paperSizes {
		if closeEnough(w, p.WidthPts, tolerance) && closeEnough(h, p.HeightPts, tolerance) {
			return p, nil
		}
		if closeEnough(w, p.HeightPts, tolerance) && closeEnough(h, p.WidthPts, tolerance) {
			return Paper{p.Name + " (landscape)", w, h}, nil
		}
	}
	return Paper{"Custom", w, h}, nil
}

func closeEnough(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// mediaBox resolves a page's /MediaBox, walking up /Parent when the
// page itself does not carry one, per the page-tree attribute
// inheritance rules.
func (d *Doc) mediaBox(ref object.Ref) ([4]float64, error) {
	for depth := 0; depth < 64; depth++ { // bound the walk against a cyclic /Parent
		v, err := d.Get(ref)
		if err != nil {
			return [4]float64{}, err
		}
		node, ok := v.(object.Dict)
		if !ok {
			return [4]float64{}, pdferr.NewMutationError("page node is not a dictionary")
		}
		if arr, ok := node.GetArray("MediaBox"); ok && len(arr) == 4 {
			var box [4]float64
			for i, e := range arr {
				switch n := e.(type) {
				case object.Int:
					box[i] = float64(n)
				case object.Real:
					box[i] = float64(n)
				}
			}
			return box, nil
		}
		parent, ok := node.GetRef("Parent")
		if !ok {
			return [4]float64{}, pdferr.NewMutationError("no /MediaBox found in page ancestry")
		}
		ref = parent
	}
	return [4]float64{}, pdferr.NewMutationError("page ancestry too deep or cyclic")
}

// AddTextAnnotation appends a /Subtype /Text annotation to
// pages[idx]'s /Annots array, creating the array if absent.
func (d *Doc) AddTextAnnotation(idx int, text string, rect [4]float64) (*Doc, error) {
	pages, err := d.Pages()
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(pages) {
		return nil, pdferr.NewMutationError("page index out of range")
	}
	nd := d.clone()

	annot := object.NewDict()
	annot.Set("Type", object.Name("Annot"))
	annot.Set("Subtype", object.Name("Text"))
	annot.Set("Rect", object.Array{
		object.Real(rect[0]), object.Real(rect[1]), object.Real(rect[2]), object.Real(rect[3]),
	})
	annot.Set("Contents", object.LString(object.EncodeTextString(text)))
	annot.Set("Open", object.Bool(false))

	nd2, annotRef := nd.AddObject(annot)
	pageRef := pages[idx]
	v, err := nd2.Get(pageRef)
	if err != nil {
		return nil, err
	}
	page, ok := v.(object.Dict)
	if !ok {
		return nil, pdferr.NewMutationError("page is not a dictionary")
	}
	annots, _ := page.GetArray("Annots")
	annots = append(annots, annotRef)
	page.Set("Annots", annots)
	nd2.staged[pageRef.Num] = page
	return nd2, nil
}
