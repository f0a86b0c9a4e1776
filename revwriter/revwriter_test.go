package revwriter

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/arnaudgrv/pdfobj/bytesource"
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdfdoc"
	"github.com/arnaudgrv/pdfobj/xref"
)

func buildOnePageFixture() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, 4)
	write := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	write(1, "<< /Type /Catalog /Pages 2 0 R >>")
	write(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	write(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")

	xrefPos := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefPos)
	return buf.Bytes()
}

func TestCommitAppendsRevisionReadableAgain(t *testing.T) {
	doc, err := pdfdoc.Load(bytesource.FromBytes(buildOnePageFixture()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rotated, err := doc.Rotate(90, []int{0})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	committed, err := rotated.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(committed.Index().Revisions) != 2 {
		t.Fatalf("expected 2 revisions after commit, got %d", len(committed.Index().Revisions))
	}

	reloaded, err := pdfdoc.Load(committed.Provider())
	if err != nil {
		t.Fatalf("reloading committed bytes: %v", err)
	}
	pages, err := reloaded.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	v, err := reloaded.Get(pages[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	page := v.(object.Dict)
	rotate, _ := page.GetInt("Rotate")
	if rotate != 90 {
		t.Fatalf("expected /Rotate 90 in the reloaded committed file, got %d", rotate)
	}
}

func TestRewindRestoresPriorRevision(t *testing.T) {
	doc, err := pdfdoc.Load(bytesource.FromBytes(buildOnePageFixture()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rotated, err := doc.Rotate(90, []int{0})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	committed, err := rotated.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	back, err := committed.Rewind()
	if err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if len(back.Index().Revisions) != 1 {
		t.Fatalf("expected 1 revision after rewind, got %d", len(back.Index().Revisions))
	}
	pages, err := back.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	v, err := back.Get(pages[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	page := v.(object.Dict)
	rotate, _ := page.GetInt("Rotate")
	if rotate != 90 {
		t.Fatalf("rewind should keep the staged-but-not-yet-committed rotate, got %d", rotate)
	}
}

// TestCommitChainsDeletionsIntoFreeList checks the free-chain closure:
// the appended table's object-0 head (generation 65535) points at the
// deleted object, whose own row points back to 0 with its generation
// incremented, and the reloaded index marks the slot free.
func TestCommitChainsDeletionsIntoFreeList(t *testing.T) {
	original := buildOnePageFixture()
	doc, err := pdfdoc.Load(bytesource.FromBytes(original))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	deleted, err := doc.UpdateObject(3, nil)
	if err != nil {
		t.Fatalf("UpdateObject: %v", err)
	}
	committed, err := deleted.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var out bytes.Buffer
	if _, err := committed.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	appended := out.Bytes()[len(original):]
	if !bytes.Contains(appended, []byte("0000000003 65535 f")) {
		t.Fatalf("object 0 head must point at the deleted object 3:\n%s", appended)
	}
	if !bytes.Contains(appended, []byte("0000000000 00001 f")) {
		t.Fatalf("deleted object 3 must close the chain back to 0 with its generation bumped:\n%s", appended)
	}

	reloaded, err := pdfdoc.Load(committed.Provider())
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}
	v, err := reloaded.Get(object.Ref{Num: 3})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, isNull := v.(object.Null); !isNull {
		t.Fatalf("deleted object must resolve to null after reload, got %#v", v)
	}
}

// TestRewindWriteReproducesOriginalBytes covers the incremental-append
// contract both ways: committed bytes are the original file plus one
// appended revision, and rewinding the commit writes back exactly the
// original bytes.
func TestRewindWriteReproducesOriginalBytes(t *testing.T) {
	original := buildOnePageFixture()
	doc, err := pdfdoc.Load(bytesource.FromBytes(original))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	annotated, err := doc.AddTextAnnotation(0, "hi", [4]float64{50, 50, 150, 150})
	if err != nil {
		t.Fatalf("AddTextAnnotation: %v", err)
	}
	committed, err := annotated.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var out bytes.Buffer
	if _, err := committed.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), original) {
		t.Fatalf("committed bytes must reproduce the original file verbatim as their prefix")
	}
	if out.Len() <= len(original) {
		t.Fatalf("committed bytes must extend the original file")
	}

	back, err := committed.Rewind()
	if err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	out.Reset()
	if _, err := back.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo after rewind: %v", err)
	}
	if !bytes.Equal(out.Bytes(), original) {
		t.Fatalf("rewound doc must write the original bytes exactly: got %d bytes, want %d", out.Len(), len(original))
	}
}

// TestCompressRebuildsSingleRevisionFile checks the squash contract:
// the committed output stands alone on a fresh %PDF header, carries
// exactly one revision, and numbers its objects contiguously from 1.
func TestCompressRebuildsSingleRevisionFile(t *testing.T) {
	doc, err := pdfdoc.Load(bytesource.FromBytes(buildOnePageFixture()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	compressed, err := pdfdoc.Compress(doc)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	committed, err := compressed.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if n := len(committed.Index().Revisions); n != 1 {
		t.Fatalf("expected a single revision after compress+commit, got %d", n)
	}

	var out bytes.Buffer
	if _, err := committed.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-1.5\n")) {
		t.Fatalf("compressed file must start at an upgraded %%PDF-1.5 header, got %q", out.Bytes()[:16])
	}

	reloaded, err := pdfdoc.Load(bytesource.FromBytes(out.Bytes()))
	if err != nil {
		t.Fatalf("reloading the compressed file: %v", err)
	}
	if n := len(reloaded.Index().Revisions); n != 1 {
		t.Fatalf("expected the reloaded file to carry a single revision, got %d", n)
	}
	pages, err := reloaded.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
}

// TestCompressEmitsXrefStreamReadableAgain drives a full Compress ->
// Commit -> reload round trip: the committed bytes must carry an xref
// stream (not a classic table) with the single surviving page packed
// into an /ObjStm, and pdfdoc/xref must be able to read that back.
func TestCompressEmitsXrefStreamReadableAgain(t *testing.T) {
	doc, err := pdfdoc.Load(bytesource.FromBytes(buildOnePageFixture()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	compressed, err := pdfdoc.Compress(doc)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !compressed.UseXrefStream() {
		t.Fatalf("Compress should mark the Doc for xref-stream emission")
	}
	committed, err := compressed.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	revs := committed.Index().Revisions
	newest := revs[len(revs)-1]
	tr := newest.Trailers[0]
	if tr.XrefStreamPos == 0 || tr.XrefTablePos != 0 {
		t.Fatalf("expected the committed revision to carry an xref stream, not a classic table: %+v", tr)
	}
	var embedded int
	for _, e := range newest.Objects {
		if e.Kind == xref.KindEmbedded {
			embedded++
		}
	}
	if embedded == 0 {
		t.Fatalf("expected at least one object folded into the /ObjStm")
	}

	reidx, err := xref.Reconstruct(committed.Provider())
	if err != nil {
		t.Fatalf("re-parsing the committed bytes: %v", err)
	}
	if reidx.Newest().Trailers[0].XrefStreamPos == 0 {
		t.Fatalf("the independently-reconstructed index should also see an xref stream")
	}

	reloaded, err := pdfdoc.Load(committed.Provider())
	if err != nil {
		t.Fatalf("reloading the committed bytes: %v", err)
	}
	pages, err := reloaded.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page after reload, got %d", len(pages))
	}
	v, err := reloaded.Get(pages[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if name, _ := v.(object.Dict).GetName("Type"); name != "Page" {
		t.Fatalf("expected /Type /Page in the reloaded page, got %v", v)
	}
}
