package xref

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/arnaudgrv/pdfobj/bytesource"
)

// buildClassicPDF assembles a minimal single-revision PDF (three
// objects, a classic xref table, and a trailer), computing every
// offset the way a real writer would: by tracking the buffer length as
// each piece is appended.
func buildClassicPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 4) // index 0 unused (the free slot)
	write := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	write(1, "<< /Type /Catalog /Pages 2 0 R >>")
	write(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	write(3, "<< /Type /Page /Parent 2 0 R >>")

	xrefPos := buf.Len()
	buf.WriteString("xref\n0 4\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefPos)

	return buf.Bytes()
}

func TestReconstructClassicSingleRevision(t *testing.T) {
	data := buildClassicPDF()
	provider := bytesource.FromBytes(data)

	idx, err := Reconstruct(provider)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(idx.Revisions) != 1 {
		t.Fatalf("expected 1 revision, got %d", len(idx.Revisions))
	}
	rev := idx.Newest()
	for num := uint32(1); num <= 3; num++ {
		e, ok := rev.Objects[num]
		if !ok {
			t.Fatalf("object %d missing from index", num)
		}
		if e.Kind != KindInUse {
			t.Fatalf("object %d: expected KindInUse, got %v", num, e.Kind)
		}
	}
	free, ok := rev.Objects[0]
	if !ok || free.Kind != KindFree {
		t.Fatalf("object 0 should be the free-list head")
	}
	root, ok := rev.MergedTrailer().GetRef("Root")
	if !ok || root.Num != 1 {
		t.Fatalf("expected /Root 1 0 R, got %+v ok=%v", root, ok)
	}
}

// buildIncrementalPDF appends a second revision that redefines object 2
// and adds object 4, chained to the first revision via /Prev.
func buildIncrementalPDF(base []byte, baseXrefPos int) []byte {
	var buf bytes.Buffer
	buf.Write(base)

	obj2Pos := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>\nendobj\n")
	obj4Pos := buf.Len()
	buf.WriteString("4 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj\n")

	xrefPos := buf.Len()
	buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	fmt.Fprintf(&buf, "2 1\n%010d 00000 n \n", obj2Pos)
	fmt.Fprintf(&buf, "4 1\n%010d 00000 n \n", obj4Pos)
	fmt.Fprintf(&buf, "trailer\n<< /Size 5 /Root 1 0 R /Prev %d >>\n", baseXrefPos)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefPos)

	return buf.Bytes()
}

func TestReconstructIncrementalRevisions(t *testing.T) {
	base := buildClassicPDF()
	baseXrefPos := bytes.LastIndex(base, []byte("startxref\n"))
	if baseXrefPos < 0 {
		t.Fatal("could not locate startxref in base fixture")
	}
	// recover the numeric xref position the base fixture itself recorded.
	var basePos int
	fmt.Sscanf(string(base[baseXrefPos+len("startxref\n"):]), "%d", &basePos)

	full := buildIncrementalPDF(base, basePos)
	provider := bytesource.FromBytes(full)

	idx, err := Reconstruct(provider)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(idx.Revisions) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(idx.Revisions))
	}
	newest := idx.Newest()
	if _, ok := newest.Objects[4]; !ok {
		t.Fatalf("object 4 missing from newest revision")
	}
	e2, ok := newest.Objects[2]
	if !ok || e2.DocVer != 1 {
		t.Fatalf("object 2 should have been redefined in revision 1, got %+v ok=%v", e2, ok)
	}
	e3, ok := newest.Objects[3]
	if !ok || e3.DocVer != 0 {
		t.Fatalf("object 3 should still trace to revision 0, got %+v ok=%v", e3, ok)
	}

	older := idx.Revisions[0]
	if _, ok := older.Objects[4]; ok {
		t.Fatalf("object 4 must not be visible in the oldest revision")
	}
}
