package xref

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/arnaudgrv/pdfobj/bytesource"
)

// xrefStreamRecord packs one (type, field2, field3) row into the fixed
// (1,4,2) big-endian layout xref/stream.go's decodeRecords expects.
func xrefStreamRecord(typ byte, f2, f3 int64) []byte {
	b := make([]byte, 7)
	b[0] = typ
	b[1] = byte(f2 >> 24)
	b[2] = byte(f2 >> 16)
	b[3] = byte(f2 >> 8)
	b[4] = byte(f2)
	b[5] = byte(f3 >> 8)
	b[6] = byte(f3)
	return b
}

// writeXrefStreamObject appends an "N 0 obj << ... >> stream ... endstream
// endobj" xref-stream object (unfiltered, so Decode() returns the raw
// record bytes directly) and returns its start offset.
func writeXrefStreamObject(buf *bytes.Buffer, num int, dictExtra string, records []byte) int {
	pos := buf.Len()
	fmt.Fprintf(buf, "%d 0 obj\n<< /Type /XRef /W [1 4 2] /Length %d%s >>\nstream\n", num, len(records), dictExtra)
	buf.Write(records)
	buf.WriteString("\nendstream\nendobj\n")
	return pos
}

// TestReconstructHybridXRefStmClassicWins builds a single-revision file
// whose trailer carries both a classic table (covering objects 0 and 2)
// and a /XRefStm pointing at an embedded xref stream that disagrees with
// the classic table about object 2's offset and additionally lists
// object 5, which the classic table omits entirely. The classic entry
// for object 2 must win and object 5 must still be picked up, filling
// the gap; the disagreement must be logged.
func TestReconstructHybridXRefStmClassicWins(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	offsets := make([]int, 6)
	write := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	write(1, "<< /Type /Catalog /Pages 2 0 R >>")
	write(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	write(3, "<< /Type /Page /Parent 2 0 R >>")
	write(5, "<< /Type /Page /Parent 2 0 R /Rotate 90 >>")

	records := append(xrefStreamRecord(1, 999000, 0), xrefStreamRecord(1, int64(offsets[5]), 0)...)
	streamPos := writeXrefStreamObject(&buf, 6, " /Index [2 1 5 1] /Size 7 /Root 1 0 R", records)

	classicPos := buf.Len()
	buf.WriteString("xref\n0 1\n0000000000 65535 f \n2 1\n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[2])
	fmt.Fprintf(&buf, "trailer\n<< /Size 7 /Root 1 0 R /XRefStm %d >>\n", streamPos)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", classicPos)

	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(log.Writer())

	idx, err := Reconstruct(bytesource.FromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	newest := idx.Newest()
	if e := newest.Objects[2]; e.AbsPos != int64(offsets[2]) {
		t.Fatalf("classic table should win object 2's offset, got %d want %d", e.AbsPos, offsets[2])
	}
	if e := newest.Objects[5]; e == nil || e.Kind != KindInUse || e.AbsPos != int64(offsets[5]) {
		t.Fatalf("object 5 should be gap-filled from the /XRefStm, got %+v", e)
	}
	if !newest.Trailers[0].Hybrid {
		t.Fatalf("trailer should be marked Hybrid")
	}
	if !bytes.Contains(logged.Bytes(), []byte("classic wins")) {
		t.Fatalf("expected a logged disagreement, got %q", logged.String())
	}
}

// TestReconstructPureXrefStream builds a file whose only cross-reference
// section is an xref stream (no classic table anywhere), exercising the
// parseXrefStream path standalone rather than as a /XRefStm hybrid.
func TestReconstructPureXrefStream(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	offsets := make([]int, 4)
	write := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	write(1, "<< /Type /Catalog /Pages 2 0 R >>")
	write(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	write(3, "<< /Type /Page /Parent 2 0 R >>")

	streamNum := 4
	var records bytes.Buffer
	records.Write(xrefStreamRecord(0, 0, 65535))
	records.Write(xrefStreamRecord(1, int64(offsets[1]), 0))
	records.Write(xrefStreamRecord(1, int64(offsets[2]), 0))
	records.Write(xrefStreamRecord(1, int64(offsets[3]), 0))
	selfPos := buf.Len()
	records.Write(xrefStreamRecord(1, int64(selfPos), 0))

	streamPos := writeXrefStreamObject(&buf, streamNum, " /Index [0 5] /Size 5 /Root 1 0 R", records.Bytes())
	if streamPos != selfPos {
		t.Fatalf("self-referencing row offset must equal the stream's own position")
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", streamPos)

	idx, err := Reconstruct(bytesource.FromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(idx.Revisions) != 1 {
		t.Fatalf("expected 1 revision, got %d", len(idx.Revisions))
	}
	newest := idx.Newest()
	if e := newest.Objects[1]; e.AbsPos != int64(offsets[1]) {
		t.Fatalf("object 1 offset mismatch: got %d want %d", e.AbsPos, offsets[1])
	}
	if root, ok := newest.MergedTrailer().GetRef("Root"); !ok || root.Num != 1 {
		t.Fatalf("expected /Root 1 0 R, got %v ok=%v", root, ok)
	}
	tr := newest.Trailers[0]
	if tr.XrefStreamPos != int64(streamPos) || tr.XrefTablePos != 0 {
		t.Fatalf("expected a pure xref-stream trailer, got %+v", tr)
	}
}

// TestReconstructLinearizedForwardPrev models a linearized file: the
// trailing startxref reaches the main table first (its own /Prev points
// backward to a first-page table near the top of the file), and that
// first-page table's own /Prev points forward back to the main table,
// the signal Reconstruct uses to recognize and fold in a linearized
// first-page trailer instead of looping.
func TestReconstructLinearizedForwardPrev(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	obj4Pos := buf.Len()
	buf.WriteString("4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	firstPagePos := buf.Len()
	buf.WriteString("xref\n4 1\n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", obj4Pos)
	placeholder := "trailer\n<< /Size 5 /Root 1 0 R /Prev 0000000000 >>\n"
	buf.WriteString(placeholder) // /Prev patched once the main table's position is known

	offsets := make([]int, 4)
	write := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	write(1, "<< /Type /Catalog /Pages 2 0 R >>")
	write(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	write(3, "<< /Type /Page /Parent 2 0 R >>")

	mainPos := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 4 /Root 1 0 R /Prev %d >>\n", firstPagePos)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", mainPos)

	// patch the first-page trailer's /Prev (forward to mainPos) in now
	// that mainPos is known; it was left as a placeholder run of zeros
	// the same width so the patch doesn't shift any later offset.
	patched := fmt.Sprintf("trailer\n<< /Size 5 /Root 1 0 R /Prev %010d >>\n", mainPos)
	if len(placeholder) != len(patched) {
		t.Fatalf("placeholder/patched length mismatch: %d vs %d", len(placeholder), len(patched))
	}
	full := strings.Replace(buf.String(), placeholder, patched, 1)

	idx, err := Reconstruct(bytesource.FromBytes([]byte(full)))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(idx.Revisions) != 1 {
		t.Fatalf("expected 1 revision, got %d", len(idx.Revisions))
	}
	oldest := idx.Revisions[0]
	if len(oldest.Trailers) != 2 {
		t.Fatalf("expected main + first-page trailers folded together, got %d", len(oldest.Trailers))
	}
	if e := oldest.Objects[4]; e == nil || e.Kind != KindInUse || e.AbsPos != int64(obj4Pos) {
		t.Fatalf("expected object 4 folded in from the first-page table, got %+v", e)
	}
	if root, ok := oldest.MergedTrailer().GetRef("Root"); !ok || root.Num != 1 {
		t.Fatalf("expected /Root 1 0 R from the merged trailer, got %v ok=%v", root, ok)
	}
}
