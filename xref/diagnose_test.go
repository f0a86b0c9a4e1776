package xref

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/arnaudgrv/pdfobj/bytesource"
)

func TestDiagnoseCleanFile(t *testing.T) {
	data := buildClassicPDF()
	provider := bytesource.FromBytes(data)
	idx, err := Reconstruct(provider)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	d, err := Diagnose(provider, idx)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if len(d.Unreachable) != 0 {
		t.Fatalf("expected no unreachable objects, got %v", d.Unreachable)
	}
	if len(d.Dangling) != 0 {
		t.Fatalf("expected no dangling entries, got %v", d.Dangling)
	}
}

func TestDiagnoseOrphanObject(t *testing.T) {
	data := buildClassicPDF()
	// append an orphan object body after the trailer that no xref
	// entry will ever point at.
	var buf bytes.Buffer
	buf.Write(data)
	fmt.Fprintf(&buf, "\n9 0 obj\n<< /Type /Orphan >>\nendobj\n")

	provider := bytesource.FromBytes(buf.Bytes())
	idx, err := Reconstruct(provider)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	d, err := Diagnose(provider, idx)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	found := false
	for _, n := range d.Unreachable {
		if n == 9 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected object 9 to be reported unreachable, got %v", d.Unreachable)
	}
}
