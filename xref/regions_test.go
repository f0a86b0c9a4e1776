package xref

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/arnaudgrv/pdfobj/bytesource"
)

func TestRegionsClassicFile(t *testing.T) {
	data := buildClassicPDF()
	regions, err := Regions(bytesource.FromBytes(data))
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}

	wantKinds := []RegionKind{
		RegionHeader,
		RegionObject, RegionObject, RegionObject,
		RegionXrefTable,
		RegionStartXref,
		RegionEOF,
	}
	if len(regions) != len(wantKinds) {
		t.Fatalf("expected %d regions, got %d: %+v", len(wantKinds), len(regions), regions)
	}
	for i, k := range wantKinds {
		if regions[i].Kind != k {
			t.Fatalf("region %d: expected %s, got %s", i, k, regions[i].Kind)
		}
	}
	for i, num := range []uint32{1, 2, 3} {
		if regions[1+i].Num != num {
			t.Fatalf("object region %d: expected object number %d, got %d", i, num, regions[1+i].Num)
		}
	}

	// region spans must tile the file in order without overlap.
	for i := 1; i < len(regions); i++ {
		if regions[i].Start < regions[i-1].End {
			t.Fatalf("region %d starts at %d before region %d ends at %d",
				i, regions[i].Start, i-1, regions[i-1].End)
		}
	}

	obj := regions[1]
	body := data[obj.Start:obj.End]
	if !bytes.HasPrefix(body, []byte("1 0 obj")) || !bytes.HasSuffix(body, []byte("endobj")) {
		t.Fatalf("object region does not span its definition: %q", body)
	}
	if regions[len(regions)-1].End != int64(len(data)) {
		t.Fatalf("last region must end at EOF: %d vs %d", regions[len(regions)-1].End, len(data))
	}
}

func TestRegionsReportsVoidGap(t *testing.T) {
	var buf bytes.Buffer
	base := buildClassicPDF()
	cut := bytes.Index(base, []byte("xref"))
	buf.Write(base[:cut])
	fmt.Fprintf(&buf, "this is not pdf syntax\n")
	buf.Write(base[cut:])

	regions, err := Regions(bytesource.FromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	var void int
	for _, r := range regions {
		if r.Kind == RegionVoid {
			void++
		}
	}
	if void == 0 {
		t.Fatalf("expected the damaged span to surface as a void region, got %+v", regions)
	}
	last := regions[len(regions)-1]
	if last.Kind != RegionEOF {
		t.Fatalf("scan must keep going past the damage to the %%%%EOF, got %s", last.Kind)
	}
}
