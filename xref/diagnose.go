package xref

import (
	"regexp"

	"github.com/arnaudgrv/pdfobj/bytesource"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// objHeaderRe matches an indirect object header "N G obj" as it
// appears anywhere in the raw byte stream, independent of any xref
// entry pointing at it.
var objHeaderRe = regexp.MustCompile(`(?:^|[\x00-\x20])(\d+)\s+(\d+)\s+obj\b`)

// Diagnosis reports the result of cross-checking the reconstructed
// index against a sequential whole-file scan.
type Diagnosis struct {
	// Unreachable holds object numbers for which an "N G obj" header
	// was found in the file but no xref entry in the newest revision
	// points at that offset.
	Unreachable []uint32
	// Dangling holds object numbers the newest revision's xref lists
	// as in-use whose recorded AbsPos does not line up with any
	// "N G obj" header actually found in the file.
	Dangling []uint32
}

// Diagnose sequentially scans provider for every "N G obj" header,
// ignoring the xref chain entirely, and reports objects the index
// fails to account for in either direction.
func Diagnose(provider bytesource.Provider, idx *Index) (Diagnosis, error) {
	data, err := bytesource.ReadAll(provider)
	if err != nil {
		return Diagnosis{}, pdferr.WrapIOError("reading file for diagnosis", err)
	}

	foundAt := map[int64]uint32{} // absolute offset -> object number
	for _, m := range objHeaderRe.FindAllSubmatchIndex(data, -1) {
		numStart, numEnd := m[2], m[3]
		num := parseDecimal(data[numStart:numEnd])
		// m[0] is the match start, which may include one leading
		// whitespace/control byte consumed by the non-capturing group;
		// walk forward to the digit run's own start for the header offset.
		foundAt[int64(numStart)] = num
	}

	newest := idx.Newest()
	knownOffsets := map[int64]bool{}
	for _, e := range newest.Objects {
		if e.Kind == KindInUse {
			knownOffsets[e.AbsPos] = true
		}
	}

	var d Diagnosis
	for off, num := range foundAt {
		if !knownOffsets[off] {
			d.Unreachable = append(d.Unreachable, num)
		}
	}
	for _, e := range newest.Objects {
		if e.Kind != KindInUse {
			continue
		}
		if _, ok := foundAt[e.AbsPos]; !ok {
			d.Dangling = append(d.Dangling, e.Num)
		}
	}
	return d, nil
}

func parseDecimal(b []byte) uint32 {
	var n uint32
	for _, c := range b {
		n = n*10 + uint32(c-'0')
	}
	return n
}
