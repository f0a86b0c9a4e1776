package filter

import (
	"bytes"
	"fmt"
	"io"
)

// undoPredictor reverses the PNG or TIFF predictor pass applied before
// Flate compression. Ported from the row-filter arithmetic pdfcpu's
// filter package applies as FlateDecode post-processing; kept as a
// standalone pass here because this module's Encode never re-applies
// one (see Encode's doc comment).
func undoPredictor(decoded []byte, p Params) ([]byte, error) {
	switch p.Predictor {
	case 2, 10, 11, 12, 13, 14, 15:
	default:
		return nil, fmt.Errorf("unsupported predictor %d", p.Predictor)
	}

	bytesPerPixel := (p.BitsPerComponent*p.Colors + 7) / 8
	rowSize := p.BitsPerComponent * p.Colors * p.Columns / 8
	if p.Predictor != 2 {
		rowSize++ // PNG rows are prefixed with a filter-type byte
	}

	cr := make([]byte, rowSize)
	pr := make([]byte, rowSize)
	var out []byte

	r := bytes.NewReader(decoded)
	for {
		_, err := io.ReadFull(r, cr)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		d, err := undoRow(pr, cr, p.Predictor, bytesPerPixel)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
		pr, cr = cr, pr
	}
	return out, nil
}

func undoRow(pr, cr []byte, predictor, bytesPerPixel int) ([]byte, error) {
	if predictor == 2 {
		return undoTIFF(cr, bytesPerPixel), nil
	}

	cdat := cr[1:]
	pdat := pr[1:]
	rowFilter := int(cr[0])

	switch rowFilter {
	case 0:
		// raw, nothing to undo
	case 1: // Sub
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += cdat[i-bytesPerPixel]
		}
	case 2: // Up
		for i, p := range pdat {
			cdat[i] += p
		}
	case 3: // Average
		for i := 0; i < bytesPerPixel; i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bytesPerPixel]) + int(pdat[i])) / 2)
		}
	case 4: // Paeth
		paeth(cdat, pdat, bytesPerPixel)
	default:
		return nil, fmt.Errorf("unknown PNG row filter byte %d", rowFilter)
	}
	return cdat, nil
}

func undoTIFF(row []byte, bytesPerPixel int) []byte {
	for i := bytesPerPixel; i < len(row); i++ {
		row[i] += row[i-bytesPerPixel]
	}
	return row
}

func paeth(cdat, pdat []byte, bytesPerPixel int) {
	var a, b, c, pa, pb, pc int32
	for i := 0; i < bytesPerPixel; i++ {
		a, c = 0, 0
		for j := i; j < len(cdat); j += bytesPerPixel {
			b = int32(pdat[j])
			pa = abs32(b - c)
			pb = abs32(a - c)
			pc = abs32(b - c + a - c)
			switch {
			case pa <= pb && pa <= pc:
				// predict a
			case pb <= pc:
				a = b
			default:
				a = c
			}
			a += int32(cdat[j])
			a &= 0xff
			cdat[j] = uint8(a)
			c = b
		}
	}
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
