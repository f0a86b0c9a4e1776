package object

import (
	"golang.org/x/text/encoding/unicode"
)

var utf16Dec = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
var utf16Enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

func isUTF16BOM(b []byte) bool {
	return len(b) >= 2 && ((b[0] == 0xFE && b[1] == 0xFF) || (b[0] == 0xFF && b[1] == 0xFE))
}

// DecodeTextString interprets b as a PDF "text string" (§7.9.2.2 of
// ISO 32000): either PDFDocEncoded bytes, or UTF-16BE with a leading
// byte-order mark. Returns the UTF-8 equivalent. Encryption, escaping
// and hex-decoding must already have been handled by the caller.
func DecodeTextString(b []byte) string {
	if isUTF16BOM(b) {
		out, err := utf16Dec.Bytes(b)
		if err != nil {
			return pdfDocToUTF8(b)
		}
		return string(out)
	}
	return pdfDocToUTF8(b)
}

// EncodeTextString is the inverse of DecodeTextString: it prefers
// PDFDocEncoding (producing shorter output) and falls back to
// UTF-16BE-with-BOM for characters PDFDocEncoding cannot represent.
func EncodeTextString(s string) []byte {
	if b, ok := utf8ToPDFDoc(s); ok {
		return b
	}
	b, err := utf16Enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// last resort: lossy ASCII
		return []byte(s)
	}
	return b
}

// pdfDocTable maps PDFDocEncoding code points 0x18-0x1F, 0x80-0x9F
// and 0xA0 (the points where it diverges from Latin-1) to their
// Unicode runes, per Annex D of ISO 32000-1. Bytes 0x20-0x7E and
// 0xA1-0xFF coincide with their Latin-1/ASCII code points.
var pdfDocTable = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1A: 'ˆ', 0x1B: '˙',
	0x1C: '˝', 0x1D: '˛', 0x1E: '˚', 0x1F: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
	0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8A: '−', 0x8B: '‰',
	0x8C: '„', 0x8D: '“', 0x8E: '”', 0x8F: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
	0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9A: 'ı', 0x9B: 'ł',
	0x9C: 'œ', 0x9D: 'š', 0x9E: 'ž', 0x9F: '�',
	0xA0: '€',
}

var pdfDocReverse = func() map[rune]byte {
	m := make(map[rune]byte, len(pdfDocTable))
	for b, r := range pdfDocTable {
		m[r] = b
	}
	return m
}()

func pdfDocToUTF8(b []byte) string {
	runes := make([]rune, 0, len(b))
	for _, c := range b {
		if r, ok := pdfDocTable[c]; ok {
			runes = append(runes, r)
		} else {
			runes = append(runes, rune(c))
		}
	}
	return string(runes)
}

func utf8ToPDFDoc(s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x18 || (r >= 0x20 && r < 0x80) {
			out = append(out, byte(r))
			continue
		}
		if b, ok := pdfDocReverse[r]; ok {
			out = append(out, b)
			continue
		}
		if r >= 0xA1 && r <= 0xFF {
			out = append(out, byte(r))
			continue
		}
		return nil, false
	}
	return out, true
}
