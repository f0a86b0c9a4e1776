package filter

import (
	"bytes"
	"testing"

	"golang.org/x/exp/errors"
)

func TestFlateRoundTrip(t *testing.T) {
	raw := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")
	encoded, err := Encode(Flate, raw)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(Flate, encoded, Params{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("round trip mismatch: got %q, want %q", decoded, raw)
	}
}

func TestASCIIHexRoundTrip(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xFE, 0xFF, 'h', 'i'}
	encoded, err := Encode(ASCIIHex, raw)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(ASCIIHex, encoded, Params{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, raw)
	}
}

func TestASCII85RoundTrip(t *testing.T) {
	raw := []byte("Man is distinguished, not only by his reason...")
	encoded, err := Encode(ASCII85, raw)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(ASCII85, encoded, Params{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("round trip mismatch: got %q, want %q", decoded, raw)
	}
}

func TestUnsupportedFilter(t *testing.T) {
	_, err := Decode("LZWDecode", []byte{1, 2, 3}, Params{})
	if err == nil {
		t.Fatal("expected an error for an unsupported filter")
	}
	var unsupported *ErrUnsupported
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected ErrUnsupported, got %T: %v", err, err)
	}
	if unsupported.Name != "LZWDecode" {
		t.Fatalf("expected the filter name carried on the error, got %q", unsupported.Name)
	}
}

func TestPNGUpPredictorRoundTrip(t *testing.T) {
	columns := 4
	colors := 1
	bpc := 8
	rowSize := columns * colors * bpc / 8

	rows := [][]byte{
		{10, 20, 30, 40},
		{11, 19, 33, 41},
		{9, 22, 28, 45},
	}

	var filtered []byte
	prev := make([]byte, rowSize)
	for _, row := range rows {
		filtered = append(filtered, 2) // PNG "Up" row filter byte
		for i, b := range row {
			filtered = append(filtered, b-prev[i])
		}
		prev = row
	}

	encoded, err := Encode(Flate, filtered)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(Flate, encoded, Params{
		Predictor:        12,
		Colors:           colors,
		BitsPerComponent: bpc,
		Columns:          columns,
	})
	if err != nil {
		t.Fatal(err)
	}

	var want []byte
	for _, row := range rows {
		want = append(want, row...)
	}
	if !bytes.Equal(decoded, want) {
		t.Fatalf("predictor round trip mismatch: got %v, want %v", decoded, want)
	}
}
