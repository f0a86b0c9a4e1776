// Package filter implements the stream codec pipeline this module
// supports: FlateDecode, ASCIIHexDecode and ASCII85Decode, plus the
// PNG predictor pass that commonly rides on top of FlateDecode. Any
// other filter name is reported through ErrUnsupported rather than
// guessed at.
package filter

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
)

const (
	Flate    = "FlateDecode"
	ASCIIHex = "ASCIIHexDecode"
	ASCII85  = "ASCII85Decode"
)

// Supported reports whether name is one of the three filters this
// package implements.
func Supported(name string) bool {
	switch name {
	case Flate, ASCIIHex, ASCII85:
		return true
	default:
		return false
	}
}

// ErrUnsupported is the sentinel surfaced for a filter name outside
// {Flate, ASCIIHex, ASCII85}: LZW, RunLength, DCT, CCITTFax and any
// image/font-specific filter are intentionally out of scope.
type ErrUnsupported struct {
	Name string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("#PDFSyntaxException: unsupported filter %s", e.Name)
}

// ErrDecode wraps a failure from the underlying codec or from predictor
// post-processing.
type ErrDecode struct {
	Name string
	Err  error
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("#PDFSyntaxException: cannot decode %s: %v", e.Name, e.Err)
}

func (e *ErrDecode) Unwrap() error { return e.Err }

// Params mirrors the subset of a stream's /DecodeParms this package
// understands: the predictor controls, used only by FlateDecode.
type Params struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
}

func (p Params) normalized() Params {
	if p.Colors == 0 {
		p.Colors = 1
	}
	if p.BitsPerComponent == 0 {
		p.BitsPerComponent = 8
	}
	if p.Columns == 0 {
		p.Columns = 1
	}
	return p
}

// Decode applies one filter to encoded, returning the decoded bytes.
// The raw codec step (Flate inflate / ASCIIHex / ASCII85) is delegated
// to pdfcpu's filter package; the PNG predictor, when present, is
// applied locally afterwards since pdfcpu's generic API does not
// expose a way to skip it selectively on the encode side the way this
// module's writer needs to (see Encode).
func Decode(name string, encoded []byte, params Params) ([]byte, error) {
	if !Supported(name) {
		log.Printf("filter: unsupported filter %s, leaving stream undecoded\n", name)
		return nil, &ErrUnsupported{Name: name}
	}
	fil, err := filter.NewFilter(name, nil)
	if err != nil {
		return nil, &ErrDecode{Name: name, Err: err}
	}
	r, err := fil.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, &ErrDecode{Name: name, Err: err}
	}
	decoded, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, &ErrDecode{Name: name, Err: err}
	}
	if name != Flate || params.Predictor == 0 || params.Predictor == 1 {
		return decoded, nil
	}
	out, err := undoPredictor(decoded, params.normalized())
	if err != nil {
		return nil, &ErrDecode{Name: name, Err: err}
	}
	return out, nil
}

// Encode applies one filter to raw, producing the bytes to store in a
// stream's body. It never emits a predictor: newly written streams are
// always encoded with Predictor absent, so the corresponding
// /DecodeParms entry is dropped by the caller rather than carried
// forward. This keeps the revision writer from having to re-derive
// Colors/BitsPerComponent/Columns for arbitrary content it did not
// produce itself.
func Encode(name string, raw []byte) ([]byte, error) {
	if !Supported(name) {
		return nil, &ErrUnsupported{Name: name}
	}
	fil, err := filter.NewFilter(name, nil)
	if err != nil {
		return nil, &ErrDecode{Name: name, Err: err}
	}
	r, err := fil.Encode(bytes.NewReader(raw))
	if err != nil {
		return nil, &ErrDecode{Name: name, Err: err}
	}
	encoded, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, &ErrDecode{Name: name, Err: err}
	}
	return encoded, nil
}
