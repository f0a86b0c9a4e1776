// Package pdferr implements the error taxonomy shared by every layer
// of this module: ParseError, XrefError, FilterError, MutationError
// and IOError. Each carries the contextual offset or reason its layer
// knows and implements Unwrap, so callers classify failures through a
// wrapped chain with golang.org/x/exp/errors' As (cmd/pdfobj does
// this to pick the process exit code).
package pdferr

import (
	"golang.org/x/exp/errors/fmt"
)

// ParseError reports malformed syntax at a known byte offset: unbalanced
// delimiters, premature EOF, a malformed number/name/string, or an
// unrecognized region.
type ParseError struct {
	Offset int64
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func NewParseError(offset int64, reason string) *ParseError {
	return &ParseError{Offset: offset, Reason: reason}
}

func WrapParseError(offset int64, reason string, err error) *ParseError {
	return &ParseError{Offset: offset, Reason: reason, Err: err}
}

// XrefError reports an inconsistent cross-reference section: bad
// column widths, an out-of-range object number, a broken /Prev chain,
// or a missing trailer. Carries the xref section's start offset.
type XrefError struct {
	XrefStart int64
	Reason    string
	Err       error
}

func (e *XrefError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xref error at %d: %s: %v", e.XrefStart, e.Reason, e.Err)
	}
	return fmt.Sprintf("xref error at %d: %s", e.XrefStart, e.Reason)
}

func (e *XrefError) Unwrap() error { return e.Err }

func NewXrefError(xrefStart int64, reason string) *XrefError {
	return &XrefError{XrefStart: xrefStart, Reason: reason}
}

func WrapXrefError(xrefStart int64, reason string, err error) *XrefError {
	return &XrefError{XrefStart: xrefStart, Reason: reason, Err: err}
}

// FilterError reports an unsupported filter or a codec decode failure.
// It is non-fatal at parse time (the stream's decoded form becomes a
// sentinel, see object.Decoded). It surfaces as a hard error when an
// object-stream envelope fails to decode while resolving an embedded
// object, or when encoding a stream with a filter fails.
type FilterError struct {
	Filter string
	Err    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter error (%s): %v", e.Filter, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

func NewFilterError(filterName string, err error) *FilterError {
	return &FilterError{Filter: filterName, Err: err}
}

// MutationError reports an invalid mutation call: a reference to a
// nonexistent object, removing the last page, or writing to an
// occupied object slot.
type MutationError struct {
	Reason string
	Err    error
}

func (e *MutationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mutation error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("mutation error: %s", e.Reason)
}

func (e *MutationError) Unwrap() error { return e.Err }

func NewMutationError(reason string) *MutationError {
	return &MutationError{Reason: reason}
}

func WrapMutationError(reason string, err error) *MutationError {
	return &MutationError{Reason: reason, Err: err}
}

// IOError reports a byte-provider read past the end of the addressable
// range, or any other failure to obtain bytes from the backing store.
type IOError struct {
	Reason string
	Err    error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("io error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("io error: %s", e.Reason)
}

func (e *IOError) Unwrap() error { return e.Err }

func WrapIOError(reason string, err error) *IOError {
	return &IOError{Reason: reason, Err: err}
}
