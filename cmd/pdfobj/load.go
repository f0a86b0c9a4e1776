package main

import (
	"os"

	"github.com/arnaudgrv/pdfobj/pdfdoc"
)

// inMemory is shared by every subcommand: load the whole file up-front
// instead of seeking on demand, the SINGLE mode of the byte provider.
var inMemory bool

// openDoc loads path per the shared provider-mode flag. The returned
// close function releases the underlying handle.
func openDoc(path string) (*pdfdoc.Doc, func() error, error) {
	return pdfdoc.LoadFile(path, pdfdoc.Options{InMemory: inMemory})
}

// openRaw opens path without attempting to parse it, for subcommands
// (hexdump) that must tolerate an unparseable or non-PDF file.
func openRaw(path string) (*os.File, error) {
	return os.Open(path)
}
