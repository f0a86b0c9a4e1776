package main

import (
	"fmt"
	"os"

	"github.com/arnaudgrv/pdfobj/pdfdoc"
	"github.com/spf13/pflag"
)

// runCompress squashes the document to one revision, re-Flates its
// streams, and writes the result. Compress marks the squashed Doc for
// xref-stream emission; at Commit the revision writer packs eligible
// objects into a single /ObjStm and writes the cross-reference
// section as an xref stream rather than a classic table.
func runCompress(args []string) error {
	fs := pflag.NewFlagSet("compress", pflag.ContinueOnError)
	fs.BoolVar(&inMemory, "in-memory", false, "load the whole file into memory instead of seeking on demand")
	out := fs.StringP("output", "o", "", "output file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *out == "" {
		return fmt.Errorf("compress: usage: pdfobj compress -o OUT FILE")
	}

	doc, closeDoc, err := openDoc(fs.Arg(0))
	if err != nil {
		return err
	}
	defer closeDoc()

	compressed, err := pdfdoc.Compress(doc)
	if err != nil {
		return err
	}
	committed, err := compressed.Commit()
	if err != nil {
		return err
	}
	of, err := os.Create(*out)
	if err != nil {
		return err
	}
	n, err := committed.WriteTo(of)
	if err != nil {
		of.Close()
		return err
	}
	if err := of.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, n)
	return nil
}
