package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

func runFonts(args []string) error {
	fs := pflag.NewFlagSet("fonts", pflag.ContinueOnError)
	fs.BoolVar(&inMemory, "in-memory", false, "load the whole file into memory instead of seeking on demand")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fonts: usage: pdfobj fonts FILE")
	}

	doc, closeDoc, err := openDoc(fs.Arg(0))
	if err != nil {
		return err
	}
	defer closeDoc()

	fonts, err := doc.Fonts()
	if err != nil {
		return err
	}
	if len(fonts) == 0 {
		fmt.Println("(no fonts found)")
		return nil
	}
	for _, fi := range fonts {
		fmt.Printf("page %-4d %-6s %-16s %s\n", fi.Page, fi.Name, fi.Subtype, fi.BaseFont)
	}
	return nil
}
