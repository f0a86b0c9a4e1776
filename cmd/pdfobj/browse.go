package main

import (
	"fmt"
	"html"
	"os"

	"github.com/spf13/pflag"
)

// runBrowse emits a minimal HTML page listing: one entry per page
// with its classified paper size. Spatial layout rendering is out of
// scope here.
func runBrowse(args []string) error {
	fs := pflag.NewFlagSet("browse", pflag.ContinueOnError)
	fs.BoolVar(&inMemory, "in-memory", false, "load the whole file into memory instead of seeking on demand")
	out := fs.StringP("output", "o", "", "write HTML to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("browse: usage: pdfobj browse [-o OUT] FILE")
	}

	doc, closeDoc, err := openDoc(fs.Arg(0))
	if err != nil {
		return err
	}
	defer closeDoc()

	pages, err := doc.Pages()
	if err != nil {
		return err
	}

	w := os.Stdout
	if *out != "" {
		of, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer of.Close()
		w = of
	}

	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%s</title></head><body>\n", html.EscapeString(fs.Arg(0)))
	fmt.Fprintf(w, "<h1>%s</h1>\n<p>%d page(s)</p>\n<ol>\n", html.EscapeString(fs.Arg(0)), len(pages))
	for i := range pages {
		paper, err := doc.PaperSize(i)
		if err != nil {
			fmt.Fprintf(w, "<li>page %d</li>\n", i)
			continue
		}
		fmt.Fprintf(w, "<li>page %d &mdash; %s (%.0f&times;%.0fpt)</li>\n", i, html.EscapeString(paper.Name), paper.WidthPts, paper.HeightPts)
	}
	fmt.Fprintln(w, "</ol>\n</body></html>")
	return nil
}
