package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func runText(args []string) error {
	fs := pflag.NewFlagSet("text", pflag.ContinueOnError)
	fs.BoolVar(&inMemory, "in-memory", false, "load the whole file into memory instead of seeking on demand")
	page := fs.Int("page", -1, "only dump this page index (default: all pages)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("text: usage: pdfobj text [--page N] FILE")
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
	for i := range pages {
		if *page >= 0 && i != *page {
			continue
		}
		content, err := doc.PageContent(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "--- page %d ---\n", i)
		os.Stdout.Write(content)
		fmt.Println()
	}
	return nil
}
