package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

func runOverview(args []string) error {
	fs := pflag.NewFlagSet("overview", pflag.ContinueOnError)
	fs.BoolVar(&inMemory, "in-memory", false, "load the whole file into memory instead of seeking on demand")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("overview: usage: pdfobj overview FILE")
	}

	doc, closeDoc, err := openDoc(fs.Arg(0))
	if err != nil {
		return err
	}
	defer closeDoc()

	st, err := doc.Structure()
	if err != nil {
		return err
	}
	fmt.Printf("Version:    %s\n", st.Version)
	fmt.Printf("Pages:      %d\n", st.Pages)
	fmt.Printf("Revisions:  %d\n", st.Revisions)
	fmt.Printf("Encrypted:  %t\n", st.Encrypted)
	fmt.Printf("Hybrid:     %t\n", st.Hybrid)
	fmt.Printf("Linearized: %t\n", st.Linearized)

	md, err := doc.Metadata()
	if err != nil {
		return err
	}
	fmt.Println()
	printIfSet("Title", md.Title)
	printIfSet("Author", md.Author)
	printIfSet("Subject", md.Subject)
	printIfSet("Keywords", md.Keywords)
	printIfSet("Creator", md.Creator)
	printIfSet("Producer", md.Producer)
	printIfSet("CreationDate", md.CreationDate)
	printIfSet("ModDate", md.ModDate)

	if st.Pages > 0 {
		if paper, err := doc.PaperSize(0); err == nil {
			fmt.Println()
			fmt.Printf("Paper:      %s (%.0fx%.0fpt)\n", paper.Name, paper.WidthPts, paper.HeightPts)
		}
	}
	return nil
}

func printIfSet(label, value string) {
	if value != "" {
		fmt.Printf("%-12s%s\n", label+":", value)
	}
}
