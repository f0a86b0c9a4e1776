// Command pdfobj is the CLI dispatcher for the object engine: browse,
// disasm, overview, fonts, text, compress, and hexdump, each a small
// "open file, run one pass, print" subcommand with its own pflag
// flag set.
package main

import (
	"fmt"
	"os"

	"golang.org/x/exp/errors"

	"github.com/arnaudgrv/pdfobj/pdferr"
	_ "github.com/arnaudgrv/pdfobj/revwriter" // registers pdfdoc.RevisionWriter
)

type subcommand struct {
	name string
	desc string
	run  func(args []string) error
}

var subcommands = []subcommand{
	{"browse", "emit an HTML page listing", runBrowse},
	{"disasm", "emit a text disassembly of file regions and xref entries", runDisasm},
	{"overview", "print structure and metadata", runOverview},
	{"fonts", "tabulate fonts referenced by the document", runFonts},
	{"text", "dump each page's raw content stream", runText},
	{"compress", "squash, re-Flate, and rewrite as a single revision", runCompress},
	{"hexdump", "canonical hex+ASCII dump", runHexdump},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	name := os.Args[1]
	for _, sc := range subcommands {
		if sc.name == name {
			if err := sc.run(os.Args[2:]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitCode(err))
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "pdfobj: unknown subcommand %q\n\n", name)
	printUsage()
	os.Exit(1)
}

// exitCode maps the error taxonomy to a distinct process exit code, so
// a script can tell a malformed file (parse/xref) from an unreadable
// one (io) without scraping the message. Anything outside the taxonomy
// (flag errors, os.Open failures) exits 1.
func exitCode(err error) int {
	var (
		parseErr  *pdferr.ParseError
		xrefErr   *pdferr.XrefError
		filterErr *pdferr.FilterError
		mutErr    *pdferr.MutationError
		ioErr     *pdferr.IOError
	)
	switch {
	case errors.As(err, &parseErr):
		return 2
	case errors.As(err, &xrefErr):
		return 3
	case errors.As(err, &filterErr):
		return 4
	case errors.As(err, &mutErr):
		return 5
	case errors.As(err, &ioErr):
		return 6
	default:
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: pdfobj <subcommand> [flags] FILE")
	fmt.Fprintln(os.Stderr, "subcommands:")
	for _, sc := range subcommands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", sc.name, sc.desc)
	}
}
