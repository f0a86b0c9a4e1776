package main

import (
	"fmt"

	"github.com/arnaudgrv/pdfobj/bytesource"
	"github.com/spf13/pflag"
)

// runHexdump prints raw bytes regardless of whether the file parses as
// a PDF, the way the original's hexdump utility does.
func runHexdump(args []string) error {
	fs := pflag.NewFlagSet("hexdump", pflag.ContinueOnError)
	start := fs.Int64("start", 0, "start offset")
	stop := fs.Int64("stop", -1, "stop offset (-1 means end of file)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("hexdump: usage: pdfobj hexdump [--start N] [--stop N] FILE")
	}

	f, err := openRaw(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	provider := bytesource.FromReadSeeker(f)
	stopOff := *stop
	if stopOff < 0 {
		size, err := provider.Size()
		if err != nil {
			return err
		}
		stopOff = size
	}
	out, err := bytesource.Hexdump(provider, *start, stopOff)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
