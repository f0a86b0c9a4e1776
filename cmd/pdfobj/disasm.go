package main

import (
	"fmt"
	"sort"

	"github.com/arnaudgrv/pdfobj/xref"
	"github.com/spf13/pflag"
)

// runDisasm prints the sequential top-level region map of the file,
// one line per object-number entry the newest revision's xref
// resolves, and a cross-check pass against the file's actual
// "N G obj" headers.
func runDisasm(args []string) error {
	fs := pflag.NewFlagSet("disasm", pflag.ContinueOnError)
	fs.BoolVar(&inMemory, "in-memory", false, "load the whole file into memory instead of seeking on demand")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("disasm: usage: pdfobj disasm FILE")
	}

	doc, closeDoc, err := openDoc(fs.Arg(0))
	if err != nil {
		return err
	}
	defer closeDoc()

	idx := doc.Index()
	fmt.Printf("%d revision(s), max object number %d\n\n", len(idx.Revisions), idx.MaxObjNum)

	regions, err := xref.Regions(doc.Provider())
	if err != nil {
		return err
	}
	fmt.Println("regions:")
	for _, r := range regions {
		if r.Kind == xref.RegionObject {
			fmt.Printf("  [%8d, %8d) %-10s %d %d\n", r.Start, r.End, r.Kind, r.Num, r.Gen)
			continue
		}
		fmt.Printf("  [%8d, %8d) %s\n", r.Start, r.End, r.Kind)
	}
	fmt.Println()

	newest := idx.Newest()
	nums := make([]uint32, 0, len(newest.Objects))
	for n := range newest.Objects {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, n := range nums {
		e := newest.Objects[n]
		switch e.Kind {
		case xref.KindInUse:
			fmt.Printf("%6d %5d  in-use    [%d, %d)  obj_ver=%d doc_ver=%d\n",
				e.Num, e.Gen, e.AbsPos, e.AbsNext, e.ObjVer, e.DocVer)
		case xref.KindEmbedded:
			fmt.Printf("%6d %5d  embedded  env=%d ordinal=%d  obj_ver=%d doc_ver=%d\n",
				e.Num, e.Gen, e.EnvNum, e.OPos, e.ObjVer, e.DocVer)
		case xref.KindFree:
			fmt.Printf("%6d %5d  free\n", e.Num, e.Gen)
		case xref.KindDeleted:
			fmt.Printf("%6d %5d  deleted   obj_ver=%d doc_ver=%d\n", e.Num, e.Gen, e.ObjVer, e.DocVer)
		}
	}

	diag, err := xref.Diagnose(doc.Provider(), idx)
	if err != nil {
		return err
	}
	if len(diag.Unreachable) > 0 || len(diag.Dangling) > 0 {
		fmt.Println("\norphans:")
		for _, n := range diag.Unreachable {
			fmt.Printf("  unreachable object %d (found in file, not indexed)\n", n)
		}
		for _, n := range diag.Dangling {
			fmt.Printf("  dangling entry %d (indexed, not found in file)\n", n)
		}
	}
	return nil
}
