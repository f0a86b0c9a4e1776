package pdfdoc

import (
	"github.com/arnaudgrv/pdfobj/object"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// Pages returns the page objects in document order (leaves of the
// /Pages tree), each paired with the Ref that addresses it.
func (d *Doc) Pages() ([]object.Ref, error) {
	root, err := d.Root()
	if err != nil {
		return nil, err
	}
	pagesRef, ok := root.GetRef("Pages")
	if !ok {
		return nil, pdferr.NewMutationError("/Root has no /Pages")
	}
	var out []object.Ref
	if err := d.flattenPages(pagesRef, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Doc) flattenPages(ref object.Ref, out *[]object.Ref) error {
	v, err := d.Get(ref)
	if err != nil {
		return err
	}
	node, ok := v.(object.Dict)
	if !ok {
		return pdferr.NewMutationError("page tree node is not a dictionary")
	}
	typ, _ := node.GetName("Type")
	if string(typ) == "Pages" {
		kids, _ := node.GetArray("Kids")
		for _, k := range kids {
			kidRef, ok := k.(object.Ref)
			if !ok {
				continue
			}
			if err := d.flattenPages(kidRef, out); err != nil {
				return err
			}
		}
		return nil
	}
	*out = append(*out, ref)
	return nil
}

// Rotate adds degrees (normalized mod 360) to /Rotate on every page
// index in pages, staging an updated page dict for each. degrees must
// be a multiple of 90.
func (d *Doc) Rotate(degrees int, pages []int) (*Doc, error) {
	if degrees%90 != 0 {
		return nil, pdferr.NewMutationError("rotate degrees must be a multiple of 90")
	}
	all, err := d.Pages()
	if err != nil {
		return nil, err
	}
	nd := d.clone()
	for _, idx := range pages {
		if idx < 0 || idx >= len(all) {
			return nil, pdferr.NewMutationError("page index out of range")
		}
		ref := all[idx]
		v, err := nd.Get(ref)
		if err != nil {
			return nil, err
		}
		page, ok := v.(object.Dict)
		if !ok {
			return nil, pdferr.NewMutationError("page is not a dictionary")
		}
		old, _ := page.GetInt("Rotate")
		newRotate := (int(old) + degrees) % 360
		if newRotate < 0 {
			newRotate += 360
		}
		page.Set("Rotate", object.Int(newRotate))
		nd.staged[ref.Num] = page
	}
	return nd, nil
}

// KeepPages returns a Doc whose page tree retains only the listed page
// indices (original relative order preserved, since this is a subset
// selection, not a reorder). Every intermediate /Pages container on the
// path from a dropped page up to the root has its /Kids/Count patched,
// not just the root, and any object reachable only from a dropped page
// (content stream, resources, annotation, ...) is deleted along with
// it: compute the dependency set of the dropped pages and of the kept
// pages first, walk /Parent patching ancestors, then delete whatever
// is in the dropped set but not reachable from a kept page.
func (d *Doc) KeepPages(keep []int) (*Doc, error) {
	all, err := d.Pages()
	if err != nil {
		return nil, err
	}
	keepSet := make(map[int]bool, len(keep))
	for _, i := range keep {
		if i < 0 || i >= len(all) {
			return nil, pdferr.NewMutationError("page index out of range")
		}
		keepSet[i] = true
	}

	var dropRefs, keepRefs []object.Ref
	for i, ref := range all {
		if keepSet[i] {
			keepRefs = append(keepRefs, ref)
		} else {
			dropRefs = append(dropRefs, ref)
		}
	}

	dropDep := map[object.Ref]bool{}
	for _, ref := range dropRefs {
		d.dependencies(ref, map[uint32]bool{}, dropDep)
	}
	keepDep := map[object.Ref]bool{}
	for _, ref := range keepRefs {
		d.dependencies(ref, map[uint32]bool{}, keepDep)
	}

	nd := d.clone()
	for _, ref := range dropRefs {
		if err := nd.unlinkFromParent(ref); err != nil {
			return nil, err
		}
	}
	for ref := range dropDep {
		if keepDep[ref] {
			continue
		}
		nd.staged[ref.Num] = nil // orphan, unreferenced by any kept page
	}
	return nd, nil
}

// unlinkFromParent removes ref from its immediate /Pages parent's
// /Kids array and decrements that parent's /Count, then walks every
// further /Parent ancestor decrementing /Count there too, staging each
// patched node.
func (d *Doc) unlinkFromParent(ref object.Ref) error {
	v, err := d.Get(ref)
	if err != nil {
		return err
	}
	node, ok := v.(object.Dict)
	if !ok {
		return pdferr.NewMutationError("page is not a dictionary")
	}
	parentRef, ok := node.GetRef("Parent")
	if !ok {
		return pdferr.NewMutationError("page has no /Parent")
	}

	parentVal, err := d.Get(parentRef)
	if err != nil {
		return err
	}
	parent, ok := parentVal.(object.Dict)
	if !ok {
		return pdferr.NewMutationError("/Parent is not a dictionary")
	}
	kids, _ := parent.GetArray("Kids")
	var newKids object.Array
	for _, k := range kids {
		if kr, ok := k.(object.Ref); ok && kr == ref {
			continue
		}
		newKids = append(newKids, k)
	}
	parent.Set("Kids", newKids)
	if count, ok := parent.GetInt("Count"); ok {
		parent.Set("Count", object.Int(count-1))
	}
	d.staged[parentRef.Num] = parent

	// climb the rest of the /Parent chain, adjusting /Count only: a
	// grandparent's /Kids never names a grandchild directly.
	ancestorRef, hasAncestor := parent.GetRef("Parent")
	for hasAncestor {
		ancestorVal, err := d.Get(ancestorRef)
		if err != nil {
			return err
		}
		ancestor, ok := ancestorVal.(object.Dict)
		if !ok {
			return pdferr.NewMutationError("/Parent is not a dictionary")
		}
		if count, ok := ancestor.GetInt("Count"); ok {
			ancestor.Set("Count", object.Int(count-1))
		}
		d.staged[ancestorRef.Num] = ancestor
		ancestorRef, hasAncestor = ancestor.GetRef("Parent")
	}
	return nil
}

// dependencies recursively collects every Ref reachable from ref's
// object into out, including ref itself. /Parent and /P (an
// annotation's or outline item's back-pointer to its owning page) are
// never followed, so the walk can't climb back up the tree and pull in
// the whole document.
func (d *Doc) dependencies(ref object.Ref, visited map[uint32]bool, out map[object.Ref]bool) {
	if visited[ref.Num] {
		return
	}
	visited[ref.Num] = true
	out[ref] = true
	v, err := d.Get(ref)
	if err != nil {
		return
	}
	d.walkDependencies(v, visited, out)
}

func (d *Doc) walkDependencies(v object.Object, visited map[uint32]bool, out map[object.Ref]bool) {
	switch o := v.(type) {
	case object.Ref:
		d.dependencies(o, visited, out)
	case object.Array:
		for _, e := range o {
			d.walkDependencies(e, visited, out)
		}
	case object.Dict:
		for _, k := range o.Keys() {
			if k == "Parent" || k == "P" {
				continue
			}
			val, _ := o.Get(k)
			d.walkDependencies(val, visited, out)
		}
	case *object.Stream:
		for _, k := range o.Entries.Keys() {
			if k == "Parent" || k == "P" {
				continue
			}
			val, _ := o.Entries.Get(k)
			d.walkDependencies(val, visited, out)
		}
	}
}

// RemovePages is KeepPages's complement: drop the listed indices,
// keep everything else.
func (d *Doc) RemovePages(remove []int) (*Doc, error) {
	all, err := d.Pages()
	if err != nil {
		return nil, err
	}
	removeSet := make(map[int]bool, len(remove))
	for _, i := range remove {
		removeSet[i] = true
	}
	var keep []int
	for i := range all {
		if !removeSet[i] {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, pdferr.NewMutationError("cannot remove every page")
	}
	return d.KeepPages(keep)
}
