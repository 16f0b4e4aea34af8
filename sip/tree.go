package sip

import (
	"path"
	"sort"

	"github.com/ndlib/siptools/mets"
)

// parentDir returns the package path of the directory holding p. Top level
// entries have the empty string as parent.
func parentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// BuildStructuralMap builds a physical structural map mirroring the
// package paths of files. Every file gets its own division of type file
// below the divisions of its parent directories. The creation of the map
// is recorded on its root, and shared metadata is then bundled. The map
// holds copies of the files' digital objects, so the files themselves are
// left unchanged and can be placed again.
func BuildStructuralMap(run *Run, files []*File) (*mets.StructuralMap, error) {
	sm, _, err := buildStructuralMap(run, files)
	return sm, err
}

func buildStructuralMap(run *Run, files []*File) (*mets.StructuralMap, map[*mets.DigitalObject]*File, error) {
	if len(files) == 0 {
		return nil, nil, ErrEmptyInput
	}
	root := mets.NewDiv(mets.DivDirectory, "")
	dirs := map[string]*mets.Div{"": root}
	children := make(map[string][]string) // parent path -> child directory paths
	filePaths := make(map[string]bool)
	placed := make(map[*mets.DigitalObject]*File, len(files))

	for _, f := range files {
		p := f.SIPPath()
		filePaths[p] = true

		// parent chain, shallowest first
		var chain []string
		for d := parentDir(p); d != ""; d = parentDir(d) {
			chain = append(chain, d)
		}
		for i := len(chain) - 1; i >= 0; i-- {
			d := chain[i]
			if _, ok := dirs[d]; ok {
				continue
			}
			dirs[d] = mets.NewDiv(mets.DivDirectory, path.Base(d))
			parent := parentDir(d)
			children[parent] = append(children[parent], d)
		}

		wrapper := mets.NewDiv(mets.DivFile, path.Base(p))
		obj := f.DigitalObject().Copy()
		placed[obj] = f
		wrapper.AddDigitalObjects(obj)
		wrapper.Metadata.Add(f.DescriptiveMetadata()...)
		dirs[parentDir(p)].AddDivs(wrapper)
	}

	conflicts := make([]string, 0)
	for p := range filePaths {
		if _, ok := dirs[p]; ok {
			conflicts = append(conflicts, p)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, nil, &PathConflictError{Path: conflicts[0]}
	}

	for parent, list := range children {
		for _, child := range list {
			dirs[parent].AddDivs(dirs[child])
		}
	}
	root.Walk(func(d *mets.Div) {
		sort.SliceStable(d.Divs, func(i, j int) bool {
			a, b := d.Divs[i], d.Divs[j]
			if a.Label != b.Label {
				return a.Label < b.Label
			}
			return a.Type < b.Type
		})
	})

	AnnotateStructuralMapCreation(run, root, mets.StructMapPhysical, SIPToolsAgent())
	BundleMetadata(root)
	return mets.NewStructuralMap(mets.StructMapPhysical, root), placed, nil
}
