package sip

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ndlib/siptools/mets"
)

// A File is a local file to be carried in a package. Its non descriptive
// metadata lives on the wrapped mets.DigitalObject. Descriptive metadata is
// kept on the File and placed on the file's division when a structural map
// is built.
type File struct {
	path   string
	object *mets.DigitalObject

	m           sync.Mutex // protects below
	descriptive mets.MetadataSet
	generated   bool
}

// NewFile returns a File for the local file at path, to be placed at
// sipPath inside the package. Symbolic links in path are resolved.
func NewFile(path, sipPath string) (*File, error) {
	notAFile := fmt.Errorf("Source filepath '%s' for the digital object is not a file.", path)
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, notAFile
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, notAFile
	}
	fi, err := os.Stat(resolved)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, notAFile
	}
	object, err := mets.NewDigitalObject(sipPath)
	if err != nil {
		return nil, err
	}
	return &File{path: resolved, object: object}, nil
}

// Path is the absolute local path of the file.
func (f *File) Path() string { return f.path }

// SIPPath is the path of the file inside the package.
func (f *File) SIPPath() string { return f.object.Path }

// DigitalObject returns the object placed in the structural map.
func (f *File) DigitalObject() *mets.DigitalObject { return f.object }

// Use returns the USE attribute of the file.
func (f *File) Use() string {
	f.m.Lock()
	defer f.m.Unlock()
	return f.object.Use
}

// Streams returns the embedded bitstreams found when technical metadata
// was generated.
func (f *File) Streams() []*mets.Stream {
	f.m.Lock()
	defer f.m.Unlock()
	return f.object.Streams
}

// Metadata returns the non descriptive metadata of the file.
func (f *File) Metadata() []mets.Metadata {
	f.m.Lock()
	defer f.m.Unlock()
	return f.object.Metadata.Items()
}

// DescriptiveMetadata returns the descriptive metadata of the file,
// together with the events recording their import.
func (f *File) DescriptiveMetadata() []mets.Metadata {
	f.m.Lock()
	defer f.m.Unlock()
	return f.descriptive.Items()
}

// Generated reports whether technical metadata has been generated.
func (f *File) Generated() bool {
	f.m.Lock()
	defer f.m.Unlock()
	return f.generated
}

// AddMetadata attaches metadata to the file. Imported descriptive records
// also get an event recording the import.
func (f *File) AddMetadata(md ...mets.Metadata) {
	f.m.Lock()
	defer f.m.Unlock()
	for _, m := range md {
		if !m.IsDescriptive() {
			f.object.Metadata.Add(m)
			continue
		}
		f.descriptive.Add(m)
		if _, ok := m.(*mets.ImportedMetadata); ok {
			f.descriptive.Add(importProvenance()...)
		}
	}
}
