package mets

import (
	"fmt"
	"path"
	"strings"
)

// Div types.
const (
	DivDirectory = "directory"
	DivFile      = "file"
)

// StructMapPhysical is the type of structural maps built from a directory
// layout.
const StructMapPhysical = "PHYSICAL"

// A Stream is a bitstream embedded in a digital object.
type Stream struct {
	Metadata MetadataSet
}

// A DigitalObject is a file carried in the package. Path is where the file
// is placed in the package, relative to its root and using forward slashes.
type DigitalObject struct {
	Path     string
	Use      string
	Metadata MetadataSet
	Streams  []*Stream
}

// CleanPath normalizes a package path. It fails for paths that are empty,
// absolute or that climb out of the package root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	clean := path.Clean(p)
	if p == "" || path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("Digital object path '%s' must be relative to the SIP root.", p)
	}
	return clean, nil
}

// NewDigitalObject returns an object to be placed at the given package path.
func NewDigitalObject(sipPath string) (*DigitalObject, error) {
	clean, err := CleanPath(sipPath)
	if err != nil {
		return nil, err
	}
	return &DigitalObject{Path: clean}, nil
}

// AddStream attaches a new empty stream to the object and returns it.
func (o *DigitalObject) AddStream() *Stream {
	s := &Stream{}
	o.Streams = append(o.Streams, s)
	return s
}

// Copy returns a copy of o with its own metadata set. Streams are shared.
func (o *DigitalObject) Copy() *DigitalObject {
	c := *o
	c.Metadata = *o.Metadata.Clone()
	return &c
}

// ID is the identifier of the object's file element.
func (o *DigitalObject) ID() string {
	return "_" + identifierFor("file:"+o.Path)
}

// A Div is a node in a structural map.
type Div struct {
	Type           string
	Label          string
	Divs           []*Div
	DigitalObjects []*DigitalObject
	Metadata       MetadataSet
}

// NewDiv returns an empty division.
func NewDiv(typ, label string) *Div {
	return &Div{Type: typ, Label: label}
}

// AddDivs appends children to the division.
func (d *Div) AddDivs(divs ...*Div) {
	d.Divs = append(d.Divs, divs...)
}

// AddDigitalObjects attaches objects to the division.
func (d *Div) AddDigitalObjects(objects ...*DigitalObject) {
	d.DigitalObjects = append(d.DigitalObjects, objects...)
}

// Walk calls fn for d and then for every descendant, depth first.
func (d *Div) Walk(fn func(*Div)) {
	fn(d)
	for _, child := range d.Divs {
		child.Walk(fn)
	}
}

// AllDigitalObjects returns the objects attached anywhere below d,
// including d itself.
func (d *Div) AllDigitalObjects() []*DigitalObject {
	var result []*DigitalObject
	d.Walk(func(div *Div) {
		result = append(result, div.DigitalObjects...)
	})
	return result
}

// A StructuralMap is a tree of divisions with a single root.
type StructuralMap struct {
	Type  string
	Label string
	Root  *Div
}

// NewStructuralMap returns a map of the given type rooted at root.
func NewStructuralMap(typ string, root *Div) *StructuralMap {
	return &StructuralMap{Type: typ, Root: root}
}
