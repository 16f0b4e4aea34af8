package sip

import (
	"github.com/ndlib/siptools/mets"
)

// holding is the metadata held by one child of a division. A division
// whose only child is a digital object is a single leaf together with that
// object, so both sets belong to the same holding.
type holding []*mets.MetadataSet

func (h holding) contains(md mets.Metadata) bool {
	for _, s := range h {
		if s.Contains(md) {
			return true
		}
	}
	return false
}

func (h holding) remove(md mets.Metadata) {
	for _, s := range h {
		s.Remove(md)
	}
}

// items returns every item in the holding once.
func (h holding) items() []mets.Metadata {
	if len(h) == 1 {
		return h[0].Items()
	}
	all := &mets.MetadataSet{}
	for _, s := range h {
		all.Add(s.Items()...)
	}
	return all.Items()
}

func holdings(d *mets.Div) []holding {
	var result []holding
	for _, child := range d.Divs {
		h := holding{&child.Metadata}
		if len(child.Divs) == 0 && len(child.DigitalObjects) == 1 {
			h = append(h, &child.DigitalObjects[0].Metadata)
		}
		result = append(result, h)
	}
	for _, o := range d.DigitalObjects {
		result = append(result, holding{&o.Metadata})
	}
	return result
}

// BundleMetadata moves metadata shared by every child of a division up to
// the division, starting from the leaves. Divisions with fewer than two
// children are left alone, and descriptive metadata is never moved.
func BundleMetadata(d *mets.Div) {
	for _, child := range d.Divs {
		BundleMetadata(child)
	}
	children := holdings(d)
	if len(children) < 2 {
		return
	}
	var shared []mets.Metadata
	for _, md := range children[0].items() {
		if md.IsDescriptive() {
			continue
		}
		everywhere := true
		for _, h := range children[1:] {
			if !h.contains(md) {
				everywhere = false
				break
			}
		}
		if everywhere {
			shared = append(shared, md)
		}
	}
	for _, md := range shared {
		d.Metadata.Add(md)
		for _, h := range children {
			h.remove(md)
		}
	}
}
