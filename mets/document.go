package mets

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profiles of the Finnish national digital preservation service.
const (
	ProfileCulturalHeritage = "http://digitalpreservation.fi/mets-profiles/cultural-heritage"
	ProfileResearchData     = "http://digitalpreservation.fi/mets-profiles/research-data"
)

// Creator types for the metsHdr agent.
const (
	CreatorOrganization = "ORGANIZATION"
	CreatorIndividual   = "INDIVIDUAL"
	CreatorOther        = "OTHER"
)

// catalogVersion is the version of the national METS catalog the written
// documents follow.
const catalogVersion = "1.7.7"

// ParseProfile accepts either a profile URL or its short name.
func ParseProfile(s string) (string, error) {
	switch s {
	case "cultural-heritage", ProfileCulturalHeritage:
		return ProfileCulturalHeritage, nil
	case "research-data", ProfileResearchData:
		return ProfileResearchData, nil
	}
	return "", fmt.Errorf("Unknown METS profile '%s'", s)
}

// A Document is a METS document under construction.
type Document struct {
	Profile      string
	ContractID   string
	CreatorName  string
	CreatorType  string
	ObjectID     string
	Label        string
	CreateDate   time.Time
	RecordStatus string

	StructuralMaps []*StructuralMap
}

// NewDocument returns a document with a random OBJID.
func NewDocument(profile, contractID, creatorName, creatorType string) *Document {
	return &Document{
		Profile:      profile,
		ContractID:   contractID,
		CreatorName:  creatorName,
		CreatorType:  creatorType,
		ObjectID:     uuid.NewString(),
		RecordStatus: "submission",
	}
}

// AddStructuralMap adds maps to the document.
func (doc *Document) AddStructuralMap(maps ...*StructuralMap) {
	doc.StructuralMaps = append(doc.StructuralMaps, maps...)
}

// DigitalObjects returns every object referenced by the structural maps,
// once each and sorted by path.
func (doc *Document) DigitalObjects() []*DigitalObject {
	seen := make(map[*DigitalObject]bool)
	var result []*DigitalObject
	for _, sm := range doc.StructuralMaps {
		for _, o := range sm.Root.AllDigitalObjects() {
			if seen[o] {
				continue
			}
			seen[o] = true
			result = append(result, o)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// metadata returns every metadata item in the document, once per key, in
// the stable serialization order.
func (doc *Document) metadata() []Metadata {
	all := &MetadataSet{}
	for _, sm := range doc.StructuralMaps {
		sm.Root.Walk(func(d *Div) {
			all.Add(d.Metadata.Items()...)
		})
	}
	for _, o := range doc.DigitalObjects() {
		all.Add(o.Metadata.Items()...)
		for _, s := range o.Streams {
			all.Add(s.Metadata.Items()...)
		}
	}
	return all.Sorted()
}

func (doc *Document) validate() error {
	if doc.Profile == "" {
		return fmt.Errorf("METS profile is not set")
	}
	if doc.ContractID == "" {
		return fmt.Errorf("Contract ID is not set")
	}
	if len(doc.StructuralMaps) == 0 {
		return fmt.Errorf("METS document has no structural maps")
	}
	for _, sm := range doc.StructuralMaps {
		if sm.Root == nil {
			return fmt.Errorf("Structural map has no root division")
		}
	}
	return nil
}

// idrefs joins the ids of md, split into descriptive and administrative
// references.
func idrefs(md []Metadata) (dmd, adm string) {
	var d, a []string
	for _, m := range md {
		if m.IsDescriptive() {
			d = append(d, ID(m))
		} else {
			a = append(a, ID(m))
		}
	}
	return strings.Join(d, " "), strings.Join(a, " ")
}

// fileURL turns a package path into the xlink:href of its FLocat.
func fileURL(p string) string {
	parts := strings.Split(p, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return "file:///" + strings.Join(parts, "/")
}

// Write serializes the document as METS XML.
func (doc *Document) Write(out io.Writer) error {
	if err := doc.validate(); err != nil {
		return err
	}
	if _, err := io.WriteString(out, xml.Header); err != nil {
		return err
	}
	e := xml.NewEncoder(out)
	e.Indent("", "  ")
	w := newXMLWriter(e)

	root := []string{
		"PROFILE", doc.Profile,
		"OBJID", doc.ObjectID,
		"LABEL", doc.Label,
		"fi:CONTRACTID", doc.ContractID,
		"fi:CATALOG", catalogVersion,
		"fi:SPECIFICATION", catalogVersion,
	}
	for _, ns := range namespaces {
		root = append(root, "xmlns:"+ns[0], ns[1])
	}
	w.start("mets:mets", root...)
	doc.writeHeader(w)

	md := doc.metadata()
	for _, m := range md {
		if m.IsDescriptive() {
			writeSection(w, "mets:dmdSec", m)
		}
	}
	w.wrap("mets:amdSec", func() {
		for _, m := range md {
			switch m.MetadataType() {
			case TechnicalMetadata:
				writeSection(w, "mets:techMD", m)
			case DigitalProvenanceMetadata:
				writeSection(w, "mets:digiprovMD", m)
			}
		}
	})
	doc.writeFileSec(w)
	for _, sm := range doc.StructuralMaps {
		w.wrap("mets:structMap", func() {
			writeDiv(w, sm.Root)
		}, "TYPE", sm.Type, "LABEL", sm.Label)
	}
	w.end("mets:mets")
	if w.err != nil {
		return w.err
	}
	return e.Flush()
}

func (doc *Document) writeHeader(w *xmlWriter) {
	var created string
	if !doc.CreateDate.IsZero() {
		created = doc.CreateDate.UTC().Format(time.RFC3339)
	}
	w.wrap("mets:metsHdr", func() {
		if doc.CreatorName == "" {
			return
		}
		creatorType := doc.CreatorType
		if creatorType == "" {
			creatorType = CreatorOrganization
		}
		var other string
		if creatorType == CreatorOther {
			other = "SOFTWARE"
		}
		w.wrap("mets:agent", func() {
			w.text("mets:name", doc.CreatorName)
		}, "ROLE", "CREATOR", "TYPE", creatorType, "OTHERTYPE", other)
	}, "CREATEDATE", created, "RECORDSTATUS", doc.RecordStatus)
}

func writeSection(w *xmlWriter, name string, m Metadata) {
	f := m.MetadataFormat()
	w.wrap(name, func() {
		w.wrap("mets:mdWrap", func() {
			w.wrap("mets:xmlData", func() {
				w.metadata(m)
			})
		}, "MDTYPE", f.Name, "OTHERMDTYPE", f.Other, "MDTYPEVERSION", f.Version)
	}, "ID", ID(m))
}

func (doc *Document) writeFileSec(w *xmlWriter) {
	objects := doc.DigitalObjects()
	if len(objects) == 0 {
		return
	}
	w.wrap("mets:fileSec", func() {
		w.wrap("mets:fileGrp", func() {
			for _, o := range objects {
				_, adm := idrefs(o.Metadata.Sorted())
				w.wrap("mets:file", func() {
					w.empty("mets:FLocat", "LOCTYPE", "URL", "xlink:href", fileURL(o.Path), "xlink:type", "simple")
					for _, s := range o.Streams {
						_, sadm := idrefs(s.Metadata.Sorted())
						w.empty("mets:stream", "ADMID", sadm)
					}
				}, "ID", o.ID(), "ADMID", adm, "USE", o.Use)
			}
		})
	})
}

func writeDiv(w *xmlWriter, d *Div) {
	dmd, adm := idrefs(d.Metadata.Sorted())
	w.wrap("mets:div", func() {
		for _, o := range d.DigitalObjects {
			w.empty("mets:fptr", "FILEID", o.ID())
		}
		for _, child := range d.Divs {
			writeDiv(w, child)
		}
	}, "TYPE", d.Type, "LABEL", d.Label, "DMDID", dmd, "ADMID", adm)
}
