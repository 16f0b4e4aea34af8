package mets

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"sort"

	"github.com/google/uuid"
)

// Version of the manifest writer. It is recorded in provenance agents.
const Version = "1.0.0"

// Placeholder values for fields whose value is not known or does not apply.
const (
	UNAV = "(:unav)"
	UNAP = "(:unap)"
)

// MetadataType is the broad category of a metadata item. It decides where
// the item is written in the METS document.
type MetadataType string

const (
	TechnicalMetadata         MetadataType = "technical"
	DigitalProvenanceMetadata MetadataType = "digital provenance"
	DescriptiveMetadata       MetadataType = "descriptive"
)

// Format identifies the schema of a metadata item, written as the MDTYPE,
// OTHERMDTYPE and MDTYPEVERSION attributes of its mdWrap.
type Format struct {
	Name    string
	Other   string
	Version string
}

// Formats of the metadata this package produces itself.
var (
	FormatPremisObject = Format{Name: "PREMIS:OBJECT", Version: "2.3"}
	FormatPremisEvent  = Format{Name: "PREMIS:EVENT", Version: "2.3"}
	FormatPremisAgent  = Format{Name: "PREMIS:AGENT", Version: "2.3"}
	FormatMix          = Format{Name: "NISOIMG", Version: "2.0"}
	FormatAudioMD      = Format{Name: "OTHER", Other: "AudioMD", Version: "2.0"}
	FormatVideoMD      = Format{Name: "OTHER", Other: "VideoMD", Version: "2.0"}
	FormatADDML        = Format{Name: "OTHER", Other: "ADDML", Version: "8.3"}
)

// Metadata is a single metadata entry attached to a Div, a DigitalObject or
// a Stream.
type Metadata interface {
	MetadataType() MetadataType
	MetadataFormat() Format
	IsDescriptive() bool

	// Key is a canonical digest of the content of the item. Items with
	// equal keys are interchangeable.
	Key() string

	// MarshalXMLData writes the content of the item as it appears inside
	// the mets:xmlData element.
	MarshalXMLData(e *xml.Encoder) error
}

// keyOf hashes the parts into a key. Each part is length prefixed so
// adjacent parts cannot run into each other.
func keyOf(kind string, parts ...string) string {
	h := sha1.New()
	var n [8]byte
	for _, p := range append([]string{kind}, parts...) {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// idNamespace seeds the name based UUIDs used as identifiers.
var idNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// identifierFor returns a stable UUID for the given name.
func identifierFor(name string) string {
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// ID returns the XML identifier used for the given item in a document.
func ID(md Metadata) string {
	return "_" + identifierFor(md.Key())
}

// A MetadataSet is an insertion ordered set of metadata items where items
// are identified by their Key. The zero value is an empty set.
type MetadataSet struct {
	order []string
	items map[string]Metadata
}

// NewMetadataSet returns a set holding the given items.
func NewMetadataSet(md ...Metadata) *MetadataSet {
	s := &MetadataSet{}
	s.Add(md...)
	return s
}

// Add inserts the items into the set. Items whose key is already present
// are ignored.
func (s *MetadataSet) Add(md ...Metadata) {
	if s.items == nil {
		s.items = make(map[string]Metadata)
	}
	for _, m := range md {
		k := m.Key()
		if _, ok := s.items[k]; ok {
			continue
		}
		s.items[k] = m
		s.order = append(s.order, k)
	}
}

// Remove deletes the item with the same key as md. It returns false if no
// such item was in the set.
func (s *MetadataSet) Remove(md Metadata) bool {
	k := md.Key()
	if _, ok := s.items[k]; !ok {
		return false
	}
	delete(s.items, k)
	for i, key := range s.order {
		if key == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns a set holding the same items in the same order.
func (s *MetadataSet) Clone() *MetadataSet {
	c := &MetadataSet{order: append([]string(nil), s.order...)}
	if s.items != nil {
		c.items = make(map[string]Metadata, len(s.items))
		for k, v := range s.items {
			c.items[k] = v
		}
	}
	return c
}

// Contains reports whether an item with the same key as md is in the set.
func (s *MetadataSet) Contains(md Metadata) bool {
	_, ok := s.items[md.Key()]
	return ok
}

// Len is the number of items in the set.
func (s *MetadataSet) Len() int {
	return len(s.order)
}

// Items returns the items in insertion order.
func (s *MetadataSet) Items() []Metadata {
	result := make([]Metadata, 0, len(s.order))
	for _, k := range s.order {
		result = append(result, s.items[k])
	}
	return result
}

// Sorted returns the items ordered by type, then format, then key. This is
// the order used when writing documents.
func (s *MetadataSet) Sorted() []Metadata {
	result := s.Items()
	sortMetadata(result)
	return result
}

var typeRank = map[MetadataType]int{
	DescriptiveMetadata:       0,
	TechnicalMetadata:         1,
	DigitalProvenanceMetadata: 2,
}

func sortMetadata(md []Metadata) {
	sort.SliceStable(md, func(i, j int) bool {
		a, b := md[i], md[j]
		if ra, rb := typeRank[a.MetadataType()], typeRank[b.MetadataType()]; ra != rb {
			return ra < rb
		}
		fa, fb := a.MetadataFormat(), b.MetadataFormat()
		if fa.Name != fb.Name {
			return fa.Name < fb.Name
		}
		if fa.Other != fb.Other {
			return fa.Other < fb.Other
		}
		return a.Key() < b.Key()
	})
}
