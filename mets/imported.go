package mets

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ImportedMetadata is a metadata record produced outside this package and
// carried into the document as is. Data holds the XML of the record.
type ImportedMetadata struct {
	Kind   MetadataType
	Format Format
	Data   []byte
}

// descriptiveFormats maps the namespace of a root element to the format of
// the descriptive record it starts.
var descriptiveFormats = map[string]Format{
	"http://ead3.archivists.org/schema/":          {Name: "OTHER", Other: "EAD3", Version: "1.1.1"},
	"urn:isbn:1-931666-22-9":                      {Name: "EAD", Version: "2002"},
	"http://purl.org/dc/elements/1.1/":            {Name: "DC", Version: "2008"},
	"http://www.openarchives.org/OAI/2.0/oai_dc/": {Name: "DC", Version: "2008"},
	"http://www.loc.gov/mods/v3":                  {Name: "MODS", Version: "3.7"},
	"http://www.loc.gov/MARC21/slim":              {Name: "MARC", Version: "marcxml=1.2;marc=marc21"},
	"http://www.lido-schema.org":                  {Name: "LIDO", Version: "1.0"},
	"ddi:codebook:2_5":                            {Name: "DDI", Version: "2.5.1"},
	"ddi:instance:3_2":                            {Name: "DDI", Version: "3.2"},
}

// NewImportedMetadata parses data as a descriptive XML record and detects
// its format from the namespace of the root element. A version attribute
// on the root element overrides the default version of the format.
func NewImportedMetadata(data []byte) (*ImportedMetadata, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("No root element in imported metadata")
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing imported metadata")
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		format, ok := descriptiveFormats[start.Name.Space]
		if !ok {
			return nil, fmt.Errorf("Unsupported descriptive metadata format '%s'", start.Name.Space)
		}
		for _, a := range start.Attr {
			if a.Name.Space == "" && a.Name.Local == "version" && a.Value != "" {
				format.Version = a.Value
			}
		}
		return &ImportedMetadata{Kind: DescriptiveMetadata, Format: format, Data: data}, nil
	}
}

// ImportMetadataFile reads a descriptive XML record from path.
func ImportMetadataFile(path string) (*ImportedMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md, err := NewImportedMetadata(data)
	if err != nil {
		return nil, errors.Wrapf(err, "importing %s", path)
	}
	return md, nil
}

func (m *ImportedMetadata) MetadataType() MetadataType { return m.Kind }
func (m *ImportedMetadata) MetadataFormat() Format     { return m.Format }
func (m *ImportedMetadata) IsDescriptive() bool        { return m.Kind == DescriptiveMetadata }

func (m *ImportedMetadata) Key() string {
	sum := sha1.Sum(m.Data)
	return keyOf("imported", string(m.Kind), m.Format.Name, m.Format.Other, m.Format.Version, hex.EncodeToString(sum[:]))
}

// MarshalXMLData copies the elements of the record into e. Namespace
// declarations are dropped since every element carries its namespace and
// the encoder declares it again.
func (m *ImportedMetadata) MarshalXMLData(e *xml.Encoder) error {
	d := xml.NewDecoder(bytes.NewReader(m.Data))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "copying imported metadata")
		}
		switch t := tok.(type) {
		case xml.ProcInst, xml.Directive, xml.Comment:
			continue
		case xml.StartElement:
			var kept []xml.Attr
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				kept = append(kept, a)
			}
			t.Attr = kept
			tok = t
		case xml.CharData:
			tok = t.Copy()
		}
		if err := e.EncodeToken(tok); err != nil {
			return err
		}
	}
}
