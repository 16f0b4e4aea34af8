package mets

import (
	"encoding/xml"
)

// Namespaces declared on the root element. Element names are written with
// literal prefixes, so every prefix used in this package must appear here.
var namespaces = [][2]string{
	{"mets", "http://www.loc.gov/METS/"},
	{"xlink", "http://www.w3.org/1999/xlink"},
	{"xsi", "http://www.w3.org/2001/XMLSchema-instance"},
	{"fi", "http://digitalpreservation.fi/schemas/mets/fi-extensions"},
	{"premis", "info:lc/xmlns/premis-v2"},
	{"mix", "http://www.loc.gov/mix/v20"},
	{"audiomd", "http://www.loc.gov/audioMD/"},
	{"videomd", "http://www.loc.gov/videoMD/"},
	{"addml", "http://www.arkivverket.no/standarder/addml"},
}

// xmlWriter emits tokens and remembers the first error, so callers can
// write a run of elements and check once at the end.
type xmlWriter struct {
	e   *xml.Encoder
	err error
}

func newXMLWriter(e *xml.Encoder) *xmlWriter {
	return &xmlWriter{e: e}
}

// attrs turns name, value pairs into attributes, skipping empty values.
func attrs(pairs ...string) []xml.Attr {
	var result []xml.Attr
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		result = append(result, xml.Attr{Name: xml.Name{Local: pairs[i]}, Value: pairs[i+1]})
	}
	return result
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err != nil {
		return
	}
	w.err = w.e.EncodeToken(t)
}

func (w *xmlWriter) start(name string, pairs ...string) {
	w.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs(pairs...)})
}

func (w *xmlWriter) end(name string) {
	w.token(xml.EndElement{Name: xml.Name{Local: name}})
}

// empty writes an element with attributes and no content.
func (w *xmlWriter) empty(name string, pairs ...string) {
	w.start(name, pairs...)
	w.end(name)
}

// text writes an element holding character data. It is written even when
// value is empty.
func (w *xmlWriter) text(name, value string, pairs ...string) {
	w.start(name, pairs...)
	if value != "" {
		w.token(xml.CharData(value))
	}
	w.end(name)
}

// optional is text, but nothing is written when value is empty.
func (w *xmlWriter) optional(name, value string) {
	if value == "" {
		return
	}
	w.text(name, value)
}

// wrap runs fn between the start and end tags of name.
func (w *xmlWriter) wrap(name string, fn func(), pairs ...string) {
	w.start(name, pairs...)
	fn()
	w.end(name)
}

// metadata writes the xmlData content of md.
func (w *xmlWriter) metadata(md Metadata) {
	if w.err != nil {
		return
	}
	w.err = md.MarshalXMLData(w.e)
}
