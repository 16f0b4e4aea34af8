package mets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyEquality(t *testing.T) {
	a := &TechnicalFileObject{FileFormat: "text/plain", Checksum: "abc", ChecksumAlgorithm: MD5}
	b := &TechnicalFileObject{FileFormat: "text/plain", Checksum: "abc", ChecksumAlgorithm: MD5}
	c := &TechnicalFileObject{FileFormat: "text/plain", Checksum: "abd", ChecksumAlgorithm: MD5}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())

	// linked items take part in the key
	bs1 := &TechnicalBitstreamObject{FileFormat: "audio/aac"}
	bs2 := &TechnicalBitstreamObject{FileFormat: "audio/mpeg"}
	a.AddRelationship(bs1, "structural", "includes")
	b.AddRelationship(bs2, "structural", "includes")
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestKeyPartsDoNotRunTogether(t *testing.T) {
	a := &Agent{Name: "ab", Version: "c"}
	b := &Agent{Name: "a", Version: "bc"}
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestEventKeyIncludesAgents(t *testing.T) {
	agent := NewSoftwareAgent("tool", "1.0")
	other := NewSoftwareAgent("tool", "2.0")
	var table = []struct {
		name  string
		a, b  *Event
		equal bool
	}{
		{"same", &Event{EventType: "creation"}, &Event{EventType: "creation"}, true},
		{"type", &Event{EventType: "creation"}, &Event{EventType: "migration"}, false},
		{"datetime", &Event{EventType: "creation", Datetime: "2024"}, &Event{EventType: "creation"}, false},
	}
	for _, tab := range table {
		assert.Equal(t, tab.equal, tab.a.Key() == tab.b.Key(), tab.name)
	}

	e1 := &Event{EventType: "creation"}
	e1.LinkAgent(agent, "executing program")
	e2 := &Event{EventType: "creation"}
	e2.LinkAgent(agent, "executing program")
	e3 := &Event{EventType: "creation"}
	e3.LinkAgent(other, "executing program")
	assert.Equal(t, e1.Key(), e2.Key())
	assert.NotEqual(t, e1.Key(), e3.Key())
	require.Len(t, e1.LinkedAgents(), 1)
	assert.Equal(t, "executing program", e1.LinkedAgents()[0].Role)
}

func TestMetadataSet(t *testing.T) {
	var s MetadataSet
	a := NewSoftwareAgent("a", "1")
	b := NewSoftwareAgent("b", "1")
	s.Add(a, b, NewSoftwareAgent("a", "1"))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(NewSoftwareAgent("b", "1")))
	assert.Equal(t, []Metadata{a, b}, s.Items())

	assert.True(t, s.Remove(NewSoftwareAgent("a", "1")))
	assert.False(t, s.Remove(a))
	assert.Equal(t, []Metadata{b}, s.Items())

	// re-adding after a removal does not duplicate
	s.Add(a, a)
	assert.Equal(t, []Metadata{b, a}, s.Items())
}

func TestDigitalObjectCopy(t *testing.T) {
	a := NewSoftwareAgent("a", "1")
	b := NewSoftwareAgent("b", "1")
	o, err := NewDigitalObject("data/file.txt")
	require.NoError(t, err)
	o.Metadata.Add(a, b)
	o.AddStream()

	c := o.Copy()
	assert.Equal(t, o.ID(), c.ID())
	assert.Equal(t, o.Streams, c.Streams)
	c.Metadata.Remove(a)
	c.Metadata.Add(NewSoftwareAgent("c", "1"))
	assert.Equal(t, []Metadata{a, b}, o.Metadata.Items())
	assert.Equal(t, 2, c.Metadata.Len())

	var empty MetadataSet
	assert.Equal(t, 0, empty.Clone().Len())
}

func TestMetadataSetSorted(t *testing.T) {
	agent := NewSoftwareAgent("a", "1")
	event := &Event{EventType: "creation"}
	obj := &TechnicalFileObject{FileFormat: "text/plain"}
	img := &TechnicalImage{Width: "1"}
	dmd := &ImportedMetadata{Kind: DescriptiveMetadata, Format: Format{Name: "DC"}, Data: []byte("<x/>")}

	s := NewMetadataSet(agent, event, obj, img, dmd)
	sorted := s.Sorted()
	require.Len(t, sorted, 5)
	assert.Equal(t, dmd, sorted[0])
	assert.Equal(t, img, sorted[1]) // NISOIMG before PREMIS:OBJECT
	assert.Equal(t, obj, sorted[2])
	assert.Equal(t, agent, sorted[3])
	assert.Equal(t, event, sorted[4])
}

func TestParseChecksumAlgorithm(t *testing.T) {
	a, err := ParseChecksumAlgorithm("SHA-256")
	require.NoError(t, err)
	assert.Equal(t, SHA256, a)
	_, err = ParseChecksumAlgorithm("sha256")
	assert.EqualError(t, err, "Invalid checksum algorithm 'sha256'")
	_, err = ParseCharset("latin1")
	assert.EqualError(t, err, "Invalid charset 'latin1'")
}

func TestCleanPath(t *testing.T) {
	var table = []struct {
		input  string
		output string
		ok     bool
	}{
		{"a/b.txt", "a/b.txt", true},
		{"./a//b.txt", "a/b.txt", true},
		{`a\b.txt`, "a/b.txt", true},
		{"a/../b.txt", "b.txt", true},
		{"/abs.txt", "", false},
		{"../up.txt", "", false},
		{"", "", false},
		{".", "", false},
	}
	for _, tab := range table {
		got, err := CleanPath(tab.input)
		if tab.ok {
			assert.NoError(t, err, tab.input)
			assert.Equal(t, tab.output, got, tab.input)
		} else {
			assert.Error(t, err, tab.input)
		}
	}
}
