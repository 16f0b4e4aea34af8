package sip

import (
	"fmt"
	"strings"

	"github.com/ndlib/siptools/mets"
	"github.com/ndlib/siptools/scraper"
)

// Version of the package builder, recorded in provenance agents.
const Version = "1.0.0"

const roleExecutingProgram = "executing program"

// SIPToolsAgent is the agent for this package builder.
func SIPToolsAgent() *mets.Agent {
	return mets.NewSoftwareAgent("siptools", Version)
}

// METSBuilderAgent is the agent for the manifest writer.
func METSBuilderAgent() *mets.Agent {
	return mets.NewSoftwareAgent("siptools-mets", mets.Version)
}

// AnnotateStructuralMapCreation records on root that a structural map of
// the given type was created. The event, the manifest writer agent and any
// extra agents are all added to root.
func AnnotateStructuralMapCreation(run *Run, root *mets.Div, mapType string, extra ...*mets.Agent) *mets.Event {
	event := &mets.Event{
		EventType:     "creation",
		Datetime:      run.Timestamp(),
		Detail:        "Creation of structural metadata with the sip.BuildStructuralMap function",
		Outcome:       mets.OutcomeSuccess,
		OutcomeDetail: fmt.Sprintf("Created METS structural map with type '%s'", mapType),
	}
	agents := append([]*mets.Agent{METSBuilderAgent()}, extra...)
	for _, a := range agents {
		event.LinkAgent(a, roleExecutingProgram)
	}
	root.Metadata.Add(event)
	for _, a := range agents {
		root.Metadata.Add(a)
	}
	return event
}

// importProvenance returns the event recording that descriptive metadata
// was imported, and its agent.
func importProvenance() []mets.Metadata {
	agent := SIPToolsAgent()
	event := &mets.Event{
		EventType:     "metadata extraction",
		Detail:        "Descriptive metadata import from external source",
		Outcome:       mets.OutcomeSuccess,
		OutcomeDetail: "Descriptive metadata imported to mets dmdSec from external source",
	}
	event.LinkAgent(agent, roleExecutingProgram)
	return []mets.Metadata{event, agent}
}

// componentAgent describes one detector or scraper of a result.
func componentAgent(c scraper.Component, version string) *mets.Agent {
	a := mets.NewSoftwareAgent(c.Class, version)
	if len(c.Tools) > 0 {
		a.Note = "Used tools (name-version): " + strings.Join(c.Tools, ", ")
	}
	return a
}

// provenance returns the events of a technical metadata generation and
// every agent they link to. Component agents are made once per class.
func (g *Generator) provenance(opts *TechnicalOptions, result *scraper.Result) []mets.Metadata {
	tool := mets.NewSoftwareAgent(first(result.Tool, "file-scraper"), result.ToolVersion)
	var detectors, scrapers []*mets.Agent
	seen := make(map[string]bool)
	for _, c := range result.Info {
		if seen[c.Class] {
			continue
		}
		switch {
		case c.IsDetector():
			detectors = append(detectors, componentAgent(c, result.ToolVersion))
		case c.IsScraper():
			scrapers = append(scrapers, componentAgent(c, result.ToolVersion))
		default:
			continue
		}
		seen[c.Class] = true
	}

	var md []mets.Metadata
	event := func(typ, detail, outcome string, agents []*mets.Agent) {
		ev := &mets.Event{
			EventType:     typ,
			Datetime:      g.Run.Timestamp(),
			Detail:        detail,
			Outcome:       mets.OutcomeSuccess,
			OutcomeDetail: outcome,
		}
		ev.LinkAgent(tool, roleExecutingProgram)
		for _, a := range agents {
			ev.LinkAgent(a, roleExecutingProgram)
		}
		md = append(md, ev)
	}
	if opts.Checksum == "" {
		event("message digest calculation",
			"Checksum calculation for digital objects",
			"Checksum successfully calculated for digital objects.", nil)
	}
	if opts.FileFormat == "" {
		event("format identification",
			"MIME type and version identification",
			"File MIME type and format version successfully identified.", detectors)
	}
	event("metadata extraction",
		"Technical metadata extraction as PREMIS metadata from digital objects",
		"PREMIS metadata successfully created from extracted technical metadata.", scrapers)

	// agents of events that were not recorded are left out
	if opts.FileFormat != "" {
		detectors = nil
	}
	md = append(md, tool)
	for _, a := range append(detectors, scrapers...) {
		md = append(md, a)
	}
	return md
}
