package mets

import (
	"encoding/xml"
)

// Agent types.
const (
	AgentSoftware     = "software"
	AgentOrganization = "organization"
	AgentPerson       = "person"
)

// Event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// An Agent is a PREMIS agent: a tool, organization or person taking part
// in events.
type Agent struct {
	Name           string
	Version        string
	AgentType      string
	Note           string
	IdentifierType string
	Identifier     string
}

// NewSoftwareAgent returns an agent describing a software tool.
func NewSoftwareAgent(name, version string) *Agent {
	return &Agent{Name: name, Version: version, AgentType: AgentSoftware}
}

func (a *Agent) MetadataType() MetadataType { return DigitalProvenanceMetadata }
func (a *Agent) MetadataFormat() Format     { return FormatPremisAgent }
func (a *Agent) IsDescriptive() bool        { return false }

func (a *Agent) Key() string {
	return keyOf("premis:agent", a.Name, a.Version, a.AgentType, a.Note, a.IdentifierType, a.Identifier)
}

// ID returns the identifier type and value written for the agent.
func (a *Agent) ID() (string, string) {
	if a.Identifier != "" {
		return a.IdentifierType, a.Identifier
	}
	return "UUID", identifierFor(a.Key())
}

func (a *Agent) MarshalXMLData(e *xml.Encoder) error {
	w := newXMLWriter(e)
	idType, id := a.ID()
	w.wrap("premis:agent", func() {
		w.wrap("premis:agentIdentifier", func() {
			w.text("premis:agentIdentifierType", idType)
			w.text("premis:agentIdentifierValue", id)
		})
		name := a.Name
		if a.Version != "" {
			name += "-v" + a.Version
		}
		w.text("premis:agentName", name)
		w.text("premis:agentType", a.AgentType)
		w.optional("premis:agentNote", a.Note)
	})
	return w.err
}

// A LinkedAgent is an agent together with its role in an event.
type LinkedAgent struct {
	Agent *Agent
	Role  string
}

// An Event is a PREMIS event. An empty Datetime is written as (:unav).
type Event struct {
	EventType      string
	Datetime       string
	Detail         string
	Outcome        string
	OutcomeDetail  string
	IdentifierType string
	Identifier     string

	agents []LinkedAgent
}

// LinkAgent records that agent took part in the event in the given role.
// It must be called before the event is put in a MetadataSet.
func (ev *Event) LinkAgent(agent *Agent, role string) {
	ev.agents = append(ev.agents, LinkedAgent{Agent: agent, Role: role})
}

// LinkedAgents returns the agents linked to the event, in link order.
func (ev *Event) LinkedAgents() []LinkedAgent {
	return ev.agents
}

func (ev *Event) MetadataType() MetadataType { return DigitalProvenanceMetadata }
func (ev *Event) MetadataFormat() Format     { return FormatPremisEvent }
func (ev *Event) IsDescriptive() bool        { return false }

func (ev *Event) Key() string {
	parts := []string{ev.EventType, ev.Datetime, ev.Detail, ev.Outcome, ev.OutcomeDetail, ev.IdentifierType, ev.Identifier}
	for _, la := range ev.agents {
		parts = append(parts, la.Agent.Key(), la.Role)
	}
	return keyOf("premis:event", parts...)
}

// ID returns the identifier type and value written for the event.
func (ev *Event) ID() (string, string) {
	if ev.Identifier != "" {
		return ev.IdentifierType, ev.Identifier
	}
	return "UUID", identifierFor(ev.Key())
}

func (ev *Event) MarshalXMLData(e *xml.Encoder) error {
	w := newXMLWriter(e)
	idType, id := ev.ID()
	datetime := ev.Datetime
	if datetime == "" {
		datetime = UNAV
	}
	w.wrap("premis:event", func() {
		w.wrap("premis:eventIdentifier", func() {
			w.text("premis:eventIdentifierType", idType)
			w.text("premis:eventIdentifierValue", id)
		})
		w.text("premis:eventType", ev.EventType)
		w.text("premis:eventDateTime", datetime)
		w.optional("premis:eventDetail", ev.Detail)
		w.wrap("premis:eventOutcomeInformation", func() {
			w.text("premis:eventOutcome", ev.Outcome)
			if ev.OutcomeDetail != "" {
				w.wrap("premis:eventOutcomeDetail", func() {
					w.text("premis:eventOutcomeDetailNote", ev.OutcomeDetail)
				})
			}
		})
		for _, la := range ev.agents {
			agentType, agentID := la.Agent.ID()
			w.wrap("premis:linkingAgentIdentifier", func() {
				w.text("premis:linkingAgentIdentifierType", agentType)
				w.text("premis:linkingAgentIdentifierValue", agentID)
				w.text("premis:linkingAgentRole", la.Role)
			})
		}
	})
	return w.err
}
