// Package events defines the domain events emitted on the event bus.
//
// Available event types:
//   - IncidentCreated: a new incident entered the system and was scored
//   - DispatchDecided: the coordinator finished a dispatch round
//   - ResponderAssigned: a responder was committed to an incident
//   - ResponderReleased: a responder returned to the available pool
//   - IncidentResolved: an operator closed the incident
package events

import "github.com/kilianp07/eventrescue/core/model"

// IncidentCreated is published when an incident is ingested and scored.
type IncidentCreated struct {
	Incident model.Incident
}

// DispatchDecided summarizes one full coordinator invocation.
type DispatchDecided struct {
	IncidentID string
	Records    []model.DispatchRecord
}

// ResponderAssigned is published when an assignment commits.
type ResponderAssigned struct {
	ResponderID string
	IncidentID  string
	Type        model.ResponderType
}

// ResponderReleased is published when an assignment is released.
type ResponderReleased struct {
	ResponderID string
	IncidentID  string
}

// IncidentResolved is published when an incident is closed.
type IncidentResolved struct {
	IncidentID string
}
