package model

import "time"

// DispatchOutcome tags the result of one dispatch attempt.
type DispatchOutcome string

const (
	// OutcomeDispatched means a responder was assigned and an ETA computed.
	OutcomeDispatched DispatchOutcome = "dispatched"
	// OutcomeNoResponder means no responder of the requested type was free.
	// This is a normal outcome under load, not an error.
	OutcomeNoResponder DispatchOutcome = "no_responder_available"
	// OutcomeETAUnavailable means a responder was assigned but the travel
	// time estimate failed or timed out. The assignment is kept.
	OutcomeETAUnavailable DispatchOutcome = "eta_unavailable"
)

// DispatchRecord is the immutable audit entry for one dispatch attempt of one
// responder type. Records are appended to an ordered log keyed by incident.
type DispatchRecord struct {
	ID            string          `json:"id"`
	IncidentID    string          `json:"incident_id"`
	RequestedType ResponderType   `json:"requested_type"`
	ResponderID   string          `json:"responder_id,omitempty"`
	ETA           time.Duration   `json:"eta,omitempty"`
	ETAKnown      bool            `json:"eta_known"`
	Outcome       DispatchOutcome `json:"outcome"`
	CreatedAt     time.Time       `json:"created_at"`
}
