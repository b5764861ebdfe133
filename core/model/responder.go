package model

import (
	"fmt"
	"time"
)

// ResponderType classifies the response capability of a responder.
type ResponderType int

const (
	TypeParamedic ResponderType = iota
	TypeMedic
	TypePediatrician
	TypeSecurity
	TypeCrowdControl
	TypeObserver
)

// String returns the wire representation of the responder type.
func (t ResponderType) String() string {
	switch t {
	case TypeParamedic:
		return "paramedic"
	case TypeMedic:
		return "medic"
	case TypePediatrician:
		return "pediatrician"
	case TypeSecurity:
		return "security"
	case TypeCrowdControl:
		return "crowd_control"
	case TypeObserver:
		return "observer"
	default:
		return "unknown"
	}
}

// Priority returns the dispatch priority of the type. Lower is more urgent.
func (t ResponderType) Priority() int {
	switch t {
	case TypeParamedic:
		return 1
	case TypeMedic:
		return 2
	case TypePediatrician:
		return 3
	case TypeSecurity:
		return 4
	case TypeCrowdControl:
		return 5
	case TypeObserver:
		return 99
	default:
		return 100
	}
}

// AllResponderTypes lists the closed set of valid responder types.
func AllResponderTypes() []ResponderType {
	return []ResponderType{
		TypeParamedic, TypeMedic, TypePediatrician,
		TypeSecurity, TypeCrowdControl, TypeObserver,
	}
}

// ParseResponderType maps a tag to its ResponderType. Unknown tags are
// rejected so they cannot enter the decision pipeline.
func ParseResponderType(tag string) (ResponderType, error) {
	for _, t := range AllResponderTypes() {
		if t.String() == tag {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown responder type %q", tag)
}

// MarshalText implements encoding.TextMarshaler.
func (t ResponderType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ResponderType) UnmarshalText(b []byte) error {
	parsed, err := ParseResponderType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Availability is the lifecycle state of a responder.
type Availability string

const (
	StateAvailable   Availability = "available"
	StateAssigned    Availability = "assigned"
	StateUnavailable Availability = "unavailable"
)

// Responder is one concrete member of the response staff. State transitions
// happen only through the registry; IncidentID is set while assigned.
type Responder struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Type         ResponderType `json:"type"`
	Location     *GeoPoint     `json:"location,omitempty"`
	State        Availability  `json:"state"`
	IncidentID   string        `json:"incident_id,omitempty"`
	RegisteredAt time.Time     `json:"registered_at"`
}

// Validate checks that the responder record is sound.
func (r Responder) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("responder id is required")
	}
	if r.Type.String() == "unknown" {
		return fmt.Errorf("responder type is invalid")
	}
	return nil
}
