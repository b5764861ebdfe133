package model

import (
	"fmt"
	"strings"
	"time"
)

// IncidentStatus tracks where an incident is in its lifecycle.
type IncidentStatus string

const (
	StatusActive     IncidentStatus = "active"
	StatusDispatched IncidentStatus = "dispatched"
	StatusResolved   IncidentStatus = "resolved"
)

// AgeBracket is the coarse age estimate reported by detectors.
type AgeBracket string

const (
	AgeUnknown AgeBracket = ""
	AgeChild   AgeBracket = "child"
	AgeAdult   AgeBracket = "adult"
	AgeElderly AgeBracket = "elderly"
)

// Evidence carries the detector findings attached to an incident: a set of
// string labels plus a per-label confidence in [0,1].
type Evidence struct {
	Labels           []string           `json:"labels"`
	LabelConfidences map[string]float64 `json:"label_confidences,omitempty"`
}

// LabelSet returns the evidence labels normalized to lower case.
func (e Evidence) LabelSet() map[string]bool {
	set := make(map[string]bool, len(e.Labels))
	for _, l := range e.Labels {
		set[strings.ToLower(l)] = true
	}
	return set
}

// NormalizedConfidences returns LabelConfidences keyed the same way LabelSet
// normalizes labels. When two keys collide after lower-casing, the higher
// confidence wins so the result stays deterministic.
func (e Evidence) NormalizedConfidences() map[string]float64 {
	out := make(map[string]float64, len(e.LabelConfidences))
	for k, v := range e.LabelConfidences {
		lk := strings.ToLower(k)
		if cur, ok := out[lk]; !ok || v > cur {
			out[lk] = v
		}
	}
	return out
}

// Confidence returns the confidence recorded for label, or def when absent.
// Lookup is case-insensitive, matching LabelSet.
func (e Evidence) Confidence(label string, def float64) float64 {
	if c, ok := e.NormalizedConfidences()[strings.ToLower(label)]; ok {
		return c
	}
	return def
}

// Metadata holds the free-form detector attributes of an incident. Known
// fields are typed; anything detector-specific lands in Extra.
type Metadata struct {
	Age             AgeBracket     `json:"age,omitempty"`
	AudioScream     bool           `json:"audio_scream,omitempty"`
	MotionIntensity float64        `json:"motion_intensity,omitempty"`
	PoseConfidence  float64        `json:"pose_confidence,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// Incident is one safety-relevant signal cluster reported at the event.
// Evidence and Metadata are immutable once the incident is scored; only
// Status changes afterwards, and Severity is set exactly once by the scorer.
type Incident struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Zone      string         `json:"zone"`
	Location  *GeoPoint      `json:"location,omitempty"`
	Evidence  Evidence       `json:"evidence"`
	Metadata  Metadata       `json:"metadata"`
	Severity  float64        `json:"severity"`
	Scored    bool           `json:"scored"`
	Status    IncidentStatus `json:"status"`
}

// Validate checks that the incident is well formed enough to be scored.
func (i Incident) Validate() error {
	if i.Zone == "" {
		return fmt.Errorf("zone is required")
	}
	for label, c := range i.Evidence.LabelConfidences {
		if c < 0 || c > 1 {
			return fmt.Errorf("confidence for %q out of range: %v", label, c)
		}
	}
	return nil
}

// Forecast is an optional crowd-surge prediction supplied with the decision
// context.
type Forecast struct {
	WillSurge  bool          `json:"will_surge"`
	In         time.Duration `json:"in"`
	Confidence float64       `json:"confidence"`
}

// NearbyResponder is a hint about a responder already close to the incident.
type NearbyResponder struct {
	Type     ResponderType `json:"type"`
	Distance float64       `json:"distance_m"`
	ETA      time.Duration `json:"eta"`
}

// Context carries the situational data for one policy decision. It is built
// fresh per call and never persisted as part of the incident.
type Context struct {
	TimeOfDay    string            `json:"time_of_day,omitempty"`
	CrowdDensity float64           `json:"crowd_density,omitempty"`
	Nearby       []NearbyResponder `json:"nearby,omitempty"`
	Forecast     *Forecast         `json:"forecast,omitempty"`
}
