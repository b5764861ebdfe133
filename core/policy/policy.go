// Package policy maps a scored incident plus situational context to the
// ordered set of responder types to dispatch. Hard rules encode domain
// certainties and run before the severity thresholds; thresholds provide the
// general fallback and never remove a hard-rule tag.
package policy

import (
	"github.com/kilianp07/eventrescue/core/model"
	"github.com/kilianp07/eventrescue/core/scoring"
)

// Severity cut points for the threshold rules.
const (
	DistressHigh   = 0.8
	DistressMedium = 0.4
)

// Decide returns the ordered, deduplicated responder types for the incident.
// It is deterministic given identical score and evidence, and never returns
// an empty list: the observer type is the fallback.
func Decide(inc model.Incident, ctx model.Context) []model.ResponderType {
	severity := inc.Severity
	if !inc.Scored {
		severity = scoring.Score(inc.Metadata, inc.Evidence)
	}
	labels := inc.Evidence.LabelSet()

	var types []model.ResponderType

	// Hard rules, evidence-driven.
	if inc.Metadata.Age == model.AgeChild {
		types = append(types, model.TypePediatrician)
	}
	if labels["fire"] || labels["smoke"] {
		types = append(types, model.TypeSecurity, model.TypeCrowdControl)
		if labels["burn"] || labels["unconscious"] {
			types = append(types, model.TypeParamedic)
		}
	}
	if labels["bleeding"] || labels["unconscious"] || labels["collapse"] {
		types = append(types, model.TypeParamedic)
	}
	if labels["fall"] && inc.Evidence.Confidence("fall", 0) > 0.7 {
		types = append(types, model.TypeMedic)
	}

	// Threshold rules.
	switch {
	case severity >= DistressHigh:
		types = append(types, model.TypeParamedic, model.TypeSecurity)
	case severity >= DistressMedium:
		if ctx.Forecast != nil && ctx.Forecast.WillSurge {
			types = append(types, model.TypeCrowdControl, model.TypeMedic)
		} else {
			types = append(types, model.TypeMedic)
		}
	default:
		if inc.Metadata.Age == model.AgeChild {
			types = append(types, model.TypeMedic)
		} else {
			types = append(types, model.TypeObserver)
		}
	}

	final := dedupe(types)
	if len(final) == 0 {
		final = []model.ResponderType{model.TypeObserver}
	}
	return final
}

// dedupe keeps first-seen order and drops anything outside the closed
// responder-type set.
func dedupe(types []model.ResponderType) []model.ResponderType {
	seen := make(map[model.ResponderType]bool, len(types))
	out := make([]model.ResponderType, 0, len(types))
	for _, t := range types {
		if seen[t] || t.String() == "unknown" {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
