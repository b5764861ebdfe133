package dispatch

import "github.com/kilianp07/eventrescue/core/model"

// anyAssigned reports whether at least one record in the set carries a
// committed assignment.
func anyAssigned(recs []model.DispatchRecord) bool {
	for _, rec := range recs {
		if rec.ResponderID != "" {
			return true
		}
	}
	return false
}
