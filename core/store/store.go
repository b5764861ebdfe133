// Package store defines the persistence ports of the engine. Implementations
// must list in insertion order; the engine itself is storage agnostic.
package store

import (
	"context"

	"github.com/kilianp07/eventrescue/core/model"
)

// IncidentStore persists incidents keyed by their opaque id.
type IncidentStore interface {
	Get(ctx context.Context, id string) (model.Incident, bool, error)
	List(ctx context.Context) ([]model.Incident, error)
	Upsert(ctx context.Context, inc model.Incident) error
	Delete(ctx context.Context, id string) error
}

// DispatchLog is the append-only audit trail of dispatch attempts, ordered
// per incident.
type DispatchLog interface {
	Append(ctx context.Context, rec model.DispatchRecord) error
	ListByIncident(ctx context.Context, incidentID string) ([]model.DispatchRecord, error)
}
