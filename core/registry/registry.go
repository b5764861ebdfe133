// Package registry tracks the response staff roster and owns every responder
// state transition. A responder is available, assigned to exactly one
// incident, or unavailable for the session.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/eventrescue/core/model"
)

var (
	// ErrDuplicateID is returned when registering an id twice.
	ErrDuplicateID = errors.New("registry: duplicate responder id")
	// ErrNotFound is returned for unknown responder ids.
	ErrNotFound = errors.New("registry: responder not found")
	// ErrAlreadyAssigned is returned when assigning a responder that is not
	// available. Exactly one of N racing assigns can win.
	ErrAlreadyAssigned = errors.New("registry: responder not available")
	// ErrUnavailable is returned when releasing a responder that was taken
	// out of service.
	ErrUnavailable = errors.New("registry: responder unavailable")
)

// Registry is the in-memory responder store. All transitions are serialized
// under one mutex so that at most one assignment transition per responder
// commits at a time; reads observe a consistent snapshot.
type Registry struct {
	mu         sync.RWMutex
	responders map[string]*model.Responder
	order      []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{responders: make(map[string]*model.Responder)}
}

// Register adds a new responder in the available state.
func (r *Registry) Register(resp model.Responder) error {
	if err := resp.Validate(); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.responders[resp.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, resp.ID)
	}
	resp.State = model.StateAvailable
	resp.IncidentID = ""
	if resp.RegisteredAt.IsZero() {
		resp.RegisteredAt = time.Now()
	}
	r.responders[resp.ID] = &resp
	r.order = append(r.order, resp.ID)
	return nil
}

// Assign transitions the responder to assigned and binds it to the incident.
// It fails unless the responder is currently available.
func (r *Registry) Assign(responderID, incidentID string) (model.Responder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responders[responderID]
	if !ok {
		return model.Responder{}, fmt.Errorf("%w: %s", ErrNotFound, responderID)
	}
	if resp.State != model.StateAvailable {
		return model.Responder{}, fmt.Errorf("%w: %s is %s", ErrAlreadyAssigned, responderID, resp.State)
	}
	resp.State = model.StateAssigned
	resp.IncidentID = incidentID
	return *resp, nil
}

// Release clears the incident binding and returns the responder to the
// available state. Releasing an already available responder is a no-op.
func (r *Registry) Release(responderID string) (model.Responder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responders[responderID]
	if !ok {
		return model.Responder{}, fmt.Errorf("%w: %s", ErrNotFound, responderID)
	}
	switch resp.State {
	case model.StateAvailable:
		return *resp, nil
	case model.StateUnavailable:
		return model.Responder{}, fmt.Errorf("%w: %s", ErrUnavailable, responderID)
	}
	resp.State = model.StateAvailable
	resp.IncidentID = ""
	return *resp, nil
}

// SetUnavailable takes the responder out of service for the session. The
// transition is operator driven and accepted from either live state.
func (r *Registry) SetUnavailable(responderID string) (model.Responder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responders[responderID]
	if !ok {
		return model.Responder{}, fmt.Errorf("%w: %s", ErrNotFound, responderID)
	}
	resp.State = model.StateUnavailable
	resp.IncidentID = ""
	return *resp, nil
}

// Get returns a copy of the responder record.
func (r *Registry) Get(responderID string) (model.Responder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resp, ok := r.responders[responderID]
	if !ok {
		return model.Responder{}, false
	}
	return *resp, true
}

// List returns all responders in registration order.
func (r *Registry) List() []model.Responder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Responder, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.responders[id])
	}
	return out
}

// QueryByType returns the available responders of the given type, ordered by
// ascending distance to near when both coordinates are known, else by
// registration order. Responders without a location sort after those with one.
func (r *Registry) QueryByType(t model.ResponderType, near *model.GeoPoint) []model.Responder {
	r.mu.RLock()
	out := make([]model.Responder, 0)
	for _, id := range r.order {
		resp := r.responders[id]
		if resp.Type == t && resp.State == model.StateAvailable {
			out = append(out, *resp)
		}
	}
	r.mu.RUnlock()

	if near == nil {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, iKnown := distanceTo(out[i], *near)
		dj, jKnown := distanceTo(out[j], *near)
		if iKnown != jKnown {
			return iKnown
		}
		return iKnown && di < dj
	})
	return out
}

// AssignedTo returns the responders currently bound to the incident.
func (r *Registry) AssignedTo(incidentID string) []model.Responder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Responder, 0)
	for _, id := range r.order {
		resp := r.responders[id]
		if resp.State == model.StateAssigned && resp.IncidentID == incidentID {
			out = append(out, *resp)
		}
	}
	return out
}

func distanceTo(resp model.Responder, near model.GeoPoint) (float64, bool) {
	if resp.Location == nil {
		return 0, false
	}
	return resp.Location.DistanceTo(near), true
}
