// Package responders exposes responder registration and availability over HTTP.
package responders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/eventrescue/core/model"
	"github.com/kilianp07/eventrescue/core/registry"
)

// Handler serves the /api/responders routes.
type Handler struct {
	registry *registry.Registry
}

// NewHandler builds the responders handler.
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

// Register attaches the routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/responders", h.register)
	mux.HandleFunc("GET /api/responders", h.list)
	mux.HandleFunc("GET /api/responders/{id}", h.get)
	mux.HandleFunc("POST /api/responders/{id}/assign", h.assign)
	mux.HandleFunc("POST /api/responders/{id}/release", h.release)
	mux.HandleFunc("POST /api/responders/{id}/unavailable", h.unavailable)
}

type registerRequest struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Type     model.ResponderType `json:"type"`
	Location *model.GeoPoint     `json:"location,omitempty"`
}

type assignRequest struct {
	IncidentID string `json:"incident_id"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	resp := model.Responder{
		ID:       req.ID,
		Name:     req.Name,
		Type:     req.Type,
		Location: req.Location,
	}
	if err := h.registry.Register(resp); err != nil {
		if errors.Is(err, registry.ErrDuplicateID) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stored, _ := h.registry.Get(req.ID)
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if typ := r.URL.Query().Get("type"); typ != "" {
		t, err := model.ParseResponderType(typ)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, h.registry.QueryByType(t, nil))
		return
	}
	writeJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "responder not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IncidentID == "" {
		http.Error(w, "incident_id is required", http.StatusBadRequest)
		return
	}
	resp, err := h.registry.Assign(r.PathValue("id"), req.IncidentID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	resp, err := h.registry.Release(r.PathValue("id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) unavailable(w http.ResponseWriter, r *http.Request) {
	resp, err := h.registry.SetUnavailable(r.PathValue("id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, registry.ErrAlreadyAssigned), errors.Is(err, registry.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
