// Package incidents exposes incident intake and dispatch over HTTP.
package incidents

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/eventrescue/core/dispatch"
	"github.com/kilianp07/eventrescue/core/forecast"
	"github.com/kilianp07/eventrescue/core/model"
	"github.com/kilianp07/eventrescue/core/store"
)

var timeNow = time.Now

// Handler serves the /api/incidents routes.
type Handler struct {
	coord     *dispatch.Coordinator
	incidents store.IncidentStore
	log       store.DispatchLog
	forecasts *forecast.Tracker
}

// NewHandler builds the incidents handler. The forecast tracker may be nil.
func NewHandler(coord *dispatch.Coordinator, incidents store.IncidentStore, dlog store.DispatchLog, fc *forecast.Tracker) *Handler {
	return &Handler{coord: coord, incidents: incidents, log: dlog, forecasts: fc}
}

// Register attaches the routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/incidents", h.submit)
	mux.HandleFunc("GET /api/incidents", h.list)
	mux.HandleFunc("GET /api/incidents/{id}", h.get)
	mux.HandleFunc("GET /api/incidents/{id}/dispatches", h.dispatches)
	mux.HandleFunc("POST /api/incidents/{id}/dispatch", h.dispatch)
	mux.HandleFunc("POST /api/incidents/{id}/resolve", h.resolve)
}

type submitRequest struct {
	Zone     string          `json:"zone"`
	Location *model.GeoPoint `json:"location,omitempty"`
	Evidence model.Evidence  `json:"evidence"`
	Metadata model.Metadata  `json:"metadata"`
}

type dispatchRequest struct {
	Context model.Context `json:"context"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	inc := model.Incident{
		Zone:     req.Zone,
		Location: req.Location,
		Evidence: req.Evidence,
		Metadata: req.Metadata,
	}
	created, err := h.coord.SubmitIncident(r.Context(), inc)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidIncident) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	incs, err := h.incidents.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, incs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	inc, ok, err := h.incidents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "incident not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *Handler) dispatches(w http.ResponseWriter, r *http.Request) {
	recs, err := h.log.ListByIncident(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req dispatchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
	}
	dctx := req.Context
	if h.forecasts != nil {
		if inc, ok, err := h.incidents.Get(r.Context(), id); err == nil && ok {
			if dctx.CrowdDensity > 0 {
				h.forecasts.Observe(inc.Zone, dctx.CrowdDensity, timeNow())
			}
			if dctx.Forecast == nil {
				dctx.Forecast = h.forecasts.Forecast(inc.Zone, timeNow())
			}
		}
	}
	recs, err := h.coord.Dispatch(r.Context(), id, dctx)
	if err != nil {
		if errors.Is(err, dispatch.ErrIncidentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.Resolve(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, dispatch.ErrIncidentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
