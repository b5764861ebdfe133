package incidents

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kilianp07/eventrescue/core/dispatch"
	"github.com/kilianp07/eventrescue/core/forecast"
	"github.com/kilianp07/eventrescue/core/model"
	"github.com/kilianp07/eventrescue/core/registry"
	"github.com/kilianp07/eventrescue/core/store/memstore"
	"github.com/kilianp07/eventrescue/infra/logger"
	"github.com/kilianp07/eventrescue/internal/eventbus"
)

func newMux(t *testing.T) (*http.ServeMux, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	incidents := memstore.NewIncidentStore()
	dlog := memstore.NewDispatchLog()
	bus := eventbus.New()
	t.Cleanup(bus.Close)
	coord, err := dispatch.NewCoordinator(reg, incidents, dlog, nil, nil, bus, nil, logger.NopLogger{}, dispatch.Config{})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	mux := http.NewServeMux()
	NewHandler(coord, incidents, dlog, nil).Register(mux)
	return mux, reg
}

func TestSubmitIncident(t *testing.T) {
	mux, _ := newMux(t)
	body := `{"zone":"A1","evidence":{"labels":["bleeding"],"label_confidences":{"bleeding":0.9}},"metadata":{}}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/incidents", strings.NewReader(body))
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var inc model.Incident
	if err := json.Unmarshal(rr.Body.Bytes(), &inc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inc.ID == "" || !inc.Scored || inc.Severity < 0.8 {
		t.Fatalf("unexpected incident %+v", inc)
	}
}

func TestSubmitIncidentRejectsMissingZone(t *testing.T) {
	mux, _ := newMux(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/incidents", strings.NewReader(`{"evidence":{}}`))
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestSubmitIncidentRejectsBadJSON(t *testing.T) {
	mux, _ := newMux(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/incidents", strings.NewReader(`{`))
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestGetIncident(t *testing.T) {
	mux, _ := newMux(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/incidents", strings.NewReader(`{"zone":"B2","evidence":{"labels":["fall"]},"metadata":{}}`))
	mux.ServeHTTP(rr, req)
	var created model.Incident
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/incidents/"+created.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/incidents/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing incident status %d", rr.Code)
	}
}

func TestListIncidents(t *testing.T) {
	mux, _ := newMux(t)
	for _, zone := range []string{"A1", "A2"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/incidents", strings.NewReader(`{"zone":"`+zone+`","evidence":{},"metadata":{"motion_intensity":0.5}}`))
		mux.ServeHTTP(rr, req)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/incidents", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var incs []model.Incident
	if err := json.Unmarshal(rr.Body.Bytes(), &incs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(incs) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(incs))
	}
}

func TestDispatchAndResolve(t *testing.T) {
	mux, reg := newMux(t)
	if err := reg.Register(model.Responder{ID: "m1", Name: "Medic One", Type: model.TypeMedic}); err != nil {
		t.Fatalf("register: %v", err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/incidents", strings.NewReader(`{"zone":"C3","evidence":{},"metadata":{"motion_intensity":0.6}}`))
	mux.ServeHTTP(rr, req)
	var inc model.Incident
	if err := json.Unmarshal(rr.Body.Bytes(), &inc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/incidents/"+inc.ID+"/dispatch", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("dispatch status %d: %s", rr.Code, rr.Body.String())
	}
	var recs []model.DispatchRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].ResponderID != "m1" {
		t.Fatalf("unexpected records %+v", recs)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/incidents/"+inc.ID+"/dispatches", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("dispatches status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/incidents/"+inc.ID+"/resolve", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("resolve status %d", rr.Code)
	}
	if resp, _ := reg.Get("m1"); resp.State != model.StateAvailable {
		t.Fatalf("responder not released: %s", resp.State)
	}
}

func TestDispatchUsesSurgeForecast(t *testing.T) {
	reg := registry.New()
	incidents := memstore.NewIncidentStore()
	dlog := memstore.NewDispatchLog()
	bus := eventbus.New()
	t.Cleanup(bus.Close)
	coord, err := dispatch.NewCoordinator(reg, incidents, dlog, nil, nil, bus, nil, logger.NopLogger{}, dispatch.Config{})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	tracker := forecast.NewTracker(forecast.Config{Window: 32, SurgeDensity: 4.0, HorizonMinutes: 20, MinSamples: 4})
	mux := http.NewServeMux()
	NewHandler(coord, incidents, dlog, tracker).Register(mux)

	base := time.Now()
	step := 0
	timeNow = func() time.Time { return base.Add(time.Duration(step) * time.Minute) }
	t.Cleanup(func() { timeNow = time.Now })

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/incidents", strings.NewReader(`{"zone":"Z1","evidence":{},"metadata":{"motion_intensity":0.6}}`))
	mux.ServeHTTP(rr, req)
	var inc model.Incident
	if err := json.Unmarshal(rr.Body.Bytes(), &inc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var recs []model.DispatchRecord
	for step = 0; step < 6; step++ {
		density := 1.0 + 0.6*float64(step)
		body := `{"context":{"crowd_density":` + strconv.FormatFloat(density, 'f', 2, 64) + `}}`
		rr = httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/incidents/"+inc.ID+"/dispatch", strings.NewReader(body)))
		if rr.Code != http.StatusOK {
			t.Fatalf("dispatch status %d: %s", rr.Code, rr.Body.String())
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}

	// the rising density trend projects past the surge threshold, so the
	// medium severity plan widens to crowd control
	found := false
	for _, rec := range recs {
		if rec.RequestedType == model.TypeCrowdControl {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected crowd_control in surge plan, got %+v", recs)
	}
}

func TestDispatchUnknownIncident(t *testing.T) {
	mux, _ := newMux(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/incidents/nope/dispatch", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d", rr.Code)
	}
}
