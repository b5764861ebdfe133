package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/kilianp07/eventrescue/core/model"
)

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	if err := r.Register(model.Responder{ID: "r1", Type: model.TypeMedic}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register(model.Responder{ID: "r1", Type: model.TypeMedic})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	r := New()
	if err := r.Register(model.Responder{Type: model.TypeMedic}); err == nil {
		t.Fatal("expected validation error for empty id")
	}
}

func TestAssignLifecycle(t *testing.T) {
	r := New()
	if err := r.Register(model.Responder{ID: "r1", Type: model.TypeParamedic}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := r.Assign("r1", "inc-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if resp.State != model.StateAssigned || resp.IncidentID != "inc-1" {
		t.Fatalf("unexpected record after assign: %+v", resp)
	}

	if _, err := r.Assign("r1", "inc-2"); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}

	resp, err = r.Release("r1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if resp.State != model.StateAvailable || resp.IncidentID != "" {
		t.Fatalf("unexpected record after release: %+v", resp)
	}

	// idempotent release
	if _, err := r.Release("r1"); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
}

func TestAssignUnknown(t *testing.T) {
	r := New()
	if _, err := r.Assign("ghost", "inc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Release("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetUnavailable(t *testing.T) {
	r := New()
	if err := r.Register(model.Responder{ID: "r1", Type: model.TypeSecurity}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Assign("r1", "inc-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	resp, err := r.SetUnavailable("r1")
	if err != nil {
		t.Fatalf("set unavailable: %v", err)
	}
	if resp.State != model.StateUnavailable || resp.IncidentID != "" {
		t.Fatalf("unexpected record: %+v", resp)
	}
	if _, err := r.Assign("r1", "inc-2"); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned for unavailable responder, got %v", err)
	}
	if _, err := r.Release("r1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAssignRace(t *testing.T) {
	r := New()
	if err := r.Register(model.Responder{ID: "r1", Type: model.TypeMedic}); err != nil {
		t.Fatalf("register: %v", err)
	}

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Assign("r1", "inc-1")
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyAssigned):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", n-1, wins, conflicts)
	}
}

func TestQueryByTypeDistanceOrder(t *testing.T) {
	r := New()
	reg := func(id string, lat float64) {
		t.Helper()
		if err := r.Register(model.Responder{
			ID:       id,
			Type:     model.TypeMedic,
			Location: &model.GeoPoint{Lat: lat, Lng: 0},
		}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	reg("far", 1.0)
	reg("close", 0.01)
	reg("mid", 0.5)
	if err := r.Register(model.Responder{ID: "nowhere", Type: model.TypeMedic}); err != nil {
		t.Fatalf("register: %v", err)
	}

	got := r.QueryByType(model.TypeMedic, &model.GeoPoint{Lat: 0, Lng: 0})
	ids := make([]string, len(got))
	for i, resp := range got {
		ids[i] = resp.ID
	}
	want := []string{"close", "mid", "far", "nowhere"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", ids, want)
		}
	}
}

func TestQueryByTypeRegistrationOrder(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b", "c"} {
		if err := r.Register(model.Responder{ID: id, Type: model.TypeObserver}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if _, err := r.Assign("b", "inc-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got := r.QueryByType(model.TypeObserver, nil)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestAssignedTo(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b"} {
		if err := r.Register(model.Responder{ID: id, Type: model.TypeSecurity}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if _, err := r.Assign("a", "inc-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got := r.AssignedTo("inc-1")
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected assigned set: %+v", got)
	}
}
