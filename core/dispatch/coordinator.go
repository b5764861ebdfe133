// Package dispatch implements the coordinator that turns a scored incident
// into committed responder assignments. The coordinator is the only component
// with side effects: it consumes the policy output, drives registry
// transitions, requests ETA estimates, notifies responders and records the
// audit trail.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/eventrescue/core/events"
	"github.com/kilianp07/eventrescue/core/logger"
	"github.com/kilianp07/eventrescue/core/metrics"
	"github.com/kilianp07/eventrescue/core/model"
	"github.com/kilianp07/eventrescue/core/notify"
	"github.com/kilianp07/eventrescue/core/policy"
	"github.com/kilianp07/eventrescue/core/registry"
	"github.com/kilianp07/eventrescue/core/scoring"
	"github.com/kilianp07/eventrescue/core/store"
	"github.com/kilianp07/eventrescue/internal/eventbus"
)

// ErrIncidentNotFound is returned for operations on unknown incident ids.
var ErrIncidentNotFound = errors.New("dispatch: incident not found")

// ErrInvalidIncident is returned when an ingested incident fails validation.
var ErrInvalidIncident = errors.New("dispatch: invalid incident")

// Coordinator resolves responder types to concrete responders and fans out
// the outcome. Registry transitions commit before any external call, so a
// slow ETA provider degrades to eta_unavailable, never to a rolled back or
// stuck assignment.
type Coordinator struct {
	registry   *registry.Registry
	incidents  store.IncidentStore
	log        store.DispatchLog
	estimator  Estimator
	notifier   notify.Notifier
	bus        eventbus.EventBus
	metrics    metrics.Sink
	logger     logger.Logger
	etaTimeout time.Duration
	autoAt     float64

	// serializes dispatch/resolve per incident id
	locks sync.Map
}

// NewCoordinator creates a coordinator. estimator may be nil, in which case
// every ETA is reported unknown. A zero ETA timeout defaults to five seconds.
func NewCoordinator(reg *registry.Registry, incidents store.IncidentStore, dlog store.DispatchLog, est Estimator, ntf notify.Notifier, bus eventbus.EventBus, sink metrics.Sink, log logger.Logger, cfg Config) (*Coordinator, error) {
	if reg == nil || incidents == nil || dlog == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCoordinator")
	}
	if ntf == nil {
		ntf = notify.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	etaTimeout := time.Duration(cfg.ETATimeoutSeconds) * time.Second
	if etaTimeout <= 0 {
		etaTimeout = 5 * time.Second
	}
	return &Coordinator{
		registry:   reg,
		incidents:  incidents,
		log:        dlog,
		estimator:  est,
		notifier:   ntf,
		bus:        bus,
		metrics:    sink,
		logger:     log,
		etaTimeout: etaTimeout,
		autoAt:     cfg.AutoDispatchThreshold,
	}, nil
}

// SubmitIncident validates and scores raw incident signals, persists the
// result and publishes its creation. When auto dispatch is enabled and the
// severity reaches the configured threshold, a dispatch round runs inline.
func (c *Coordinator) SubmitIncident(ctx context.Context, inc model.Incident) (model.Incident, error) {
	if err := inc.Validate(); err != nil {
		return model.Incident{}, fmt.Errorf("%w: %v", ErrInvalidIncident, err)
	}
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now()
	}
	inc.Severity = scoring.Score(inc.Metadata, inc.Evidence)
	inc.Scored = true
	inc.Status = model.StatusActive
	if err := c.incidents.Upsert(ctx, inc); err != nil {
		return model.Incident{}, fmt.Errorf("store incident: %w", err)
	}
	c.publish(events.IncidentCreated{Incident: inc})
	if sr, ok := c.metrics.(metrics.SeverityRecorder); ok {
		if err := sr.RecordSeverity(inc.Zone, inc.Severity); err != nil {
			c.logger.Errorf("severity metrics error: %v", err)
		}
	}
	c.logger.Infof("incident %s in zone %s scored %.3f", inc.ID, inc.Zone, inc.Severity)

	if c.autoAt > 0 && inc.Severity >= c.autoAt {
		if _, err := c.Dispatch(ctx, inc.ID, model.Context{}); err != nil {
			c.logger.Errorf("auto dispatch of %s failed: %v", inc.ID, err)
		}
	}
	return inc, nil
}

// Dispatch runs one coordinator invocation for the incident: the policy
// decides the responder types, each type is resolved against the registry and
// one DispatchRecord per type is appended to the audit log. Re-invoking
// dispatch for a type that already has an active assignment returns the
// existing record instead of committing a second one.
func (c *Coordinator) Dispatch(ctx context.Context, incidentID string, dctx model.Context) ([]model.DispatchRecord, error) {
	mu := c.incidentLock(incidentID)
	mu.Lock()
	defer mu.Unlock()

	inc, ok, err := c.incidents.Get(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("load incident: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIncidentNotFound, incidentID)
	}

	types := policy.Decide(inc, dctx)
	active, err := c.activeRecords(ctx, inc.ID)
	if err != nil {
		return nil, err
	}
	c.logger.Infof("dispatching incident %s to %d responder types", inc.ID, len(types))

	var (
		records   []model.DispatchRecord
		created   []model.DispatchRecord
		latencies []metrics.ETALatency
	)
	for _, t := range types {
		if rec, ok := active[t]; ok {
			records = append(records, rec)
			continue
		}
		rec, lat := c.dispatchType(ctx, inc, t)
		if err := c.log.Append(ctx, rec); err != nil {
			c.logger.Errorf("append dispatch record: %v", err)
		}
		records = append(records, rec)
		created = append(created, rec)
		if lat != nil {
			latencies = append(latencies, *lat)
		}
	}

	if anyAssigned(records) && inc.Status == model.StatusActive {
		inc.Status = model.StatusDispatched
		if err := c.incidents.Upsert(ctx, inc); err != nil {
			c.logger.Errorf("update incident status: %v", err)
		}
	}

	c.recordMetrics(created, latencies)
	c.publish(events.DispatchDecided{IncidentID: inc.ID, Records: records})
	return records, nil
}

// Resolve closes the incident and releases every responder still committed to
// it. The transition is accepted from an external operator action.
func (c *Coordinator) Resolve(ctx context.Context, incidentID string) error {
	mu := c.incidentLock(incidentID)
	mu.Lock()
	defer mu.Unlock()

	inc, ok, err := c.incidents.Get(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("load incident: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrIncidentNotFound, incidentID)
	}
	for _, resp := range c.registry.AssignedTo(inc.ID) {
		if _, err := c.registry.Release(resp.ID); err != nil {
			c.logger.Errorf("release %s: %v", resp.ID, err)
			continue
		}
		c.publish(events.ResponderReleased{ResponderID: resp.ID, IncidentID: inc.ID})
	}
	inc.Status = model.StatusResolved
	if err := c.incidents.Upsert(ctx, inc); err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	c.publish(events.IncidentResolved{IncidentID: inc.ID})
	c.logger.Infof("incident %s resolved", inc.ID)
	return nil
}

// dispatchType resolves one responder type: it commits the assignment first,
// then asks for an ETA without holding any registry lock.
func (c *Coordinator) dispatchType(ctx context.Context, inc model.Incident, t model.ResponderType) (model.DispatchRecord, *metrics.ETALatency) {
	rec := model.DispatchRecord{
		ID:            uuid.NewString(),
		IncidentID:    inc.ID,
		RequestedType: t,
		CreatedAt:     time.Now(),
	}

	var assigned model.Responder
	found := false
	for _, cand := range c.registry.QueryByType(t, inc.Location) {
		resp, err := c.registry.Assign(cand.ID, inc.ID)
		if err != nil {
			// lost a race for this responder, try the next one
			if errors.Is(err, registry.ErrAlreadyAssigned) {
				continue
			}
			c.logger.Errorf("assign %s: %v", cand.ID, err)
			continue
		}
		assigned = resp
		found = true
		break
	}
	if !found {
		rec.Outcome = model.OutcomeNoResponder
		c.logger.Warnf("no %s available for incident %s", t, inc.ID)
		return rec, nil
	}

	rec.ResponderID = assigned.ID
	c.publish(events.ResponderAssigned{ResponderID: assigned.ID, IncidentID: inc.ID, Type: t})

	eta, known, latency := c.estimateETA(ctx, inc, assigned)
	if known {
		rec.ETA = eta
		rec.ETAKnown = true
		rec.Outcome = model.OutcomeDispatched
	} else {
		rec.Outcome = model.OutcomeETAUnavailable
	}

	if err := c.notifier.Notify(ctx, assigned.ID, inc.ID, inc.Severity); err != nil {
		c.logger.Warnf("notify %s: %v", assigned.ID, err)
	}

	lat := &metrics.ETALatency{
		IncidentID:    inc.ID,
		ResponderType: t,
		Known:         known,
		Latency:       latency,
	}
	return rec, lat
}

// estimateETA asks the external capability for a travel time. The assignment
// has already committed; a failure here only degrades the record.
func (c *Coordinator) estimateETA(ctx context.Context, inc model.Incident, resp model.Responder) (time.Duration, bool, time.Duration) {
	if c.estimator == nil || inc.Location == nil || resp.Location == nil {
		return 0, false, 0
	}
	cctx, cancel := context.WithTimeout(ctx, c.etaTimeout)
	defer cancel()
	start := time.Now()
	eta, err := c.estimator.Estimate(cctx, *resp.Location, *inc.Location)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warnf("eta estimate for %s: %v", resp.ID, err)
		return 0, false, elapsed
	}
	return eta, true, elapsed
}

// activeRecords returns, per responder type, the latest record whose
// assignment is still committed to the incident. Records that ended in
// no_responder_available do not satisfy a type, so a retry may succeed later.
func (c *Coordinator) activeRecords(ctx context.Context, incidentID string) (map[model.ResponderType]model.DispatchRecord, error) {
	recs, err := c.log.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("load dispatch log: %w", err)
	}
	active := make(map[model.ResponderType]model.DispatchRecord)
	for _, rec := range recs {
		if rec.ResponderID == "" {
			continue
		}
		resp, ok := c.registry.Get(rec.ResponderID)
		if !ok || resp.State != model.StateAssigned || resp.IncidentID != incidentID {
			continue
		}
		active[rec.RequestedType] = rec
	}
	return active, nil
}

func (c *Coordinator) recordMetrics(created []model.DispatchRecord, latencies []metrics.ETALatency) {
	if len(created) > 0 {
		if err := c.metrics.RecordDispatchRecords(created); err != nil {
			c.logger.Errorf("metrics error: %v", err)
		}
	}
	if lr, ok := c.metrics.(metrics.LatencyRecorder); ok && len(latencies) > 0 {
		if err := lr.RecordETALatency(latencies); err != nil {
			c.logger.Errorf("latency metrics error: %v", err)
		}
	}
}

func (c *Coordinator) publish(e eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func (c *Coordinator) incidentLock(id string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
