package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/eventrescue/core/metrics"
	"github.com/kilianp07/eventrescue/core/model"
)

// PromSink records dispatch outcomes in Prometheus metrics.
type PromSink struct {
	records    *prometheus.CounterVec
	severity   *prometheus.HistogramVec
	etaLatency *prometheus.HistogramVec
}

// NewPromSink registers the dispatch metrics on the provided Prometheus
// registerer. If reg is nil, the default registerer is used. If the
// collectors are already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_records_total",
		Help: "Total number of dispatch attempts per responder type and outcome",
	}, []string{"responder_type", "outcome"})
	severity := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "incident_severity",
		Help:    "Distress severity of ingested incidents",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"zone"})
	etaLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eta_lookup_seconds",
		Help:    "Time spent waiting for the travel-time estimator",
		Buckets: prometheus.DefBuckets,
	}, []string{"responder_type", "known"})

	for i, c := range []prometheus.Collector{records, severity, etaLatency} {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch i {
			case 0:
				records = are.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				severity = are.ExistingCollector.(*prometheus.HistogramVec)
			case 2:
				etaLatency = are.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
	}

	return &PromSink{records: records, severity: severity, etaLatency: etaLatency}, nil
}

// RecordDispatchRecords increments the outcome counter per record.
func (s *PromSink) RecordDispatchRecords(recs []model.DispatchRecord) error {
	for _, r := range recs {
		s.records.WithLabelValues(r.RequestedType.String(), string(r.Outcome)).Inc()
	}
	return nil
}

// RecordSeverity observes the severity histogram for the zone.
func (s *PromSink) RecordSeverity(zone string, severity float64) error {
	s.severity.WithLabelValues(zone).Observe(severity)
	return nil
}

// RecordETALatency observes the estimator latency histogram.
func (s *PromSink) RecordETALatency(lat []coremetrics.ETALatency) error {
	for _, l := range lat {
		known := "false"
		if l.Known {
			known = "true"
		}
		s.etaLatency.WithLabelValues(l.ResponderType.String(), known).Observe(l.Latency.Seconds())
	}
	return nil
}
