package metrics

import (
	coremetrics "github.com/kilianp07/eventrescue/core/metrics"
	"github.com/kilianp07/eventrescue/core/model"
)

// MultiSink fans dispatch records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatchRecords forwards the records to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordDispatchRecords(recs []model.DispatchRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatchRecords(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordETALatency forwards latency metrics when supported by the sink.
func (m *MultiSink) RecordETALatency(lat []coremetrics.ETALatency) error {
	for _, s := range m.Sinks {
		if lr, ok := s.(coremetrics.LatencyRecorder); ok {
			if err := lr.RecordETALatency(lat); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSeverity forwards severity observations when supported by the sink.
func (m *MultiSink) RecordSeverity(zone string, severity float64) error {
	for _, s := range m.Sinks {
		if sr, ok := s.(coremetrics.SeverityRecorder); ok {
			if err := sr.RecordSeverity(zone, severity); err != nil {
				return err
			}
		}
	}
	return nil
}
