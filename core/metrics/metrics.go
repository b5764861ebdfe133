package metrics

import (
	"time"

	"github.com/kilianp07/eventrescue/core/model"
)

// Sink records dispatch records for observability purposes.
type Sink interface {
	RecordDispatchRecords(recs []model.DispatchRecord) error
}

// ETALatency captures how long one travel-time estimate took.
type ETALatency struct {
	IncidentID    string
	ResponderType model.ResponderType
	Known         bool
	Latency       time.Duration
}

// LatencyRecorder is implemented by sinks that track ETA lookup latency.
type LatencyRecorder interface {
	RecordETALatency(lat []ETALatency) error
}

// SeverityRecorder is implemented by sinks that track incident severities.
type SeverityRecorder interface {
	RecordSeverity(zone string, severity float64) error
}

// NopSink discards all records.
type NopSink struct{}

// RecordDispatchRecords implements Sink.
func (NopSink) RecordDispatchRecords([]model.DispatchRecord) error { return nil }
