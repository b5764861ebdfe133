package dispatch

import (
	"context"
	"time"

	"github.com/kilianp07/eventrescue/core/model"
)

// Estimator is the external travel-time capability. Implementations must
// honor ctx cancellation; a failed or timed out estimate is reported as an
// error value, never as a stuck call.
type Estimator interface {
	Estimate(ctx context.Context, origin, dest model.GeoPoint) (time.Duration, error)
}

// Config holds the coordinator tunables.
type Config struct {
	// ETATimeoutSeconds bounds each travel-time lookup.
	ETATimeoutSeconds int `json:"eta_timeout_seconds"`
	// AutoDispatchThreshold triggers dispatch directly from ingestion when
	// the severity reaches it. Zero disables auto dispatch.
	AutoDispatchThreshold float64 `json:"auto_dispatch_threshold"`
}
