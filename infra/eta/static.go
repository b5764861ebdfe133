// Package eta provides travel time estimators used by the dispatch
// coordinator. Static estimates straight-line travel at a fixed speed,
// Matrix queries a distance matrix service over HTTP.
package eta

import (
	"context"
	"time"

	"github.com/kilianp07/eventrescue/core/model"
)

const defaultSpeedMS = 2.5

// Static estimates travel time from the haversine distance at a constant
// walking speed. Suitable for venues where responders move on foot.
type Static struct {
	speedMS float64
}

// NewStatic creates an estimator with the given speed in meters per second.
// Non-positive speeds fall back to a brisk walking pace.
func NewStatic(speedMS float64) *Static {
	if speedMS <= 0 {
		speedMS = defaultSpeedMS
	}
	return &Static{speedMS: speedMS}
}

func (s *Static) Estimate(_ context.Context, origin, dest model.GeoPoint) (time.Duration, error) {
	meters := origin.DistanceTo(dest)
	return time.Duration(meters / s.speedMS * float64(time.Second)), nil
}
