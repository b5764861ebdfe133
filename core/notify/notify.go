// Package notify defines the outbound notification port used to reach
// responders. Delivery is fire and forget: failures are logged by the caller,
// never fatal to a dispatch.
package notify

import "context"

// Notifier delivers a dispatch order to one responder.
type Notifier interface {
	Notify(ctx context.Context, responderID, incidentID string, severity float64) error
}

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string, string, float64) error { return nil }
