package mqtt

import (
	"context"
	"fmt"
	"sync"
)

// MockNotifier records dispatch orders in memory. Used in tests and for
// running the service without a broker.
type MockNotifier struct {
	Orders  map[string]string
	FailIDs map[string]bool
	mu      sync.Mutex
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Orders:  make(map[string]string),
		FailIDs: make(map[string]bool),
	}
}

// Notify records the order or returns an error if configured to fail.
func (m *MockNotifier) Notify(_ context.Context, responderID, incidentID string, _ float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[responderID] {
		return fmt.Errorf("publish failed")
	}
	m.Orders[responderID] = incidentID
	return nil
}
