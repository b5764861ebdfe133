package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// mockClient implements pahoClient for tests
type mockClient struct {
	published []struct {
		topic   string
		qos     byte
		payload []byte
	}
	publishErrs []error
}

func (m *mockClient) IsConnected() bool   { return true }
func (m *mockClient) Connect() paho.Token { return &dummyToken{} }
func (m *mockClient) Disconnect(uint)     {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.published = append(m.published, struct {
		topic   string
		qos     byte
		payload []byte
	}{topic, qos, payload.([]byte)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(_ *paho.ClientOptions) pahoClient { return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestNotifyPublishesOrder(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	n, err := NewNotifier(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: 1})
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	if err := n.Notify(context.Background(), "resp-1", "inc-9", 0.83); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(mc.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(mc.published))
	}
	msg := mc.published[0]
	if msg.topic != "rescue/responders/resp-1/orders" {
		t.Errorf("unexpected topic %s", msg.topic)
	}
	if msg.qos != 1 {
		t.Errorf("unexpected qos %d", msg.qos)
	}
	var order struct {
		OrderID     string  `json:"order_id"`
		ResponderID string  `json:"responder_id"`
		IncidentID  string  `json:"incident_id"`
		Severity    float64 `json:"severity"`
	}
	if err := json.Unmarshal(msg.payload, &order); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if order.OrderID == "" || order.ResponderID != "resp-1" || order.IncidentID != "inc-9" || order.Severity != 0.83 {
		t.Errorf("unexpected order: %+v", order)
	}
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}}
	withMockClient(t, mc)
	n, err := NewNotifier(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 3, BackoffMS: 1})
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	if err := n.Notify(context.Background(), "resp-1", "inc-9", 0.5); err != nil {
		t.Fatalf("notify should recover after retries: %v", err)
	}
	if len(mc.published) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(mc.published))
	}
}

func TestNotifyExhaustsRetries(t *testing.T) {
	errs := make([]error, 5)
	for i := range errs {
		errs[i] = fmt.Errorf("net fail")
	}
	mc := &mockClient{publishErrs: errs}
	withMockClient(t, mc)
	n, err := NewNotifier(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 2, BackoffMS: 1})
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	if err := n.Notify(context.Background(), "resp-1", "inc-9", 0.5); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestNotifyHonorsContext(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail")}}
	withMockClient(t, mc)
	n, err := NewNotifier(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 5, BackoffMS: 50})
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Notify(ctx, "resp-1", "inc-9", 0.5); err == nil {
		t.Fatal("expected context error")
	}
}
