// Package redisfeed bridges the internal event bus to Redis pub/sub so that
// external consumers (dashboards, pagers) can follow incident activity.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/eventrescue/core/events"
	"github.com/kilianp07/eventrescue/infra/logger"
	"github.com/kilianp07/eventrescue/internal/eventbus"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

// Feed republishes bus events on a Redis channel as JSON envelopes.
type Feed struct {
	client  *redis.Client
	channel string
	bus     eventbus.EventBus
	logger  logger.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config, bus eventbus.EventBus) (*Feed, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "rescue:events"
	}
	return &Feed{
		client:  rdb,
		channel: channel,
		bus:     bus,
		logger:  logger.New("redis_feed"),
	}, nil
}

type envelope struct {
	Kind string      `json:"kind"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

// Run consumes the bus subscription until ctx is cancelled or the bus closes.
func (f *Feed) Run(ctx context.Context) {
	ch := f.bus.SubscribeBuffered(64)
	defer f.bus.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			f.publish(ctx, ev)
		}
	}
}

func (f *Feed) publish(ctx context.Context, ev eventbus.Event) {
	env := envelope{Kind: kindOf(ev), At: time.Now().UTC(), Data: ev}
	payload, err := json.Marshal(env)
	if err != nil {
		f.logger.Errorf("encode event: %v", err)
		return
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		f.logger.Warnf("redis publish: %v", err)
	}
}

func kindOf(ev eventbus.Event) string {
	switch ev.(type) {
	case events.IncidentCreated:
		return "incident_created"
	case events.DispatchDecided:
		return "dispatch_decided"
	case events.ResponderAssigned:
		return "responder_assigned"
	case events.ResponderReleased:
		return "responder_released"
	case events.IncidentResolved:
		return "incident_resolved"
	default:
		return fmt.Sprintf("%T", ev)
	}
}

// Close releases the Redis connection.
func (f *Feed) Close() error {
	return f.client.Close()
}
