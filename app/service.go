// Package app assembles the triage service from its parts.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/eventrescue/api/incidents"
	"github.com/kilianp07/eventrescue/api/responders"
	"github.com/kilianp07/eventrescue/config"
	"github.com/kilianp07/eventrescue/core/dispatch"
	"github.com/kilianp07/eventrescue/core/forecast"
	coremetrics "github.com/kilianp07/eventrescue/core/metrics"
	"github.com/kilianp07/eventrescue/core/notify"
	"github.com/kilianp07/eventrescue/core/registry"
	"github.com/kilianp07/eventrescue/core/store/memstore"
	"github.com/kilianp07/eventrescue/infra/eta"
	"github.com/kilianp07/eventrescue/infra/logger"
	"github.com/kilianp07/eventrescue/infra/metrics"
	"github.com/kilianp07/eventrescue/infra/mqtt"
	"github.com/kilianp07/eventrescue/infra/redisfeed"
	"github.com/kilianp07/eventrescue/infra/ws"
	"github.com/kilianp07/eventrescue/internal/eventbus"
)

// Service orchestrates the coordinator and its connectors.
type Service struct {
	Coordinator *dispatch.Coordinator
	Registry    *registry.Registry
	Forecasts   *forecast.Tracker
	Notifier    notify.Notifier

	cfg      *config.Config
	bus      *eventbus.Bus
	hub      *ws.Hub
	feed     *redisfeed.Feed
	notifier *mqtt.Notifier
	influx   *metrics.InfluxSink
	handler  http.Handler
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	logg := logger.New("service")
	bus := eventbus.New()

	incidentStore := memstore.NewIncidentStore()
	dispatchLog := memstore.NewDispatchLog()
	reg := registry.New()
	forecasts := forecast.NewTracker(cfg.Forecast)

	var estimator dispatch.Estimator
	switch cfg.ETA.Mode {
	case "matrix":
		estimator = eta.NewMatrix(cfg.ETA.Matrix)
	default:
		estimator = eta.NewStatic(cfg.ETA.SpeedMS)
	}

	// without a broker, orders are recorded in memory so a dev setup can
	// still inspect what would have been sent
	var notifier notify.Notifier = mqtt.NewMockNotifier()
	var mqttNotifier *mqtt.Notifier
	if cfg.MQTT.Enabled {
		n, err := mqtt.NewNotifier(cfg.MQTT.Client)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		notifier = n
		mqttNotifier = n
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PromAddr != "" {
		sink, err := metrics.NewPromSink(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	var influx *metrics.InfluxSink
	if cfg.Metrics.InfluxURL != "" {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		if is, ok := sink.(*metrics.InfluxSink); ok {
			influx = is
		}
		sinks = append(sinks, sink)
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	coord, err := dispatch.NewCoordinator(reg, incidentStore, dispatchLog, estimator, notifier, bus, sink, logg, cfg.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	var feed *redisfeed.Feed
	if cfg.Redis.Enabled {
		feed, err = redisfeed.New(ctx, cfg.Redis.Feed, bus)
		if err != nil {
			return nil, fmt.Errorf("redis feed: %w", err)
		}
	}

	hub := ws.NewHub(bus)

	mux := http.NewServeMux()
	incidents.NewHandler(coord, incidentStore, dispatchLog, forecasts).Register(mux)
	responders.NewHandler(reg).Register(mux)
	mux.Handle("GET /ws", hub)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Service{
		Coordinator: coord,
		Registry:    reg,
		Forecasts:   forecasts,
		Notifier:    notifier,
		cfg:         cfg,
		bus:         bus,
		hub:         hub,
		feed:        feed,
		notifier:    mqttNotifier,
		influx:      influx,
		handler:     mux,
		log:         logg,
	}, nil
}

// Handler exposes the HTTP surface, mostly for tests.
func (s *Service) Handler() http.Handler { return s.handler }

// Run starts the connectors and the API server and blocks until the context
// is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.hub.Run(ctx)
	if s.feed != nil {
		go s.feed.Run(ctx)
	}
	if s.cfg.Metrics.PromAddr != "" && s.cfg.Metrics.PromAddr != s.cfg.HTTP.Addr {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PromAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.influx != nil {
		s.influx.Close()
	}
	if s.feed != nil {
		return s.feed.Close()
	}
	return nil
}
