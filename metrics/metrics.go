package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oasislabs/signing-gateway/errors"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Service is a background service that exports the metrics
// collected by the process
type Service interface {
	// Start starts exporting metrics
	Start()

	// Stop stops exporting metrics
	Stop()
}

// New constructs the export service selected by the configuration
func New(config *Config, logger log.Logger) (Service, error) {
	logger = logger.ForClass("metrics", "Service")

	switch config.Mode {
	case metricsModeNone, "":
		return &stubService{}, nil
	case metricsModePull:
		return newPullService(config, logger), nil
	case metricsModePush:
		return newPushService(config, logger), nil
	default:
		return nil, fmt.Errorf("metrics: unsupported mode: '%v'", config.Mode)
	}
}

type stubService struct{}

func (s *stubService) Start() {}

func (s *stubService) Stop() {}

// pullService exposes metrics that Prometheus can scrape
type pullService struct {
	server *http.Server
	logger log.Logger
}

func newPullService(config *Config, logger log.Logger) *pullService {
	return &pullService{
		server: &http.Server{
			Addr:           fmt.Sprintf("%s:%s", config.PullAddr, config.PullPort),
			Handler:        promhttp.Handler(),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger: logger,
	}
}

func (s *pullService) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error(context.Background(), "metrics server exited", log.MapFields{
				"call_type": "ServeMetricsFailure",
				"addr":      s.server.Addr,
			}, errors.New(errors.ErrInternal, err))
		}
	}()
}

func (s *pullService) Stop() {
	_ = s.server.Shutdown(context.Background())
}

// pushService periodically pushes metrics to a Prometheus push gateway
type pushService struct {
	pusher   *push.Pusher
	interval time.Duration
	logger   log.Logger
	cancel   context.CancelFunc
}

func newPushService(config *Config, logger log.Logger) *pushService {
	pusher := push.New(config.PushAddr, config.PushJobName).
		Grouping("instance", config.PushInstanceLabel).
		Gatherer(prometheus.DefaultGatherer)

	interval := config.PushInterval
	if interval <= 0 {
		interval = defaultPushInterval
	}

	return &pushService{pusher: pusher, interval: interval, logger: logger}
}

func (s *pushService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.startWorker(ctx)
}

func (s *pushService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *pushService) startWorker(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.C:
			if err := s.pusher.Push(); err != nil {
				s.logger.Error(ctx, "unable to push to prometheus", log.MapFields{
					"call_type": "PushMetricsFailure",
				}, errors.New(errors.ErrInternal, err))
			}
		}
	}
}
