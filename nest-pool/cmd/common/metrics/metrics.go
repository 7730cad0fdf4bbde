// Package metrics implements a prometheus metrics service.
package metrics

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/service"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/version"
	"github.com/MLY0813/NEST-Oracle-V3.5/config"
)

// MetricUp is the name of the liveness gauge.
const MetricUp = "nest_pool_up"

var (
	upGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricUp,
			Help: "Is the nest-pool service running.",
		},
		[]string{"software_version"},
	)

	metricsOnce sync.Once
)

func newStubService() (service.BackgroundService, error) {
	return service.NewBaseBackgroundService("metrics"), nil
}

type pullService struct {
	service.BaseBackgroundService

	sync.Mutex

	ln net.Listener
	s  *http.Server

	errCh chan error
}

func (s *pullService) Start() error {
	upGauge.WithLabelValues(version.SoftwareVersion).Set(1)

	srv, ln := s.s, s.ln
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.errCh <- err
		}
		s.BaseBackgroundService.Stop()
	}()
	return nil
}

func (s *pullService) Stop() {
	s.Lock()
	defer s.Unlock()

	upGauge.WithLabelValues(version.SoftwareVersion).Set(0)

	if s.s != nil {
		select {
		case err := <-s.errCh:
			if err != nil {
				s.Logger.Error("metrics terminated uncleanly",
					"err", err,
				)
			}
		default:
			_ = s.s.Close()
		}
		s.s = nil
	}
}

func (s *pullService) Cleanup() {
	s.Lock()
	defer s.Unlock()

	if s.ln != nil {
		_ = s.ln.Close()
		s.ln = nil
	}
}

// Addr returns the address the service listens on.
func (s *pullService) Addr() net.Addr {
	return s.ln.Addr()
}

func newPullService(addr string) (*pullService, error) {
	svc := *service.NewBaseBackgroundService("metrics")

	svc.Logger.Debug("Metrics Server Params",
		"mode", config.MetricsModePull,
		"addr", addr,
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to listen on '%s': %w", addr, err)
	}

	return &pullService{
		BaseBackgroundService: svc,
		ln:                    ln,
		s:                     &http.Server{Handler: promhttp.Handler(), ReadTimeout: 5 * time.Second},
		errCh:                 make(chan error, 1),
	}, nil
}

// New constructs a new metrics service.
func New() (service.BackgroundService, error) {
	metricsOnce.Do(func() {
		prometheus.MustRegister(upGauge)
		prometheus.MustRegister(collectors.NewBuildInfoCollector())
	})

	cfg := config.GlobalConfig.Metrics
	switch cfg.Mode {
	case config.MetricsModeNone:
		return newStubService()
	case config.MetricsModePull:
		return newPullService(cfg.Address)
	default:
		return nil, fmt.Errorf("metrics: unsupported mode: '%s'", cfg.Mode)
	}
}
