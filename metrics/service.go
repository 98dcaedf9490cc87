package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dnsswitch/dnsswitch/pkg/logger"
	srv "github.com/dnsswitch/dnsswitch/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"golang.org/x/net/netutil"
)

type Service interface {
	srv.Component
}

type ServiceOpts struct {
	// ListenAddr is the address the liveness and metrics endpoints bind to.
	ListenAddr string

	// MaxConns caps concurrent connections accepted by the listener.
	MaxConns int

	// StalenessWindow is how old the liveness mark may grow before /healthz
	// reports the poll loop as dead.
	StalenessWindow time.Duration

	Liveness *LivenessMark
}

// service exposes /healthz and /metrics and logs a periodic status summary.
// It observes the liveness mark and the metrics registry only; it never
// touches failover state.
type service struct {
	opts    ServiceOpts
	closeFn context.CancelFunc

	wg       sync.WaitGroup
	listener net.Listener
	srv      *http.Server
}

func NewService(opts ServiceOpts) Service {
	return &service{opts: opts}
}

func (s *service) Open(ctx context.Context) error {
	ctx, s.closeFn = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.ListenAddr, err)
	}
	if s.opts.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.opts.MaxConns)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Metrics listener error: %s", err)
		}
	}()

	s.wg.Add(1)
	go s.collect(ctx)

	logger.Infof("Metrics and liveness listening on %s", s.opts.ListenAddr)
	return nil
}

func (s *service) Close() error {
	s.closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// handleHealthz reports OK only while ticks keep completing. A wedged or
// abandoned poll loop stops stamping the mark and flips this to 503.
func (s *service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	last := s.opts.Liveness.Last()
	if last.IsZero() || time.Since(last) >= s.opts.StalenessWindow {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("BAD"))
		return
	}
	w.Write([]byte("OK"))
}

func (s *service) collect(ctx context.Context) {
	defer s.wg.Done()

	t := time.NewTicker(time.Minute)
	defer t.Stop()

	var lastTicks float64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			mets, err := prometheus.DefaultGatherer.Gather()
			if err != nil {
				logger.Errorf("Failed to gather metrics: %s", err)
				continue
			}

			var ticks, resolveFailures, active, confidence, pending float64
			for _, v := range mets {
				if !strings.HasPrefix(v.GetName(), Namespace) {
					continue
				}

				switch *v.Type {
				case io_prometheus_client.MetricType_GAUGE:
					for _, vv := range v.Metric {
						if strings.Contains(v.GetName(), "failover_primary_active") {
							active += vv.Gauge.GetValue()
						} else if strings.Contains(v.GetName(), "failover_confidence") {
							confidence += vv.Gauge.GetValue()
						} else if strings.Contains(v.GetName(), "notifier_pending") {
							pending += vv.Gauge.GetValue()
						}
					}
				case io_prometheus_client.MetricType_COUNTER:
					for _, vv := range v.Metric {
						if strings.Contains(v.GetName(), "ticks_total") {
							ticks += vv.Counter.GetValue()
						} else if strings.Contains(v.GetName(), "resolver_failures_total") {
							resolveFailures += vv.Counter.GetValue()
						}
					}
				}
			}

			logger.Infof("Status TicksPerMin=%0.2f PrimaryActive=%v Confidence=%d ResolveFailures=%d PendingNotifications=%d",
				ticks-lastTicks, active > 0, int(confidence), int(resolveFailures), int(pending))

			lastTicks = ticks
		}
	}
}
