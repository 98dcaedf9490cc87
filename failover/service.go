package failover

import (
	"context"
	"fmt"
	"net/netip"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dnsswitch/dnsswitch/metrics"
	"github.com/dnsswitch/dnsswitch/notify"
	"github.com/dnsswitch/dnsswitch/pkg/logger"
	srv "github.com/dnsswitch/dnsswitch/pkg/service"
)

// AddressResolver yields the site's current external IPv4 address.
type AddressResolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

type ServiceOpts struct {
	// Interval is the delay between polls.
	Interval time.Duration

	// ProviderTimeout bounds each record update against the DNS provider.
	ProviderTimeout time.Duration

	Resolver   AddressResolver
	Classifier *Classifier
	Tracker    *Tracker
	Syncer     *Syncer
	Notifier   notify.Notifier
	Liveness   *metrics.LivenessMark

	// PrimaryTarget and SecondaryTarget are the hostnames the alias record
	// points at on each uplink, each written with its side's TTL.
	PrimaryTarget   string
	PrimaryTTL      int
	SecondaryTarget string
	SecondaryTTL    int
}

// Service polls the external address and keeps the alias record pointed at
// the uplink the evidence supports. One poll resolves the address, feeds the
// classification to the tracker and then applies whatever decision the
// tracker stands by, so a pending switch is retried even on polls where
// resolution fails.
type Service struct {
	opts ServiceOpts

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastAddr netip.Addr
}

var _ srv.Component = (*Service)(nil)

func NewService(opts ServiceOpts) *Service {
	return &Service{opts: opts}
}

func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	metrics.Confidence.Set(float64(s.opts.Tracker.Confidence()))
	setActiveGauge(s.opts.Tracker.PrimaryActive())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		logger.Infof("Watching %s every %s", s.opts.Syncer.Alias(), s.opts.Interval)

		// do-while
		s.tick()

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	cancelFn := s.cancel
	s.mu.Unlock()
	if cancelFn != nil {
		cancelFn()
	}
	s.wg.Wait()
	return nil
}

// tick runs one poll. The liveness mark is stamped on every path out,
// including a panic, so a wedged poll surfaces as staleness rather than
// a crash loop.
func (s *Service) tick() {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Tick panic: %v\n%s", r, debug.Stack())
			s.opts.Tracker.ObserveFailure()
			metrics.Confidence.Set(float64(s.opts.Tracker.Confidence()))
			metrics.TickPanicsTotal.Inc()
		}
		s.opts.Liveness.Stamp()
		metrics.TicksTotal.Inc()
		metrics.TickDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	addr, err := s.opts.Resolver.Resolve(context.Background())
	if err != nil {
		logger.Warnf("Failed to resolve external address: %s", err)
		s.opts.Tracker.ObserveFailure()
		metrics.ResolveFailuresTotal.Inc()
		metrics.Confidence.Set(float64(s.opts.Tracker.Confidence()))
		s.opts.Notifier.Notify(context.Background(), fmt.Sprintf("Failed to resolve external address: %s", err), false)
	} else {
		s.observe(addr)
	}

	s.syncAlias()
}

func (s *Service) observe(addr netip.Addr) {
	if addr != s.lastAddr {
		if s.lastAddr.IsValid() {
			logger.Infof("External address changed from %s to %s", s.lastAddr, addr)
		} else {
			logger.Infof("External address is %s", addr)
		}
		metrics.ExternalAddress.Reset()
		metrics.ExternalAddress.WithLabelValues(addr.String()).Set(1)
		s.lastAddr = addr
	}

	s.pushDynamic(addr)

	side := s.opts.Classifier.Classify(addr)
	if side == Neither {
		logger.Warnf("External address %s is outside both uplink subnets", addr)
		metrics.UnknownAddressTotal.Inc()
	}
	s.opts.Tracker.Observe(side)
	metrics.Confidence.Set(float64(s.opts.Tracker.Confidence()))
}

// pushDynamic mirrors the resolved address into the dynamic record. A
// failure here is reported but does not touch the tracker; the alias
// decision stands on classification alone.
func (s *Service) pushDynamic(addr netip.Addr) {
	record := s.opts.Syncer.DynamicRecord()
	if record == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ProviderTimeout)
	defer cancel()

	updated, err := s.opts.Syncer.PushDynamic(ctx, addr)
	if err != nil {
		logger.Errorf("Failed to update record %s to %s: %s", record, addr, err)
		metrics.RecordUpdateFailuresTotal.WithLabelValues("dynamic").Inc()
		s.opts.Notifier.Notify(context.Background(), fmt.Sprintf("Failed to update record %s to %s: %s", record, addr, err), false)
		return
	}
	if updated {
		logger.Infof("Updated record %s to %s", record, addr)
		metrics.RecordUpdatesTotal.WithLabelValues("dynamic").Inc()
	}
}

func (s *Service) syncAlias() {
	decision := s.opts.Tracker.Decision()
	if decision == Hold {
		return
	}

	target, ttl := s.opts.SecondaryTarget, s.opts.SecondaryTTL
	side := "secondary"
	if decision == SwitchToPrimary {
		target, ttl = s.opts.PrimaryTarget, s.opts.PrimaryTTL
		side = "primary"
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ProviderTimeout)
	defer cancel()

	alias := s.opts.Syncer.Alias()
	if err := s.opts.Syncer.PushAlias(ctx, target, ttl); err != nil {
		logger.Errorf("Failed to point %s at %s: %s", alias, target, err)
		metrics.RecordUpdateFailuresTotal.WithLabelValues("alias").Inc()
		s.opts.Notifier.Notify(context.Background(), fmt.Sprintf("Failed to point %s at %s: %s", alias, target, err), false)
		return
	}

	s.opts.Tracker.Confirm(decision)
	metrics.RecordUpdatesTotal.WithLabelValues("alias").Inc()
	metrics.TransitionsTotal.WithLabelValues(side).Inc()
	setActiveGauge(s.opts.Tracker.PrimaryActive())

	logger.Infof("Switched %s to %s (confidence %d/%d)", alias, target, s.opts.Tracker.Confidence(), s.opts.Tracker.Threshold())
	s.opts.Notifier.Notify(context.Background(), fmt.Sprintf("Switched %s to %s \\(confidence %d/%d\\)",
		notify.EscapeMarkdownV2(alias), notify.EscapeMarkdownV2(target),
		s.opts.Tracker.Confidence(), s.opts.Tracker.Threshold()), true)
}

func setActiveGauge(active bool) {
	if active {
		metrics.PrimaryActive.Set(1)
	} else {
		metrics.PrimaryActive.Set(0)
	}
}
