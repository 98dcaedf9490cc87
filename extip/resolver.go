package extip

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/dnsswitch/dnsswitch/failover"
	dnshttp "github.com/dnsswitch/dnsswitch/pkg/http"
	"github.com/dnsswitch/dnsswitch/pkg/logger"
	"go.uber.org/multierr"
)

// defaultSources are public reflectors that answer a bare GET with the
// caller's address in the body.
var defaultSources = []string{
	"https://ipv4.icanhazip.com",
	"https://api.ipify.org",
	"https://checkip.amazonaws.com",
}

var _ failover.AddressResolver = (*Resolver)(nil)

type ResolverOpts struct {
	// Source pins resolution to a single reflector URL. When empty the
	// built-in sources are tried in a shuffled order.
	Source string

	// Timeout bounds each attempt against one source.
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Resolver discovers the site's current external IPv4 address by asking
// public reflectors.
type Resolver struct {
	sources []string
	pinned  bool
	timeout time.Duration

	httpClient *http.Client
}

func NewResolver(opts ResolverOpts) *Resolver {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Reflectors see one request per tick at most; keeping
		// connections around buys nothing.
		httpClient = dnshttp.WithLogging(dnshttp.NewClient(dnshttp.ClientOpts{
			Timeout:           timeout,
			DisableKeepAlives: true,
		}))
	}

	sources := defaultSources
	pinned := false
	if opts.Source != "" {
		sources = []string{opts.Source}
		pinned = true
	}

	return &Resolver{
		sources:    sources,
		pinned:     pinned,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// Resolve returns the current external IPv4 address. Sources are tried in
// a shuffled order until one answers with a usable address; the causes of
// every failed attempt ride along when none does.
func (r *Resolver) Resolve(ctx context.Context) (netip.Addr, error) {
	sources := r.sources
	if !r.pinned && len(sources) > 1 {
		sources = append([]string(nil), r.sources...)
		rand.Shuffle(len(sources), func(i, j int) { sources[i], sources[j] = sources[j], sources[i] })
	}

	var errs error
	for _, src := range sources {
		addr, err := r.fetch(ctx, src)
		if err != nil {
			logger.Debugf("External address source %s failed: %s", src, err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", src, err))
			continue
		}
		return addr, nil
	}
	return netip.Addr{}, fmt.Errorf("all sources failed: %w", errs)
}

func (r *Resolver) fetch(ctx context.Context, src string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", src, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "dnsswitch")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http get: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("status %s", resp.Status)
	}

	// An address is at most 15 bytes; anything longer is not an answer.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("read body: %w", err)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse %q: %w", strings.TrimSpace(string(body)), err)
	}

	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("address %s is not IPv4", addr)
	}
	return addr, nil
}
