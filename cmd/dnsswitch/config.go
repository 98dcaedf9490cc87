package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dnsswitch/dnsswitch/failover"
	"github.com/dnsswitch/dnsswitch/pkg/logger"
)

var DefaultConfig = Config{
	ListenAddr:      ":9090",
	MaxConnections:  64,
	PollInterval:    "30s",
	ResolveTimeout:  "10s",
	ProviderTimeout: "30s",
	Confidence:      4,
	LogLevel:        "info",
	Primary: Uplink{
		TTL: 60,
	},
	Secondary: Uplink{
		TTL: 300,
	},
	Cloudflare: Cloudflare{
		Endpoint: "https://api.cloudflare.com/client/v4",
	},
}

type Config struct {
	ListenAddr      string `toml:"listen-addr" comment:"Address to listen on for the health and metrics endpoints."`
	MaxConnections  int    `toml:"max-connections" comment:"Maximum number of connections to accept.  0 for no limit."`
	PollInterval    string `toml:"poll-interval" comment:"Delay between polls of the external address."`
	ResolveTimeout  string `toml:"resolve-timeout" comment:"Timeout for each external address lookup."`
	ProviderTimeout string `toml:"provider-timeout" comment:"Timeout for each DNS provider call."`
	Confidence      int    `toml:"confidence" comment:"Consecutive sightings on the primary uplink required before switching back to it."`
	LogLevel        string `toml:"log-level" comment:"Log level.  One of debug, info, warn, error."`

	Route      Route      `toml:"route" comment:"The alias record this controller manages."`
	Primary    Uplink     `toml:"primary" comment:"The preferred uplink."`
	Secondary  Uplink     `toml:"secondary" comment:"The fallback uplink."`
	Cloudflare Cloudflare `toml:"cloudflare" comment:"Cloudflare API access."`
	Dynamic    *Dynamic   `toml:"dynamic" comment:"Optional A record tracking the raw external address."`
	Telegram   *Telegram  `toml:"telegram" comment:"Optional Telegram notifications."`
	Resolver   *Resolver  `toml:"resolver" comment:"Optional override for the external address source."`

	pollInterval    time.Duration
	resolveTimeout  time.Duration
	providerTimeout time.Duration
}

type Route struct {
	Alias string `toml:"alias" comment:"Hostname of the CNAME record to switch between uplinks."`
}

type Uplink struct {
	Target  string   `toml:"target" comment:"Hostname the alias points at while this uplink is active."`
	TTL     int      `toml:"ttl" comment:"TTL in seconds written on the alias while this uplink is active.  A higher TTL on the fallback keeps clients from flapping while the network is bad."`
	Subnets []string `toml:"subnets" comment:"CIDR ranges this uplink hands out external addresses from."`
}

type Cloudflare struct {
	ZoneID   string `toml:"zone-id" comment:"DNS zone identifier."`
	APIToken string `toml:"api-token" comment:"API token with DNS edit permission on the zone."`
	Endpoint string `toml:"endpoint" comment:"API base URL."`
}

type Dynamic struct {
	Record string `toml:"record" comment:"Hostname of the A record pinned to the current external address."`
	TTL    int    `toml:"ttl" comment:"TTL in seconds written on dynamic updates."`
}

type Telegram struct {
	APIToken string `toml:"api-token" comment:"Bot token."`
	ChatID   int64  `toml:"chat-id" comment:"Destination chat."`
	Endpoint string `toml:"endpoint" comment:"API base URL.  Defaults to https://api.telegram.org."`
}

type Resolver struct {
	URL string `toml:"url" comment:"Reflector URL to query for the external address.  When unset, a built-in source list is used."`
}

func (c *Config) Validate() error {
	var err error
	if c.pollInterval, err = parseDuration("poll-interval", c.PollInterval); err != nil {
		return err
	}
	if c.resolveTimeout, err = parseDuration("resolve-timeout", c.ResolveTimeout); err != nil {
		return err
	}
	if c.providerTimeout, err = parseDuration("provider-timeout", c.ProviderTimeout); err != nil {
		return err
	}

	if c.Confidence < 1 {
		return errors.New("confidence must be at least 1")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.Route.Alias == "" {
		return errors.New("route.alias must be set")
	}

	if c.Primary.Target == "" {
		return errors.New("primary.target must be set")
	}
	if c.Primary.TTL <= 0 {
		return errors.New("primary.ttl must be greater than 0")
	}
	if c.Secondary.Target == "" {
		return errors.New("secondary.target must be set")
	}
	if c.Secondary.TTL <= 0 {
		return errors.New("secondary.ttl must be greater than 0")
	}
	if len(c.Primary.Subnets) == 0 && len(c.Secondary.Subnets) == 0 {
		return errors.New("primary.subnets and secondary.subnets cannot both be empty")
	}
	if _, err := failover.ParseSubnets(c.Primary.Subnets); err != nil {
		return fmt.Errorf("primary.subnets: %w", err)
	}
	if _, err := failover.ParseSubnets(c.Secondary.Subnets); err != nil {
		return fmt.Errorf("secondary.subnets: %w", err)
	}

	if c.Cloudflare.ZoneID == "" {
		return errors.New("cloudflare.zone-id must be set")
	}
	if c.Cloudflare.APIToken == "" {
		return errors.New("cloudflare.api-token must be set")
	}

	if c.Dynamic != nil {
		if c.Dynamic.Record == "" {
			return errors.New("dynamic.record must be set")
		}
		if c.Dynamic.TTL == 0 {
			c.Dynamic.TTL = 60
		}
		if c.Dynamic.TTL < 0 {
			return errors.New("dynamic.ttl must be greater than 0")
		}
	}

	if c.Telegram != nil {
		if c.Telegram.APIToken == "" {
			return errors.New("telegram.api-token must be set")
		}
		if c.Telegram.ChatID == 0 {
			return errors.New("telegram.chat-id must be set")
		}
	}

	if c.Resolver != nil && c.Resolver.URL == "" {
		return errors.New("resolver.url must be set")
	}

	return nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %q", key, value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return d, nil
}
