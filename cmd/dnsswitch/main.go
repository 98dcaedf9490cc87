package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/dnsswitch/dnsswitch/cloudflare"
	"github.com/dnsswitch/dnsswitch/extip"
	"github.com/dnsswitch/dnsswitch/failover"
	"github.com/dnsswitch/dnsswitch/metrics"
	"github.com/dnsswitch/dnsswitch/notify"
	"github.com/dnsswitch/dnsswitch/pkg/logger"
	"github.com/dnsswitch/dnsswitch/pkg/version"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

func main() {
	app := &cli.App{
		Name:  "dnsswitch",
		Usage: "dual-uplink DNS failover controller",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Config file path", Value: "config.toml"},
		},

		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Generate a config file",
				Action: func(c *cli.Context) error {
					buf := bytes.Buffer{}
					enc := toml.NewEncoder(&buf)
					enc.SetIndentTables(true)
					if err := enc.Encode(DefaultConfig); err != nil {
						return err
					}

					fmt.Println(buf.String())

					return nil
				},
			},
		},

		Action: func(ctx *cli.Context) error {
			return realMain(ctx)
		},

		Version: version.String(),
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%s", err)
	}
}

func realMain(ctx *cli.Context) error {
	logger.Infof("%s version:%s", os.Args[0], version.String())

	cfg := DefaultConfig
	configBytes, err := os.ReadFile(ctx.String("config"))
	if err != nil {
		return err
	}

	if err := toml.Unmarshal(configBytes, &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			fmt.Println(derr.String())
			row, col := derr.Position()
			fmt.Println("error occurred at row", row, "column", col)
		}

		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	primarySubnets, err := failover.ParseSubnets(cfg.Primary.Subnets)
	if err != nil {
		return err
	}
	secondarySubnets, err := failover.ParseSubnets(cfg.Secondary.Subnets)
	if err != nil {
		return err
	}
	classifier, err := failover.NewClassifier(primarySubnets, secondarySubnets)
	if err != nil {
		return err
	}

	provider := cloudflare.NewClient(cloudflare.ClientOpts{
		Endpoint: cfg.Cloudflare.Endpoint,
		ZoneID:   cfg.Cloudflare.ZoneID,
		APIToken: cfg.Cloudflare.APIToken,
		Timeout:  cfg.providerTimeout,
	})

	syncerOpts := failover.SyncerOpts{
		Provider: provider,
		Alias:    cfg.Route.Alias,
	}
	if cfg.Dynamic != nil {
		syncerOpts.DynamicRecord = cfg.Dynamic.Record
		syncerOpts.DynamicTTL = cfg.Dynamic.TTL
	}
	syncer := failover.NewSyncer(syncerOpts)

	// Record IDs are fixed for the process lifetime. Failing here, with a
	// status per record, beats discovering a typo on the first switch.
	resolveCtx, cancelResolve := context.WithTimeout(context.Background(), cfg.providerTimeout)
	defer cancelResolve()
	if err := syncer.ResolveAlias(resolveCtx); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to resolve alias record %s: %s", cfg.Route.Alias, err), 2)
	}
	if cfg.Dynamic != nil {
		if err := syncer.ResolveDynamic(resolveCtx); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to resolve dynamic record %s: %s", cfg.Dynamic.Record, err), 3)
		}
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram != nil {
		notifier = notify.NewRelay(notify.NewTelegram(notify.TelegramOpts{
			Endpoint: cfg.Telegram.Endpoint,
			APIToken: cfg.Telegram.APIToken,
			ChatID:   cfg.Telegram.ChatID,
			Timeout:  cfg.providerTimeout,
		}))
	}

	resolverOpts := extip.ResolverOpts{Timeout: cfg.resolveTimeout}
	if cfg.Resolver != nil {
		resolverOpts.Source = cfg.Resolver.URL
	}
	resolver := extip.NewResolver(resolverOpts)

	liveness := &metrics.LivenessMark{}

	metricsSvc := metrics.NewService(metrics.ServiceOpts{
		ListenAddr:      cfg.ListenAddr,
		MaxConns:        cfg.MaxConnections,
		StalenessWindow: 2 * cfg.pollInterval,
		Liveness:        liveness,
	})

	failoverSvc := failover.NewService(failover.ServiceOpts{
		Interval:        cfg.pollInterval,
		ProviderTimeout: cfg.providerTimeout,
		Resolver:        resolver,
		Classifier:      classifier,
		Tracker:         failover.NewTracker(cfg.Confidence),
		Syncer:          syncer,
		Notifier:        notifier,
		Liveness:        liveness,
		PrimaryTarget:   cfg.Primary.Target,
		PrimaryTTL:      cfg.Primary.TTL,
		SecondaryTarget: cfg.Secondary.Target,
		SecondaryTTL:    cfg.Secondary.TTL,
	})

	svcCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := metricsSvc.Open(svcCtx); err != nil {
		return err
	}
	if err := failoverSvc.Open(svcCtx); err != nil {
		return err
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warnf("Failed to notify systemd: %s", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt, syscall.SIGTERM)
	sig := <-sc
	logger.Infof("Received signal %s, exiting...", sig.String())

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()

	err = failoverSvc.Close()
	err = multierr.Append(err, metricsSvc.Close())
	return err
}
