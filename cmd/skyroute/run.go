package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/skyroute/internal/api"
	"github.com/nerrad567/skyroute/internal/codec"
	"github.com/nerrad567/skyroute/internal/infrastructure/config"
	"github.com/nerrad567/skyroute/internal/infrastructure/database"
	"github.com/nerrad567/skyroute/internal/infrastructure/influxdb"
	"github.com/nerrad567/skyroute/internal/infrastructure/logging"
	"github.com/nerrad567/skyroute/internal/infrastructure/metrics"
	"github.com/nerrad567/skyroute/internal/infrastructure/mqtt"
	"github.com/nerrad567/skyroute/internal/journal"
	"github.com/nerrad567/skyroute/internal/transport/memtransport"
	"github.com/nerrad567/skyroute/pkg/skyroute"
)

const (
	transportPaho   = "paho"
	transportMemory = "memory"

	// shutdownTimeout bounds how long running handlers may take to finish.
	shutdownTimeout = 10 * time.Second

	// pruneInterval is how often the journal drops expired entries.
	pruneInterval = time.Hour
)

type runOptions struct {
	configPath string
	transport  string
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts runOptions) error {
	// Use default logger until config is loaded
	log := logging.Default()

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("starting SkyRoute",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	tr, closeTransport, err := buildTransport(opts.transport, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	defaultCodec, err := codec.ByName(cfg.Dispatch.DefaultCodec)
	if err != nil {
		return fmt.Errorf("dispatch codec: %w", err)
	}

	// Delivery-failure journal (optional)
	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(ctx, database.Config{
			Path:        cfg.Journal.Path,
			WALMode:     cfg.Journal.WALMode,
			BusyTimeout: cfg.Journal.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer func() {
			log.Info("closing journal")
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		log.Info("journal opened", "path", cfg.Journal.Path)
	}

	// Connection telemetry (optional)
	var influx *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influx, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.MQTT.Broker.ClientID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	collector := metrics.New()

	routerOpts := skyroute.Options{
		Transport:       tr,
		Reconnect:       cfg.MQTT.LifecycleOptions(),
		DefaultCodec:    defaultCodec,
		PropagateErrors: cfg.Dispatch.PropagateErrors,
		OnError: func(err error) {
			log.Warn("delivery failed", "error", err)
		},
		Workers:   cfg.Dispatch.Workers,
		InboxSize: cfg.Dispatch.InboxSize,
		Metrics:   newDeliveryMetrics(collector, influx),
		Logger:    log.Component("router"),
	}
	if store != nil {
		routerOpts.Recorder = store
	}
	router, err := skyroute.New(routerOpts)
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}

	if err := observeConnection(router, collector, influx, log); err != nil {
		return err
	}
	if err := registerSystemRoutes(router, cfg.MQTT.DefaultQoS(), log); err != nil {
		return fmt.Errorf("registering system routes: %w", err)
	}

	// Operations API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Router:  router,
			Metrics: collector.Handler(),
			Version: version,
		}
		if store != nil {
			deps.Failures = store
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := router.ApplyConfig(cfg.MQTT.TransportConfig()); err != nil {
		return fmt.Errorf("applying MQTT config: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if store != nil {
		g.Go(func() error {
			return journal.Retain(gctx, store, cfg.Journal.Retention, pruneInterval, log.Component("journal"))
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// The main loop runs here, on the process main goroutine.
	runErr := router.Run(gctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	log.Info("shutdown signal received, cleaning up")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := router.Close(shutdownCtx); err != nil {
		log.Error("error closing router", "error", err)
	}

	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	log.Info("SkyRoute stopped")
	return runErr
}

// buildTransport returns the selected transport and a function releasing it.
func buildTransport(name string, log *logging.Logger) (skyroute.Transport, func(), error) {
	switch name {
	case transportPaho, "":
		t := mqtt.New()
		t.SetLogger(log.Component("mqtt"))
		return t, t.Close, nil
	case transportMemory:
		t := memtransport.New()
		return t, t.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown transport %q (want %s or %s)",
			skyroute.ErrConfiguration, name, transportPaho, transportMemory)
	}
}
