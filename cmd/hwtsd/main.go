// HWTS Core - Hardware Timestamp Engine
//
// This is the main entry point for the HWTS Core service. It hosts the
// timestamp engine registry, the configured providers, the channel
// recorder, and the HTTP/WebSocket API, with optional MQTT and
// time-series sinks for downstream consumers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/hwts/hwts-core/migrations"

	"github.com/hwts/hwts-core/internal/api"
	"github.com/hwts/hwts-core/internal/hte"
	"github.com/hwts/hwts-core/internal/infrastructure/config"
	"github.com/hwts/hwts-core/internal/infrastructure/database"
	"github.com/hwts/hwts-core/internal/infrastructure/influxdb"
	"github.com/hwts/hwts-core/internal/infrastructure/logging"
	"github.com/hwts/hwts-core/internal/infrastructure/mqtt"
	"github.com/hwts/hwts-core/internal/infrastructure/tsdb"
	"github.com/hwts/hwts-core/internal/providers/sim"
	"github.com/hwts/hwts-core/internal/recorder"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting HWTS Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "service", cfg.Service.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise the engine registry and register configured providers
	registry := hte.NewRegistry()
	registry.SetLogger(log)

	providers, err := registerProviders(registry, cfg, log)
	if err != nil {
		return fmt.Errorf("registering providers: %w", err)
	}
	defer func() {
		for _, p := range providers {
			if dev, lookupErr := registry.Lookup(p.Name()); lookupErr == nil {
				if unregErr := registry.Unregister(dev); unregErr != nil {
					log.Warn("unregistering provider", "provider", p.Name(), "error", unregErr)
				}
			}
		}
	}()
	log.Info("providers registered", "count", len(providers))

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to time-series sinks (optional)
	var tsWriters []recorder.TimestampWriter

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		tsWriters = append(tsWriters, influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var tsdbClient *tsdb.Client
	if cfg.TSDB.Enabled {
		tsdbClient, err = tsdb.Connect(ctx, cfg.TSDB)
		if err != nil {
			return fmt.Errorf("connecting to VictoriaMetrics: %w", err)
		}
		defer func() {
			log.Info("closing VictoriaMetrics connection")
			if closeErr := tsdbClient.Close(); closeErr != nil {
				log.Error("error closing VictoriaMetrics", "error", closeErr)
			}
		}()
		tsdbClient.SetOnError(func(err error) {
			log.Error("VictoriaMetrics write error", "error", err)
		})
		tsWriters = append(tsWriters, tsdbClient)
		log.Info("VictoriaMetrics connected", "url", cfg.TSDB.URL)
	} else {
		log.Info("VictoriaMetrics disabled")
	}

	// Start the channel recorder
	history := recorder.NewSQLiteHistory(db.DB)
	auditTrail := recorder.NewSQLiteAudit(db.DB)

	rec, err := recorder.New(registry, cfg.Monitors, recorder.Deps{
		History: history,
		Audit:   auditTrail,
		MQTT:    mqttClient,
		TS:      tsWriters,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("creating recorder: %w", err)
	}
	if startErr := rec.Start(ctx); startErr != nil {
		return fmt.Errorf("starting recorder: %w", startErr)
	}
	defer func() {
		log.Info("stopping recorder")
		rec.Stop()
	}()
	log.Info("recorder started", "monitors", len(cfg.Monitors))

	// Start the synthetic event generators after the recorder holds its
	// channels, so generated events are delivered rather than suppressed
	generators := startGenerators(ctx, providers, cfg, log)
	defer func() {
		for _, g := range generators {
			g.Stop()
		}
	}()

	// Retained health documents let consumers see device state without
	// waiting for the next publish
	if mqttClient != nil {
		publishDeviceHealth(mqttClient, cfg, rec, log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			publishDeviceHealth(mqttClient, cfg, rec, log)
		})
	}

	// Start the API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Registry: registry,
		Recorder: rec,
		History:  history,
		Audit:    auditTrail,
		MQTT:     mqttClient,
		DB:       db.DB,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, tsdbClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, generators, recorder (flushes rings), sinks, providers,
	// database.

	log.Info("HWTS Core stopped")
	return nil
}

// registerProviders creates and registers every configured sim provider.
func registerProviders(registry *hte.Registry, cfg *config.Config, log *logging.Logger) ([]*sim.Provider, error) {
	providers := make([]*sim.Provider, 0, len(cfg.Providers.Sim))

	for _, pc := range cfg.Providers.Sim {
		p := sim.New(sim.Options{
			Name:     pc.Name,
			Lines:    pc.Lines,
			Reserved: pc.Reserved,
			Logger:   log,
		})

		dev, err := registry.Register(p)
		if err != nil {
			return nil, fmt.Errorf("registering provider %q: %w", pc.Name, err)
		}
		p.Attach(dev)

		log.Info("provider registered",
			"provider", pc.Name,
			"lines", pc.Lines,
			"reserved", len(pc.Reserved),
		)
		providers = append(providers, p)
	}

	return providers, nil
}

// startGenerators launches the synthetic event generator for every provider
// that has one configured.
func startGenerators(ctx context.Context, providers []*sim.Provider, cfg *config.Config, log *logging.Logger) []*sim.Generator {
	var generators []*sim.Generator

	for i, pc := range cfg.Providers.Sim {
		if !pc.Generator.Enabled {
			continue
		}

		g := sim.NewGenerator(sim.GeneratorOptions{
			Provider: providers[i],
			Lines:    pc.Generator.Lines,
			Interval: pc.Generator.GetGeneratorInterval(),
			Logger:   log,
		})
		g.Start(ctx)
		generators = append(generators, g)
	}

	return generators
}

// publishDeviceHealth publishes a retained health document for each
// configured provider so dashboards see device state immediately after
// subscribing.
func publishDeviceHealth(client *mqtt.Client, cfg *config.Config, rec *recorder.Recorder, log *logging.Logger) {
	stats := rec.Stats()

	for _, pc := range cfg.Providers.Sim {
		monitors := 0
		for _, s := range stats {
			if s.Device == pc.Name {
				monitors++
			}
		}

		doc, err := json.Marshal(map[string]any{
			"device":       pc.Name,
			"lines":        pc.Lines,
			"monitors":     monitors,
			"state":        "running",
			"published_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			continue
		}

		topic := mqtt.Topics{}.DeviceHealth(pc.Name)
		if err := client.PublishRetained(topic, doc); err != nil {
			log.Warn("publishing device health", "device", pc.Name, "error", err)
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses HWTS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HWTS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - tsdbClient: VictoriaMetrics client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, tsdbClient *tsdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if tsdbClient != nil {
		if err := tsdbClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("victoriametrics: %w", err)
		}
	}

	return nil
}
