// Gray Logic Locks - smart lock bridge
//
// This is the main entry point for the lock bridge daemon. It discovers
// the smart locks on a cloud account, mirrors their state to MQTT and
// WebSocket clients, and accepts lock, unlock and open commands from MQTT
// and the REST API. Every command is followed by a bounded poll of the
// lock service until the lock settles.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-locks/migrations"

	"github.com/nerrad567/gray-logic-locks/internal/api"
	"github.com/nerrad567/gray-logic-locks/internal/audit"
	"github.com/nerrad567/gray-logic-locks/internal/bridges/smartlock"
	"github.com/nerrad567/gray-logic-locks/internal/i18n"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-locks/internal/lock"
	"github.com/nerrad567/gray-logic-locks/internal/lock/cloud"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/graylock.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the infrastructure, the lock bridge and the API, then blocks
// until ctx is cancelled. Shutdown runs through the deferred calls in
// reverse order of startup.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Locks",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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

	auditRepo := audit.NewSQLiteRepository(db.DB)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Telemetry stays a nil interface when InfluxDB is disabled.
	var telemetry smartlock.Telemetry
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
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	service, err := cloud.New(ctx, cloudConfig(cfg.Locks))
	if err != nil {
		return fmt.Errorf("creating lock service client: %w", err)
	}
	log.Info("lock service client ready", "auth_mode", cfg.Locks.Auth.Mode)

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("loading translations: %w", err)
	}
	if !catalog.Has(cfg.Locks.Language) {
		log.Warn("no catalog for configured language, falling back to en", "language", cfg.Locks.Language)
	}

	// The hub runs for the whole process; the projector pushes to it.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	bridgeLog := log.Component("smartlock")
	projector := smartlock.NewProjector(smartlock.ProjectorOptions{
		Publisher:  mqttClient,
		Translator: catalog,
		Telemetry:  telemetry,
		Notifier:   hub,
		Language:   cfg.Locks.Language,
		Logger:     bridgeLog,
	})

	bridge, err := smartlock.NewBridge(smartlock.Options{
		Service:   service,
		MQTT:      mqttClient,
		Projector: projector,
		Device: lock.DeviceOptions{
			Monitor: lock.MonitorOptions{
				Interval:          cfg.Locks.PollInterval,
				MaxOperationTries: cfg.Locks.MaxOperationTries,
				MaxStateTries:     cfg.Locks.MaxStateTries,
			},
		},
		ResyncInterval: cfg.Locks.ResyncInterval,
		HealthInterval: cfg.Locks.HealthInterval,
		Audit:          auditRepo,
		Telemetry:      telemetry,
		Logger:         bridgeLog,
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating lock bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting lock bridge: %w", err)
	}
	defer func() {
		log.Info("stopping lock bridge")
		bridge.Stop()
	}()

	apiServer, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log.Component("api"),
		Locks:      bridge,
		Audit:      auditRepo,
		Translator: catalog,
		Language:   cfg.Locks.Language,
		MQTT:       mqttClient,
		Collectors: append(lock.MetricsCollectors(), cloud.MetricsCollectors()...),
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("Gray Logic Locks stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOCK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOCK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// cloudConfig maps the locks section onto the lock service client config.
func cloudConfig(l config.LocksConfig) cloud.Config {
	cc := cloud.Config{
		BaseURL: l.BaseURL,
		Timeout: l.RequestTimeout,
	}
	switch l.Auth.Mode {
	case config.AuthModeOAuth2:
		o := l.Auth.OAuth2
		cc.OAuth = &cloud.OAuthConfig{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			AuthURL:      o.AuthURL,
			TokenURL:     o.TokenURL,
			RefreshToken: o.RefreshToken,
			Scopes:       o.Scopes,
		}
	default:
		cc.PersonalKey = l.Auth.PersonalKey
	}
	return cc
}

// healthCheck verifies all infrastructure connections are healthy.
// The lock service is not checked here: an unreachable service degrades
// the bridge health topic instead of stopping the process.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
