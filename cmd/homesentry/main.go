// Home Sentry - home automation management backend
//
// This is the main entry point for the Home Sentry service. It exposes a
// REST API for managing homes, rooms, and devices, records Home Assistant
// MQTT traffic as signal states, and keeps an audit trail of every
// management mutation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/home-sentry/core/migrations"

	"github.com/home-sentry/core/internal/api"
	"github.com/home-sentry/core/internal/audit"
	"github.com/home-sentry/core/internal/auth"
	"github.com/home-sentry/core/internal/device"
	"github.com/home-sentry/core/internal/home"
	"github.com/home-sentry/core/internal/infrastructure/config"
	"github.com/home-sentry/core/internal/infrastructure/database"
	"github.com/home-sentry/core/internal/infrastructure/influxdb"
	"github.com/home-sentry/core/internal/infrastructure/logging"
	"github.com/home-sentry/core/internal/infrastructure/mqtt"
	"github.com/home-sentry/core/internal/ingest"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Home Sentry",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	if cfg.UsesFallbackAdminCredentials() {
		log.Warn("running with built-in admin credentials; set HOMESENTRY_ADMIN_USERNAME and HOMESENTRY_ADMIN_PASSWORD")
	}

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

	// Repositories and services
	auditLog := audit.NewLogger(db.DB)
	homeRepo := home.NewSQLiteRepository(db.DB)
	homes := home.NewService(homeRepo, auditLog, log)
	deviceRepo := device.NewSQLiteRepository(db.DB)
	devices := device.NewService(deviceRepo, homeRepo, auditLog, log)

	// Authentication
	tokens := auth.NewTokenService(cfg.Security.JWT.Secret, cfg.Security.JWT.ExpirySeconds)
	authn := auth.NewAuthenticator(cfg.Security.Admin.Username, cfg.Security.Admin.Password, tokens, log)

	// WebSocket hub, shared between the API server and the ingest pipeline
	hub := api.NewHub(log)
	go hub.Run(ctx)

	// Connect to MQTT broker (optional; API works without ingest)
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
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled, ingest pipeline will not run")
	}

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the ingest pipeline (requires MQTT)
	if mqttClient != nil {
		var metrics ingest.MetricWriter
		if influxClient != nil {
			metrics = influxClient
		}

		pipeline, pipeErr := ingest.New(ingest.Deps{
			Config:  cfg.Ingest,
			Repo:    deviceRepo,
			MQTT:    mqttClient,
			QoS:     byte(cfg.MQTT.QoS),
			Metrics: metrics,
			Events:  hub,
			Logger:  log,
		})
		if pipeErr != nil {
			return fmt.Errorf("creating ingest pipeline: %w", pipeErr)
		}
		if startErr := pipeline.Start(ctx); startErr != nil {
			return fmt.Errorf("starting ingest pipeline: %w", startErr)
		}
		log.Info("ingest pipeline started", "topic_prefix", cfg.Ingest.TopicPrefix)
	}

	// Start the API server
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Homes:   homes,
		Devices: devices,
		Audit:   auditLog,
		Auth:    authn,
		Hub:     hub,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Home Sentry stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMESENTRY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMESENTRY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional components (mqtt, influx) are skipped when nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
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

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
