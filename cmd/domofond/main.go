// domofon-core - intercom session manager and door controller
//
// This is the main entry point for the domofon-core daemon. It keeps
// the dual cloud credentials alive, maintains the door relay catalog,
// runs the face-match watcher, and exposes the local control surfaces
// (HTTP API, WebSocket events, MQTT).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/smolnikov/domofon-core/migrations"

	"github.com/smolnikov/domofon-core/internal/cloud"
	"github.com/smolnikov/domofon-core/internal/dispatch"
	"github.com/smolnikov/domofon-core/internal/face"
	"github.com/smolnikov/domofon-core/internal/httpapi"
	"github.com/smolnikov/domofon-core/internal/infrastructure/config"
	"github.com/smolnikov/domofon-core/internal/infrastructure/database"
	"github.com/smolnikov/domofon-core/internal/infrastructure/influxdb"
	"github.com/smolnikov/domofon-core/internal/infrastructure/logging"
	"github.com/smolnikov/domofon-core/internal/infrastructure/mqtt"
	"github.com/smolnikov/domofon-core/internal/relay"
	"github.com/smolnikov/domofon-core/internal/session"
	"github.com/smolnikov/domofon-core/internal/watcher"
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
	log.Info("starting domofon-core",
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

	// Cloud client. A missing device id is generated once per process;
	// persist it in the config so the cloud sees a stable device.
	cloudClient := cloud.NewClient(cloud.Options{
		APIBaseURL: cfg.Account.APIBaseURL,
		CRMBaseURL: cfg.Account.CRMBaseURL,
		Timeout:    cfg.HTTPTimeout(),
		Device: cloud.Device{
			ID:             cfg.Account.DeviceID,
			AppVersion:     cfg.Account.AppVersion,
			Platform:       cfg.Account.Platform,
			APISource:      cfg.Account.APISource,
			AcceptLanguage: cfg.Account.AcceptLanguage,
			UserAgent:      cfg.Account.UserAgent,
		},
	})
	cloudClient.SetLogger(log)
	if cfg.Account.DeviceID == "" {
		log.Warn("no device id configured, generated one for this run",
			"device_id", cloudClient.DeviceID(),
			"hint", "set account.device_id to keep it stable across restarts",
		)
	}

	// Credential session, restored from the last persisted tokens.
	sess := session.New(session.Options{
		Cloud:   cloudClient,
		Phone:   cfg.Account.Phone,
		BuyerID: cfg.Account.BuyerID,
	})
	sess.SetLogger(log)
	if len(cfg.Account.MobileToken) > 0 {
		if restoreErr := sess.RestoreMobileToken(cfg.Account.MobileToken); restoreErr != nil {
			log.Warn("stored mobile token unusable, login required", "error", restoreErr)
		} else {
			log.Info("mobile token restored")
		}
	}
	if len(cfg.Account.CRMToken) > 0 {
		if restoreErr := sess.RestoreCRMToken(cfg.Account.CRMToken); restoreErr != nil {
			log.Warn("stored crm token unusable, will reauthorize", "error", restoreErr)
		} else {
			log.Info("crm token restored")
		}
	}

	// Relay catalog with the SQLite snapshot fallback.
	catalog := relay.NewCatalog(relay.Options{
		Fetcher:        cloudClient,
		Tokens:         sess,
		Snapshots:      relay.NewSQLiteSnapshots(db.DB),
		ScopeID:        cfg.Account.Phone,
		DefaultBuyerID: cfg.Account.BuyerID,
	})
	catalog.SetLogger(log)
	// CRM reauthorizations take their buyer id from the catalog so the
	// cloud's contract hints are cross-checked against the configured one.
	sess.SetBuyerIDSource(catalog)
	if records, refreshErr := catalog.Refresh(ctx); refreshErr != nil {
		// Not fatal: the catalog refills on the next successful refresh,
		// and door commands for unknown uids fail cleanly.
		log.Warn("initial catalog refresh failed", "error", refreshErr)
	} else {
		log.Info("door catalog loaded", "doors", len(records))
	}

	// Known-face registry. The null encoder keeps enrollment and
	// matching switched off until a real encoder is plugged in; the
	// registry itself still loads so the API can list and manage names.
	faceRepo := face.NewSQLiteRepository(db.DB)
	matcher := face.NewMatcher(face.DisabledEncoder{}, faceRepo, cfg.Watcher.MatchThreshold)
	matcher.SetLogger(log)
	if loadErr := matcher.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading known faces: %w", loadErr)
	}

	// Door-open dispatcher with the single-reauth recovery path.
	dispatcher := dispatch.New(cloudClient, sess)
	dispatcher.SetLogger(log)

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
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
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

	// WebSocket hub, created ahead of the API server so the watcher sink
	// can broadcast into it.
	hub := httpapi.NewHub(log)
	go hub.Run(ctx)

	// Background face-match watcher (optional)
	var wtch *watcher.Watcher
	if cfg.Watcher.Enabled {
		wtch = watcher.New(watcher.Options{
			Doors:    catalog,
			Frames:   cloudClient,
			Matcher:  matcher,
			Opener:   dispatcher,
			Interval: cfg.WatcherInterval(),
			Cooldown: cfg.WatcherCooldown(),
			DoorUIDs: cfg.Watcher.Doors,
			Sink:     makeEventSink(hub, mqttClient, influxClient, byte(cfg.MQTT.QoS), log),
		})
		wtch.SetLogger(log)
		wtch.Start(ctx)
		defer func() {
			log.Info("stopping watcher")
			wtch.Stop()
		}()
	} else {
		log.Info("watcher disabled")
	}

	// MQTT command surface
	if mqttClient != nil {
		if subErr := subscribeCommands(ctx, mqttClient, catalog, dispatcher, wtch, byte(cfg.MQTT.QoS), log); subErr != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", subErr)
		}
	}

	// Local HTTP control API (optional)
	if cfg.API.Enabled {
		apiDeps := httpapi.Deps{
			Config:      cfg.API,
			Logger:      log,
			Catalog:     catalog,
			Opener:      dispatcher,
			Faces:       matcher,
			Account:     sess,
			Cloud:       cloudClient,
			ExternalHub: hub,
			Version:     version,
		}
		if wtch != nil {
			apiDeps.Watcher = wtch
		}
		apiServer, apiErr := httpapi.New(apiDeps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("local API disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Watcher
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("domofon-core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOMOFON_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOMOFON_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// makeEventSink fans watcher events out to the WebSocket hub, the MQTT
// event topics, and InfluxDB telemetry. Every target tolerates being
// absent.
func makeEventSink(hub *httpapi.Hub, mqttClient *mqtt.Client, influxClient *influxdb.Client, qos byte, log *logging.Logger) watcher.Sink {
	topics := mqtt.Topics{}

	return func(event watcher.Event) {
		payload := map[string]any{
			"type": string(event.Type),
			"at":   event.At.UTC().Format(time.RFC3339),
		}
		if event.DoorUID != "" {
			payload["door_uid"] = event.DoorUID
			payload["address"] = event.Address
		}
		if event.Name != "" {
			payload["name"] = event.Name
			payload["distance"] = event.Distance
		}
		if event.Error != "" {
			payload["error"] = event.Error
		}
		if event.Type == watcher.EventCycleCompleted {
			payload["doors"] = event.Doors
			payload["duration_ms"] = event.Duration.Milliseconds()
		}

		if event.Type == watcher.EventCycleCompleted {
			hub.Broadcast(httpapi.ChannelWatcherEvent, payload)
		} else {
			hub.Broadcast(httpapi.ChannelDoorEvent, payload)
		}

		if mqttClient != nil {
			data, err := json.Marshal(payload)
			if err == nil {
				topic := topics.WatcherEvent()
				if event.DoorUID != "" {
					topic = topics.DoorEvent(event.DoorUID)
				}
				if pubErr := mqttClient.Publish(topic, data, qos, false); pubErr != nil {
					log.Warn("event publish failed", "topic", topic, "error", pubErr)
				}
			}
		}

		if influxClient != nil {
			switch event.Type {
			case watcher.EventFaceMatched:
				influxClient.WriteMatchDistance(event.DoorUID, event.Name, event.Distance)
			case watcher.EventDoorOpened, watcher.EventOpenFailed:
				influxClient.WriteDoorEvent(event.DoorUID, event.Address, string(event.Type))
			case watcher.EventCycleCompleted:
				influxClient.WriteCycleDuration(event.Doors, event.Duration)
			}
		}
	}
}

// subscribeCommands wires the MQTT command topics: per-door open
// commands and the watcher cycle trigger.
func subscribeCommands(ctx context.Context, mqttClient *mqtt.Client, catalog *relay.Catalog, dispatcher *dispatch.Dispatcher, wtch *watcher.Watcher, qos byte, log *logging.Logger) error {
	topics := mqtt.Topics{}

	err := mqttClient.Subscribe(topics.AllDoorCommands(), qos, func(topic string, _ []byte) error {
		uid, ok := mqtt.DoorUIDFromCommandTopic(topic)
		if !ok {
			log.Warn("unparseable door command topic", "topic", topic)
			return nil
		}
		rec, getErr := catalog.Get(uid)
		if getErr != nil {
			log.Warn("door command for unknown uid", "uid", uid)
			return nil
		}
		if openErr := dispatcher.OpenDoor(ctx, rec.MAC, rec.DoorID, rec.OpenLink); openErr != nil {
			log.Error("mqtt door open failed", "uid", uid, "error", openErr)
			return openErr
		}
		log.Info("door opened via mqtt", "uid", uid)
		return nil
	})
	if err != nil {
		return err
	}

	if wtch != nil {
		err = mqttClient.Subscribe(topics.WatcherCommand(), qos, func(_ string, _ []byte) error {
			wtch.Trigger(ctx)
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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

	return nil
}
