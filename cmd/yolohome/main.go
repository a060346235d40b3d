// YoloHome Gateway
//
// This is the main entry point for the YoloHome gateway: the bridge
// between Adafruit IO device feeds and the mobile/web clients. It owns
// the broker connection lifecycle, the HTTP/WebSocket API, account and
// activity log storage, and the optional telemetry and door camera
// loops.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/yolohome/gateway/internal/api"
	"github.com/yolohome/gateway/internal/audit"
	"github.com/yolohome/gateway/internal/device"
	"github.com/yolohome/gateway/internal/doorcam"
	"github.com/yolohome/gateway/internal/feed"
	"github.com/yolohome/gateway/internal/infrastructure/config"
	"github.com/yolohome/gateway/internal/infrastructure/logging"
	"github.com/yolohome/gateway/internal/infrastructure/mongodb"
	"github.com/yolohome/gateway/internal/session"
	"github.com/yolohome/gateway/internal/telemetry"
	"github.com/yolohome/gateway/internal/user"
	"github.com/yolohome/gateway/internal/voice"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "unknown"
)

// defaultConfigPath is used when YOLOHOME_CONFIG is not set.
const defaultConfigPath = "configs/config.yaml"

// mongoDisconnectTimeout bounds the disconnect during shutdown.
const mongoDisconnectTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Optional .env for local development; environment variables win.
	//nolint:errcheck // missing .env is the normal production case
	godotenv.Load()

	log := logging.Default()
	log.Info("starting yolohome gateway", "version", version, "commit", commit)

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging)
	log.Info("configuration loaded",
		"broker", cfg.Adafruit.Broker.Host,
		"database", cfg.MongoDB.Database,
	)

	// Document store for accounts and activity logs
	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("connecting to mongodb: %w", err)
	}
	defer func() {
		log.Info("disconnecting from mongodb")
		if err := mongodb.Disconnect(mongoClient, mongoDisconnectTimeout); err != nil {
			log.Error("mongodb disconnect failed", "error", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)
	users := user.NewMongoRepository(db)
	audits := audit.NewMongoRepository(db)

	// Device registry; empty until the first connect rebuilds it
	dialer := feed.NewMQTTDialer(cfg.Adafruit)
	discovery := feed.NewHTTPDiscovery(cfg.Adafruit.RESTURL,
		time.Duration(cfg.Adafruit.DiscoveryTimeout)*time.Second)
	registry := device.NewRegistry(dialer, discovery, log)
	defer registry.Teardown()

	if cfg.DoorCam.Enabled {
		watcher := doorcam.New(cfg.DoorCam,
			doorcam.NewHTTPFrameSource(cfg.DoorCam.SnapshotURL),
			doorcam.NewHTTPClassifier(cfg.DoorCam.ClassifierURL),
			log)
		registry.SetOnRebuild(watcher.Rebind)
		log.Info("door camera watcher enabled", "door_feed", cfg.DoorCam.DoorFeed)
	}

	sessions := session.NewManager(users, audits, registry, nil, log)

	var transcriber voice.Transcriber
	if cfg.Speech.Enabled {
		transcriber = voice.NewHTTPTranscriber(cfg.Speech.ServiceURL,
			time.Duration(cfg.Speech.Timeout)*time.Second)
		log.Info("speech transcription enabled", "service", cfg.Speech.ServiceURL)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// Optional sensor history recorder
	if cfg.InfluxDB.Enabled {
		recorder, err := telemetry.Connect(cfg.InfluxDB, registry.Snapshot, log)
		if err != nil {
			return fmt.Errorf("connecting to influxdb: %w", err)
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Error("telemetry close failed", "error", err)
			}
		}()
		group.Go(func() error {
			recorder.Run(groupCtx)
			return nil
		})
		log.Info("telemetry recorder started", "bucket", cfg.InfluxDB.Bucket)
	}

	server, err := api.New(api.Deps{
		Config:      cfg.Server,
		WS:          cfg.WebSocket,
		Logger:      log,
		Registry:    registry,
		Session:     sessions,
		Users:       users,
		Audits:      audits,
		Transcriber: transcriber,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	if err := server.Start(groupCtx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		return server.Close()
	})

	log.Info("gateway ready", "port", cfg.Server.Port)

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("gateway stopped")
	return nil
}

// getConfigPath returns the config file path from the environment or
// the default.
func getConfigPath() string {
	if path := os.Getenv("YOLOHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
