package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/grandcat/zeroconf"

	"loom-maintenance-backend/config"
	"loom-maintenance-backend/internal/api"
	"loom-maintenance-backend/internal/db"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/monitor"
	"loom-maintenance-backend/internal/notification"
	"loom-maintenance-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logs.Logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logs.Init(logs.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	logs.Logger.Infof("configuration loaded successfully from %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore, err := openStore(cfg)
	if err != nil {
		logs.Logger.Fatalf("failed to initialize store: %v", err)
	}
	if _, err := store.EnsureSeed(ctx, appStore, time.Now()); err != nil {
		// A corrupt store is served as "data unavailable" rather than overwritten.
		logs.Logger.WithError(err).Error("could not verify stored document")
	}
	logs.Logger.WithField("driver", cfg.Storage.Driver).Info("data store initialized")

	// Notification sinks
	var (
		sinks          []notification.Sink
		webpushOptions *webpush.Options
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		sinks = append(sinks, notification.NewWebPushSink(appStore, webpushOptions))
	} else {
		logs.Logger.Warn("VAPID keys not configured, web push disabled")
	}
	if cfg.MQTT.Broker != "" {
		mqttSink, err := notification.NewMQTTSink(cfg.MQTT)
		if err != nil {
			logs.Logger.WithError(err).Error("MQTT broker unavailable, notifications will not be published")
		} else {
			defer mqttSink.Close()
			sinks = append(sinks, mqttSink)
		}
	}

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, sinks...)
	pool.Start(ctx)

	monitorSvc := monitor.NewService(cfg.Monitor, appStore, pool)
	go monitorSvc.Run(ctx)

	if err := os.MkdirAll(cfg.Storage.UploadsDir, 0o755); err != nil {
		logs.Logger.Fatalf("failed to create uploads directory: %v", err)
	}
	handler := api.NewHandler(appStore, api.Options{
		Version:        cfg.Server.Version,
		UploadsDir:     cfg.Storage.UploadsDir,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		Dispatcher:     pool,
		WebPush:        webpushOptions,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logs.Logger.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	if cfg.MDNS.Enabled {
		txt := []string{"version=" + cfg.Server.Version, "path=/api"}
		mdns, err := zeroconf.Register(cfg.MDNS.Instance, cfg.MDNS.Service, cfg.MDNS.Domain, cfg.Server.Port, txt, nil)
		if err != nil {
			logs.Logger.WithError(err).Warn("failed to advertise service via mDNS")
		} else {
			defer mdns.Shutdown()
			logs.Logger.WithField("service", cfg.MDNS.Service).Info("advertising API via mDNS")
		}
	}

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logs.Logger.Info("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logs.Logger.Errorf("HTTP server Shutdown: %v", err)
	}
	cancel()
	pool.Wait()

	logs.Logger.Info("Server gracefully stopped")
}

// openStore picks the document store for the configured driver.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "file":
		return store.NewFileStore(cfg.Storage.DataDir, cfg.Storage.MaxBackups)
	case "sqlite", "postgres":
		gormDB, err := db.Init(cfg.Storage.Driver, &cfg.Database)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(gormDB, cfg.Storage.MaxBackups), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
