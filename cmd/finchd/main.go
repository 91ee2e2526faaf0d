package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finchmq/finch/internal/broker"
	"github.com/finchmq/finch/internal/config"
	"github.com/finchmq/finch/internal/httpapi"
	"github.com/finchmq/finch/internal/telemetry"
)

const (
	appName    = "finchd"
	appVersion = "0.1.0"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file (optional)")
		listenAddr  = flag.String("listen", "", "Listen address for the HTTP API (overrides config)")
		storagePath = flag.String("storage", "", "SQLite database file for durable state (overrides config)")
		secretKey   = flag.String("secret-key", "", "JWT signing secret (overrides config)")
		noAuth      = flag.Bool("no-auth", false, "Disable authentication (development only)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	logger := telemetry.SetupLogger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// Flags win over the config file.
	if *listenAddr != "" {
		cfg.Server.Addr = *listenAddr
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if *secretKey != "" {
		cfg.Server.SecretKey = *secretKey
	}
	if *noAuth {
		cfg.Server.NoAuth = true
	}

	logger.Info("starting broker",
		"app", appName,
		"version", appVersion,
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Path,
		"persistent", cfg.Storage.Path != "")

	node, err := broker.Open(broker.Options{
		StoragePath:     cfg.Storage.Path,
		MaxRedeliveries: cfg.Broker.MaxRedeliveries,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to open broker node", "error", err)
		os.Exit(1)
	}

	server := httpapi.NewServer(node, httpapi.Config{
		Addr:      cfg.Server.Addr,
		SecretKey: cfg.Server.SecretKey,
		NoAuth:    cfg.Server.NoAuth,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.Server.NoAuth {
		logger.Warn("authentication disabled, do not run like this in production")
	}
	logger.Info("broker started", "addr", cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}
	if err := node.Close(); err != nil {
		logger.Error("error closing broker node", "error", err)
	}
	logger.Info("broker stopped")
}

// loadConfig loads the YAML config file, or the defaults when no path was
// given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(path)
}
