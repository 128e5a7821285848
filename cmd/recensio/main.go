package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/app"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/models"
	"github.com/ternarybob/recensio/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	serverPort  = flag.Int("port", 0, "Server port (overrides config)")
	serverHost  = flag.String("host", "", "Server host (overrides config)")
	showVersion = flag.Bool("version", false, "Print version information")
	sourceURL   = flag.String("source", "", "Listing URL to scrape (stored as the source setting)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Recensio version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence: config (defaults -> files -> env -> flags),
	// then logger, then banner
	if len(configFiles) == 0 {
		if _, err := os.Stat("recensio.toml"); err == nil {
			configFiles = append(configFiles, "recensio.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger := common.InitLogger(config)
	common.PrintBanner()

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	if *sourceURL != "" {
		if err := application.StorageManager.SettingStorage().Set(context.Background(), models.SettingSourceURL, *sourceURL); err != nil {
			logger.Fatal().Err(err).Msg("Failed to store source URL")
			os.Exit(1)
		}
		logger.Info().Str("url", *sourceURL).Msg("Source listing configured")
	}

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start background services")
		os.Exit(1)
	}

	httpServer := server.New(application)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-httpServer.ShutdownRequested():
		logger.Info().Msg("Shutdown requested via API")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	application.Shutdown()
}
