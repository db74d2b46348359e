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
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/manager"
	"github.com/ternarybob/prospect/internal/scraper"
	"github.com/ternarybob/prospect/internal/scraper/sources"
	"github.com/ternarybob/prospect/internal/services/ai"
	"github.com/ternarybob/prospect/internal/services/events"
	"github.com/ternarybob/prospect/internal/storage/badger"
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
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Prospect version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("prospect.toml"); err == nil {
			configFiles = append(configFiles, "prospect.toml")
		}
	}

	// Startup sequence: config (defaults -> files -> env), logger, banner
	config, err := common.LoadConfig(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner()

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("ai_provider", config.AI.Provider).
		Msg("Application configuration loaded")

	if err := run(config, logger); err != nil {
		logger.Fatal().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}

func run(config *common.Config, logger arbor.ILogger) error {
	storage, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer storage.Close()

	provider, err := ai.NewProvider(&config.AI, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize AI provider: %w", err)
	}
	defer provider.Close()

	eventService := events.NewService(logger)
	defer eventService.Close()

	scraperManager := scraper.NewManager(config.Scraper, logger)
	registerScrapers(scraperManager, config.Scraper.Sources, logger)

	jobManager := manager.New(*config, storage, eventService, scraperManager, provider, logger)

	ctx := context.Background()
	if err := jobManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job manager: %w", err)
	}

	logger.Info().Msg("Prospect is running, press Ctrl+C to stop")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	if err := jobManager.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Job manager shutdown reported errors")
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}

// registerScrapers wires the configured scraping capabilities. The "http"
// type handles server-rendered directories; "browser" renders client-side
// listings in headless Chrome before parsing.
func registerScrapers(m *scraper.Manager, configs []common.ScraperSourceConfig, logger arbor.ILogger) {
	for _, cfg := range configs {
		switch cfg.Type {
		case "browser":
			m.RegisterScraper(sources.NewBrowserScraper(sources.BrowserScraperConfig{
				Source:            cfg.Name,
				BaseURL:           cfg.BaseURL,
				WaitSelector:      cfg.WaitSelector,
				RequestsPerMinute: cfg.RequestsPerMinute,
				Headless:          true,
			}, logger))
		default:
			m.RegisterScraper(sources.NewDirectoryScraper(sources.DirectoryScraperConfig{
				Source:            cfg.Name,
				BaseURL:           cfg.BaseURL,
				RequestsPerMinute: cfg.RequestsPerMinute,
			}, logger))
		}
	}
}
