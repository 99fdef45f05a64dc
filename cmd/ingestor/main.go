package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hnpulse/ingestor/internal/classify"
	"hnpulse/ingestor/internal/config"
	"hnpulse/ingestor/internal/database"
	"hnpulse/ingestor/internal/ingest"
	"hnpulse/ingestor/internal/scrape"
	"hnpulse/ingestor/internal/server"
	"hnpulse/ingestor/internal/server/api"
	"hnpulse/ingestor/internal/store"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func usage() {
	fmt.Println("Usage: ingestor [command] [options]")
	fmt.Println("Commands: serve, fetch")
	fmt.Println("\nFor command-specific options, use: ingestor [command] -h")
}

func main() {
	// Optional .env overlay; missing file is fine.
	_ = godotenv.Load()

	cfg := config.DefaultConfig()

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: HNPULSE_DB_PATH)")
	serveCmd.StringVar(&cfg.ServerHost, "host", cfg.ServerHost,
		"Host to bind the server to (env: HNPULSE_HOST)")
	serveCmd.IntVar(&cfg.ServerPort, "port", cfg.ServerPort,
		"Port to listen on (env: HNPULSE_PORT)")
	serveCmd.BoolVar(&cfg.AutoFetch, "auto-fetch", cfg.AutoFetch,
		"Run periodic ingestion alongside the API server (env: HNPULSE_AUTO_FETCH)")
	var serveLogLevelStr string
	serveCmd.StringVar(&serveLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: HNPULSE_LOG_LEVEL)")

	fetchCmd := flag.NewFlagSet("fetch", flag.ExitOnError)
	fetchCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: HNPULSE_DB_PATH)")
	var pages int
	fetchCmd.IntVar(&pages, "pages", cfg.MaxPages,
		"Number of listing pages to fetch (env: HNPULSE_MAX_PAGES)")
	var resetDB bool
	fetchCmd.BoolVar(&resetDB, "reset-db", false,
		"Delete the existing database and start from an empty schema")
	var fetchLogLevelStr string
	fetchCmd.StringVar(&fetchLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: HNPULSE_LOG_LEVEL)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, serveLogLevelStr)

		if err := runServe(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "fetch":
		fetchCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, fetchLogLevelStr)

		if err := runFetch(cfg, pages, resetDB); err != nil {
			log.Error().Err(err).Msg("Fetch failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		usage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		usage()
		os.Exit(1)
	}
}

func applyLogLevel(cfg *config.Config, levelStr string) {
	if level, err := zerolog.ParseLevel(levelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
}

// pipeline bundles the assembled core components.
type pipeline struct {
	db          *database.DB
	store       *store.Store
	classifier  *classify.Client
	categorizer *ingest.Categorizer
	ingestor    *ingest.Ingestor
}

// buildPipeline opens the store, seeds reference data and wires the
// fetch-parse-store-classify components together. The caller owns the
// returned database handle.
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	st := store.New(db)
	if err := st.Seed(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed reference data: %w", err)
	}

	classifier := classify.NewClient(classify.Config{
		Endpoint: cfg.GeminiEndpoint,
		Model:    cfg.GeminiModel,
		APIKey:   cfg.GeminiAPIKey,
	})
	categorizer := ingest.NewCategorizer(st, classifier, cfg.ClassifyDelay)

	// The post-ingest categorization run only happens when the feature
	// flag is on; the on-demand API endpoint works either way.
	var postIngest *ingest.Categorizer
	if cfg.CategorizeEnabled {
		postIngest = categorizer
	}

	fetcher := scrape.NewFetcher(cfg.BaseURL, nil)
	ingestor := ingest.NewIngestor(fetcher, st, postIngest, cfg.PageSize, cfg.PageDelay, cfg.BatchSize)

	return &pipeline{
		db:          db,
		store:       st,
		classifier:  classifier,
		categorizer: categorizer,
		ingestor:    ingestor,
	}, nil
}

// runServe starts the API server, plus the periodic ingestion triggers
// when auto-fetch is enabled.
func runServe(cfg *config.Config) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AutoFetch {
		log.Info().Msg("Auto-fetch enabled, starting initial ingestion pass")
		go func() {
			if err := p.ingestor.Ingest(ctx, cfg.MaxPages); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Initial ingestion pass failed")
			}
		}()
		go p.ingestor.RunPeriodic(ctx, cfg.RefreshInterval, cfg.FullRefreshInterval, cfg.MaxPages)
	} else {
		log.Info().Msg("Auto-fetch disabled, use POST /api/fetch to ingest manually")
	}

	handler := api.NewHandler(p.store, p.ingestor, p.categorizer, p.classifier,
		cfg.WindowDays, cfg.Location(), cfg.MaxPages)

	return server.RunServer(handler, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}

// runFetch executes a single ingestion pass and exits. With reset set it
// deletes the existing database first, prompting for confirmation.
func runFetch(cfg *config.Config, pages int, reset bool) error {
	if reset {
		if _, err := os.Stat(cfg.DBPath); err == nil {
			fmt.Printf("Database %s already exists. All stored stories and categorizations will be lost.\n", cfg.DBPath)
			fmt.Print("Delete and recreate? (y/N): ")

			var answer string
			fmt.Scanln(&answer)

			if strings.ToLower(answer) != "y" {
				log.Info().Msg("Operation canceled by user")
				return fmt.Errorf("operation canceled by user")
			}

			if err := database.DeleteDB(cfg.DBPath); err != nil {
				log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to delete existing database")
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			log.Info().Str("path", cfg.DBPath).Msg("Deleted existing database")
		}
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	if err := p.ingestor.Ingest(ctx, pages); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Ingestion pass canceled by shutdown signal")
			return nil
		}
		return err
	}

	log.Info().Msg("One-shot ingestion completed")
	return nil
}
