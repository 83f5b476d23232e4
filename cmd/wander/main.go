// Package main runs the wander browsing service: an HTTP and WebSocket
// surface over autonomous, approval-gated web browsing sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/wander/pkg/browse"
	"github.com/entrhq/wander/pkg/browse/urlpolicy"
	"github.com/entrhq/wander/pkg/browser"
	appconfig "github.com/entrhq/wander/pkg/config"
	"github.com/entrhq/wander/pkg/logging"
	"github.com/entrhq/wander/pkg/search"
	"github.com/entrhq/wander/pkg/server"
	"github.com/entrhq/wander/pkg/store"
)

const (
	version      = "0.1.0"
	defaultModel = "gpt-4o"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	ConfigFile  string
	Addr        string
	DBPath      string
	ShowVersion bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("wander v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, config); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "wander: %v\n", err)
		os.Exit(1)
	}
	cancel()
}

func parseFlags() *CLIConfig {
	config := &CLIConfig{}

	flag.StringVar(&config.APIKey, "api-key", "", "LLM API key (overrides OPENAI_API_KEY)")
	flag.StringVar(&config.BaseURL, "base-url", "", "LLM API base URL (overrides OPENAI_BASE_URL)")
	flag.StringVar(&config.Model, "model", defaultModel, "LLM model to use")
	flag.StringVar(&config.ConfigFile, "config", "", "Path to config file (default ~/.wander/config.yaml)")
	flag.StringVar(&config.Addr, "addr", "", "Listen address (overrides config)")
	flag.StringVar(&config.DBPath, "db", "", "SQLite database path (overrides config)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")
	flag.Parse()

	return config
}

func run(ctx context.Context, cli *CLIConfig) error {
	// A missing .env is fine; explicit env still wins.
	_ = godotenv.Load()

	if err := appconfig.Initialize(cli.ConfigFile); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	logger, err := logging.NewLogger("wander")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging unavailable: %v\n", err)
	}
	defer logger.Close()

	provider, err := appconfig.BuildProvider(cli.Model, cli.BaseURL, cli.APIKey, defaultModel)
	if err != nil {
		return err
	}

	browseCfg := appconfig.GetBrowse()
	searchCfg := appconfig.GetSearch()
	storeCfg := appconfig.GetStore()
	serverCfg := appconfig.GetServer()

	dbPath := cli.DBPath
	if dbPath == "" {
		dbPath = storeCfg.GetPath()
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".wander", "wander.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store at %s: %w", dbPath, err)
	}
	defer db.Close()

	runtime := browser.NewRuntime(browseCfg.GetHeadless())
	if err := runtime.Start(); err != nil {
		return fmt.Errorf("failed to start browser runtime: %w", err)
	}
	defer runtime.Shutdown()

	searchOpts := []search.DuckDuckGoOption{
		search.WithMaxResults(searchCfg.GetMaxResults()),
	}
	if endpoint := searchCfg.GetEndpoint(); endpoint != "" {
		searchOpts = append(searchOpts, search.WithEndpoint(endpoint))
	}
	searchClient := search.NewDuckDuckGoClient(searchOpts...)

	addr := cli.Addr
	if addr == "" {
		addr = serverCfg.GetAddr()
	}
	srv := server.New(addr, logger)

	orchestrator := browse.NewOrchestrator(browse.Config{
		Provider:        provider,
		Search:          searchClient,
		Runtime:         browse.WrapRuntime(runtime),
		Store:           db,
		Policy:          urlpolicy.New(browseCfg.GetBlockedHostPatterns()...),
		Logger:          logger,
		Emit:            srv.Broadcast(),
		ApprovalTimeout: time.Duration(browseCfg.GetApprovalTimeoutSeconds()) * time.Second,
	})
	srv.SetOrchestrator(orchestrator)
	srv.SetDefaultOptions(browse.Options{
		MaxPages:      browseCfg.GetMaxPages(),
		MaxDuration:   time.Duration(browseCfg.GetMaxDurationSeconds()) * time.Second,
		CaptureVisual: browseCfg.GetCaptureVisual(),
	})
	orchestrator.StartJanitor()
	defer orchestrator.Shutdown()

	logger.Infof("wander v%s listening on %s (model %s)", version, addr, provider.GetModel())
	fmt.Printf("wander v%s listening on %s\n", version, addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	return g.Wait()
}
