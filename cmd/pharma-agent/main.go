package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/catalog"
	"github.com/medkiosk/pharma-agent/internal/config"
	"github.com/medkiosk/pharma-agent/internal/httpapi"
	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/monitor"
	"github.com/medkiosk/pharma-agent/internal/safety"
	"github.com/medkiosk/pharma-agent/internal/tools"
	"github.com/medkiosk/pharma-agent/internal/userdb"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
	// BuildTime is set via -ldflags at build time.
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "init":
		initCmd(os.Args[2:])
	case "run":
		runCmd(os.Args[2:])
	case "version":
		fmt.Printf("pharma-agent %s (%s) %s\n", Version, Commit, BuildTime)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pharma-agent

Usage:
  pharma-agent init [flags]
  pharma-agent run [flags]
  pharma-agent version

Commands:
  init        Write a starter config file.
  run         Run the chat API server using the local config file.
  version     Print build information.

`)
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	providerType := fs.String("provider", config.ProviderOpenAI, "Model provider: openai|anthropic|openai_compatible")
	model := fs.String("model", "gpt-4-turbo-preview", "Model name")
	medications := fs.String("medications", "data/medications.json", "Medications data file")
	medicationsDB := fs.String("medications-db", "", "Medications SQLite database (replaces the JSON file)")
	pharmacies := fs.String("pharmacies", "data/pharmacies.json", "Pharmacy locations data file")
	userDB := fs.String("user-db", "data/users.db", "User database file")
	_ = fs.Parse(args)

	cfg := &config.Config{
		Provider: config.ProviderConfig{
			Type:        *providerType,
			Model:       *model,
			Temperature: 0.7,
		},
		MedicationsPath: *medications,
		PharmaciesPath:  *pharmacies,
		UserDBPath:      *userDB,
		LogFormat:       "json",
		LogLevel:        "info",
	}
	if *medicationsDB != "" {
		cfg.MedicationsDBPath = *medicationsDB
		cfg.MedicationsPath = ""
	}
	if err := config.Save(*cfgPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written: %s\n", filepath.Clean(*cfgPath))
}

// loadCatalog picks the medication source the config selects; pharmacies
// always come from the locations file.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.MedicationsDBPath != "" {
		return catalog.LoadSQLite(context.Background(), cfg.MedicationsDBPath, cfg.PharmaciesPath)
	}
	return catalog.LoadJSON(cfg.MedicationsPath, cfg.PharmaciesPath)
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	cfg, err := config.Load(filepath.Clean(*cfgPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	apiKey, err := cfg.Provider.ResolveAPIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve api key: %v\n", err)
		os.Exit(1)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	messages, err := i18n.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load messages: %v\n", err)
		os.Exit(1)
	}
	users, err := userdb.Open(cfg.UserDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open user db: %v\n", err)
		os.Exit(1)
	}
	defer users.Close()

	provider, err := agent.NewProvider(cfg.Provider.EffectiveType(), apiKey, cfg.Provider.BaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init provider: %v\n", err)
		os.Exit(1)
	}
	schemas, err := agent.LoadToolSchemas()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load tool schemas: %v\n", err)
		os.Exit(1)
	}

	handlers := tools.All(tools.Deps{
		Catalog:          cat,
		Messages:         messages,
		Users:            users,
		InventoryBaseURL: cfg.EffectiveInventoryURL(),
		HTTPClient:       &http.Client{Timeout: cfg.EffectiveInventoryTimeout()},
		Logger:           logger,
	})

	orchestrator, err := agent.NewOrchestrator(agent.OrchestratorOptions{
		Provider:    provider,
		Handlers:    handlers,
		Schemas:     schemas,
		Inferrer:    agent.NewInferrer(cat),
		Guard:       safety.NewGuard(),
		Messages:    messages,
		Usage:       users,
		Logger:      logger,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxSteps:    cfg.EffectiveMaxSteps(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init orchestrator: %v\n", err)
		os.Exit(1)
	}

	server, err := httpapi.New(httpapi.Options{
		Logger:          logger,
		Orchestrator:    orchestrator,
		Prompts:         agent.NewPromptBuilder(cat),
		Schemas:         schemas,
		Users:           users,
		Health:          monitor.NewService(logger),
		ListenAddr:      cfg.EffectiveListenAddr(),
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultLanguage: cfg.EffectiveDefaultLanguage(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init server: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	printWelcomeBanner(os.Stdout, welcomeBannerOptions{
		Version:    Version,
		ListenAddr: cfg.EffectiveListenAddr(),
	})

	if err := server.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server failed to start: %v\n", err)
		os.Exit(1)
	}
	<-ctx.Done()
	_ = server.Close()
}
