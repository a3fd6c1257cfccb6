package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/promptproof/market/internal/api"
	"github.com/promptproof/market/internal/config"
	"github.com/promptproof/market/internal/core"
	"github.com/promptproof/market/internal/store"
	"github.com/promptproof/market/internal/utils"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "prompt-market",
		Usage: "Marketplace backend for buying and testing LLM prompts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file instead of .env",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "models",
				Usage:  "Print every provider's model catalog as JSON",
				Action: listModels,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		utils.NewLogger(nil, "ERROR").Fatalf("application error: %v", err)
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, *log.Logger, error) {
	var envFiles []string
	if f := cmd.String("env-file"); f != "" {
		envFiles = append(envFiles, f)
	}

	cfg, err := config.LoadConfig(envFiles...)
	if err != nil {
		return nil, nil, err
	}
	logger := utils.NewLogger(nil, cfg.LogLevel)
	if logger.GetLevel() == log.DebugLevel {
		logger.Debug("Service starting in DEBUG mode")
	}
	return cfg, logger, nil
}

// newRegistry builds the providers in resolution order (atoma, gemini when
// configured, openai) and fetches their catalogs. The returned func releases
// provider clients.
func newRegistry(ctx context.Context, cfg *config.Config, logger *log.Logger) (*core.ProviderRegistry, func(), error) {
	providers := []core.Provider{core.NewAtomaProvider(cfg.AtomaBearer, cfg.AtomaBaseURL)}
	cleanup := func() {}

	if cfg.GeminiAPIKey != "" {
		gemini, err := core.NewGeminiProvider(ctx, cfg.GeminiAPIKey, logger.With("provider", "gemini"))
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, gemini)
		cleanup = gemini.Close
	}

	providers = append(providers, core.NewOpenAIProvider(core.OpenAIOptions{
		Name:    "openai",
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	}))

	registry, err := core.NewProviderRegistry(ctx, logger.With("component", "registry"), core.RegistryOptions{
		DefaultProvider:   "openai",
		DefaultTextModel:  cfg.DefaultLLMModel,
		DefaultImageModel: cfg.DefaultImageModel,
		ReasoningMarkers:  cfg.ReasoningMarkers,
		Timeout:           cfg.ProviderTimeout,
	}, providers...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return registry, cleanup, nil
}

func listModels(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	registry, cleanup, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}
	defer cleanup()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(registry.Models())
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Initialize store
	db, err := store.New(ctx, store.Options{
		UseSQLite:  cfg.UseSQLite,
		SQLitePath: cfg.SQLitePath,
	}, logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	registry, cleanup, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}
	defer cleanup()

	service := core.NewMarketplaceService(db, registry, core.ServiceDefaults{
		TextModel:     cfg.DefaultLLMModel,
		ImageModel:    cfg.DefaultImageModel,
		TextSettings:  cfg.Generation.LLM,
		ImageSettings: cfg.Generation.Image,
	}, logger.With("component", "service"))

	apiHandler := api.NewAPIHandler(service, logger.With("component", "api"))
	router := api.NewRouter(apiHandler, logger, cfg.AllowedOrigins)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 15*time.Second, // provider calls dominate
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	}
	logger.Info("Shutting down server...")

	// Give active connections time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting gracefully")
	return nil
}
