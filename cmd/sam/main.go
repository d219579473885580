// sam mirrors a peoply.app organization's event calendar into a Discord
// text channel: the engine polls upstream and reconciles, the gateway
// drains the resulting change stream into announcement messages.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ifi-progsys/sam/pkg/api"
	"github.com/ifi-progsys/sam/pkg/config"
	"github.com/ifi-progsys/sam/pkg/database"
	"github.com/ifi-progsys/sam/pkg/discord"
	"github.com/ifi-progsys/sam/pkg/engine"
	"github.com/ifi-progsys/sam/pkg/peoply"
	"github.com/ifi-progsys/sam/pkg/store"
	"github.com/ifi-progsys/sam/pkg/version"
)

func main() {
	envPath := flag.String("env-file", ".env", "Path to the environment file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load env file, continuing with existing environment",
			"path", *envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envPath)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting sam",
		"version", version.Full(),
		"org", cfg.OrganizationName,
		"channel_id", cfg.DiscordChannelID,
		"http_port", cfg.HTTPPort)

	ctx := context.Background()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database")

	// The engine takes ownership of the database handle and the upstream
	// HTTP client; both are released by eng.Stop().
	eng := engine.New(engine.Options{
		OrganizationName: cfg.OrganizationName,
		Client:           peoply.NewClient(),
		Store:            store.New(dbClient.DB()),
		DB:               dbClient,
	})
	if err := eng.Start(ctx); err != nil {
		slog.Error("Failed to start engine", "error", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	gateway, err := discord.New(cfg.DiscordToken, cfg.DiscordChannelID, eng)
	if err != nil {
		slog.Error("Failed to create discord gateway", "error", err)
		eng.Stop()
		os.Exit(1)
	}
	if err := gateway.Start(ctx); err != nil {
		slog.Error("Failed to start discord gateway", "error", err)
		eng.Stop()
		os.Exit(1)
	}

	httpServer := api.NewServer(dbClient, eng)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("Diagnostics server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("Diagnostics server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("sam started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Shutdown in reverse order of startup: stop delivering first, then
	// the engine (flushes durable writes, closes HTTP client and DB).
	gateway.Stop()
	eng.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Diagnostics server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
