package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelworks/reel-agent/internal/api"
	"github.com/reelworks/reel-agent/internal/config"
	"github.com/reelworks/reel-agent/internal/db"
	"github.com/reelworks/reel-agent/internal/journal"
	"github.com/reelworks/reel-agent/internal/logging"
	"github.com/reelworks/reel-agent/internal/notify"
	"github.com/reelworks/reel-agent/internal/platform"
	"github.com/reelworks/reel-agent/internal/reel"
	"github.com/reelworks/reel-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.PlatformURL() == "" {
		return fmt.Errorf("%s is required", config.EnvPlatformURL)
	}
	if cfg.PlatformToken() == "" {
		return fmt.Errorf("%s is required", config.EnvPlatformToken)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting reel agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := journal.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                     REEL AGENT v0.1.0                     ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	client := platform.NewHTTPClient(cfg.PlatformURL(), cfg.PlatformToken(), cfg.PlatformOrg(), logger)
	client.SetDeviceID(deviceID)
	logger.Info("platform client configured", "base_url", cfg.PlatformURL(), "org", cfg.PlatformOrg())

	cache := reel.NewReadCache(cfg.CacheTTL())
	poller := reel.NewPoller(cfg.PollInterval(), cfg.PollBudget(), logging.WithComponent(logger, "poller"))
	notifier := notify.NewJournalNotifier(repo, logging.WithComponent(logger, "notify"))
	manager := reel.NewManager(client, cache, poller, notifier, logging.WithComponent(logger, "session"))
	defer manager.CloseAll()

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Manager:    manager,
		Repository: repo,
		Logger:     logging.WithComponent(logger, "api"),
		StartTime:  startTime,
		DeviceID:   deviceID,
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Manager: manager,
			Logger:  logging.WithComponent(logger, "tray"),
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	manager.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureDeviceID(repo journal.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, journal.ConfigKeyDeviceID)
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, journal.ConfigKeyDeviceID, deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo journal.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, journal.ConfigKeyAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, journal.ConfigKeyAuthToken, token); err != nil {
		return "", err
	}

	return token, nil
}
