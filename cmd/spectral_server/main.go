package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/config"
	"github.com/innashapovalenko/stem-stella-class-website/internal/logger"
	"github.com/innashapovalenko/stem-stella-class-website/internal/server"
	"github.com/innashapovalenko/stem-stella-class-website/internal/storage"
	"github.com/innashapovalenko/stem-stella-class-website/internal/workspace"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Logger
	zl := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer zl.Sync()

	// 3. Upload snapshots
	store, err := storage.NewFileStore(cfg.Storage.UploadDir, cfg.Storage.CompressionLevel)
	if err != nil {
		log.Fatalf("Failed to initialize upload store: %v", err)
	}
	defer store.Close()

	// 4. Workspace, restored from the last uploads
	ws := workspace.New(analysis.NewReducer(zl), store, zl)
	if err := ws.Restore(); err != nil {
		zl.Warn("main", "Some device tables could not be restored", map[string]interface{}{"error": err.Error()})
	}

	// 5. Run Server
	srv := server.New(cfg, ws, zl)
	go func() {
		if err := srv.Run(); err != nil {
			zl.Error("main", "Server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zl.Info("main", "Shutdown signal received, stopping server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("main", "Server shutdown error", map[string]interface{}{"error": err.Error()})
	}
	zl.Info("main", "Server stopped successfully", nil)
}
