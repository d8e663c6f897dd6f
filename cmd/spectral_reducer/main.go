package main

import (
	"embed"
	"log"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/config"
	"github.com/innashapovalenko/stem-stella-class-website/internal/logger"
	"github.com/innashapovalenko/stem-stella-class-website/internal/storage"
	"github.com/innashapovalenko/stem-stella-class-website/internal/workspace"
)

//go:embed all:frontend/public
var assets embed.FS

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer zl.Sync()

	store, err := storage.NewFileStore(cfg.Storage.UploadDir, cfg.Storage.CompressionLevel)
	if err != nil {
		log.Fatalf("Failed to open upload store: %v", err)
	}
	defer store.Close()

	ws := workspace.New(analysis.NewReducer(zl), store, zl)
	app := NewApp(ws, zl)

	err = wails.Run(&options.App{
		Title:  "STELLA Reflectance",
		Width:  960,
		Height: 720,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 46, G: 46, B: 46, A: 255}, // #2e2e2e
		OnStartup:        app.Startup,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		log.Fatal("Error running Wails app: ", err.Error())
	}
}
