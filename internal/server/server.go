package server

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/innashapovalenko/stem-stella-class-website/internal/config"
	"github.com/innashapovalenko/stem-stella-class-website/internal/logger"
	"github.com/innashapovalenko/stem-stella-class-website/internal/workspace"
)

type Server struct {
	app *fiber.App
	cfg *config.Config
	ws  *workspace.Workspace
	log logger.Logger
}

func New(cfg *config.Config, ws *workspace.Workspace, log logger.Logger) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.App.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: cfg.IsProduction(),
	})

	s := &Server{
		app: app,
		cfg: cfg,
		ws:  ws,
		log: log,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/health", s.handleHealth)

	s.app.Post("/upload/:device", s.handleUpload)
	s.app.Post("/add_object/:device", s.handleAddLine)
	s.app.Post("/remove_object/:device/:idx", s.handleRemoveLine)
	s.app.Post("/clear_objects/:device", s.handleClear)

	s.app.Get("/lines/:device", s.handleLines)
	s.app.Get("/get_data/:device", s.handleRawData)
	s.app.Get("/table/:device", s.handleTable)
	s.app.Get("/report/:device", s.handleReport)
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.log.Info("server", fmt.Sprintf("Server is running on http://localhost:%s", s.cfg.App.Port), nil)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
