// Package server exposes the conversational core and the detection
// collaborator over HTTP: POST /chat runs one turn, POST /detect analyses
// a leaf photo and seeds the session context, GET /health reports
// liveness.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/neuroleaf/neuroleaf/detection"
	"github.com/neuroleaf/neuroleaf/detection/store"
	errs "github.com/neuroleaf/neuroleaf/errors"
	"github.com/neuroleaf/neuroleaf/message"
	"github.com/neuroleaf/neuroleaf/orchestrator"
	"github.com/neuroleaf/neuroleaf/pkg/logging"
	"github.com/neuroleaf/neuroleaf/session"
)

// TurnRunner drives one conversational turn. Satisfied by
// orchestrator.Orchestrator.
type TurnRunner interface {
	RunTurn(ctx context.Context, userInput string, history []*message.Message, systemContext string) (*orchestrator.TurnResult, error)
}

// Server wires the HTTP routes over the core services.
type Server struct {
	app      *fiber.App
	turns    TurnRunner
	sessions *session.Manager
	detector detection.Detector
	archive  store.Archive
	logger   *slog.Logger
	addr     string
}

// Config holds server construction parameters. Detector may be nil when no
// vision endpoint is configured; /detect then answers 503.
type Config struct {
	Addr     string
	Turns    TurnRunner
	Sessions *session.Manager
	Detector detection.Detector
	Archive  store.Archive
}

// New builds the HTTP server.
func New(cfg Config) (*Server, error) {
	if cfg.Turns == nil {
		return nil, fmt.Errorf("turn runner is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Archive == nil {
		cfg.Archive = store.NewInMemoryArchive()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	s := &Server{
		turns:    cfg.Turns,
		sessions: cfg.Sessions,
		detector: cfg.Detector,
		archive:  cfg.Archive,
		logger:   logging.WithComponent("server"),
		addr:     cfg.Addr,
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, leaf photos included
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Post("/chat", s.handleChat)
	app.Post("/detect", s.handleDetect)
	app.Get("/sessions/:id/reports", s.handleReports)

	s.app = app
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run blocks serving HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Route     string `json:"route"`
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.SessionID == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_id and message are required"})
	}

	var route orchestrator.Route
	var answer string
	_, err := s.sessions.Update(c.Context(), req.SessionID, func(ctx context.Context, record *session.Record) error {
		result, err := s.turns.RunTurn(ctx, req.Message, record.History, record.SystemContext())
		if err != nil {
			return err
		}
		record.History = result.History
		route = result.Route
		answer = result.Answer
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message must not be blank"})
		}
		s.logger.Error("chat turn failed", "session", req.SessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to answer"})
	}

	return c.JSON(chatResponse{
		SessionID: req.SessionID,
		Answer:    answer,
		Route:     string(route),
	})
}

type detectResponse struct {
	SessionID string            `json:"session_id"`
	Diagnosis string            `json:"diagnosis"`
	Report    *detection.Report `json:"report"`
}

func (s *Server) handleDetect(c *fiber.Ctx) error {
	if s.detector == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "detection is not configured"})
	}

	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_id is required"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image upload is required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read image upload"})
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read image upload"})
	}

	report, err := s.detector.Detect(c.Context(), image)
	if err != nil {
		s.logger.Error("detection failed", "session", sessionID, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "detection failed"})
	}

	if _, err := s.sessions.ApplyDetection(c.Context(), sessionID, report); err != nil {
		s.logger.Error("failed to apply detection", "session", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update session"})
	}
	if err := s.archive.Save(c.Context(), sessionID, report); err != nil {
		s.logger.Warn("failed to archive report", "session", sessionID, "error", err)
	}

	return c.JSON(detectResponse{
		SessionID: sessionID,
		Diagnosis: report.Diagnosis,
		Report:    report,
	})
}

func (s *Server) handleReports(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	reports, err := s.archive.History(c.Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to load report history", "session", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load reports"})
	}
	return c.JSON(fiber.Map{"session_id": sessionID, "reports": reports})
}
