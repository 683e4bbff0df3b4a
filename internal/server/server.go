package server

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"lingobridge/internal/auth"
	"lingobridge/internal/config"
	"lingobridge/internal/logging"
	"lingobridge/internal/protocol"
	"lingobridge/internal/rest"
)

var log = logging.New("server")

// Server wraps the Fiber app serving both the REST surface and the
// WebSocket translation plane.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	rest     *rest.Handler
	newPipe  protocol.PipelineFactory
	verifier *auth.Verifier
}

// New constructs the Fiber app. rest serves /api/*; newPipe builds a fresh
// Pipeline for each joined WebSocket connection. verifier may be nil (no
// JWT_SECRET configured), in which case join tokens are never checked.
func New(cfg *config.Config, restHandler *rest.Handler, newPipe protocol.PipelineFactory, verifier *auth.Verifier) *Server {
	app := fiber.New(fiber.Config{
		AppName:       "LingoBridge Translation Gateway",
		ServerHeader:  "Fiber",
		StrictRouting: true,
		CaseSensitive: true,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		// Disabled: prefork forks the process, which breaks WebSocket
		// connections pinned to a single worker's in-memory registry.
		Prefork: false,
	})

	return &Server{
		app:      app,
		cfg:      cfg,
		rest:     restHandler,
		newPipe:  newPipe,
		verifier: verifier,
	}
}

// SetupMiddleware installs panic recovery, request logging, and CORS.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins: joinOrigins(s.cfg.CORS.Origins),
	}))
}

// SetupRoutes mounts the REST surface and the WebSocket upgrade endpoint.
func (s *Server) SetupRoutes() {
	s.rest.Register(s.app)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/meeting", websocket.New(func(ws *websocket.Conn) {
		connID := uuid.New().String()
		conn := protocol.NewConn(ws, connID, s.newPipe, s.verifier)
		conn.Serve()
	}))
}

// Start blocks until SIGINT/SIGTERM, then gracefully shuts down.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("server shutdown error: %v", err)
		}
	}()

	addr := ":" + s.cfg.Server.Port
	log.Printf("LingoBridge starting on %s", addr)
	log.Printf("WebSocket endpoint: ws://localhost%s/ws/meeting", addr)

	if s.cfg.Server.SSLCertFile != "" && s.cfg.Server.SSLKeyFile != "" {
		return s.app.ListenTLS(addr, s.cfg.Server.SSLCertFile, s.cfg.Server.SSLKeyFile)
	}
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}

func joinOrigins(origins []string) string {
	out := ""
	for i, o := range origins {
		if i > 0 {
			out += ","
		}
		out += o
	}
	return out
}
