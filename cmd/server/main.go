// Real Estate Assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/realestate-assistant/internal/api"
	"github.com/ashureev/realestate-assistant/internal/chat"
	"github.com/ashureev/realestate-assistant/internal/completion"
	"github.com/ashureev/realestate-assistant/internal/config"
	"github.com/ashureev/realestate-assistant/internal/identity"
	"github.com/ashureev/realestate-assistant/internal/middleware"
	"github.com/ashureev/realestate-assistant/internal/notify"
	"github.com/ashureev/realestate-assistant/internal/probe"
	"github.com/ashureev/realestate-assistant/internal/session"
	"github.com/ashureev/realestate-assistant/internal/store"
	"github.com/ashureev/realestate-assistant/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	if n, err := repo.CountVisitors(context.Background()); err == nil {
		slog.Info("Database connected", "visitors", n)
	}

	completer, err := completion.New(completion.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.RequestTimeout,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize completion client", "error", err)
		os.Exit(1)
	}
	slog.Info("Completion client initialized", "base_url", cfg.LLM.BaseURL, "model", completer.Model())

	// Initialize services.
	sessions := session.NewRegistry()
	hub := notify.NewHub()
	chatService := chat.NewService(completer, hub, logger)

	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions)
	chatHandler := api.NewChatHandler(baseHandler, chatService, limiter, cfg.HTTP.MaxRequestBodySize)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := notify.NewHandler(hub, sessions, repo, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/transcript", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket subscriptions are long-lived
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start session sweeper.
	session.StartSweeper(ctx, sessions, repo, session.SweeperConfig{
		TTL:              cfg.Session.TTL,
		Interval:         cfg.Session.SweepInterval,
		OnDiscard:        hub.CloseSession,
		OnVisitorExpired: hub.CloseVisitor,
	})

	var healthProbe *probe.Server
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "error", err, "addr", cfg.GRPCHealthAddr)
			os.Exit(1)
		}
		healthProbe = probe.New(repo, probe.DefaultConfig(), logger)
		go healthProbe.Watch(ctx)
		go func() {
			if err := healthProbe.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	if healthProbe != nil {
		healthProbe.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
