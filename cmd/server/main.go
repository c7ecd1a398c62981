package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qrdrop/signal-server-go/internal/blobstore"
	"github.com/qrdrop/signal-server-go/internal/config"
	"github.com/qrdrop/signal-server-go/internal/handler"
	"github.com/qrdrop/signal-server-go/internal/hub"
	"github.com/qrdrop/signal-server-go/internal/jobs"
	"github.com/qrdrop/signal-server-go/internal/middleware"
	"github.com/qrdrop/signal-server-go/internal/registry"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	reg := registry.New(cfg.SessionTTL())
	blobs := blobstore.New(reg, cfg.MaxUploadBytes)
	relay := hub.New(reg)

	sessionHandler := handler.NewSessionHandler(reg, cfg.PublicBaseURL)
	transferHandler := handler.NewTransferHandler(blobs)
	wsHandler := hub.NewWSHandler(relay)

	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.RequestBodyLimitBytes)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		api.Use(bodyLimitMiddleware.Handler)
		api.Mount("/", handler.Routes(sessionHandler, transferHandler))
	})

	// Long-lived signaling connections bypass the request timeout.
	r.Get("/ws", wsHandler.ServeHTTP)

	sweeper := jobs.NewSweeper(reg, relay, blobs, cfg.SweepInterval())
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: config.ServerReadHeaderTimeout,
		WriteTimeout:      0,
		IdleTimeout:       config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
