package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/document-ingest/api/handlers"
	"github.com/feichai0017/document-ingest/api/middleware"
	"github.com/feichai0017/document-ingest/api/routes"
	"github.com/feichai0017/document-ingest/config"
	"github.com/feichai0017/document-ingest/internal/app"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupTimeout  = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := app.NewLogger(cfg, "server")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to init application", logger.Error(err))
		os.Exit(1)
	}
	defer application.Close()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	inflight := &middleware.InFlight{}
	routes.SetupRoutes(r, handlers.NewHandlers(application.DocumentService, log), log, routes.Options{
		UploadIdleTimeout: cfg.UploadIdleTimeout,
		InFlight:          inflight,
	})

	// No write timeout: uploads may legitimately stream for a long time.
	// Stalled bodies are cut off by the per-read idle deadline instead.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ConnContext:       middleware.ConnContext,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown timed out, closing connections", logger.Error(err))
			srv.Close()
		}

		// closed connections fail the pending uploads; let their cleanup finish
		cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancelCleanup()
		if err := inflight.Wait(cleanupCtx); err != nil {
			log.Error("Requests still running after shutdown", logger.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", logger.Error(err))
	}
	log.Info("Server stopped")
}
