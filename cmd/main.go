// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/idg-training/portfolio/internal/auth"
	"github.com/idg-training/portfolio/internal/config"
	"github.com/idg-training/portfolio/internal/handler"
	"github.com/idg-training/portfolio/internal/images"
	"github.com/idg-training/portfolio/internal/service"
	"github.com/idg-training/portfolio/internal/storage"
	"github.com/idg-training/portfolio/internal/storage/postgres"
	"github.com/idg-training/portfolio/internal/storage/sheet"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)).
		With(slog.String("service", "training-portfolio")))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The backend is chosen once; failures surface to callers instead of
	// silently re-routing to another store.
	var store storage.Store
	switch cfg.Backend {
	case config.BackendPostgres:
		store, err = postgres.New(ctx, cfg.DB.DSN())
	case config.BackendSheet:
		store, err = sheet.Open(cfg.WorkbookPath)
	}
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	defer store.Close()
	slog.Info("storage backend ready", "backend", cfg.Backend)

	banners, err := images.NewLibrary(cfg.ImagesDir)
	if err != nil {
		return err
	}

	mgr := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour,
		cfg.AdminHash, cfg.LibraryHash)
	ledger := service.NewLedger(store)
	router := handler.NewRouter(
		handler.NewCourseHandler(ledger, banners),
		handler.NewAuthHandler(mgr),
		mgr, store, banners.Dir(),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
