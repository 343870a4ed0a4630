package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/silvercare/nas-gateway/internal/audit"
	"github.com/silvercare/nas-gateway/internal/config"
	"github.com/silvercare/nas-gateway/internal/gateway"
	"github.com/silvercare/nas-gateway/internal/notifications"
	"github.com/silvercare/nas-gateway/internal/scheduler"
	"github.com/silvercare/nas-gateway/internal/server"
	"github.com/silvercare/nas-gateway/internal/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Infof("Starting NAS asset gateway for %s", cfg.NASBaseURL)

	ctx := context.Background()

	archive, err := storage.New(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize archive storage: %v", err)
	}

	notificationService := notifications.NewService(cfg)

	gw := gateway.New(cfg.Store())
	auditService := audit.NewService(cfg, archive, notificationService, gw)
	gw.SetRecorder(auditService)

	schedulerService := scheduler.NewService(cfg, auditService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	handler := server.NewHandler(gw, auditService, cfg.MaxUploadBytes)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Don't lose the tail of the journal
	if err := auditService.Flush(shutdownCtx); err != nil {
		logrus.Errorf("Final audit flush failed: %v", err)
	}

	logrus.Info("Server exited")
}
