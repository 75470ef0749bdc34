package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellr/server/internal/auth"
	"github.com/stellr/server/internal/config"
	"github.com/stellr/server/internal/course"
	"github.com/stellr/server/internal/db"
	httphandler "github.com/stellr/server/internal/http"
	"github.com/stellr/server/internal/http/handlers"
	"github.com/stellr/server/internal/metrics"
	"github.com/stellr/server/internal/repo"
)

func main() {
	// Load .env from CWD so it works in local development (env vars override)
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Open database connection
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	identityRepo := repo.NewIdentityRepo(database)
	otpRepo := repo.NewOtpRepo(database)
	enrollmentRepo := repo.NewEnrollmentRepo(database)
	progressRepo := repo.NewProgressRepo(database)
	courseRepo := repo.NewCourseRepo(database)

	// Metrics
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Initialize services
	otpManager := auth.NewOtpManager(otpRepo, auth.LogSender{}, cfg.OTPSalt, cfg.OtpTTL)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.SessionTTL)
	authService := auth.NewAuthService(identityRepo, otpManager, jwtService)
	enrollmentService := course.NewEnrollmentService(enrollmentRepo, courseRepo)
	progressService := course.NewProgressService(progressRepo, courseRepo, enrollmentService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, collector)
	courseHandler := handlers.NewCourseHandler(enrollmentService, progressService, collector)

	// Create router
	router := httphandler.NewRouter(authHandler, courseHandler, jwtService, identityRepo, registry)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the module root)")
	}

	absDir, _ := filepath.Abs(migrationDir)
	log.Printf("Running migrations from %s", absDir)

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
