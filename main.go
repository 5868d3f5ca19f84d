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
	"github.com/sirupsen/logrus"

	"parking_reservation/internal/api"
	"parking_reservation/internal/api/middleware"
	"parking_reservation/internal/config"
	"parking_reservation/internal/logger"
	"parking_reservation/internal/repository/sqlrepo"
	"parking_reservation/internal/service"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	// 2. Database connection and migrations
	db, err := sqlrepo.NewDB(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logrus.WithField("driver", db.Driver()).Info("Database connected")

	if err := db.Migrate(); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// 3. Repositories
	userRepo := sqlrepo.NewUserRepository(db)
	lotRepo := sqlrepo.NewParkingLotRepository(db)
	spotRepo := sqlrepo.NewParkingSpotRepository(db)
	reservationRepo := sqlrepo.NewReservationRepository(db)

	// 4. Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiration)
	parkingService := service.NewParkingService(lotRepo, spotRepo, reservationRepo, userRepo)

	if cfg.BootstrapAdmin() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		changed, err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		cancel()
		if err != nil {
			logrus.Fatalf("Failed to bootstrap admin account: %v", err)
		}
		if changed {
			logrus.WithField("username", cfg.AdminUsername).Info("Bootstrap admin account ready")
		}
	}

	// 5. HTTP router
	gin.SetMode(cfg.ServerMode)
	authMiddleware := middleware.NewAuthMiddleware(authService)
	router := api.SetupRouter(authService, parkingService, authMiddleware, db)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logrus.Infof("Server listening on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("ListenAndServe failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shut down: %v", err)
	}
	logrus.Info("Server stopped")
}
