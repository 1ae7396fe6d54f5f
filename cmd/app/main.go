package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "studiopass/docs"

	"github.com/redis/go-redis/v9"

	"studiopass/internal/booking"
	"studiopass/internal/config"
	"studiopass/internal/db"
	"studiopass/internal/email"
	"studiopass/internal/logger"
	"studiopass/internal/notify"
	"studiopass/internal/pass"
	"studiopass/internal/schedule"
	"studiopass/internal/server"
	"studiopass/internal/user"
)

// @title StudioPass API
// @version 1.0
// @description API for studio bookings, class passes, and session ledgers.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {

	logger.Init()
	logger.Info("Starting StudioPass application")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	emailService := email.New(
		cfg.EmailFrom,
		cfg.EmailFromName,
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPass,
		cfg.RedisAddr,
	)
	defer emailService.Close()
	logger.Info("Email service initialized")

	notifier := notify.NewPublisher(redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	}))
	defer notifier.Close()

	passService := pass.NewService(pass.NewRepository(database), notifier)
	scheduleService := schedule.NewService(schedule.NewRepository(database), notifier)
	bookingService := booking.NewService(booking.NewRepository(database), passService, emailService, notifier)
	userService := user.NewService(user.NewRepository(database), cfg.JWTSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go emailService.Start(ctx)
	go runReconcileLoop(ctx, bookingService, cfg.ReconcileInterval, cfg.ReconcileGrace)

	srv := server.New(cfg, server.Handlers{
		User:     user.NewHandler(userService),
		Pass:     pass.NewHandler(passService),
		Schedule: schedule.NewHandler(scheduleService),
		Booking:  booking.NewHandler(bookingService, scheduleService, passService),
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

// runReconcileLoop periodically rolls back pass bookings whose session
// deduction never landed.
func runReconcileLoop(ctx context.Context, svc booking.Service, interval, grace time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ReconcileOrphans(ctx, grace)
			if err != nil {
				logger.Errorf("Reconciliation sweep failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("Reconciliation sweep rolled back %d bookings", n)
			}
		}
	}
}
