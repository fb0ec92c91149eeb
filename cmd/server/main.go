package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "libris-backend/internal/api/http"
	"libris-backend/internal/cache"
	"libris-backend/internal/config"
	"libris-backend/internal/domain"
	"libris-backend/internal/ledger"
	"libris-backend/internal/logger"
	"libris-backend/internal/repository/postgres"
	"libris-backend/internal/security"
	"libris-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Libris backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	ctx := context.Background()

	// Initialize Repositories and Cache
	store := postgres.NewStore(db)
	c := cache.New(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.ExpirySeconds)*time.Second)

	// Initialize Security
	tokenManager := security.NewTokenManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshTokenExpiry)*time.Minute,
	)

	// Initialize Ledger
	ldg := ledger.New(store, loanPolicy(cfg))

	// Initialize Services
	authSvc := service.NewAuthService(store.UserRepository, tokenManager)
	userSvc := service.NewUserService(store.UserRepository)
	bookSvc := service.NewBookService(store.BookRepository, store.LoanRepository, ldg, c)
	loanSvc := service.NewLoanService(ldg, store.LoanRepository, c)

	// Set up HTTP server
	router := httpapi.NewRouter(tokenManager, authSvc, userSvc, bookSvc, loanSvc)
	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	logger.Info("Server stopped")
}

// loanPolicy builds the ledger policy from configuration.
func loanPolicy(cfg *config.Config) ledger.Policy {
	limits := make(map[domain.UserRole]int32, len(cfg.LoanPolicy.LoanLimits))
	for role, limit := range cfg.LoanPolicy.LoanLimits {
		limits[domain.UserRole(role)] = int32(limit)
	}
	return ledger.Policy{
		LoanPeriodDays: int32(cfg.LoanPolicy.PeriodDays),
		ExtensionDays:  int32(cfg.LoanPolicy.ExtensionDays),
		MaxRenewals:    int32(cfg.LoanPolicy.MaxRenewals),
		DailyFineCents: int32(cfg.LoanPolicy.DailyFineCents),
		LoanLimits:     limits,
	}
}
