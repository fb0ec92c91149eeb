package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"libris-backend/internal/cache"
	"libris-backend/internal/config"
	"libris-backend/internal/domain"
	"libris-backend/internal/jobs"
	"libris-backend/internal/ledger"
	"libris-backend/internal/logger"
	"libris-backend/internal/repository/postgres"
	"libris-backend/internal/scheduler"
	"libris-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'send-overdue-reminders', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Libris cronjob runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
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

	// Initialize Repositories, Cache and Ledger
	store := postgres.NewStore(db)
	c := cache.New(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.ExpirySeconds)*time.Second)
	ldg := ledger.New(store, loanPolicy(cfg))

	// Initialize Services
	emailService := service.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.User,
		cfg.SMTP.Password,
		cfg.SMTP.From,
	)
	loanService := service.NewLoanService(ldg, store.LoanRepository, c)

	jobServices := &jobs.Services{
		Email: emailService,
		Loan:  loanService,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store, ldg, jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "send-overdue-reminders":
		jobRunner.SendOverdueReminders()
	case "reconcile-availability":
		jobRunner.ReconcileAvailability()
	case "warm-statistics":
		jobRunner.WarmStatistics()
	case "all":
		jobRunner.RunAllJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - send-overdue-reminders\n")
		fmt.Printf("  - reconcile-availability\n")
		fmt.Printf("  - warm-statistics\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
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
