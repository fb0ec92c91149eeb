package jobs

import (
	"libris-backend/internal/config"
	"libris-backend/internal/ledger"
	"libris-backend/internal/logger"
	"libris-backend/internal/repository/postgres"
	"libris-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	store    *postgres.Store
	ledger   *ledger.Ledger
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Email service.EmailService
	Loan  service.LoanService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(store *postgres.Store, ldg *ledger.Ledger, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:    store,
		ledger:   ldg,
		services: services,
		config:   cfg,
	}
}

// Config exposes the runner's configuration to the scheduler
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllJobs runs every job once (for manual execution)
func (jr *JobRunner) RunAllJobs() {
	jr.SendOverdueReminders()
	jr.ReconcileAvailability()
	jr.WarmStatistics()
}
