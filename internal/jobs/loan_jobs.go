package jobs

import (
	"context"
	"time"

	"libris-backend/internal/domain"
	"libris-backend/internal/logger"
)

const jobPageSize = 100

// SendOverdueReminders emails every user who is holding overdue loans.
func (jr *JobRunner) SendOverdueReminders() {
	jr.runWithRecovery("SendOverdueReminders", func() {
		ctx := context.Background()
		now := time.Now().UTC()

		byUser := make(map[int32][]domain.Loan)
		for page := int32(1); ; page++ {
			loans, _, err := jr.store.LoanRepository.ListOverdue(ctx, now, page, jobPageSize)
			if err != nil {
				logger.Error("Failed to list overdue loans", "error", err)
				return
			}
			if len(loans) == 0 {
				break
			}
			for _, loan := range loans {
				byUser[loan.UserID] = append(byUser[loan.UserID], loan)
			}
			if len(loans) < jobPageSize {
				break
			}
		}

		sent := 0
		for userID, loans := range byUser {
			user, err := jr.store.UserRepository.GetByID(ctx, userID)
			if err != nil {
				logger.Error("Failed to load user for reminder", "user_id", userID, "error", err)
				continue
			}
			if user == nil || !user.Active {
				continue
			}
			if err := jr.services.Email.SendOverdueReminder(ctx, user, loans); err != nil {
				logger.Error("Failed to send overdue reminder", "user_id", userID, "error", err)
				continue
			}
			sent++
		}
		logger.Info("Sent overdue reminders", "users", sent, "overdue_users", len(byUser))
	})
}

// ReconcileAvailability recomputes available_copies for every book from
// its open-loan count. Idempotent drift repair.
func (jr *JobRunner) ReconcileAvailability() {
	jr.runWithRecovery("ReconcileAvailability", func() {
		ctx := context.Background()

		checked := 0
		for page := int32(1); ; page++ {
			books, _, err := jr.store.BookRepository.List(ctx, page, jobPageSize)
			if err != nil {
				logger.Error("Failed to list books", "error", err)
				return
			}
			if len(books) == 0 {
				break
			}
			for _, book := range books {
				available, err := jr.ledger.RecomputeAvailability(ctx, book.ID)
				if err != nil {
					logger.Error("Failed to recompute availability", "book_id", book.ID, "error", err)
					continue
				}
				if available != book.AvailableCopies {
					logger.Warn("Repaired availability drift",
						"book_id", book.ID,
						"was", book.AvailableCopies,
						"now", available)
				}
				checked++
			}
			if len(books) < jobPageSize {
				break
			}
		}
		logger.Info("Reconciled book availability", "books", checked)
	})
}

// WarmStatistics refreshes the cached loan statistics entry.
func (jr *JobRunner) WarmStatistics() {
	jr.runWithRecovery("WarmStatistics", func() {
		ctx := context.Background()
		stats, err := jr.services.Loan.Statistics(ctx)
		if err != nil {
			logger.Error("Failed to warm loan statistics", "error", err)
			return
		}
		logger.Info("Warmed loan statistics",
			"total", stats.Total,
			"active", stats.Active,
			"overdue", stats.Overdue,
			"returned", stats.Returned)
	})
}
