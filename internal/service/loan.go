package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libris-backend/internal/cache"
	"libris-backend/internal/domain"
	"libris-backend/internal/ledger"
	"libris-backend/internal/repository"
)

var ErrLoanNotFound = errors.New("loan not found")

type loanService struct {
	ledger   *ledger.Ledger
	loanRepo repository.LoanRepository
	cache    *cache.Cache

	// now supplies the reference time threaded into every ledger
	// operation; tests pin it.
	now func() time.Time
}

func NewLoanService(ldg *ledger.Ledger, loanRepo repository.LoanRepository, c *cache.Cache) LoanService {
	return &loanService{
		ledger:   ldg,
		loanRepo: loanRepo,
		cache:    c,
		now:      time.Now,
	}
}

// NewLoanServiceWithClock is NewLoanService with an injected clock.
func NewLoanServiceWithClock(ldg *ledger.Ledger, loanRepo repository.LoanRepository, c *cache.Cache, now func() time.Time) LoanService {
	return &loanService{ledger: ldg, loanRepo: loanRepo, cache: c, now: now}
}

func (s *loanService) Borrow(ctx context.Context, userID, bookID, days int32) (*domain.Loan, error) {
	if days <= 0 {
		days = s.ledger.Policy().LoanPeriodDays
	}
	t := s.now()
	loan, err := s.ledger.CreateLoan(ctx, userID, bookID, t.AddDate(0, 0, int(days)), t)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, loan.UserID)
	return loan, nil
}

func (s *loanService) Return(ctx context.Context, loanID int32) (*domain.Loan, error) {
	loan, err := s.ledger.Return(ctx, loanID, s.now())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, loan.UserID)
	return loan, nil
}

func (s *loanService) Renew(ctx context.Context, loanID int32) (*domain.Loan, error) {
	loan, err := s.ledger.Renew(ctx, loanID, s.ledger.Policy().ExtensionDays, s.now())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, loan.UserID)
	return loan, nil
}

func (s *loanService) Get(ctx context.Context, loanID int32) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

func (s *loanService) List(ctx context.Context, userID, bookID int32, openOnly bool, page, pageSize int32) ([]domain.Loan, int32, error) {
	return s.loanRepo.List(ctx, userID, bookID, openOnly, page, pageSize)
}

// ListUserLoans returns the user's open loans, cached under the user key.
func (s *loanService) ListUserLoans(ctx context.Context, userID int32) ([]domain.Loan, error) {
	key := cache.UserLoansKey(userID)
	var cached []domain.Loan
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	loans, _, err := s.loanRepo.List(ctx, userID, 0, true, 1, 100)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, loans, 0)
	return loans, nil
}

func (s *loanService) ListOverdue(ctx context.Context, page, pageSize int32) ([]domain.Loan, int32, error) {
	type overduePage struct {
		Loans []domain.Loan `json:"loans"`
		Total int32         `json:"total"`
	}
	// Only the first page is cached; deeper pages are rare.
	cacheable := page == 1
	if cacheable {
		var cached overduePage
		if s.cache.Get(ctx, cache.OverdueLoansKey, &cached) {
			return cached.Loans, cached.Total, nil
		}
	}

	loans, total, err := s.loanRepo.ListOverdue(ctx, s.now(), page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if cacheable {
		s.cache.Set(ctx, cache.OverdueLoansKey, overduePage{Loans: loans, Total: total}, 3*time.Minute)
	}
	return loans, total, nil
}

func (s *loanService) Statistics(ctx context.Context) (*domain.LoanStatistics, error) {
	var cached domain.LoanStatistics
	if s.cache.Get(ctx, cache.LoanStatsKey, &cached) {
		return &cached, nil
	}

	stats, err := s.loanRepo.Stats(ctx, s.now())
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cache.LoanStatsKey, stats, 5*time.Minute)
	return stats, nil
}

func (s *loanService) MarkFinePaid(ctx context.Context, loanID int32) error {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return err
	}
	if loan == nil {
		return ErrLoanNotFound
	}
	if err := s.loanRepo.SetFinePaid(ctx, loanID, true); err != nil {
		return err
	}
	s.invalidate(ctx, loan.UserID)
	return nil
}

// Delete bypasses the lifecycle, so availability is rebuilt from the
// surviving loans afterwards.
func (s *loanService) Delete(ctx context.Context, loanID int32) error {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return err
	}
	if loan == nil {
		return ErrLoanNotFound
	}
	if err := s.loanRepo.Delete(ctx, loanID); err != nil {
		return err
	}
	if _, err := s.ledger.RecomputeAvailability(ctx, loan.BookID); err != nil {
		return fmt.Errorf("recompute availability after delete: %w", err)
	}
	s.invalidate(ctx, loan.UserID)
	return nil
}

// invalidate drops every loan-derived cache entry plus the availability
// facets of the book cache, since any loan mutation moves copies.
func (s *loanService) invalidate(ctx context.Context, userID int32) {
	s.cache.DeletePattern(ctx, cache.LoansPattern)
	s.cache.DeletePattern(ctx, cache.BooksPattern)
	s.cache.Delete(ctx, cache.UserLoansKey(userID))
}
