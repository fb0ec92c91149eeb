package postgres

import (
	"context"
	"database/sql"

	"libris-backend/internal/domain"
	"libris-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.UserRepository
	repository.BookRepository
	repository.LoanRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:             db,
		UserRepository: NewUserRepository(db),
		BookRepository: NewBookRepository(db),
		LoanRepository: NewLoanRepository(db),
	}
}

// Adapters below let *Store satisfy ledger.Store.

func (s *Store) GetBook(ctx context.Context, id int32) (*domain.Book, error) {
	return s.BookRepository.GetByID(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id int32) (*domain.User, error) {
	return s.UserRepository.GetByID(ctx, id)
}

func (s *Store) GetLoan(ctx context.Context, id int32) (*domain.Loan, error) {
	return s.LoanRepository.GetByID(ctx, id)
}

func (s *Store) CountOpenLoansByUser(ctx context.Context, userID int32) (int32, error) {
	return s.LoanRepository.CountOpenByUser(ctx, userID)
}

func (s *Store) CountOpenLoansByBook(ctx context.Context, bookID int32) (int32, error) {
	return s.LoanRepository.CountOpenByBook(ctx, bookID)
}

func (s *Store) InsertLoanClaimingCopy(ctx context.Context, loan *domain.Loan) (bool, error) {
	return s.LoanRepository.InsertClaimingCopy(ctx, loan)
}

func (s *Store) UpdateLoanIfOpen(ctx context.Context, loan *domain.Loan, prevRenewals int32) (bool, error) {
	return s.LoanRepository.UpdateIfOpen(ctx, loan, prevRenewals)
}

func (s *Store) CloseLoanReleasingCopy(ctx context.Context, loan *domain.Loan) (bool, bool, error) {
	return s.LoanRepository.CloseReleasingCopy(ctx, loan)
}

func (s *Store) SetAvailableCopies(ctx context.Context, bookID, available int32) error {
	return s.BookRepository.SetAvailableCopies(ctx, bookID, available)
}
