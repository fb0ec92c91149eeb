package repository

import (
	"context"
	"time"

	"libris-backend/internal/domain"
)

// Lookups return (nil, nil) when the id is unknown; callers decide which
// not-found error that maps to.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int32) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	SetActive(ctx context.Context, id int32, active bool) error
	Delete(ctx context.Context, id int32) error
	List(ctx context.Context, page, pageSize int32) ([]domain.User, int32, error)
}

type BookRepository interface {
	Create(ctx context.Context, book *domain.Book) error
	GetByID(ctx context.Context, id int32) (*domain.Book, error)
	GetByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	Update(ctx context.Context, book *domain.Book) error
	Delete(ctx context.Context, id int32) error
	List(ctx context.Context, page, pageSize int32) ([]domain.Book, int32, error)
	Search(ctx context.Context, query, category string, page, pageSize int32) ([]domain.Book, int32, error)
	SetAvailableCopies(ctx context.Context, id, available int32) error
}

// LoanRepository persists loans and carries the atomic conditional-update
// primitives the ledger's consistency contract depends on.
type LoanRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Loan, error)
	List(ctx context.Context, userID, bookID int32, openOnly bool, page, pageSize int32) ([]domain.Loan, int32, error)
	ListOverdue(ctx context.Context, asOf time.Time, page, pageSize int32) ([]domain.Loan, int32, error)
	CountOpenByUser(ctx context.Context, userID int32) (int32, error)
	CountOpenByBook(ctx context.Context, bookID int32) (int32, error)

	// InsertClaimingCopy decrements the book's availability and inserts
	// the loan in one transaction; claimed is false when no copy was
	// free and nothing was written.
	InsertClaimingCopy(ctx context.Context, loan *domain.Loan) (claimed bool, err error)

	// UpdateIfOpen persists due_date and renewal_count only while the
	// loan is open and its renewal_count still equals prevRenewals.
	UpdateIfOpen(ctx context.Context, loan *domain.Loan, prevRenewals int32) (updated bool, err error)

	// CloseReleasingCopy sets return_date and fine_cents if the loan is
	// still open, and increments the book's availability capped at
	// total_copies, in one transaction.
	CloseReleasingCopy(ctx context.Context, loan *domain.Loan) (closed bool, capped bool, err error)

	SetFinePaid(ctx context.Context, id int32, paid bool) error
	Delete(ctx context.Context, id int32) error
	Stats(ctx context.Context, asOf time.Time) (*domain.LoanStatistics, error)
}
