package service

import (
	"context"

	"libris-backend/internal/domain"
)

type AuthService interface {
	Register(ctx context.Context, email, username, firstName, lastName, password, phone, address string) (*domain.User, error)
	Login(ctx context.Context, usernameOrEmail, password string) (access, refresh string, user *domain.User, err error)
	Refresh(ctx context.Context, refreshToken string) (access, refresh string, err error)
	GetProfile(ctx context.Context, userID int32) (*domain.User, error)
}

type UserService interface {
	Create(ctx context.Context, user *domain.User, password string) error
	Get(ctx context.Context, id int32) (*domain.User, error)
	List(ctx context.Context, page, pageSize int32) ([]domain.User, int32, error)
	Update(ctx context.Context, user *domain.User) error
	SetActive(ctx context.Context, id int32, active bool) error
	Delete(ctx context.Context, id int32) error
}

type BookService interface {
	Add(ctx context.Context, book *domain.Book) error
	Get(ctx context.Context, id int32) (*domain.Book, error)
	Update(ctx context.Context, book *domain.Book) error
	Delete(ctx context.Context, id int32) error
	List(ctx context.Context, page, pageSize int32) ([]domain.Book, int32, error)
	Search(ctx context.Context, query, category string, page, pageSize int32) ([]domain.Book, int32, error)
}

type LoanService interface {
	// Borrow lends a copy of the book to the user for the given number
	// of days; days <= 0 uses the policy default.
	Borrow(ctx context.Context, userID, bookID, days int32) (*domain.Loan, error)
	Return(ctx context.Context, loanID int32) (*domain.Loan, error)
	Renew(ctx context.Context, loanID int32) (*domain.Loan, error)
	Get(ctx context.Context, loanID int32) (*domain.Loan, error)
	List(ctx context.Context, userID, bookID int32, openOnly bool, page, pageSize int32) ([]domain.Loan, int32, error)
	ListUserLoans(ctx context.Context, userID int32) ([]domain.Loan, error)
	ListOverdue(ctx context.Context, page, pageSize int32) ([]domain.Loan, int32, error)
	Statistics(ctx context.Context) (*domain.LoanStatistics, error)
	MarkFinePaid(ctx context.Context, loanID int32) error
	// Delete is an administrative override outside the lifecycle
	// contract; availability is recomputed afterwards.
	Delete(ctx context.Context, loanID int32) error
}

type EmailService interface {
	SendOverdueReminder(ctx context.Context, user *domain.User, loans []domain.Loan) error
}
