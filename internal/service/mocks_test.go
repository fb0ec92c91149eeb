package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"libris-backend/internal/domain"
)

// MockUserRepo
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *MockUserRepo) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *MockUserRepo) SetActive(ctx context.Context, id int32, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}
func (m *MockUserRepo) Delete(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockUserRepo) List(ctx context.Context, page, pageSize int32) ([]domain.User, int32, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).([]domain.User), args.Get(1).(int32), args.Error(2)
}

// MockBookRepo
type MockBookRepo struct {
	mock.Mock
}

func (m *MockBookRepo) Create(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}
func (m *MockBookRepo) GetByID(ctx context.Context, id int32) (*domain.Book, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Book), args.Error(1)
}
func (m *MockBookRepo) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	args := m.Called(ctx, isbn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Book), args.Error(1)
}
func (m *MockBookRepo) Update(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}
func (m *MockBookRepo) Delete(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockBookRepo) List(ctx context.Context, page, pageSize int32) ([]domain.Book, int32, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).([]domain.Book), args.Get(1).(int32), args.Error(2)
}
func (m *MockBookRepo) Search(ctx context.Context, query, category string, page, pageSize int32) ([]domain.Book, int32, error) {
	args := m.Called(ctx, query, category, page, pageSize)
	return args.Get(0).([]domain.Book), args.Get(1).(int32), args.Error(2)
}
func (m *MockBookRepo) SetAvailableCopies(ctx context.Context, id, available int32) error {
	args := m.Called(ctx, id, available)
	return args.Error(0)
}

// MockLoanRepo
type MockLoanRepo struct {
	mock.Mock
}

func (m *MockLoanRepo) GetByID(ctx context.Context, id int32) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}
func (m *MockLoanRepo) List(ctx context.Context, userID, bookID int32, openOnly bool, page, pageSize int32) ([]domain.Loan, int32, error) {
	args := m.Called(ctx, userID, bookID, openOnly, page, pageSize)
	return args.Get(0).([]domain.Loan), args.Get(1).(int32), args.Error(2)
}
func (m *MockLoanRepo) ListOverdue(ctx context.Context, asOf time.Time, page, pageSize int32) ([]domain.Loan, int32, error) {
	args := m.Called(ctx, asOf, page, pageSize)
	return args.Get(0).([]domain.Loan), args.Get(1).(int32), args.Error(2)
}
func (m *MockLoanRepo) CountOpenByUser(ctx context.Context, userID int32) (int32, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int32), args.Error(1)
}
func (m *MockLoanRepo) CountOpenByBook(ctx context.Context, bookID int32) (int32, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).(int32), args.Error(1)
}
func (m *MockLoanRepo) InsertClaimingCopy(ctx context.Context, loan *domain.Loan) (bool, error) {
	args := m.Called(ctx, loan)
	return args.Bool(0), args.Error(1)
}
func (m *MockLoanRepo) UpdateIfOpen(ctx context.Context, loan *domain.Loan, prevRenewals int32) (bool, error) {
	args := m.Called(ctx, loan, prevRenewals)
	return args.Bool(0), args.Error(1)
}
func (m *MockLoanRepo) CloseReleasingCopy(ctx context.Context, loan *domain.Loan) (bool, bool, error) {
	args := m.Called(ctx, loan)
	return args.Bool(0), args.Bool(1), args.Error(2)
}
func (m *MockLoanRepo) SetFinePaid(ctx context.Context, id int32, paid bool) error {
	args := m.Called(ctx, id, paid)
	return args.Error(0)
}
func (m *MockLoanRepo) Delete(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockLoanRepo) Stats(ctx context.Context, asOf time.Time) (*domain.LoanStatistics, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanStatistics), args.Error(1)
}

// fakeLedgerStore is a minimal in-memory ledger.Store for exercising
// service paths that go through the ledger.
type fakeLedgerStore struct {
	books  map[int32]*domain.Book
	users  map[int32]*domain.User
	loans  map[int32]*domain.Loan
	nextID int32
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		books:  make(map[int32]*domain.Book),
		users:  make(map[int32]*domain.User),
		loans:  make(map[int32]*domain.Loan),
		nextID: 1,
	}
}

func (s *fakeLedgerStore) GetBook(_ context.Context, id int32) (*domain.Book, error) {
	b, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (s *fakeLedgerStore) GetUser(_ context.Context, id int32) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (s *fakeLedgerStore) GetLoan(_ context.Context, id int32) (*domain.Loan, error) {
	l, ok := s.loans[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (s *fakeLedgerStore) CountOpenLoansByUser(_ context.Context, userID int32) (int32, error) {
	var n int32
	for _, l := range s.loans {
		if l.UserID == userID && l.ReturnDate == nil {
			n++
		}
	}
	return n, nil
}

func (s *fakeLedgerStore) CountOpenLoansByBook(_ context.Context, bookID int32) (int32, error) {
	var n int32
	for _, l := range s.loans {
		if l.BookID == bookID && l.ReturnDate == nil {
			n++
		}
	}
	return n, nil
}

func (s *fakeLedgerStore) InsertLoanClaimingCopy(_ context.Context, loan *domain.Loan) (bool, error) {
	book, ok := s.books[loan.BookID]
	if !ok || book.AvailableCopies <= 0 {
		return false, nil
	}
	book.AvailableCopies--
	loan.ID = s.nextID
	s.nextID++
	stored := *loan
	s.loans[loan.ID] = &stored
	return true, nil
}

func (s *fakeLedgerStore) UpdateLoanIfOpen(_ context.Context, loan *domain.Loan, prevRenewals int32) (bool, error) {
	stored, ok := s.loans[loan.ID]
	if !ok || stored.ReturnDate != nil || stored.RenewalCount != prevRenewals {
		return false, nil
	}
	stored.DueDate = loan.DueDate
	stored.RenewalCount = loan.RenewalCount
	return true, nil
}

func (s *fakeLedgerStore) CloseLoanReleasingCopy(_ context.Context, loan *domain.Loan) (bool, bool, error) {
	stored, ok := s.loans[loan.ID]
	if !ok || stored.ReturnDate != nil {
		return false, false, nil
	}
	stored.ReturnDate = loan.ReturnDate
	stored.FineCents = loan.FineCents
	capped := false
	if book, ok := s.books[loan.BookID]; ok {
		if book.AvailableCopies < book.TotalCopies {
			book.AvailableCopies++
		} else {
			capped = true
		}
	}
	return true, capped, nil
}

func (s *fakeLedgerStore) SetAvailableCopies(_ context.Context, bookID, available int32) error {
	if book, ok := s.books[bookID]; ok {
		book.AvailableCopies = available
	}
	return nil
}
