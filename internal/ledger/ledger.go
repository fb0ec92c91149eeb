// Package ledger owns the loan lifecycle and the derived availability of
// book copies. It is the one place with an invariant spanning two
// entities: a book's available_copies must always equal total_copies minus
// the number of open loans on it, and at most total_copies loans may be
// open for a book at once.
//
// The package is transport- and storage-agnostic. Persistence is supplied
// through the Store interface, whose conditional-update primitives carry
// the atomicity contract; the reference time is always passed in
// explicitly, never read from the wall clock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libris-backend/internal/domain"
	"libris-backend/internal/logger"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrUserNotFound = errors.New("user not found")
	ErrLoanNotFound = errors.New("loan not found")

	// ErrBookUnavailable means no free copy could be claimed.
	ErrBookUnavailable = errors.New("book has no available copies")

	// ErrUserIneligible covers an inactive account or a user at their
	// configured concurrent-loan limit.
	ErrUserIneligible = errors.New("user is not eligible to borrow")

	ErrAlreadyReturned     = errors.New("loan has already been returned")
	ErrLoanOverdue         = errors.New("overdue loan cannot be renewed")
	ErrRenewalLimitReached = errors.New("loan renewal limit reached")

	// ErrLoanConflict reports a lost conditional update against a
	// concurrent mutation of the same loan. The ledger never retries;
	// the caller may re-invoke the operation.
	ErrLoanConflict = errors.New("loan was modified concurrently")

	// ErrConsistencyViolation indicates the availability counter would
	// leave [0, total_copies]. It signals a bug in the atomicity
	// contract, not a user error.
	ErrConsistencyViolation = errors.New("book availability counter is inconsistent")
)

// Policy holds the externally supplied loan rules. Zero values mean
// "no limit" where a limit is optional.
type Policy struct {
	// LoanPeriodDays is the default borrowing period.
	LoanPeriodDays int32
	// ExtensionDays is added to the current due date on each renewal.
	ExtensionDays int32
	// MaxRenewals bounds renewal_count.
	MaxRenewals int32
	// DailyFineCents accrues per whole day overdue, fixed at return time.
	DailyFineCents int32
	// LoanLimits caps concurrently open loans per role; a missing or
	// zero entry means unlimited.
	LoanLimits map[domain.UserRole]int32
}

// LimitFor returns the concurrent-loan limit for a role, 0 if unlimited.
func (p Policy) LimitFor(role domain.UserRole) int32 {
	if p.LoanLimits == nil {
		return 0
	}
	return p.LoanLimits[role]
}

// Store is the persistence contract the ledger requires. Lookups return
// (nil, nil) when the id is unknown. The claiming/releasing primitives
// must execute their precondition check and mutation as one atomic unit
// per book and per loan (row-level locking or conditional updates inside
// a single transaction).
type Store interface {
	GetBook(ctx context.Context, id int32) (*domain.Book, error)
	GetUser(ctx context.Context, id int32) (*domain.User, error)
	GetLoan(ctx context.Context, id int32) (*domain.Loan, error)

	// CountOpenLoansByUser counts the user's loans with return_date
	// unset (status ACTIVE or OVERDUE at any reference time).
	CountOpenLoansByUser(ctx context.Context, userID int32) (int32, error)

	// CountOpenLoansByBook counts open loans holding a copy of the book.
	CountOpenLoansByBook(ctx context.Context, bookID int32) (int32, error)

	// InsertLoanClaimingCopy decrements the book's available_copies and
	// inserts the loan in one transaction. claimed is false when no
	// copy was free; in that case nothing is written.
	InsertLoanClaimingCopy(ctx context.Context, loan *domain.Loan) (claimed bool, err error)

	// UpdateLoanIfOpen persists due_date and renewal_count, conditional
	// on the loan still being open with renewal_count == prevRenewals.
	UpdateLoanIfOpen(ctx context.Context, loan *domain.Loan, prevRenewals int32) (updated bool, err error)

	// CloseLoanReleasingCopy sets return_date and fine_cents,
	// conditional on the loan still being open, and increments the
	// book's available_copies capped at total_copies, all in one
	// transaction. closed is false when the loan was already returned;
	// capped is true when the increment had to be clamped.
	CloseLoanReleasingCopy(ctx context.Context, loan *domain.Loan) (closed bool, capped bool, err error)

	// SetAvailableCopies overwrites the stored availability counter.
	SetAvailableCopies(ctx context.Context, bookID, available int32) error
}

// Ledger enforces loan state transitions and keeps book availability
// consistent with outstanding loans.
type Ledger struct {
	store  Store
	policy Policy
}

func New(store Store, policy Policy) *Ledger {
	return &Ledger{store: store, policy: policy}
}

func (l *Ledger) Policy() Policy {
	return l.policy
}

// CreateLoan lends one copy of a book to a user as of the reference time
// t. The availability check and decrement happen atomically in the store,
// so concurrent creates can never oversubscribe a book.
func (l *Ledger) CreateLoan(ctx context.Context, userID, bookID int32, dueDate, t time.Time) (*domain.Loan, error) {
	book, err := l.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load book %d: %w", bookID, err)
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	if !book.IsAvailable() {
		return nil, ErrBookUnavailable
	}

	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.Active {
		return nil, ErrUserIneligible
	}
	if limit := l.policy.LimitFor(user.Role); limit > 0 {
		open, err := l.store.CountOpenLoansByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("count open loans for user %d: %w", userID, err)
		}
		if open >= limit {
			return nil, ErrUserIneligible
		}
	}

	loan := &domain.Loan{
		UserID:   userID,
		BookID:   bookID,
		LoanDate: t,
		DueDate:  dueDate,
	}
	claimed, err := l.store.InsertLoanClaimingCopy(ctx, loan)
	if err != nil {
		return nil, fmt.Errorf("claim copy of book %d: %w", bookID, err)
	}
	if !claimed {
		// Lost the race for the last copy since the availability check.
		return nil, ErrBookUnavailable
	}
	return loan, nil
}

// Renew extends an active loan's due date by extensionDays, counted from
// the current due date rather than from t so renewals compound the same
// way no matter when they are requested. Overdue loans may not be
// renewed. extensionDays <= 0 falls back to the policy default.
func (l *Ledger) Renew(ctx context.Context, loanID, extensionDays int32, t time.Time) (*domain.Loan, error) {
	if extensionDays <= 0 {
		extensionDays = l.policy.ExtensionDays
	}

	loan, err := l.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("load loan %d: %w", loanID, err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	switch loan.StatusAt(t) {
	case domain.LoanStatusReturned:
		return nil, ErrAlreadyReturned
	case domain.LoanStatusOverdue:
		return nil, ErrLoanOverdue
	}
	if loan.RenewalCount >= l.policy.MaxRenewals {
		return nil, ErrRenewalLimitReached
	}

	prev := loan.RenewalCount
	loan.DueDate = loan.DueDate.AddDate(0, 0, int(extensionDays))
	loan.RenewalCount++

	updated, err := l.store.UpdateLoanIfOpen(ctx, loan, prev)
	if err != nil {
		return nil, fmt.Errorf("renew loan %d: %w", loanID, err)
	}
	if !updated {
		return nil, l.renewConflict(ctx, loanID)
	}
	return loan, nil
}

// renewConflict re-reads the loan after a lost conditional update and
// maps the outcome onto the precondition that now fails.
func (l *Ledger) renewConflict(ctx context.Context, loanID int32) error {
	loan, err := l.store.GetLoan(ctx, loanID)
	if err != nil || loan == nil {
		return ErrLoanNotFound
	}
	if !loan.Open() {
		return ErrAlreadyReturned
	}
	if loan.RenewalCount >= l.policy.MaxRenewals {
		return ErrRenewalLimitReached
	}
	return ErrLoanConflict
}

// Return closes a loan as of t and releases its copy. A late return is
// still a valid return; the accrued fine is fixed at this moment and
// never recomputed afterwards.
func (l *Ledger) Return(ctx context.Context, loanID int32, t time.Time) (*domain.Loan, error) {
	loan, err := l.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("load loan %d: %w", loanID, err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	if !loan.Open() {
		return nil, ErrAlreadyReturned
	}

	loan.FineCents = loan.FineCentsAt(t, l.policy.DailyFineCents)
	returnedAt := t
	loan.ReturnDate = &returnedAt

	closed, capped, err := l.store.CloseLoanReleasingCopy(ctx, loan)
	if err != nil {
		return nil, fmt.Errorf("close loan %d: %w", loanID, err)
	}
	if !closed {
		return nil, ErrAlreadyReturned
	}
	if capped {
		// The counter was already at total_copies before this release.
		// The clamp keeps the invariant, but the drift must be visible.
		logger.Error("availability increment clamped at total copies",
			"book_id", loan.BookID, "loan_id", loan.ID, "error", ErrConsistencyViolation)
	}
	return loan, nil
}

// RecomputeAvailability resets a book's availability counter from the
// count of open loans. It is an idempotent reconciliation path for
// repairing drift after bulk changes or administrative overrides; correct
// use of the three lifecycle operations never requires it. Returns the
// recomputed availability.
//
// ACTIVE and OVERDUE loans both hold a copy and share the same stored
// shape (return_date unset), so the count needs no reference time.
func (l *Ledger) RecomputeAvailability(ctx context.Context, bookID int32) (int32, error) {
	book, err := l.store.GetBook(ctx, bookID)
	if err != nil {
		return 0, fmt.Errorf("load book %d: %w", bookID, err)
	}
	if book == nil {
		return 0, ErrBookNotFound
	}

	open, err := l.store.CountOpenLoansByBook(ctx, bookID)
	if err != nil {
		return 0, fmt.Errorf("count open loans for book %d: %w", bookID, err)
	}

	available := book.TotalCopies - open
	if available < 0 || available > book.TotalCopies {
		logger.Error("recomputed availability outside bounds, clamping",
			"book_id", bookID, "total_copies", book.TotalCopies,
			"open_loans", open, "error", ErrConsistencyViolation)
		if available < 0 {
			available = 0
		} else {
			available = book.TotalCopies
		}
	}
	if err := l.store.SetAvailableCopies(ctx, bookID, available); err != nil {
		return 0, fmt.Errorf("store availability for book %d: %w", bookID, err)
	}
	return available, nil
}
