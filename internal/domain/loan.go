package domain

import "time"

// LoanStatus is never persisted. ACTIVE and OVERDUE name regions of the
// (return_date, due_date, reference time) space; only a set return_date is
// a stored fact. Deriving the status on demand avoids a background job
// that promotes loans to OVERDUE.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusReturned LoanStatus = "RETURNED"
	LoanStatusOverdue  LoanStatus = "OVERDUE"
)

type Loan struct {
	ID           int32      `json:"id"`
	UserID       int32      `json:"user_id"`
	BookID       int32      `json:"book_id"`
	LoanDate     time.Time  `json:"loan_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
	RenewalCount int32      `json:"renewal_count"`
	FineCents    int32      `json:"fine_cents"`
	FinePaid     bool       `json:"fine_paid"`
	Notes        string     `json:"notes,omitempty"`
	CreatedOn    time.Time  `json:"created_on"`
	UpdatedOn    time.Time  `json:"updated_on"`
}

// StatusAt derives the loan status as of the reference time t.
func (l *Loan) StatusAt(t time.Time) LoanStatus {
	switch {
	case l.ReturnDate != nil:
		return LoanStatusReturned
	case l.DueDate.Before(t):
		return LoanStatusOverdue
	default:
		return LoanStatusActive
	}
}

// Open reports whether the loan still holds a copy, i.e. its status at any
// reference time is ACTIVE or OVERDUE. Both regions share the same stored
// shape (return_date unset), so openness does not depend on the clock.
func (l *Loan) Open() bool {
	return l.ReturnDate == nil
}

// DaysOverdueAt returns the whole days between the due date and t, rounded
// down, or 0 when the loan is not OVERDUE at t.
func (l *Loan) DaysOverdueAt(t time.Time) int32 {
	if l.StatusAt(t) != LoanStatusOverdue {
		return 0
	}
	days := int32(t.Sub(l.DueDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// FineCentsAt computes the accrued fine at t for the given per-day rate.
func (l *Loan) FineCentsAt(t time.Time, dailyRateCents int32) int32 {
	return l.DaysOverdueAt(t) * dailyRateCents
}

// LoanStatistics is an aggregate snapshot as of a reference time.
type LoanStatistics struct {
	Total    int32 `json:"total_loans"`
	Active   int32 `json:"active_loans"`
	Overdue  int32 `json:"overdue_loans"`
	Returned int32 `json:"returned_loans"`
}
