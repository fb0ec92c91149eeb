package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"libris-backend/internal/domain"
	"libris-backend/internal/repository"
)

type loanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) repository.LoanRepository {
	return &loanRepository{db: db}
}

const loanColumns = `id, user_id, book_id, loan_date, due_date, return_date, renewal_count, fine_cents, fine_paid, notes, created_on, updated_on`

func scanLoan(row interface{ Scan(...any) error }) (*domain.Loan, error) {
	l := &domain.Loan{}
	err := row.Scan(&l.ID, &l.UserID, &l.BookID, &l.LoanDate, &l.DueDate, &l.ReturnDate,
		&l.RenewalCount, &l.FineCents, &l.FinePaid, &l.Notes, &l.CreatedOn, &l.UpdatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *loanRepository) GetByID(ctx context.Context, id int32) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(r.db.QueryRowContext(ctx, query, id))
}

// InsertClaimingCopy is the check-and-decrement half of the availability
// invariant. The conditional UPDATE serializes concurrent claims on the
// same book row; when it matches no row the transaction rolls back with
// nothing written.
func (r *loanRepository) InsertClaimingCopy(ctx context.Context, loan *domain.Loan) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE books SET available_copies = available_copies - 1, updated_on = $2
		 WHERE id = $1 AND available_copies > 0`,
		loan.BookID, time.Now())
	if err != nil {
		return false, err
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if claimed == 0 {
		return false, nil
	}

	now := time.Now()
	loan.CreatedOn = now
	loan.UpdatedOn = now
	err = tx.QueryRowContext(ctx,
		`INSERT INTO loans (user_id, book_id, loan_date, due_date, renewal_count, fine_cents, fine_paid, notes, created_on, updated_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		loan.UserID, loan.BookID, loan.LoanDate, loan.DueDate, loan.RenewalCount,
		loan.FineCents, loan.FinePaid, loan.Notes, now, now).Scan(&loan.ID)
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *loanRepository) UpdateIfOpen(ctx context.Context, loan *domain.Loan, prevRenewals int32) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE loans SET due_date = $1, renewal_count = $2, updated_on = $3
		 WHERE id = $4 AND return_date IS NULL AND renewal_count = $5`,
		loan.DueDate, loan.RenewalCount, time.Now(), loan.ID, prevRenewals)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CloseReleasingCopy closes the loan and gives the copy back in one
// transaction. The release increment is capped at total_copies; a capped
// release means the counter had drifted and is reported to the caller.
func (r *loanRepository) CloseReleasingCopy(ctx context.Context, loan *domain.Loan) (bool, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE loans SET return_date = $1, fine_cents = $2, updated_on = $3
		 WHERE id = $4 AND return_date IS NULL`,
		loan.ReturnDate, loan.FineCents, time.Now(), loan.ID)
	if err != nil {
		return false, false, err
	}
	closed, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}
	if closed == 0 {
		return false, false, nil
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE books SET available_copies = available_copies + 1, updated_on = $2
		 WHERE id = $1 AND available_copies < total_copies`,
		loan.BookID, time.Now())
	if err != nil {
		return false, false, err
	}
	released, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}
	return true, released == 0, tx.Commit()
}

func (r *loanRepository) CountOpenByUser(ctx context.Context, userID int32) (int32, error) {
	var count int32
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM loans WHERE user_id = $1 AND return_date IS NULL`, userID).Scan(&count)
	return count, err
}

func (r *loanRepository) CountOpenByBook(ctx context.Context, bookID int32) (int32, error) {
	var count int32
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM loans WHERE book_id = $1 AND return_date IS NULL`, bookID).Scan(&count)
	return count, err
}

func (r *loanRepository) List(ctx context.Context, userID, bookID int32, openOnly bool, page, pageSize int32) ([]domain.Loan, int32, error) {
	where := ` WHERE 1=1`
	var args []any
	if userID > 0 {
		args = append(args, userID)
		where += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}
	if bookID > 0 {
		args = append(args, bookID)
		where += fmt.Sprintf(` AND book_id = $%d`, len(args))
	}
	if openOnly {
		where += ` AND return_date IS NULL`
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM loans`+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + loanColumns + ` FROM loans` + where +
		fmt.Sprintf(` ORDER BY loan_date DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectLoans(rows, count)
}

func (r *loanRepository) ListOverdue(ctx context.Context, asOf time.Time, page, pageSize int32) ([]domain.Loan, int32, error) {
	where := ` WHERE return_date IS NULL AND due_date < $1`

	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM loans`+where, asOf).Scan(&count); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + loanColumns + ` FROM loans` + where + ` ORDER BY due_date LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, asOf, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectLoans(rows, count)
}

func (r *loanRepository) SetFinePaid(ctx context.Context, id int32, paid bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE loans SET fine_paid = $1, updated_on = $2 WHERE id = $3`, paid, time.Now(), id)
	return err
}

func (r *loanRepository) Delete(ctx context.Context, id int32) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
	return err
}

func (r *loanRepository) Stats(ctx context.Context, asOf time.Time) (*domain.LoanStatistics, error) {
	stats := &domain.LoanStatistics{}
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE return_date IS NULL AND due_date >= $1),
		        count(*) FILTER (WHERE return_date IS NULL AND due_date < $1),
		        count(*) FILTER (WHERE return_date IS NOT NULL)
		 FROM loans`, asOf).
		Scan(&stats.Total, &stats.Active, &stats.Overdue, &stats.Returned)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func collectLoans(rows *sql.Rows, count int32) ([]domain.Loan, int32, error) {
	var loans []domain.Loan
	for rows.Next() {
		var l domain.Loan
		if err := rows.Scan(&l.ID, &l.UserID, &l.BookID, &l.LoanDate, &l.DueDate, &l.ReturnDate,
			&l.RenewalCount, &l.FineCents, &l.FinePaid, &l.Notes, &l.CreatedOn, &l.UpdatedOn); err != nil {
			return nil, 0, err
		}
		loans = append(loans, l)
	}
	return loans, count, rows.Err()
}
