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

type bookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) repository.BookRepository {
	return &bookRepository{db: db}
}

const bookColumns = `id, isbn, title, author, publisher, publication_year, description, category, language, pages, location, total_copies, available_copies, created_on, updated_on`

func scanBook(row interface{ Scan(...any) error }) (*domain.Book, error) {
	b := &domain.Book{}
	err := row.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.PublicationYear,
		&b.Description, &b.Category, &b.Language, &b.Pages, &b.Location,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedOn, &b.UpdatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookRepository) Create(ctx context.Context, b *domain.Book) error {
	query := `INSERT INTO books (isbn, title, author, publisher, publication_year, description, category, language, pages, location, total_copies, available_copies, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`
	now := time.Now()
	b.CreatedOn = now
	b.UpdatedOn = now
	return r.db.QueryRowContext(ctx, query, b.ISBN, b.Title, b.Author, b.Publisher,
		b.PublicationYear, b.Description, b.Category, b.Language, b.Pages, b.Location,
		b.TotalCopies, b.AvailableCopies, now, now).Scan(&b.ID)
}

func (r *bookRepository) GetByID(ctx context.Context, id int32) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	return scanBook(r.db.QueryRowContext(ctx, query, id))
}

func (r *bookRepository) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE isbn = $1`
	return scanBook(r.db.QueryRowContext(ctx, query, isbn))
}

// Update changes catalog metadata and total_copies. available_copies is
// owned by the loan lifecycle and only touched via SetAvailableCopies.
func (r *bookRepository) Update(ctx context.Context, b *domain.Book) error {
	query := `UPDATE books SET isbn=$1, title=$2, author=$3, publisher=$4, publication_year=$5, description=$6, category=$7, language=$8, pages=$9, location=$10, total_copies=$11, updated_on=$12 WHERE id=$13`
	_, err := r.db.ExecContext(ctx, query, b.ISBN, b.Title, b.Author, b.Publisher,
		b.PublicationYear, b.Description, b.Category, b.Language, b.Pages, b.Location,
		b.TotalCopies, time.Now(), b.ID)
	return err
}

func (r *bookRepository) Delete(ctx context.Context, id int32) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	return err
}

func (r *bookRepository) List(ctx context.Context, page, pageSize int32) ([]domain.Book, int32, error) {
	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM books`).Scan(&count); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY title LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectBooks(rows, count)
}

func (r *bookRepository) Search(ctx context.Context, query, category string, page, pageSize int32) ([]domain.Book, int32, error) {
	where := ` WHERE (title ILIKE '%' || $1 || '%' OR author ILIKE '%' || $1 || '%' OR isbn = $1)`
	args := []any{query}
	if category != "" {
		where += ` AND category = $2`
		args = append(args, category)
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM books`+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	sel := `SELECT ` + bookColumns + ` FROM books` + where +
		fmt.Sprintf(` ORDER BY title LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)
	rows, err := r.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectBooks(rows, count)
}

func (r *bookRepository) SetAvailableCopies(ctx context.Context, id, available int32) error {
	query := `UPDATE books SET available_copies=$1, updated_on=$2 WHERE id=$3`
	_, err := r.db.ExecContext(ctx, query, available, time.Now(), id)
	return err
}

func collectBooks(rows *sql.Rows, count int32) ([]domain.Book, int32, error) {
	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.PublicationYear,
			&b.Description, &b.Category, &b.Language, &b.Pages, &b.Location,
			&b.TotalCopies, &b.AvailableCopies, &b.CreatedOn, &b.UpdatedOn); err != nil {
			return nil, 0, err
		}
		books = append(books, b)
	}
	return books, count, rows.Err()
}
