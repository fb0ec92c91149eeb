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

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrISBNTaken        = errors.New("a book with this ISBN already exists")
	ErrBookHasOpenLoans = errors.New("book still has open loans")
)

type bookService struct {
	bookRepo repository.BookRepository
	loanRepo repository.LoanRepository
	ledger   *ledger.Ledger
	cache    *cache.Cache
}

func NewBookService(bookRepo repository.BookRepository, loanRepo repository.LoanRepository, ldg *ledger.Ledger, c *cache.Cache) BookService {
	return &bookService{bookRepo: bookRepo, loanRepo: loanRepo, ledger: ldg, cache: c}
}

func (s *bookService) Add(ctx context.Context, book *domain.Book) error {
	existing, err := s.bookRepo.GetByISBN(ctx, book.ISBN)
	if err != nil {
		return fmt.Errorf("lookup isbn: %w", err)
	}
	if existing != nil {
		return ErrISBNTaken
	}
	if book.TotalCopies <= 0 {
		book.TotalCopies = 1
	}
	book.AvailableCopies = book.TotalCopies
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return err
	}
	s.cache.DeletePattern(ctx, cache.BooksPattern)
	return nil
}

func (s *bookService) Get(ctx context.Context, id int32) (*domain.Book, error) {
	var cached domain.Book
	if s.cache.Get(ctx, cache.BookKey(id), &cached) {
		return &cached, nil
	}

	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	s.cache.Set(ctx, cache.BookKey(id), book, 0)
	return book, nil
}

// Update rewrites catalog metadata. When total_copies changes the
// availability counter is recomputed from open loans, since the stored
// value no longer matches any earlier total.
func (s *bookService) Update(ctx context.Context, book *domain.Book) error {
	existing, err := s.bookRepo.GetByID(ctx, book.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrBookNotFound
	}
	if err := s.bookRepo.Update(ctx, book); err != nil {
		return err
	}
	if book.TotalCopies != existing.TotalCopies {
		if _, err := s.ledger.RecomputeAvailability(ctx, book.ID); err != nil {
			return fmt.Errorf("recompute availability: %w", err)
		}
	}
	s.cache.DeletePattern(ctx, cache.BooksPattern)
	return nil
}

func (s *bookService) Delete(ctx context.Context, id int32) error {
	existing, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrBookNotFound
	}
	open, err := s.loanRepo.CountOpenByBook(ctx, id)
	if err != nil {
		return fmt.Errorf("count open loans: %w", err)
	}
	if open > 0 {
		return ErrBookHasOpenLoans
	}
	if err := s.bookRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.DeletePattern(ctx, cache.BooksPattern)
	return nil
}

func (s *bookService) List(ctx context.Context, page, pageSize int32) ([]domain.Book, int32, error) {
	type listPage struct {
		Books []domain.Book `json:"books"`
		Total int32         `json:"total"`
	}
	key := cache.BookListKey(page, pageSize)
	var cached listPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Books, cached.Total, nil
	}

	books, total, err := s.bookRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	s.cache.Set(ctx, key, listPage{Books: books, Total: total}, time.Minute)
	return books, total, nil
}

func (s *bookService) Search(ctx context.Context, query, category string, page, pageSize int32) ([]domain.Book, int32, error) {
	return s.bookRepo.Search(ctx, query, category, page, pageSize)
}
