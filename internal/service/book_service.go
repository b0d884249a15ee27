package service

import (
	"bookstore-service/internal/cache"
	"bookstore-service/internal/entity"
	"bookstore-service/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"golang.org/x/sync/errgroup"
	"strings"
	"time"
)

// BookStore is the catalog repository.
type BookStore interface {
	GetBookByID(ctx context.Context, id int64) (*entity.Book, error)
	GetBooks(ctx context.Context) ([]*entity.Book, error)
	CreateBook(ctx context.Context, book *entity.Book) (*entity.Book, error)
	UpdateBook(ctx context.Context, id int64, patch *entity.BookPatch) (*entity.Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

type BookService struct {
	repo  BookStore
	cache cache.Store
	ttl   time.Duration
}

// NewBookService creates a new instance of BookService. A nil cache reads
// straight from the repository.
func NewBookService(repo BookStore, c cache.Store, ttl time.Duration) *BookService {
	return &BookService{repo: repo, cache: c, ttl: ttl}
}

func bookKey(id int64) string {
	return fmt.Sprintf("book:%d", id)
}

func (s *BookService) ListBooks(ctx context.Context) ([]*entity.Book, error) {
	books, err := s.repo.GetBooks(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error getting books")
		return nil, err
	}
	return books, nil
}

// GetBook reads through the cache. Cache failures fall back to the database.
func (s *BookService) GetBook(ctx context.Context, id int64) (*entity.Book, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, bookKey(id))
		switch {
		case err == nil:
			var book entity.Book
			if err := json.Unmarshal([]byte(cached), &book); err == nil {
				return &book, nil
			}
			logger.Error().Msgf("Error unmarshalling cached book %d", id)
		case errors.Is(err, cache.ErrMiss):
			logger.Debug().Msgf("Book %d not found in cache", id)
		default:
			logger.Error().Err(err).Msgf("Error getting book %d from cache", id)
		}
	}

	book, err := s.repo.GetBookByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Msgf("Error getting book by ID %d", id)
		return nil, err
	}

	s.store(ctx, book)
	return book, nil
}

func (s *BookService) store(ctx context.Context, book *entity.Book) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(book)
	if err != nil {
		logger.Error().Err(err).Msgf("Error marshalling book %d", book.ID)
		return
	}
	if err := s.cache.Set(ctx, bookKey(book.ID), string(data), s.ttl); err != nil {
		logger.Error().Err(err).Msgf("Error setting book %d in cache", book.ID)
	}
}

// CreateBook stores a new book. A book without seller is listed under
// sellerID.
func (s *BookService) CreateBook(ctx context.Context, book *entity.Book, sellerID int64) (*entity.Book, error) {
	if book.SellerID == 0 {
		book.SellerID = sellerID
	}
	switch {
	case strings.TrimSpace(book.Title) == "":
		return nil, invalid("title is required")
	case book.TypeID <= 0:
		return nil, invalid("type_id is required")
	case book.SellerID <= 0:
		return nil, invalid("seller_id is required")
	case book.Price.IsNegative():
		return nil, invalid("price must not be negative")
	case book.Stock < 0:
		return nil, invalid("stock must not be negative")
	}

	created, err := s.repo.CreateBook(ctx, book)
	if err != nil {
		logger.Error().Err(err).Msg("Error creating book")
		return nil, err
	}
	return created, nil
}

func (s *BookService) UpdateBook(ctx context.Context, id int64, patch *entity.BookPatch) (*entity.Book, error) {
	if patch.IsEmpty() {
		return nil, invalid("No fields to update")
	}

	book, err := s.repo.UpdateBook(ctx, id, patch)
	if err != nil {
		var fieldErr *repository.InvalidFieldError
		switch {
		case errors.As(err, &fieldErr):
			return nil, invalid("%s", fieldErr.Error())
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Msgf("Error updating book %d", id)
		return nil, err
	}

	s.evict(ctx, id)
	return book, nil
}

func (s *BookService) DeleteBook(ctx context.Context, id int64) error {
	if err := s.repo.DeleteBook(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		logger.Error().Err(err).Msgf("Error deleting book %d", id)
		return err
	}
	s.evict(ctx, id)
	return nil
}

func (s *BookService) evict(ctx context.Context, ids ...int64) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = bookKey(id)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		logger.Error().Err(err).Msgf("Error evicting books %v from cache", ids)
	}
}

// OrderPlaced evicts the cached copies of every book whose stock the order
// changed.
func (s *BookService) OrderPlaced(ctx context.Context, event *entity.OrderPlacedEvent) error {
	s.evict(ctx, event.BookIDs()...)
	return nil
}

// WarmCache loads every book into the cache.
func (s *BookService) WarmCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	books, err := s.repo.GetBooks(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error getting books")
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, book := range books {
		g.Go(func() error {
			data, err := json.Marshal(book)
			if err != nil {
				return err
			}
			return s.cache.Set(ctx, bookKey(book.ID), string(data), s.ttl)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Error warming book cache")
		return 0, err
	}
	return len(books), nil
}
