package service

import (
	"bookstore-service/internal/cache"
	"bookstore-service/internal/entity"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func newTestBookService(t *testing.T) (*BookService, *sqlStack, *cache.Memory) {
	s := newSQLStack(t)
	c := cache.NewMemory(cache.DefaultMemorySize)
	return NewBookService(s.books, c, time.Minute), s, c
}

func TestGetBookReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	svc, s, c := newTestBookService(t)
	id := s.addBook(t, "Middlemarch", 4, "11.00")

	book, err := svc.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Middlemarch", book.Title)

	_, err = c.Get(ctx, bookKey(id))
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE books SET title = 'Changed' WHERE book_id = ?`, id)
	require.NoError(t, err)
	book, err = svc.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Middlemarch", book.Title, "served from cache")
	assert.True(t, book.Price.Equal(price("11")))

	title := "Middlemarch II"
	_, err = svc.UpdateBook(ctx, id, &entity.BookPatch{Title: &title})
	require.NoError(t, err)
	book, err = svc.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Middlemarch II", book.Title)
}

func TestGetBookWithoutCache(t *testing.T) {
	s := newSQLStack(t)
	svc := NewBookService(s.books, nil, time.Minute)
	id := s.addBook(t, "Ivanhoe", 1, "1")

	book, err := svc.GetBook(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, book.ID)

	_, err = svc.GetBook(context.Background(), id+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBookValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestBookService(t)

	tests := []struct {
		name string
		book entity.Book
	}{
		{"missing title", entity.Book{TypeID: 1}},
		{"missing type", entity.Book{Title: "T"}},
		{"negative price", entity.Book{Title: "T", TypeID: 1, Price: price("-1")}},
		{"negative stock", entity.Book{Title: "T", TypeID: 1, Stock: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBook(ctx, &tt.book, 3)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}

	created, err := svc.CreateBook(ctx, &entity.Book{Title: "Kim", TypeID: 2, Price: price("6"), Stock: 3, IsActive: true}, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.SellerID, "seller defaults to the caller")
}

func TestUpdateAndDeleteBookErrors(t *testing.T) {
	ctx := context.Background()
	svc, s, _ := newTestBookService(t)
	id := s.addBook(t, "Lolita", 2, "9")

	_, err := svc.UpdateBook(ctx, id, &entity.BookPatch{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "No fields to update", validationErr.Reason)

	negative := price("-3")
	_, err = svc.UpdateBook(ctx, id, &entity.BookPatch{Price: &negative})
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Reason, "price")

	title := "Pale Fire"
	_, err = svc.UpdateBook(ctx, id+10, &entity.BookPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteBook(ctx, id))
	assert.ErrorIs(t, svc.DeleteBook(ctx, id), ErrNotFound)
	_, err = svc.GetBook(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderPlacedEvictsBooks(t *testing.T) {
	ctx := context.Background()
	svc, s, c := newTestBookService(t)
	a := s.addBook(t, "A", 5, "1")
	b := s.addBook(t, "B", 5, "1")

	n, err := svc.WarmCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, svc.OrderPlaced(ctx, &entity.OrderPlacedEvent{Items: []entity.OrderItem{{BookID: a, Quantity: 1}, {BookID: a, Quantity: 2}}}))

	_, err = c.Get(ctx, bookKey(a))
	assert.ErrorIs(t, err, cache.ErrMiss)
	_, err = c.Get(ctx, bookKey(b))
	assert.NoError(t, err)
}
