package repository

import (
	"bookstore-service/internal/entity"
	"context"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestMemoryUnitOfWorkCommitAppliesStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	book := s.PutBook(entity.Book{Title: "A", Stock: 5, Price: decimal.NewFromInt(10)})

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	defer uow.Release()

	require.NoError(t, uow.Books().DecrementStock(ctx, book.ID, 2))
	stock, err := uow.Books().LockBookForUpdate(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stock.Stock, "staged decrement is visible inside the unit of work")

	got, _ := s.Book(book.ID)
	assert.Equal(t, 5, got.Stock, "nothing is visible before commit")

	orderID, err := uow.Orders().InsertOrder(ctx, &entity.Order{CustomerID: 1, Status: entity.OrderStatusPending})
	require.NoError(t, err)
	require.NoError(t, uow.Orders().InsertOrderItem(ctx, &entity.OrderItem{OrderID: orderID, BookID: book.ID, Quantity: 2}))
	assert.Empty(t, s.Orders())

	require.NoError(t, uow.Commit())
	got, _ = s.Book(book.ID)
	assert.Equal(t, 3, got.Stock)
	assert.Len(t, s.Orders(), 1)
	assert.Len(t, s.Items(orderID), 1)
	assert.Equal(t, 1, s.Begins())
}

func TestMemoryUnitOfWorkRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	book := s.PutBook(entity.Book{Title: "A", Stock: 5})

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = uow.Books().LockBookForUpdate(ctx, book.ID)
	require.NoError(t, err)
	require.NoError(t, uow.Books().DecrementStock(ctx, book.ID, 5))
	_, err = uow.Orders().InsertOrder(ctx, &entity.Order{CustomerID: 1})
	require.NoError(t, err)
	require.NoError(t, uow.Rollback())
	uow.Release()

	got, _ := s.Book(book.ID)
	assert.Equal(t, 5, got.Stock)
	assert.Empty(t, s.Orders())

	// the row lock was released
	next, err := s.Begin(ctx)
	require.NoError(t, err)
	defer next.Release()
	_, err = next.Books().LockBookForUpdate(ctx, book.ID)
	assert.NoError(t, err)
}

func TestMemoryRowLockBlocksUntilRelease(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	book := s.PutBook(entity.Book{Title: "A", Stock: 1})

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = first.Books().LockBookForUpdate(ctx, book.ID)
	require.NoError(t, err)

	second, err := s.Begin(ctx)
	require.NoError(t, err)
	defer second.Release()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = second.Books().LockBookForUpdate(waitCtx, book.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan error, 1)
	go func() {
		_, err := second.Books().LockBookForUpdate(ctx, book.ID)
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while still held")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, first.Commit())
	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lock not acquired after commit")
	}
}

func TestMemoryLockMissingBook(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	defer uow.Release()

	_, err = uow.Books().LockBookForUpdate(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, uow.Books().DecrementStock(ctx, 42, 1), ErrStockConflict)
}

func TestMemoryGetOrderDetailsChecksOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	book := s.PutBook(entity.Book{Title: "A", Author: "X", Stock: 5, Price: decimal.NewFromInt(3)})

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	orderID, err := uow.Orders().InsertOrder(ctx, &entity.Order{CustomerID: 7, TotalAmount: decimal.NewFromInt(6)})
	require.NoError(t, err)
	require.NoError(t, uow.Orders().InsertOrderItem(ctx, &entity.OrderItem{OrderID: orderID, BookID: book.ID, Quantity: 2, UnitPrice: book.Price}))
	require.NoError(t, uow.Commit())
	s.PutPayment(orderID, "CARD", "PAID")

	details, err := s.GetOrderDetails(ctx, 7, orderID)
	require.NoError(t, err)
	require.Len(t, details.Items, 1)
	assert.True(t, details.Items[0].LineTotal.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, "CARD", *details.Order.PaymentMethod)

	_, err = s.GetOrderDetails(ctx, 8, orderID)
	assert.ErrorIs(t, err, ErrNotFound)
}
