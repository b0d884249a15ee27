package repository

import (
	"bookstore-service/internal/entity"
	"context"
	"database/sql"
	"github.com/shopspring/decimal"
	"sort"
	"sync"
)

// MemoryStore keeps books and orders in process. Each unit-of-work holds a
// per-book lock from its first locking read until it commits or rolls back,
// so concurrent placements on one book serialize the way they do on InnoDB.
// Writes are staged and become visible only on commit.
type MemoryStore struct {
	mu       sync.Mutex
	books    map[int64]entity.Book
	orders   map[int64]entity.Order
	items    []entity.OrderItem
	payments map[int64][2]string
	rowLocks map[int64]chan struct{}

	nextBookID  int64
	nextOrderID int64
	nextItemID  int64
	begins      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:    make(map[int64]entity.Book),
		orders:   make(map[int64]entity.Order),
		payments: make(map[int64][2]string),
		rowLocks: make(map[int64]chan struct{}),
	}
}

// PutBook inserts or replaces a book. A zero ID is assigned the next id.
func (s *MemoryStore) PutBook(book entity.Book) entity.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if book.ID == 0 {
		s.nextBookID++
		book.ID = s.nextBookID
	} else if book.ID > s.nextBookID {
		s.nextBookID = book.ID
	}
	s.books[book.ID] = book
	return book
}

// PutPayment records the payment attached to an order.
func (s *MemoryStore) PutPayment(orderID int64, method, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[orderID] = [2]string{method, status}
}

func (s *MemoryStore) Book(id int64) (entity.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	return book, ok
}

// Orders returns every committed order sorted by id.
func (s *MemoryStore) Orders() []entity.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]entity.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

// Items returns the committed line items of one order in insertion order.
func (s *MemoryStore) Items(orderID int64) []entity.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []entity.OrderItem
	for _, item := range s.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items
}

// Begins reports how many units of work were opened.
func (s *MemoryStore) Begins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins
}

func (s *MemoryStore) Begin(ctx context.Context) (UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.begins++
	s.mu.Unlock()
	return &memoryUnitOfWork{
		store:  s,
		held:   make(map[int64]chan struct{}),
		deltas: make(map[int64]int),
	}, nil
}

func (s *MemoryStore) rowLock(id int64) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	return ch
}

func (s *MemoryStore) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]entity.OrderSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := []entity.OrderSummary{}
	for _, o := range s.orders {
		if o.CustomerID != customerID {
			continue
		}
		count := 0
		for _, item := range s.items {
			if item.OrderID == o.ID {
				count++
			}
		}
		orders = append(orders, entity.OrderSummary{ID: o.ID, TotalAmount: o.TotalAmount, Status: o.Status, OrderDate: o.OrderDate, ItemCount: count})
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].OrderDate.After(orders[j].OrderDate)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

func (s *MemoryStore) GetOrderDetails(ctx context.Context, customerID, orderID int64) (*entity.OrderDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	details := &entity.OrderDetails{Order: entity.OrderHeader{Order: o}, Items: []entity.OrderItemDetail{}}
	if p, ok := s.payments[orderID]; ok {
		method, status := p[0], p[1]
		details.Order.PaymentMethod = &method
		details.Order.PaymentStatus = &status
	}
	for _, item := range s.items {
		if item.OrderID != orderID {
			continue
		}
		book := s.books[item.BookID]
		details.Items = append(details.Items, entity.OrderItemDetail{
			ID:        item.ID,
			BookID:    item.BookID,
			Title:     book.Title,
			Author:    book.Author,
			ISBN:      book.ISBN,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return details, nil
}

type memoryUnitOfWork struct {
	store *MemoryStore

	mu     sync.Mutex
	held   map[int64]chan struct{}
	deltas map[int64]int
	orders []entity.Order
	items  []entity.OrderItem
	done   bool
}

func (u *memoryUnitOfWork) Books() BookLocker   { return u }
func (u *memoryUnitOfWork) Orders() OrderWriter { return u }

func (u *memoryUnitOfWork) LockBookForUpdate(ctx context.Context, bookID int64) (*entity.BookStock, error) {
	u.mu.Lock()
	_, held := u.held[bookID]
	done := u.done
	u.mu.Unlock()
	if done {
		return nil, sql.ErrTxDone
	}

	if !held {
		ch := u.store.rowLock(bookID)
		select {
		case ch <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		u.mu.Lock()
		u.held[bookID] = ch
		u.mu.Unlock()
	}

	book, ok := u.store.Book(bookID)
	if !ok {
		return nil, ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return &entity.BookStock{BookID: book.ID, Stock: book.Stock - u.deltas[bookID], Price: book.Price}, nil
}

func (u *memoryUnitOfWork) DecrementStock(ctx context.Context, bookID int64, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	book, ok := u.store.Book(bookID)
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return sql.ErrTxDone
	}
	if !ok || book.Stock-u.deltas[bookID] < quantity {
		return ErrStockConflict
	}
	u.deltas[bookID] += quantity
	return nil
}

func (u *memoryUnitOfWork) InsertOrder(ctx context.Context, order *entity.Order) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	u.store.mu.Lock()
	u.store.nextOrderID++
	id := u.store.nextOrderID
	u.store.mu.Unlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return 0, sql.ErrTxDone
	}
	o := *order
	o.ID = id
	u.orders = append(u.orders, o)
	return id, nil
}

func (u *memoryUnitOfWork) InsertOrderItem(ctx context.Context, item *entity.OrderItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.mu.Lock()
	u.store.nextItemID++
	item.ID = u.store.nextItemID
	u.store.mu.Unlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return sql.ErrTxDone
	}
	u.items = append(u.items, *item)
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return sql.ErrTxDone
	}
	u.done = true

	s := u.store
	s.mu.Lock()
	for id, delta := range u.deltas {
		book := s.books[id]
		book.Stock -= delta
		s.books[id] = book
	}
	for _, o := range u.orders {
		s.orders[o.ID] = o
	}
	s.items = append(s.items, u.items...)
	s.mu.Unlock()

	u.unlockAll()
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	u.unlockAll()
	return nil
}

func (u *memoryUnitOfWork) Release() {
	_ = u.Rollback()
}

// unlockAll must be called with u.mu held.
func (u *memoryUnitOfWork) unlockAll() {
	for id, ch := range u.held {
		<-ch
		delete(u.held, id)
	}
}
