package repository

import (
	"bookstore-service/internal/entity"
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrStockConflict is returned when a guarded stock decrement matched no row
	ErrStockConflict = errors.New("stock conflict")
	// ErrDuplicate is returned when a unique constraint rejects an insert or update
	ErrDuplicate = errors.New("duplicate")
)

// Dialect selects the SQL flavour of the underlying database.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// lockClause is appended to locking reads. SQLite has no row locks; a
// transaction there already owns the single writer connection.
func (d Dialect) lockClause() string {
	if d == DialectMySQL {
		return " FOR UPDATE"
	}
	return ""
}

// BookLocker is the catalog side of a unit-of-work.
type BookLocker interface {
	// LockBookForUpdate reads stock and price while holding the row lock
	// until the unit-of-work ends. Missing books return ErrNotFound.
	LockBookForUpdate(ctx context.Context, bookID int64) (*entity.BookStock, error)
	DecrementStock(ctx context.Context, bookID int64, quantity int) error
}

// OrderWriter is the order side of a unit-of-work.
type OrderWriter interface {
	InsertOrder(ctx context.Context, order *entity.Order) (int64, error)
	InsertOrderItem(ctx context.Context, item *entity.OrderItem) error
}

// UnitOfWork is one database transaction. Release must be called on every
// path; it rolls back when neither Commit nor Rollback ran.
type UnitOfWork interface {
	Books() BookLocker
	Orders() OrderWriter
	Commit() error
	Rollback() error
	Release()
}

// UnitOfWorkFactory opens units of work.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
