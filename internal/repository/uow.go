package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// TxFactory opens SQL transactions on a pooled *sql.DB.
type TxFactory struct {
	db      *sql.DB
	dialect Dialect
}

func NewTxFactory(db *sql.DB, dialect Dialect) *TxFactory {
	return &TxFactory{db: db, dialect: dialect}
}

// Begin takes a connection from the pool and starts a transaction on it.
// The connection goes back to the pool when the transaction ends.
func (f *TxFactory) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlUnitOfWork{
		tx:     tx,
		books:  &bookTx{q: tx, dialect: f.dialect},
		orders: &orderTx{q: tx},
	}, nil
}

type sqlUnitOfWork struct {
	tx     *sql.Tx
	books  *bookTx
	orders *orderTx

	mu   sync.Mutex
	done bool
}

func (u *sqlUnitOfWork) Books() BookLocker  { return u.books }
func (u *sqlUnitOfWork) Orders() OrderWriter { return u.orders }

func (u *sqlUnitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return sql.ErrTxDone
	}
	u.done = true
	return u.tx.Commit()
}

func (u *sqlUnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	err := u.tx.Rollback()
	// database/sql already rolled back when the context was cancelled
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (u *sqlUnitOfWork) Release() {
	_ = u.Rollback()
}
