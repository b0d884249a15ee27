package repository

import (
	"bookstore-service/internal/entity"
	"context"
	"database/sql"
	"errors"
)

const bookColumns = `book_id, title, author, isbn, description, price, stock, type_id, seller_id, is_active`

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db}
}

func scanBook(row interface{ Scan(dest ...any) error }) (*entity.Book, error) {
	book := &entity.Book{}
	var description sql.NullString
	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.ISBN, &description, &book.Price, &book.Stock, &book.TypeID, &book.SellerID, &book.IsActive)
	if err != nil {
		return nil, err
	}
	book.Description = description.String
	return book, nil
}

func (r *BookRepository) GetBookByID(ctx context.Context, id int64) (*entity.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE book_id = ?`
	book, err := scanBook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return book, nil
}

func (r *BookRepository) GetBooks(ctx context.Context) ([]*entity.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY book_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*entity.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (r *BookRepository) CreateBook(ctx context.Context, book *entity.Book) (*entity.Book, error) {
	query := `INSERT INTO books (title, author, isbn, description, price, stock, type_id, seller_id, is_active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, book.Title, book.Author, book.ISBN, book.Description, book.Price, book.Stock, book.TypeID, book.SellerID, book.IsActive)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	book.ID = id
	return book, nil
}

// UpdateBook applies the fields set in patch and returns the updated row.
// A patch with no fields returns the row unchanged.
func (r *BookRepository) UpdateBook(ctx context.Context, id int64, patch *entity.BookPatch) (*entity.Book, error) {
	query, args, err := buildUpdate("books", "book_id", bookFields, patch, id)
	if err != nil {
		return nil, err
	}
	if query != "" {
		// MySQL reports zero affected rows when values are unchanged, so
		// existence is decided by the read below.
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	return r.GetBookByID(ctx, id)
}

func (r *BookRepository) DeleteBook(ctx context.Context, id int64) error {
	query := `DELETE FROM books WHERE book_id = ?`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// bookTx runs catalog statements inside a placement transaction.
type bookTx struct {
	q       querier
	dialect Dialect
}

func (b *bookTx) LockBookForUpdate(ctx context.Context, bookID int64) (*entity.BookStock, error) {
	query := `SELECT book_id, stock, price FROM books WHERE book_id = ?` + b.dialect.lockClause()
	stock := &entity.BookStock{}
	err := b.q.QueryRowContext(ctx, query, bookID).Scan(&stock.BookID, &stock.Stock, &stock.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return stock, nil
}

// DecrementStock never drives stock below zero: the row only matches while
// enough stock remains.
func (b *bookTx) DecrementStock(ctx context.Context, bookID int64, quantity int) error {
	query := `UPDATE books SET stock = stock - ? WHERE book_id = ? AND stock >= ?`
	res, err := b.q.ExecContext(ctx, query, quantity, bookID, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrStockConflict
	}
	return nil
}
