package repository

import (
	"bookstore-service/internal/entity"
	"context"
	"database/sql"
	"errors"
	"github.com/shopspring/decimal"
)

// OrderRepository serves the read side of orders. Orders are only written
// through a unit-of-work.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db}
}

func (r *OrderRepository) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]entity.OrderSummary, error) {
	query := `
		SELECT o.order_id, o.total_amount, o.status, o.order_date,
			(SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.order_id) AS item_count
		FROM orders o
		WHERE o.customer_id = ?
		ORDER BY o.order_date DESC, o.order_id DESC`
	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []entity.OrderSummary{}
	for rows.Next() {
		var summary entity.OrderSummary
		err := rows.Scan(&summary.ID, &summary.TotalAmount, &summary.Status, &summary.OrderDate, &summary.ItemCount)
		if err != nil {
			return nil, err
		}
		orders = append(orders, summary)
	}
	return orders, rows.Err()
}

// GetOrderDetails returns ErrNotFound both for missing orders and for orders
// owned by another customer.
func (r *OrderRepository) GetOrderDetails(ctx context.Context, customerID, orderID int64) (*entity.OrderDetails, error) {
	orderQuery := `
		SELECT o.order_id, o.customer_id, o.total_amount, o.status, o.order_date, p.method, p.status
		FROM orders o
		LEFT JOIN payments p ON o.order_id = p.order_id
		WHERE o.order_id = ? AND o.customer_id = ?
		LIMIT 1`
	itemsQuery := `
		SELECT oi.order_item_id, oi.book_id, b.title, b.author, b.isbn, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN books b ON oi.book_id = b.book_id
		WHERE oi.order_id = ?
		ORDER BY oi.order_item_id`

	details := &entity.OrderDetails{Items: []entity.OrderItemDetail{}}
	header := &details.Order
	var method, status sql.NullString
	err := r.db.QueryRowContext(ctx, orderQuery, orderID, customerID).Scan(&header.ID, &header.CustomerID, &header.TotalAmount, &header.Status, &header.OrderDate, &method, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if method.Valid {
		header.PaymentMethod = &method.String
	}
	if status.Valid {
		header.PaymentStatus = &status.String
	}

	rows, err := r.db.QueryContext(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item entity.OrderItemDetail
		err := rows.Scan(&item.ID, &item.BookID, &item.Title, &item.Author, &item.ISBN, &item.Quantity, &item.UnitPrice)
		if err != nil {
			return nil, err
		}
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		details.Items = append(details.Items, item)
	}
	return details, rows.Err()
}

// orderTx writes orders inside a placement transaction.
type orderTx struct {
	q querier
}

func (o *orderTx) InsertOrder(ctx context.Context, order *entity.Order) (int64, error) {
	query := `INSERT INTO orders (customer_id, total_amount, status, order_date) VALUES (?, ?, ?, ?)`
	res, err := o.q.ExecContext(ctx, query, order.CustomerID, order.TotalAmount, order.Status, order.OrderDate)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (o *orderTx) InsertOrderItem(ctx context.Context, item *entity.OrderItem) error {
	query := `INSERT INTO order_items (order_id, book_id, quantity, unit_price) VALUES (?, ?, ?, ?)`
	res, err := o.q.ExecContext(ctx, query, item.OrderID, item.BookID, item.Quantity, item.UnitPrice)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}
