package entity

import (
	"github.com/shopspring/decimal"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID          int64           `json:"order_id"`
	CustomerID  int64           `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	OrderDate   time.Time       `json:"order_date"`
}

type OrderItem struct {
	ID        int64           `json:"order_item_id"`
	OrderID   int64           `json:"order_id"`
	BookID    int64           `json:"book_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ItemRequest is one requested book/quantity pair of a new order.
type ItemRequest struct {
	BookID   int64 `json:"book_id"`
	Quantity int   `json:"quantity"`
}

// OrderSummary is one row of a customer's order history.
type OrderSummary struct {
	ID          int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	OrderDate   time.Time       `json:"order_date"`
	ItemCount   int             `json:"item_count"`
}

// OrderHeader is an order joined with its (optional) payment.
type OrderHeader struct {
	Order
	PaymentMethod *string `json:"payment_method"`
	PaymentStatus *string `json:"payment_status"`
}

type OrderItemDetail struct {
	ID        int64           `json:"order_item_id"`
	BookID    int64           `json:"book_id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	ISBN      string          `json:"isbn"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderDetails struct {
	Order OrderHeader       `json:"order"`
	Items []OrderItemDetail `json:"items"`
}

/*
MySQL schema:
CREATE TABLE orders (
	order_id BIGINT AUTO_INCREMENT PRIMARY KEY,
	customer_id BIGINT NOT NULL,
	total_amount DECIMAL(12,2) NOT NULL,
	status VARCHAR(20) NOT NULL,
	order_date DATETIME NOT NULL
) ENGINE=InnoDB;

CREATE TABLE order_items (
	order_item_id BIGINT AUTO_INCREMENT PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(order_id),
	book_id BIGINT NOT NULL REFERENCES books(book_id),
	quantity INT NOT NULL,
	unit_price DECIMAL(10,2) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE payments (
	payment_id BIGINT AUTO_INCREMENT PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(order_id),
	method VARCHAR(32) NOT NULL,
	status VARCHAR(20) NOT NULL
) ENGINE=InnoDB;
*/
