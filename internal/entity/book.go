package entity

import "github.com/shopspring/decimal"

type Book struct {
	ID          int64           `json:"book_id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	ISBN        string          `json:"isbn"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	TypeID      int64           `json:"type_id"`
	SellerID    int64           `json:"seller_id"`
	IsActive    bool            `json:"is_active"`
}

// BookStock is the part of a book row read under a row lock while an order
// is being placed.
type BookStock struct {
	BookID int64
	Stock  int
	Price  decimal.Decimal
}

// BookPatch carries a partial book update. Nil fields are left untouched.
type BookPatch struct {
	Title       *string          `json:"title"`
	Author      *string          `json:"author"`
	ISBN        *string          `json:"isbn"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	TypeID      *int64           `json:"type_id"`
	SellerID    *int64           `json:"seller_id"`
	IsActive    *bool            `json:"is_active"`
}

func (p *BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.ISBN == nil && p.Description == nil &&
		p.Price == nil && p.Stock == nil && p.TypeID == nil && p.SellerID == nil && p.IsActive == nil
}

/*
MySQL schema:
CREATE TABLE books (
	book_id BIGINT AUTO_INCREMENT PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	author VARCHAR(255) NOT NULL DEFAULT '',
	isbn VARCHAR(32) NOT NULL DEFAULT '',
	description TEXT,
	price DECIMAL(10,2) NOT NULL DEFAULT 0,
	stock INT NOT NULL DEFAULT 0,
	type_id BIGINT NOT NULL,
	seller_id BIGINT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	CHECK (stock >= 0)
) ENGINE=InnoDB;
*/
