package api

import (
	"bookstore-service/internal/entity"
	"bookstore-service/internal/service"
	"github.com/labstack/echo/v4"
	"net/http"
)

type BookHandler struct {
	bookService *service.BookService
}

func NewBookHandler(bookService *service.BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

// ListBooks --> GET /books
func (h *BookHandler) ListBooks(c echo.Context) error {
	books, err := h.bookService.ListBooks(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, books)
}

// GetBook --> GET /books/:id
func (h *BookHandler) GetBook(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid ID"})
	}
	book, err := h.bookService.GetBook(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

// CreateBook --> POST /books
func (h *BookHandler) CreateBook(c echo.Context) error {
	claims, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	book := entity.Book{IsActive: true}
	if err := c.Bind(&book); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}
	book.ID = 0

	created, err := h.bookService.CreateBook(c.Request().Context(), &book, claims.UserID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// UpdateBook --> PATCH /books/:id
func (h *BookHandler) UpdateBook(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid ID"})
	}
	patch := entity.BookPatch{}
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	book, err := h.bookService.UpdateBook(c.Request().Context(), id, &patch)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

// DeleteBook --> DELETE /books/:id
func (h *BookHandler) DeleteBook(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid ID"})
	}
	if err := h.bookService.DeleteBook(c.Request().Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// WarmCache --> GET /books/warmup-cache
func (h *BookHandler) WarmCache(c echo.Context) error {
	n, err := h.bookService.WarmCache(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"warmed": n})
}
