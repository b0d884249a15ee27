package api

import (
	"bookstore-service/internal/service"
	"errors"
	"fmt"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"net/http"
	"os"
	"strconv"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// errorResponse maps a service error to its status code and JSON body.
// Causes of unexpected errors are logged, never returned.
func errorResponse(c echo.Context, err error) error {
	var validationErr *service.ValidationError
	var stockErr *service.InsufficientStockError
	var txErr *service.TransactionError
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": validationErr.Reason})
	case errors.As(err, &stockErr):
		return c.JSON(http.StatusConflict, map[string]any{"error": stockErr.Error(), "book_id": stockErr.BookID})
	case errors.As(err, &txErr):
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": txErr.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	case errors.Is(err, service.ErrEmailTaken):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Email already registered"})
	case errors.Is(err, service.ErrDuplicateRequest):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Request already processed"})
	default:
		logger.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

// HTTPErrorHandler renders errors that escape the handlers, such as unknown
// routes, in the same {"error": ...} shape.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	} else {
		logger.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
	}

	if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
		logger.Error().Err(err).Msg("Error writing error response")
	}
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
