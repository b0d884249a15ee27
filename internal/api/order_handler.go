package api

import (
	"bookstore-service/internal/entity"
	"bookstore-service/internal/service"
	"errors"
	"github.com/labstack/echo/v4"
	"net/http"
)

// HeaderIdempotencyKey lets a client retry POST /orders safely.
const HeaderIdempotencyKey = "Idempotency-Key"

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// PlaceOrder --> POST /orders
func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	claims, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	req := struct {
		Items []entity.ItemRequest `json:"items"`
	}{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	key := c.Request().Header.Get(HeaderIdempotencyKey)
	orderID, err := h.orderService.PlaceOrderOnce(c.Request().Context(), key, claims.UserID, req.Items)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateRequest) && orderID > 0 {
			return c.JSON(http.StatusConflict, map[string]any{"error": "Order already placed", "orderId": orderID})
		}
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{"msg": "Order placed successfully", "orderId": orderID})
}

// ListOrders --> GET /orders
func (h *OrderHandler) ListOrders(c echo.Context) error {
	claims, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	orders, err := h.orderService.ListOrders(c.Request().Context(), claims.UserID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"count": len(orders), "orders": orders})
}

// GetOrder --> GET /orders/:order_id
func (h *OrderHandler) GetOrder(c echo.Context) error {
	claims, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	orderID, ok := parseID(c, "order_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid order ID"})
	}

	details, err := h.orderService.GetOrderDetails(c.Request().Context(), claims.UserID, orderID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Order not found"})
		}
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, details)
}
