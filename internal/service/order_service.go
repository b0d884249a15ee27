package service

import (
	"bookstore-service/internal/cache"
	"bookstore-service/internal/config"
	"bookstore-service/internal/entity"
	"bookstore-service/internal/metrics"
	"bookstore-service/internal/repository"
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"math"
	"os"
	"sort"
	"strconv"
	"time"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// OrderReader is the read side used by the order query operations.
type OrderReader interface {
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]entity.OrderSummary, error)
	GetOrderDetails(ctx context.Context, customerID, orderID int64) (*entity.OrderDetails, error)
}

// EventPublisher receives an event for every committed order.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *entity.OrderPlacedEvent) error
}

// OrderService places orders and answers order queries.
type OrderService struct {
	uow       repository.UnitOfWorkFactory
	orders    OrderReader
	publisher EventPublisher
	idem      cache.Store
	metrics   *metrics.Metrics
	cfg       config.OrdersConfig
	now       func() time.Time
}

// NewOrderService creates a new instance of OrderService. publisher, idem
// and m may be nil.
func NewOrderService(uow repository.UnitOfWorkFactory, orders OrderReader, publisher EventPublisher, idem cache.Store, m *metrics.Metrics, cfg config.OrdersConfig) *OrderService {
	return &OrderService{
		uow:       uow,
		orders:    orders,
		publisher: publisher,
		idem:      idem,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

func validateItems(customerID int64, items []entity.ItemRequest) error {
	if customerID <= 0 {
		return invalid("invalid customer")
	}
	if len(items) == 0 {
		return invalid("No items in order")
	}
	for i, item := range items {
		if item.BookID <= 0 {
			return invalid("item %d: book_id must be a positive id", i)
		}
		if item.Quantity <= 0 {
			return invalid("item %d: quantity must be a positive integer", i)
		}
		if item.Quantity > math.MaxInt32 {
			return invalid("item %d: quantity must be at most %d", i, math.MaxInt32)
		}
	}
	return nil
}

func outcomeOf(err error) string {
	var validationErr *ValidationError
	var stockErr *InsufficientStockError
	switch {
	case err == nil:
		return metrics.OutcomeCommitted
	case errors.As(err, &validationErr):
		return metrics.OutcomeInvalid
	case errors.As(err, &stockErr):
		return metrics.OutcomeInsufficientStock
	default:
		return metrics.OutcomeFailed
	}
}

// PlaceOrder reserves stock for every item and records the order in one
// transaction. Either all rows are written and committed or none are.
func (s *OrderService) PlaceOrder(ctx context.Context, customerID int64, items []entity.ItemRequest) (int64, error) {
	start := time.Now()
	event, err := s.placeOrder(ctx, customerID, items)
	s.metrics.ObservePlacement(outcomeOf(err), time.Since(start))

	if err != nil {
		var stockErr *InsufficientStockError
		var txErr *TransactionError
		switch {
		case errors.As(err, &stockErr):
			logger.Warn().Int64("customer_id", customerID).Msgf("Book %d out of stock", stockErr.BookID)
		case errors.As(err, &txErr):
			logger.Error().Err(txErr.Err).Int64("customer_id", customerID).Msgf("Error placing order during %s", txErr.Op)
		default:
			logger.Warn().Int64("customer_id", customerID).Msgf("Rejected order: %v", err)
		}
		return 0, err
	}

	logger.Info().Int64("customer_id", customerID).Int64("order_id", event.OrderID).Str("total", event.TotalAmount.StringFixed(2)).Msg("Order placed")
	s.publish(ctx, event)
	return event.OrderID, nil
}

func (s *OrderService) placeOrder(ctx context.Context, customerID int64, items []entity.ItemRequest) (*entity.OrderPlacedEvent, error) {
	if err := validateItems(customerID, items); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PlacementTimeout)
	defer cancel()

	uow, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, &TransactionError{Op: "begin", Err: err}
	}
	defer uow.Release()

	event, err := s.reserveAndRecord(ctx, uow, customerID, items)
	if err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			logger.Error().Err(rbErr).Msg("Error rolling back order transaction")
		}
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, &TransactionError{Op: "commit", Err: err}
	}
	return event, nil
}

// reserveAndRecord runs the statements of one placement. Books are locked in
// ascending id order so two orders over the same books cannot deadlock.
func (s *OrderService) reserveAndRecord(ctx context.Context, uow repository.UnitOfWork, customerID int64, items []entity.ItemRequest) (*entity.OrderPlacedEvent, error) {
	wanted := make(map[int64]int, len(items))
	bookIDs := make([]int64, 0, len(items))
	for _, item := range items {
		if _, seen := wanted[item.BookID]; !seen {
			bookIDs = append(bookIDs, item.BookID)
		}
		wanted[item.BookID] += item.Quantity
	}
	sort.Slice(bookIDs, func(i, j int) bool { return bookIDs[i] < bookIDs[j] })

	prices := make(map[int64]decimal.Decimal, len(bookIDs))
	for _, id := range bookIDs {
		stock, err := uow.Books().LockBookForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &InsufficientStockError{BookID: id}
			}
			return nil, &TransactionError{Op: "lock book", Err: err}
		}
		if stock.Stock < wanted[id] {
			return nil, &InsufficientStockError{BookID: id}
		}
		prices[id] = stock.Price
	}

	total := decimal.Zero
	lines := make([]entity.OrderItem, len(items))
	for i, item := range items {
		price := prices[item.BookID]
		lines[i] = entity.OrderItem{BookID: item.BookID, Quantity: item.Quantity, UnitPrice: price}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	order := &entity.Order{
		CustomerID:  customerID,
		TotalAmount: total,
		Status:      entity.OrderStatusPending,
		OrderDate:   s.now().UTC().Truncate(time.Second),
	}
	orderID, err := uow.Orders().InsertOrder(ctx, order)
	if err != nil {
		return nil, &TransactionError{Op: "insert order", Err: err}
	}
	order.ID = orderID

	for i := range lines {
		lines[i].OrderID = orderID
		if err := uow.Orders().InsertOrderItem(ctx, &lines[i]); err != nil {
			return nil, &TransactionError{Op: "insert order item", Err: err}
		}
		if err := uow.Books().DecrementStock(ctx, lines[i].BookID, lines[i].Quantity); err != nil {
			if errors.Is(err, repository.ErrStockConflict) {
				return nil, &InsufficientStockError{BookID: lines[i].BookID}
			}
			return nil, &TransactionError{Op: "decrement stock", Err: err}
		}
	}

	return &entity.OrderPlacedEvent{
		EventID:     uuid.NewString(),
		Type:        entity.EventOrderPlaced,
		OrderID:     orderID,
		CustomerID:  customerID,
		TotalAmount: total,
		Items:       lines,
		OccurredAt:  order.OrderDate,
	}, nil
}

// publish never fails the placement: the order is already committed.
func (s *OrderService) publish(ctx context.Context, event *entity.OrderPlacedEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishOrderPlaced(context.WithoutCancel(ctx), event)
	s.metrics.ObservePublish(err)
	if err != nil {
		logger.Error().Err(err).Msgf("Error publishing event for order %d", event.OrderID)
	}
}

// PlaceOrderOnce places the order unless key was already used by the same
// customer. A repeated key returns ErrDuplicateRequest together with the
// order id of the first request when it has completed. Failed placements
// free the key so the client can resubmit.
func (s *OrderService) PlaceOrderOnce(ctx context.Context, key string, customerID int64, items []entity.ItemRequest) (int64, error) {
	if key == "" || s.idem == nil {
		return s.PlaceOrder(ctx, customerID, items)
	}
	if err := validateItems(customerID, items); err != nil {
		s.metrics.ObservePlacement(metrics.OutcomeInvalid, 0)
		return 0, err
	}

	idemKey := fmt.Sprintf("idempotent-key:%d:%s", customerID, key)
	claimed, err := s.idem.SetNX(ctx, idemKey, "pending", s.cfg.IdempotencyTTL)
	if err != nil {
		logger.Error().Err(err).Msg("Error claiming idempotency key")
		return 0, &TransactionError{Op: "claim idempotency key", Err: err}
	}
	if !claimed {
		s.metrics.ObservePlacement(metrics.OutcomeDuplicate, 0)
		val, err := s.idem.Get(ctx, idemKey)
		if err == nil {
			if orderID, err := strconv.ParseInt(val, 10, 64); err == nil {
				return orderID, ErrDuplicateRequest
			}
		}
		return 0, ErrDuplicateRequest
	}

	orderID, err := s.PlaceOrder(ctx, customerID, items)
	if err != nil {
		if delErr := s.idem.Del(context.WithoutCancel(ctx), idemKey); delErr != nil {
			logger.Error().Err(delErr).Msg("Error releasing idempotency key")
		}
		return 0, err
	}

	if err := s.idem.Set(context.WithoutCancel(ctx), idemKey, strconv.FormatInt(orderID, 10), s.cfg.IdempotencyTTL); err != nil {
		logger.Error().Err(err).Msgf("Error recording idempotency key for order %d", orderID)
	}
	return orderID, nil
}

// ListOrders returns the customer's orders, most recent first.
func (s *OrderService) ListOrders(ctx context.Context, customerID int64) ([]entity.OrderSummary, error) {
	orders, err := s.orders.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing orders for customer %d", customerID)
		return nil, err
	}
	return orders, nil
}

// GetOrderDetails returns ErrNotFound for orders the customer doesn't own.
func (s *OrderService) GetOrderDetails(ctx context.Context, customerID, orderID int64) (*entity.OrderDetails, error) {
	if orderID <= 0 {
		return nil, invalid("Invalid order ID: order_id must be a positive number")
	}
	details, err := s.orders.GetOrderDetails(ctx, customerID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Msgf("Error getting order %d", orderID)
		return nil, err
	}
	return details, nil
}
