package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalreconciler/src/database"
	"signalreconciler/src/model"
)

// OngoingOrderStatuses are the execution states that mean "this user has
// already acted on the symbol": the order was placed and has not failed or
// been rejected or cancelled.
var OngoingOrderStatuses = []string{
	model.OrderStatusPending,
	model.OrderStatusRetryPending,
	model.OrderStatusOngoing,
}

// OrderRepository handles read/write operations for orders and their event
// trail.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main
// read/write database.
func NewOrderRepository() *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Info("Creating new OrderRepository with MainDB")

	return &OrderRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order. The given order will be updated with the
// generated ID and timestamps.
func (r *OrderRepository) Create(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "Create",
		"symbol": order.Symbol,
		"side":   order.Side,
		"qty":    order.Quantity,
	}).Debug("Creating new order")

	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create order")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Create",
		"order_id": order.ID,
	}).Info("Order created successfully")

	return nil
}

// FindByID fetches a single order by its primary ID.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.Order, error) {

	var order model.Order

	err := r.db.WithContext(ctx).First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "OrderRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Order not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch order by ID")

		return nil, err
	}

	return &order, nil
}

// FindByBrokerOrderID fetches the order tracking a broker-side order ID.
// Returns (nil, nil) if no order carries that ID.
func (r *OrderRepository) FindByBrokerOrderID(
	ctx context.Context,
	brokerOrderID string,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":            "OrderRepository",
		"op":              "FindByBrokerOrderID",
		"broker_order_id": brokerOrderID,
	}).Debug("Fetching order by broker order ID")

	var order model.Order

	err := r.db.WithContext(ctx).
		Where("broker_order_id = ?", brokerOrderID).
		Order("created_at DESC").
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":            "OrderRepository",
			"op":              "FindByBrokerOrderID",
			"broker_order_id": brokerOrderID,
		}).WithError(err).Error("Failed to fetch order by broker order ID")

		return nil, err
	}

	return &order, nil
}

// FindLatestOngoingByUserAndSymbol fetches the most recent order for
// (user, symbol) still in an ongoing execution state.
// Returns (nil, nil) if the user has no live order on the symbol.
func (r *OrderRepository) FindLatestOngoingByUserAndSymbol(
	ctx context.Context,
	userID uint,
	symbol string,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":    "OrderRepository",
		"op":      "FindLatestOngoingByUserAndSymbol",
		"user_id": userID,
		"symbol":  symbol,
	}).Debug("Fetching latest ongoing order for user and symbol")

	var order model.Order

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND status IN ?",
			userID, symbol, OngoingOrderStatuses).
		Order("created_at DESC").
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "OrderRepository",
			"op":      "FindLatestOngoingByUserAndSymbol",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to fetch ongoing order")

		return nil, err
	}

	return &order, nil
}

// FindPendingByUser returns all PENDING orders for a user, oldest first.
// This is the premarket adjuster's working set.
func (r *OrderRepository) FindPendingByUser(
	ctx context.Context,
	userID uint,
) ([]model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":    "OrderRepository",
		"op":      "FindPendingByUser",
		"user_id": userID,
	}).Debug("Fetching pending orders for user")

	var orders []model.Order

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.OrderStatusPending).
		Order("created_at ASC").
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "OrderRepository",
			"op":      "FindPendingByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch pending orders")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "FindPendingByUser",
		"user_id":     userID,
		"rows_return": len(orders),
	}).Info("Pending orders fetched")

	return orders, nil
}

// Save persists all fields of an existing order row.
func (r *OrderRepository) Save(
	ctx context.Context,
	order *model.Order,
) error {

	err := r.db.WithContext(ctx).Save(order).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "Save",
			"order_id": order.ID,
		}).WithError(err).Error("Failed to save order")

		return err
	}

	return nil
}

// ---------------------------------------------------
// OrderEvent methods
// ---------------------------------------------------

// CreateEvent appends one event row to an order's audit trail.
func (r *OrderRepository) CreateEvent(
	ctx context.Context,
	event *model.OrderEvent,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "CreateEvent",
		"order_id": event.OrderID,
		"status":   event.Status,
	}).Debug("Creating order event")

	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "CreateEvent",
			"order_id": event.OrderID,
		}).WithError(err).Error("Failed to create order event")

		return err
	}

	return nil
}

// FindEventsByOrderID returns an order's full event trail, oldest first.
func (r *OrderRepository) FindEventsByOrderID(
	ctx context.Context,
	orderID uint,
) ([]model.OrderEvent, error) {

	var events []model.OrderEvent

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&events).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "FindEventsByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch order events")

		return nil, err
	}

	return events, nil
}
