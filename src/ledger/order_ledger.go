package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalreconciler/src/model"
	"signalreconciler/src/repository"
)

// OrderLedger tracks the lifecycle of brokerage orders from placement to a
// terminal state. Every transition is one explicit, idempotent operation
// running in a single database transaction together with its audit event;
// executed fills are folded into the position inside the same transaction.
//
// Transitions:
//
//	PENDING       -> ONGOING | FAILED | RETRY_PENDING | REJECTED | CLOSED
//	RETRY_PENDING -> ONGOING | FAILED | RETRY_PENDING
//
// ONGOING, REJECTED and CLOSED are terminal here; post-execution quantity
// changes live on the position, not the order.
type OrderLedger struct {
	db        *gorm.DB
	now       func() time.Time
	positions *PositionAggregator
}

// NewOrderLedger creates a ledger bound to the given database handle.
func NewOrderLedger(db *gorm.DB) *OrderLedger {
	return &OrderLedger{
		db:        db,
		now:       time.Now,
		positions: NewPositionAggregator(db),
	}
}

// WithDB rebinds the ledger to a specific session or transaction.
func (l *OrderLedger) WithDB(db *gorm.DB) *OrderLedger {
	return &OrderLedger{db: db, now: l.now, positions: l.positions.WithDB(db)}
}

// RecordPlacement creates the PENDING order row for a placement attempt,
// appends the placement event, and, when the order was placed against a
// signal, marks that signal traded for the user, all in one transaction.
// The metadata payload is validated against the order's entry type on write.
func (l *OrderLedger) RecordPlacement(
	ctx context.Context,
	order *model.Order,
	signalID uint,
) error {

	if order.EntryType == "" {
		order.EntryType = model.EntryTypeInitial
	}
	if err := order.Metadata.Data().Validate(order.EntryType); err != nil {
		return fmt.Errorf("order metadata: %w", err)
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := repository.NewOrderRepository().WithDB(tx)
		signals := repository.NewSignalRepository().WithDB(tx)

		order.Status = model.OrderStatusPending
		if err := orders.Create(ctx, order); err != nil {
			return err
		}

		if err := orders.CreateEvent(ctx, l.event(order, "order placement attempted")); err != nil {
			return err
		}

		if signalID != 0 {
			if err := signals.MarkTradedForUser(ctx, order.UserID, signalID); err != nil {
				return err
			}
		}

		return nil
	})
}

// MarkExecuted confirms execution: the order moves to ONGOING, the execution
// price/quantity/time are recorded, and the fill is folded into the holding.
// Reapplying the transition to an already ONGOING order only refreshes the
// last-checked timestamp; the fill is never applied twice.
func (l *OrderLedger) MarkExecuted(
	ctx context.Context,
	orderID uint,
	executionPrice float64,
	executedQty int64,
) error {

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := repository.NewOrderRepository().WithDB(tx)

		order, err := orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %d not found", orderID)
		}

		now := l.now()

		if order.Status == model.OrderStatusOngoing {
			order.LastCheckedAt = &now
			return orders.Save(ctx, order)
		}

		if !l.transitionAllowed(order, model.OrderStatusOngoing) {
			return nil
		}

		order.Status = model.OrderStatusOngoing
		order.ExecutionPrice = &executionPrice
		order.ExecutedQty = &executedQty
		order.ExecutedAt = &now
		order.LastCheckedAt = &now

		if err := orders.Save(ctx, order); err != nil {
			return err
		}

		if err := orders.CreateEvent(ctx, l.event(order, "execution confirmed")); err != nil {
			return err
		}

		return l.foldFill(ctx, tx, order, executionPrice, executedQty)
	})
}

// foldFill routes the confirmed execution into the position aggregator.
func (l *OrderLedger) foldFill(
	ctx context.Context,
	tx *gorm.DB,
	order *model.Order,
	executionPrice float64,
	executedQty int64,
) error {

	aggregator := l.positions.WithDB(tx)

	if order.Side == model.OrderSideSell {
		_, err := aggregator.ApplySell(ctx, order.UserID, order.Symbol, executedQty)
		return err
	}

	_, err := aggregator.ApplyFill(ctx, Fill{
		UserID:        order.UserID,
		Symbol:        order.Symbol,
		ExecutedQty:   executedQty,
		ExecutedPrice: executionPrice,
		EntryType:     order.EntryType,
		Meta:          order.Metadata.Data(),
	})
	return err
}

// MarkFailed records a placement or broker failure. Retriable failures move
// the order to RETRY_PENDING with the retry counter bumped and the first
// failure time pinned; the rest go to FAILED.
func (l *OrderLedger) MarkFailed(
	ctx context.Context,
	orderID uint,
	reason string,
	retriable bool,
) error {

	target := model.OrderStatusFailed
	if retriable {
		target = model.OrderStatusRetryPending
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := repository.NewOrderRepository().WithDB(tx)

		order, err := orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %d not found", orderID)
		}

		now := l.now()

		// Reapplying the same failure is a no-op beyond the check stamp.
		if order.Status == target && order.FailureReason == reason && !retriable {
			order.LastCheckedAt = &now
			return orders.Save(ctx, order)
		}

		if !l.transitionAllowed(order, target) {
			return nil
		}

		order.Status = target
		order.FailureReason = reason
		order.LastCheckedAt = &now
		if order.FirstFailedAt == nil {
			order.FirstFailedAt = &now
		}
		if retriable {
			order.RetryCount++
		}

		if err := orders.Save(ctx, order); err != nil {
			return err
		}

		return orders.CreateEvent(ctx, l.event(order, reason))
	})
}

// MarkRejected records a broker-side rejection. Terminal.
func (l *OrderLedger) MarkRejected(
	ctx context.Context,
	orderID uint,
	reason string,
) error {
	return l.terminate(ctx, orderID, model.OrderStatusRejected, reason)
}

// MarkCancelled records an explicit cancel before execution. Terminal.
func (l *OrderLedger) MarkCancelled(
	ctx context.Context,
	orderID uint,
	reason string,
) error {
	return l.terminate(ctx, orderID, model.OrderStatusClosed, reason)
}

func (l *OrderLedger) terminate(
	ctx context.Context,
	orderID uint,
	target string,
	reason string,
) error {

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := repository.NewOrderRepository().WithDB(tx)

		order, err := orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %d not found", orderID)
		}

		now := l.now()

		if order.Status == target {
			order.LastCheckedAt = &now
			return orders.Save(ctx, order)
		}

		if !l.transitionAllowed(order, target) {
			return nil
		}

		order.Status = target
		order.FailureReason = reason
		order.LastCheckedAt = &now

		if err := orders.Save(ctx, order); err != nil {
			return err
		}

		return orders.CreateEvent(ctx, l.event(order, reason))
	})
}

// transitionAllowed checks the state machine. An undefined transition is
// logged and the order left unchanged.
func (l *OrderLedger) transitionAllowed(order *model.Order, target string) bool {
	allowed := false

	switch order.Status {
	case model.OrderStatusPending:
		allowed = true
	case model.OrderStatusRetryPending:
		switch target {
		case model.OrderStatusOngoing, model.OrderStatusFailed, model.OrderStatusRetryPending:
			allowed = true
		}
	}

	if !allowed {
		logrus.WithFields(logrus.Fields{
			"component": "OrderLedger",
			"order_id":  order.ID,
			"from":      order.Status,
			"to":        target,
		}).Warn("Transition not defined for order state, leaving order unchanged")
	}

	return allowed
}

func (l *OrderLedger) event(order *model.Order, reason string) *model.OrderEvent {
	return &model.OrderEvent{
		OrderID:       order.ID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		EntryType:     order.EntryType,
		Quantity:      order.Quantity,
		Price:         order.Price,
		BrokerOrderID: order.BrokerOrderID,
		Status:        order.Status,
		Reason:        reason,
		CreatedAt:     l.now(),
	}
}
