package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalreconciler/src/model"
	"signalreconciler/src/repository"
)

// PriceFunc resolves the current premarket reference price (LTP) for a
// symbol. An error means no price is available; the affected order is
// skipped, not the batch.
type PriceFunc func(symbol string) (float64, error)

// CapitalFunc resolves the target capital allocated to one order.
type CapitalFunc func(order model.Order) float64

// AdjustResult reports what one premarket pass did to the pending set.
type AdjustResult struct {
	Total     int `json:"total"`
	Adjusted  int `json:"adjusted"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}

// PremarketAdjuster recomputes pending order quantities against the latest
// price before market open and cancels re-entry orders whose position has
// since closed. One AdjustPending call is one database transaction.
type PremarketAdjuster struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPremarketAdjuster creates an adjuster bound to the given database
// handle.
func NewPremarketAdjuster(db *gorm.DB) *PremarketAdjuster {
	return &PremarketAdjuster{db: db, now: time.Now}
}

// AdjustPending walks the given pending orders. Re-entry orders whose
// position closed since placement are cancelled ("position closed"). Every
// other pending order gets its quantity recomputed as
// floor(capital / price); a changed quantity is persisted together with the
// reference price. Orders without a fetchable price are skipped and counted.
func (a *PremarketAdjuster) AdjustPending(
	ctx context.Context,
	pendingOrders []model.Order,
	priceOf PriceFunc,
	capitalOf CapitalFunc,
) (AdjustResult, error) {

	result := AdjustResult{Total: len(pendingOrders)}

	runLog := logrus.WithFields(logrus.Fields{
		"component": "PremarketAdjuster",
		"op":        "AdjustPending",
		"run_id":    uuid.NewString(),
		"total":     len(pendingOrders),
	})
	runLog.Info("Starting premarket adjustment")

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := repository.NewOrderRepository().WithDB(tx)
		positions := repository.NewPositionRepository().WithDB(tx)
		orderLedger := NewOrderLedger(a.db).WithDB(tx)

		for i := range pendingOrders {
			order := pendingOrders[i]

			if order.Status != model.OrderStatusPending {
				logrus.WithFields(logrus.Fields{
					"component": "PremarketAdjuster",
					"order_id":  order.ID,
					"status":    order.Status,
				}).Warn("Non-pending order in premarket batch, skipping")
				result.Skipped++
				continue
			}

			if order.EntryType == model.EntryTypeReentry {
				closed, err := a.positionClosed(ctx, positions, order)
				if err != nil {
					return err
				}
				if closed {
					if err := orderLedger.MarkCancelled(ctx, order.ID, "position closed"); err != nil {
						return err
					}
					result.Cancelled++
					continue
				}
			}

			price, err := priceOf(order.Symbol)
			if err != nil || price <= 0 {
				logrus.WithFields(logrus.Fields{
					"component": "PremarketAdjuster",
					"order_id":  order.ID,
					"symbol":    order.Symbol,
				}).WithError(err).Warn("No current price for symbol, leaving order unmodified")
				result.Skipped++
				continue
			}

			newQty := quantityForCapital(capitalOf(order), price)
			if newQty == order.Quantity {
				continue
			}

			if err := a.persistAdjustment(ctx, orders, &order, newQty, price); err != nil {
				return err
			}
			result.Adjusted++
		}

		return nil
	})

	if err != nil {
		runLog.WithError(err).Error("Premarket adjustment rolled back")
		return AdjustResult{}, err
	}

	runLog.WithFields(logrus.Fields{
		"adjusted":  result.Adjusted,
		"cancelled": result.Cancelled,
		"skipped":   result.Skipped,
	}).Info("Premarket adjustment committed")

	return result, nil
}

// positionClosed reports whether the holding backing a re-entry order has
// been fully exited since the order was placed.
func (a *PremarketAdjuster) positionClosed(
	ctx context.Context,
	positions *repository.PositionRepository,
	order model.Order,
) (bool, error) {

	position, err := positions.FindLatestByUserAndSymbol(ctx, order.UserID, order.Symbol)
	if err != nil {
		return false, err
	}

	return position != nil && position.IsClosed(), nil
}

func (a *PremarketAdjuster) persistAdjustment(
	ctx context.Context,
	orders *repository.OrderRepository,
	order *model.Order,
	newQty int64,
	price float64,
) error {

	oldQty := order.Quantity
	now := a.now()

	order.Quantity = newQty
	order.Price = price
	order.LastCheckedAt = &now

	if err := orders.Save(ctx, order); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"component": "PremarketAdjuster",
		"order_id":  order.ID,
		"symbol":    order.Symbol,
		"old_qty":   oldQty,
		"new_qty":   newQty,
		"price":     price,
	}).Info("Adjusted pending order quantity to premarket price")

	return orders.CreateEvent(ctx, &model.OrderEvent{
		OrderID:       order.ID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		EntryType:     order.EntryType,
		Quantity:      newQty,
		Price:         price,
		BrokerOrderID: order.BrokerOrderID,
		Status:        order.Status,
		Reason:        "premarket quantity adjusted",
		CreatedAt:     now,
	})
}

// quantityForCapital is floor(capital / price), computed in decimal to avoid
// float drift at price boundaries.
func quantityForCapital(capital, price float64) int64 {
	if price <= 0 {
		return 0
	}

	return decimal.NewFromFloat(capital).
		Div(decimal.NewFromFloat(price)).
		Floor().
		IntPart()
}
