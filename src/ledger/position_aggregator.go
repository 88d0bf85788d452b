package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalreconciler/src/model"
	"signalreconciler/src/repository"
)

// Fill describes one executed buy folded into a holding.
type Fill struct {
	UserID      uint
	Symbol      string
	ExecutedQty int64
	// ExecutedPrice is the broker-reported average execution price.
	ExecutedPrice float64
	// EntryType is initial or reentry; empty means "infer": a fill against an
	// already-open position is treated as a re-entry.
	EntryType string
	Meta      model.OrderMetadata
	// InitialPriceOverride, when non-nil, seeds initial_entry_price on a
	// newly created position instead of the execution price.
	InitialPriceOverride *float64
}

// PositionAggregator folds executed buy/sell quantity per (user, symbol) into
// a holding, including re-entry history. Each public operation runs in a
// single database transaction.
type PositionAggregator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPositionAggregator creates an aggregator bound to the given database
// handle.
func NewPositionAggregator(db *gorm.DB) *PositionAggregator {
	return &PositionAggregator{db: db, now: time.Now}
}

// WithDB rebinds the aggregator to a specific session or transaction.
func (a *PositionAggregator) WithDB(db *gorm.DB) *PositionAggregator {
	return &PositionAggregator{db: db, now: a.now}
}

// ApplyFill folds one executed buy into the (user, symbol) holding, creating
// the position on the first fill. initial_entry_price and entry_indicator are
// set exactly once and never overwritten by later fills.
func (a *PositionAggregator) ApplyFill(ctx context.Context, fill Fill) (*model.Position, error) {
	var position *model.Position

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		positions := repository.NewPositionRepository().WithDB(tx)

		open, err := positions.FindOpenByUserAndSymbol(ctx, fill.UserID, fill.Symbol)
		if err != nil {
			return err
		}

		if open == nil {
			position, err = a.openPosition(ctx, positions, fill)
			return err
		}

		position, err = a.addToPosition(ctx, positions, open, fill)
		return err
	})
	if err != nil {
		return nil, err
	}

	return position, nil
}

func (a *PositionAggregator) openPosition(
	ctx context.Context,
	positions *repository.PositionRepository,
	fill Fill,
) (*model.Position, error) {

	initialPrice := fill.ExecutedPrice
	if fill.InitialPriceOverride != nil {
		initialPrice = *fill.InitialPriceOverride
	}

	position := &model.Position{
		UserID:            fill.UserID,
		Symbol:            fill.Symbol,
		Quantity:          fill.ExecutedQty,
		AvgPrice:          fill.ExecutedPrice,
		InitialEntryPrice: initialPrice,
		EntryIndicator:    fill.Meta.TriggerIndicator,
		ReentryCount:      0,
		OpenedAt:          a.now(),
	}

	if err := positions.Create(ctx, position); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component": "PositionAggregator",
		"op":        "ApplyFill",
		"user_id":   fill.UserID,
		"symbol":    fill.Symbol,
		"qty":       fill.ExecutedQty,
	}).Info("Opened new position")

	return position, nil
}

func (a *PositionAggregator) addToPosition(
	ctx context.Context,
	positions *repository.PositionRepository,
	position *model.Position,
	fill Fill,
) (*model.Position, error) {

	// Explicit reentry, or no explicit type against an existing position.
	isReentry := fill.EntryType == model.EntryTypeReentry || fill.EntryType == ""

	if !isReentry {
		// A second initial buy on an open position is a data error: keep the
		// quantity and average honest, skip the re-entry bookkeeping.
		logrus.WithFields(logrus.Fields{
			"component": "PositionAggregator",
			"op":        "ApplyFill",
			"user_id":   fill.UserID,
			"symbol":    fill.Symbol,
		}).Error("Initial-entry fill against an already open position")
	}

	position.AvgPrice = weightedAvgPrice(
		position.Quantity, position.AvgPrice,
		fill.ExecutedQty, fill.ExecutedPrice,
	)
	position.Quantity += fill.ExecutedQty

	if isReentry {
		price := fill.ExecutedPrice
		position.ReentryCount++
		position.LastReentryPrice = &price
		position.Reentries = append(position.Reentries, model.Reentry{
			Qty:            fill.ExecutedQty,
			Level:          fill.Meta.Level,
			IndicatorValue: fill.Meta.IndicatorValue,
			Price:          fill.ExecutedPrice,
			Time:           a.now(),
		})
	}

	if err := positions.Save(ctx, position); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component":     "PositionAggregator",
		"op":            "ApplyFill",
		"user_id":       fill.UserID,
		"symbol":        fill.Symbol,
		"qty":           position.Quantity,
		"reentry_count": position.ReentryCount,
	}).Info("Folded fill into position")

	return position, nil
}

// ApplySell reduces the (user, symbol) holding by soldQty, clamped at zero.
// The position is closed exactly when the remaining quantity reaches zero;
// partial sells leave it open.
func (a *PositionAggregator) ApplySell(
	ctx context.Context,
	userID uint,
	symbol string,
	soldQty int64,
) (*model.Position, error) {

	var position *model.Position

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		positions := repository.NewPositionRepository().WithDB(tx)

		open, err := positions.FindOpenByUserAndSymbol(ctx, userID, symbol)
		if err != nil {
			return err
		}
		if open == nil {
			logrus.WithFields(logrus.Fields{
				"component": "PositionAggregator",
				"op":        "ApplySell",
				"user_id":   userID,
				"symbol":    symbol,
			}).Warn("Sell against no open position, leaving state unchanged")
			return nil
		}

		open.Quantity -= soldQty
		if open.Quantity <= 0 {
			open.Quantity = 0
			now := a.now()
			open.ClosedAt = &now
		}

		if err := positions.Save(ctx, open); err != nil {
			return err
		}

		position = open
		return nil
	})
	if err != nil {
		return nil, err
	}

	return position, nil
}

// MarkClosed forces a full manual exit: quantity zeroed and closed_at
// stamped, independent of fill accounting.
func (a *PositionAggregator) MarkClosed(
	ctx context.Context,
	userID uint,
	symbol string,
) error {

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		positions := repository.NewPositionRepository().WithDB(tx)

		open, err := positions.FindOpenByUserAndSymbol(ctx, userID, symbol)
		if err != nil {
			return err
		}
		if open == nil {
			logrus.WithFields(logrus.Fields{
				"component": "PositionAggregator",
				"op":        "MarkClosed",
				"user_id":   userID,
				"symbol":    symbol,
			}).Warn("MarkClosed with no open position, nothing to do")
			return nil
		}

		now := a.now()
		open.Quantity = 0
		open.ClosedAt = &now

		return positions.Save(ctx, open)
	})
}

// weightedAvgPrice recomputes the average entry price as the quantity
// weighted average of the existing holding and the new fill.
func weightedAvgPrice(oldQty int64, oldAvg float64, fillQty int64, fillPrice float64) float64 {
	totalQty := oldQty + fillQty
	if totalQty <= 0 {
		return oldAvg
	}

	oldCost := decimal.NewFromInt(oldQty).Mul(decimal.NewFromFloat(oldAvg))
	newCost := decimal.NewFromInt(fillQty).Mul(decimal.NewFromFloat(fillPrice))

	avg, _ := oldCost.Add(newCost).
		Div(decimal.NewFromInt(totalQty)).
		Round(4).
		Float64()

	return avg
}
