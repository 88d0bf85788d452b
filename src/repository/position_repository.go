package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalreconciler/src/database"
	"signalreconciler/src/model"
)

// PositionRepository handles read/write operations for aggregated holdings.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main
// read/write database.
func NewPositionRepository() *PositionRepository {
	logger.WithField("component", "PositionRepository").
		Info("Creating new PositionRepository with MainDB")

	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindOpenByUserAndSymbol fetches the open position for (user, symbol).
// Returns (nil, nil) if the user holds nothing open on the symbol; closed
// rows for the same symbol are ignored.
func (r *PositionRepository) FindOpenByUserAndSymbol(
	ctx context.Context,
	userID uint,
	symbol string,
) (*model.Position, error) {

	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "FindOpenByUserAndSymbol",
		"user_id": userID,
		"symbol":  symbol,
	}).Debug("Fetching open position")

	var position model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND closed_at IS NULL", userID, symbol).
		Order("opened_at DESC").
		First(&position).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindOpenByUserAndSymbol",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to fetch open position")

		return nil, err
	}

	return &position, nil
}

// FindLatestByUserAndSymbol fetches the most recent position row for
// (user, symbol) regardless of open/closed state.
// Returns (nil, nil) if the user never held the symbol.
func (r *PositionRepository) FindLatestByUserAndSymbol(
	ctx context.Context,
	userID uint,
	symbol string,
) (*model.Position, error) {

	var position model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Order("opened_at DESC").
		First(&position).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindLatestByUserAndSymbol",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to fetch latest position")

		return nil, err
	}

	return &position, nil
}

// FindOpenByUser returns every open position for a user, newest first.
// Used by the reporting API to answer "current holdings".
func (r *PositionRepository) FindOpenByUser(
	ctx context.Context,
	userID uint,
) ([]model.Position, error) {

	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "FindOpenByUser",
		"user_id": userID,
	}).Debug("Fetching open positions for user")

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND closed_at IS NULL", userID).
		Order("opened_at DESC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindOpenByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch open positions")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "FindOpenByUser",
		"user_id":     userID,
		"rows_return": len(positions),
	}).Info("Open positions fetched")

	return positions, nil
}

// Create inserts a new position row. The given position will be updated with
// the generated ID and timestamps.
func (r *PositionRepository) Create(
	ctx context.Context,
	position *model.Position,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "Create",
		"user_id": position.UserID,
		"symbol":  position.Symbol,
		"qty":     position.Quantity,
	}).Debug("Creating new position")

	err := r.db.WithContext(ctx).Create(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "Create",
			"user_id": position.UserID,
			"symbol":  position.Symbol,
		}).WithError(err).Error("Failed to create position")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "Create",
		"position_id": position.ID,
	}).Info("Position created successfully")

	return nil
}

// Save persists all fields of an existing position row.
func (r *PositionRepository) Save(
	ctx context.Context,
	position *model.Position,
) error {

	err := r.db.WithContext(ctx).Save(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Save",
			"position_id": position.ID,
		}).WithError(err).Error("Failed to save position")

		return err
	}

	return nil
}
