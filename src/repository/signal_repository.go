package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalreconciler/src/database"
	"signalreconciler/src/model"
)

// SignalRepository handles read/write operations for signals and the per-user
// annotations attached to them.
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new repository instance using the main
// read/write database.
func NewSignalRepository() *SignalRepository {
	logger.WithField("component", "SignalRepository").
		Info("Creating new SignalRepository with MainDB")

	return &SignalRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// FindCurrentBySymbol fetches the current signal row for a symbol: the row
// with the greatest generated_at across all statuses.
// Returns (nil, nil) if the symbol has no rows at all.
func (r *SignalRepository) FindCurrentBySymbol(
	ctx context.Context,
	symbol string,
) (*model.Signal, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "SignalRepository",
		"op":     "FindCurrentBySymbol",
		"symbol": symbol,
	}).Debug("Fetching current signal for symbol")

	var signal model.Signal

	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("generated_at DESC").
		First(&signal).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "SignalRepository",
			"op":     "FindCurrentBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch current signal")

		return nil, err
	}

	return &signal, nil
}

// Create inserts a new signal row. The given signal will be updated with the
// generated ID and timestamps.
func (r *SignalRepository) Create(
	ctx context.Context,
	signal *model.Signal,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "SignalRepository",
		"op":      "Create",
		"symbol":  signal.Symbol,
		"verdict": signal.FinalVerdict,
	}).Debug("Creating new signal")

	err := r.db.WithContext(ctx).Create(signal).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SignalRepository",
			"op":     "Create",
			"symbol": signal.Symbol,
		}).WithError(err).Error("Failed to create signal")

		return err
	}

	return nil
}

// Save persists all fields of an existing signal row.
func (r *SignalRepository) Save(
	ctx context.Context,
	signal *model.Signal,
) error {

	err := r.db.WithContext(ctx).Save(signal).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "Save",
			"signal_id": signal.ID,
			"symbol":    signal.Symbol,
		}).WithError(err).Error("Failed to save signal")

		return err
	}

	return nil
}

// UpdateStatus updates only the status of the given signal ID.
func (r *SignalRepository) UpdateStatus(
	ctx context.Context,
	id uint,
	status string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "SignalRepository",
		"op":     "UpdateStatus",
		"id":     id,
		"status": status,
	}).Debug("Updating signal status")

	err := r.db.WithContext(ctx).
		Model(&model.Signal{}).
		Where("id = ?", id).
		Update("status", status).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SignalRepository",
			"op":     "UpdateStatus",
			"id":     id,
			"status": status,
		}).WithError(err).Error("Failed to update signal status")

		return err
	}

	return nil
}

// ExpireActiveNotIn marks every ACTIVE signal whose symbol is not in the
// given set as EXPIRED and returns how many rows changed. An empty set
// expires every ACTIVE row.
func (r *SignalRepository) ExpireActiveNotIn(
	ctx context.Context,
	symbols []string,
) (int64, error) {

	logger.WithFields(map[string]interface{}{
		"repo":       "SignalRepository",
		"op":         "ExpireActiveNotIn",
		"batch_size": len(symbols),
	}).Debug("Expiring active signals missing from batch")

	query := r.db.WithContext(ctx).
		Model(&model.Signal{}).
		Where("status = ?", model.SignalStatusActive)

	if len(symbols) > 0 {
		query = query.Where("symbol NOT IN ?", symbols)
	}

	result := query.Update("status", model.SignalStatusExpired)
	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SignalRepository",
			"op":   "ExpireActiveNotIn",
		}).WithError(result.Error).Error("Failed to expire stale active signals")

		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// FindActiveForToday returns all ACTIVE signals generated inside the given
// trading-day window, newest first. Used by the reporting API.
func (r *SignalRepository) FindActiveForToday(
	ctx context.Context,
	windowStart, windowEnd time.Time,
) ([]model.Signal, error) {

	var signals []model.Signal

	err := r.db.WithContext(ctx).
		Where("status = ? AND generated_at >= ? AND generated_at < ?",
			model.SignalStatusActive, windowStart, windowEnd).
		Order("generated_at DESC").
		Find(&signals).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SignalRepository",
			"op":   "FindActiveForToday",
		}).WithError(err).Error("Failed to fetch active signals for window")

		return nil, err
	}

	return signals, nil
}

// ---------------------------------------------------
// UserSignalStatus methods
// ---------------------------------------------------

// FindUserStatus fetches the annotation a user attached to a signal.
// Returns (nil, nil) if the user never acted on it.
func (r *SignalRepository) FindUserStatus(
	ctx context.Context,
	userID uint,
	signalID uint,
) (*model.UserSignalStatus, error) {

	var status model.UserSignalStatus

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND signal_id = ?", userID, signalID).
		First(&status).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "FindUserStatus",
			"user_id":   userID,
			"signal_id": signalID,
		}).WithError(err).Error("Failed to fetch user signal status")

		return nil, err
	}

	return &status, nil
}

// MarkTradedForUser records that a user acted on a signal: it upserts the
// per-user annotation and stamps the base signal TRADED, in one transaction.
func (r *SignalRepository) MarkTradedForUser(
	ctx context.Context,
	userID uint,
	signalID uint,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "MarkTradedForUser",
		"user_id":   userID,
		"signal_id": signalID,
	}).Info("Marking signal traded for user")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.UserSignalStatus

		err := tx.Where("user_id = ? AND signal_id = ?", userID, signalID).
			First(&existing).Error

		switch {
		case err == nil:
			if existing.Status != model.SignalStatusTraded {
				if err := tx.Model(&existing).
					Update("status", model.SignalStatusTraded).Error; err != nil {
					return err
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			status := model.UserSignalStatus{
				UserID:   userID,
				SignalID: signalID,
				Status:   model.SignalStatusTraded,
			}
			if err := tx.Create(&status).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Model(&model.Signal{}).
			Where("id = ?", signalID).
			Update("status", model.SignalStatusTraded).Error
	})
}
