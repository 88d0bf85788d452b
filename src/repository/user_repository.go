package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalreconciler/src/database"
	"signalreconciler/src/model"
)

// UserRepository handles read operations for user accounts.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository instance using the main
// read/write database.
func NewUserRepository() *UserRepository {
	logger.WithField("component", "UserRepository").
		Info("Creating new UserRepository with MainDB")

	return &UserRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *UserRepository) WithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUserByUsername fetches one user by username.
// Returns (nil, nil) if no such user exists.
func (r *UserRepository) GetUserByUsername(
	ctx context.Context,
	username string,
) (*model.User, error) {

	var user model.User

	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "UserRepository",
				"op":       "GetUserByUsername",
				"username": username,
			}).Info("User not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "UserRepository",
			"op":       "GetUserByUsername",
			"username": username,
		}).WithError(err).Error("Failed to fetch user")

		return nil, err
	}

	return &user, nil
}

// FindByID fetches one user by primary ID.
// Returns (nil, nil) if no such user exists.
func (r *UserRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.User, error) {

	var user model.User

	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch user by ID")

		return nil, err
	}

	return &user, nil
}

// FindActive returns every active user. The scheduler iterates this set, one
// reconcile transaction per user.
func (r *UserRepository) FindActive(
	ctx context.Context,
) ([]model.User, error) {

	var users []model.User

	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&users).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "FindActive",
		}).WithError(err).Error("Failed to fetch active users")

		return nil, err
	}

	return users, nil
}
