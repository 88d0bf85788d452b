package executors

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"signalreconciler/src/database"
	"signalreconciler/src/ledger"
	"signalreconciler/src/marketclock"
	"signalreconciler/src/marketdata"
	"signalreconciler/src/model"
	"signalreconciler/src/repository"
)

// StartLoop runs the reconciliation scheduler: every tick it checks the sync
// gate once, pulls the latest signal batch from the feed, and reconciles it
// per active user, one transaction per user.
func StartLoop(ctx context.Context) error {
	config := GetConfig()

	ticker := time.NewTicker(config.LoopPeriod)
	defer ticker.Stop()

	userRep := repository.NewUserRepository()
	feed := marketdata.NewFeedClient(config.FeedURL)
	signalLedger := ledger.NewSignalLedger(database.MainDB)

	if config.RunOnceMode {
		return runTick(ctx, config, userRep, feed, signalLedger)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("sync loop stopped")
			return nil

		case <-ticker.C:
			logger.Info("sync loop tick")
			if err := runTick(ctx, config, userRep, feed, signalLedger); err != nil {
				logger.WithError(err).Error("sync tick failed, will retry on next tick")
			}
		}
	}
}

func runTick(
	ctx context.Context,
	config Config,
	userRep *repository.UserRepository,
	feed *marketdata.FeedClient,
	signalLedger *ledger.SignalLedger,
) error {

	if !config.ForceSync && !marketclock.MaySyncNow(time.Now()) {
		logger.Info("inside market hours, skipping sync tick")
		return nil
	}

	batch, err := feed.FetchLatest()
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		logger.Warn("signal feed returned an empty batch, nothing to reconcile")
		return nil
	}

	users, err := resolveUsers(ctx, config, userRep)
	if err != nil {
		return err
	}

	for _, user := range users {
		// timing already validated above, so the per-call gate is bypassed
		result, err := signalLedger.Reconcile(ctx, batch, user.ID, true)
		if err != nil {
			logger.WithError(err).WithField("user_id", user.ID).
				Error("reconcile failed for user")
			return err
		}

		logger.WithFields(logger.Fields{
			"user_id":  user.ID,
			"inserted": result.Inserted,
			"updated":  result.Updated,
			"skipped":  result.Skipped,
			"expired":  result.Expired,
		}).Info("reconcile completed for user")
	}

	return nil
}

func resolveUsers(
	ctx context.Context,
	config Config,
	userRep *repository.UserRepository,
) ([]model.User, error) {

	if config.Username != "" {
		user, err := userRep.GetUserByUsername(ctx, config.Username)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, errors.New("configured user not found")
		}
		return []model.User{*user}, nil
	}

	users, err := userRep.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		logger.Warn("no active users, reconciling signal set without user context")
		return []model.User{{}}, nil
	}

	return users, nil
}
