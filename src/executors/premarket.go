package executors

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"signalreconciler/src/database"
	"signalreconciler/src/ledger"
	"signalreconciler/src/marketdata"
	"signalreconciler/src/model"
	"signalreconciler/src/repository"
)

// RunPremarket executes one premarket adjustment pass: for every active user
// it loads the pending AMO orders and recomputes their quantities against the
// latest LTP, cancelling re-entry orders whose position closed meanwhile.
func RunPremarket(ctx context.Context) error {
	config := GetConfig()

	userRep := repository.NewUserRepository()
	orderRep := repository.NewOrderRepository()
	quotes := marketdata.NewQuoteClient(config.QuoteURL)
	adjuster := ledger.NewPremarketAdjuster(database.MainDB)

	users, err := resolveUsers(ctx, config, userRep)
	if err != nil {
		return err
	}

	for _, user := range users {
		if user.ID == 0 {
			continue
		}

		pending, err := orderRep.FindPendingByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			continue
		}

		capital := user.CapitalPerTrade
		capitalOf := func(order model.Order) float64 {
			return capital
		}

		result, err := adjuster.AdjustPending(ctx, pending, quotes.PriceFunc(), capitalOf)
		if err != nil {
			logger.WithError(err).WithField("user_id", user.ID).
				Error("premarket adjustment failed for user")
			return err
		}

		logger.WithFields(logger.Fields{
			"user_id":   user.ID,
			"total":     result.Total,
			"adjusted":  result.Adjusted,
			"cancelled": result.Cancelled,
			"skipped":   result.Skipped,
		}).Info("premarket adjustment completed for user")
	}

	return nil
}
