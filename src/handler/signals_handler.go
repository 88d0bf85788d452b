package handler

import (
	"context"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"signalreconciler/src/marketclock"
	"signalreconciler/src/model"
)

type activeSignalLister interface {
	FindActiveForToday(ctx context.Context, windowStart, windowEnd time.Time) ([]model.Signal, error)
}

// ActiveSignalsHandler returns a handler that lists the ACTIVE signals of the
// current trading-day window. Signals are global, so no user scoping applies.
func ActiveSignalsHandler(repo activeSignalLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end := marketclock.TradingDayWindow(time.Now())

		signals, err := repo.FindActiveForToday(r.Context(), start, end)
		if err != nil {
			logger.WithError(err).Error("failed to list active signals")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"window_start": start,
			"window_end":   end,
			"signals":      signals,
			"count":        len(signals),
		})
	}
}
