package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"signalreconciler/src/auth"
	"signalreconciler/src/model"
)

type positionLister interface {
	FindOpenByUser(ctx context.Context, userID uint) ([]model.Position, error)
}

// OpenPositionsHandler returns a handler that lists the authenticated user's
// current holdings.
func OpenPositionsHandler(repo positionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		positions, err := repo.FindOpenByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to list open positions")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"positions": positions,
			"count":     len(positions),
		})
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
