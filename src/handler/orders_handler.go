package handler

import (
	"context"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"signalreconciler/src/auth"
	"signalreconciler/src/model"
)

type pendingOrderLister interface {
	FindPendingByUser(ctx context.Context, userID uint) ([]model.Order, error)
}

// PendingOrdersHandler returns a handler that lists the authenticated user's
// orders still awaiting execution.
func PendingOrdersHandler(repo pendingOrderLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		orders, err := repo.FindPendingByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to list pending orders")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"orders": orders,
			"count":  len(orders),
		})
	}
}
