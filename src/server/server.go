package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"signalreconciler/src/auth"
	"signalreconciler/src/handler"
	"signalreconciler/src/repository"
)

// StartServer runs the reporting API: current holdings, pending orders and
// today's active signals, read straight from the reconciled rows.
func StartServer(port string) {
	users := repository.NewUserRepository()
	positions := repository.NewPositionRepository()
	orders := repository.NewOrderRepository()
	signals := repository.NewSignalRepository()

	// Router with middleware
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	// Authenticated reporting routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(users))
		r.Get("/positions", handler.OpenPositionsHandler(positions))
		r.Get("/orders/pending", handler.PendingOrdersHandler(orders))
		r.Get("/signals/active", handler.ActiveSignalsHandler(signals))
	})

	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
