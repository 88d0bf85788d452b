package premarket

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"signalreconciler/src/database"
	"signalreconciler/src/executors"
)

// Runner wires one premarket adjustment pass.
type Runner struct{}

func (r *Runner) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	logrus.Info("Starting premarket adjustment pass")

	if err := executors.RunPremarket(ctx); err != nil {
		logrus.WithError(err).Error("Premarket pass exited with error")
		return err
	}

	return nil
}
