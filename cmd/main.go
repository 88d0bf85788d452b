package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"signalreconciler/cmd/premarket"
	"signalreconciler/cmd/sync"
	"signalreconciler/src/database"
	"signalreconciler/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Reconciler CMD"
	app.Usage = "The signal reconciler command line interface"

	app.Commands = []cli.Command{
		syncCMD,
		premarketCMD,
		serveCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	syncCMD = cli.Command{
		Name:        "sync",
		Usage:       "run the signal sync loop",
		Action:      syncAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Reconcile signal batches from the feed on every tick`,
	}
	premarketCMD = cli.Command{
		Name:        "premarket",
		Usage:       "run one premarket adjustment pass",
		Action:      premarketAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Recompute pending order quantities against the latest LTP`,
	}
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the reporting API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve holdings, pending orders and active signals`,
	}
)

func syncAction(_ *cli.Context) error {

	logrus.Info("Starting sync CMD")

	runner := &sync.Runner{}
	if err := runner.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func premarketAction(_ *cli.Context) error {

	logrus.Info("Starting premarket CMD")

	runner := &premarket.Runner{}
	if err := runner.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func serveAction(_ *cli.Context) error {

	logrus.Info("Starting serve CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	config := server.GetConfig()
	server.StartServer(config.Port)

	return nil
}
