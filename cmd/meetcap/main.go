package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"meetcap/internal/bootstrap"
	"meetcap/internal/cli"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("MEETCAP_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}
	log := logrus.NewEntry(logger)

	services, err := bootstrap.Build(log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer services.Engine.Shutdown()

	deps := &cli.Dependencies{Services: services, Log: log}
	if err := cli.NewRootCmd(deps).Execute(); err != nil {
		os.Exit(1)
	}
}
