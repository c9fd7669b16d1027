package main

import (
	"context"
	"flag"

	"nexcart/internal/config"
	"nexcart/internal/db"
	"nexcart/internal/logging"
	"nexcart/internal/migrate"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		down    int
		version bool
	)
	flag.IntVar(&down, "down", 0, "Roll back this many migrations instead of applying")
	flag.BoolVar(&version, "version", false, "Print the current schema version and exit")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	base, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}
	logger := logging.Component(base, "migrate")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	switch {
	case version:
		v, dirty, err := migrate.Version(ctx, pool)
		if err != nil {
			logger.WithError(err).Fatal("read schema version")
		}
		logger.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("schema version")
	case down > 0:
		if err := migrate.Rollback(ctx, pool, down); err != nil {
			logger.WithError(err).Fatal("roll back migrations")
		}
		logger.WithField("steps", down).Info("migrations rolled back")
	default:
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.WithError(err).Fatal("apply migrations")
		}
		logger.Info("migrations applied")
	}
}
