package main

import (
	"context"

	"nexcart/internal/config"
	"nexcart/internal/db"
	"nexcart/internal/logging"
	categoryrepo "nexcart/internal/repository/category"
	productrepo "nexcart/internal/repository/product"
	"nexcart/internal/seed"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	base, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}
	logger := logging.Component(base, "seed")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	if err := seed.Apply(ctx, categoryrepo.NewPostgres(pool), productrepo.NewPostgres(pool, logger)); err != nil {
		logger.WithError(err).Fatal("seed apply")
	}

	logger.Info("seed applied")
}
