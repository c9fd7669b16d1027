package main

import (
	"context"
	"flag"
	"os"
	"time"

	"nexcart/internal/config"
	"nexcart/internal/db"
	"nexcart/internal/importer"
	"nexcart/internal/logging"
	categoryrepo "nexcart/internal/repository/category"
	productrepo "nexcart/internal/repository/product"
	categorysvc "nexcart/internal/service/category"

	"github.com/sirupsen/logrus"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to the catalog CSV file")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	base, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}
	logger := logging.Component(base, "importer")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.WithError(err).Fatal("open file")
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f,
		productrepo.NewPostgres(pool, logger),
		categorysvc.New(categoryrepo.NewPostgres(pool)),
	)

	start := time.Now()
	res, err := imp.Run(ctx)
	if err != nil {
		logger.WithError(err).WithField("imported", res.Products).Fatal("import failed")
	}

	logger.WithFields(logrus.Fields{
		"products":   res.Products,
		"categories": res.Categories,
		"took":       time.Since(start).Truncate(time.Millisecond).String(),
	}).Info("import finished")
}
