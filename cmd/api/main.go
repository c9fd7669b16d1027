package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexcart/internal/ai"
	"nexcart/internal/config"
	"nexcart/internal/db"
	"nexcart/internal/httpserver"
	"nexcart/internal/logging"
	"nexcart/internal/messaging/kafka"
	"nexcart/internal/metrics"
	"nexcart/internal/migrate"
	"nexcart/internal/notify"
	"nexcart/internal/persistence"
	airepo "nexcart/internal/repository/ai"
	cartrepo "nexcart/internal/repository/cart"
	categoryrepo "nexcart/internal/repository/category"
	orderrepo "nexcart/internal/repository/order"
	productrepo "nexcart/internal/repository/product"
	tokenrepo "nexcart/internal/repository/token"
	userrepo "nexcart/internal/repository/user"
	accountsvc "nexcart/internal/service/account"
	categorysvc "nexcart/internal/service/category"
	checkoutsvc "nexcart/internal/service/checkout"
	guestsvc "nexcart/internal/service/guest"
	productsvc "nexcart/internal/service/product"
	"nexcart/internal/session"
	"nexcart/internal/storage/fastkv"
	"nexcart/internal/storage/sqlite"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const guestSweepInterval = 10 * time.Minute

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	base, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}
	logger := logging.Component(base, "api")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString, logging.Component(base, "db"))
	if err != nil {
		logger.WithError(err).Fatal("connect to db")
	}
	defer dbpool.Close()

	if err := migrate.Apply(ctx, dbpool); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}

	productRepo := productrepo.NewPostgres(dbpool, logging.Component(base, "products"))
	categoryRepo := categoryrepo.NewPostgres(dbpool)
	tokenRepo := tokenrepo.NewPostgres(dbpool)

	productService := productsvc.New(productRepo, categoryRepo)
	categoryService := categorysvc.New(categoryRepo)
	accountService := accountsvc.New(userrepo.NewPostgres(dbpool, logging.Component(base, "users")), tokenRepo)
	guestService := guestsvc.New(tokenRepo)
	checkoutService := checkoutsvc.New(orderrepo.NewPostgres(dbpool, logging.Component(base, "orders")), logging.Component(base, "checkout"))

	var model ai.Completer
	if cfg.GenAIAPIKey != "" {
		completer, err := ai.NewGenAICompleter(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
		if err != nil {
			logger.WithError(err).Fatal("init genai client")
		}
		model = completer
	} else {
		logger.Warn("GENAI_API_KEY not set, assistant endpoints will report unavailable")
	}
	assistant := ai.New(model, productService,
		ai.WithLogger(logging.Component(base, "assistant")),
		ai.WithHistory(airepo.NewPostgres(dbpool)),
	)

	collector := metrics.New()
	registry := fastkv.NewRegistry(cfg.FastStoreQuota)

	notifyOpts := []notify.Option{
		notify.WithLogger(logging.Component(base, "notify")),
		notify.WithRecorder(collector),
	}
	var (
		relay    *notify.Relay
		producer *kafka.Producer
		consumer *kafka.Consumer
	)
	if cfg.KafkaEnabled() {
		instance := cfg.InstanceID
		if instance == "" {
			instance = uuid.NewString()
		}
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, logging.Component(base, "kafka"))
		if err != nil {
			logger.WithError(err).Fatal("init kafka producer")
		}
		relay = notify.NewRelay(producer, registry, cfg.KafkaTopic, instance, logging.Component(base, "relay"), collector)
		consumer, err = kafka.NewConsumer(cfg.KafkaBrokers, "nexcart-"+instance, []string{cfg.KafkaTopic}, relay.HandleMessage, logging.Component(base, "kafka"))
		if err != nil {
			logger.WithError(err).Fatal("init kafka consumer")
		}
		relay.Start()
		consumer.Start(ctx)
		notifyOpts = append(notifyOpts, notify.WithPublisher(relay))
		logger.WithFields(logrus.Fields{"topic": cfg.KafkaTopic, "instance": instance}).Info("cart signal relay enabled")
	}
	notifier := notify.New(registry, notifyOpts...)

	sessionOpts := []session.Option{
		session.WithLogger(logging.Component(base, "session")),
		session.WithRecorder(collector),
		session.WithIdleTTL(cfg.ContextIdleTTL),
	}
	durable, closeDurable := durableFactory(cfg, dbpool, logger)
	defer closeDurable()
	if durable != nil {
		sessionOpts = append(sessionOpts, session.WithDurable(durable))
	}
	manager := session.NewManager(registry, notifier, sessionOpts...)
	go manager.Run(ctx)
	go sweepGuests(ctx, guestService, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logging.Component(base, "http"), dbpool, httpserver.Deps{
		Sessions:    manager,
		ProductSvc:  productService,
		CategorySvc: categoryService,
		AccountSvc:  accountService,
		GuestSvc:    guestService,
		CheckoutSvc: checkoutService,
		Assistant:   assistant,
		Metrics:     promhttp.Handler(),
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.WithError(err).Fatal("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		logger.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("session shutdown incomplete")
	}
	stop()
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("stop kafka consumer")
		}
	}
	if relay != nil {
		relay.Stop()
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("close kafka producer")
		}
	}
	logger.Info("server stopped")
}

// durableFactory picks the per-origin durable cart store. A nil factory means
// carts live in the fast store only. The returned close func is always safe
// to call.
func durableFactory(cfg config.Config, pool *pgxpool.Pool, logger *logrus.Entry) (session.DurableFactory, func()) {
	switch cfg.DurableBackend {
	case config.DurableSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			logger.WithError(err).WithField("path", cfg.SQLitePath).Warn("durable cart store unavailable, carts are kept in the fast store only")
			return nil, func() {}
		}
		return func(origin string) persistence.DurableStore {
			return store.CartRecords(origin)
		}, func() { _ = store.Close() }
	case config.DurablePostgres:
		repo := cartrepo.NewPostgres(pool)
		return func(origin string) persistence.DurableStore {
			return cartrepo.ForOrigin(repo, origin)
		}, func() {}
	default:
		return nil, func() {}
	}
}

func sweepGuests(ctx context.Context, svc *guestsvc.Service, logger *logrus.Entry) {
	ticker := time.NewTicker(guestSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.Sweep(ctx)
			if err != nil {
				logger.WithError(err).Warn("sweep expired guest tokens")
				continue
			}
			if n > 0 {
				logger.WithField("removed", n).Debug("swept expired guest tokens")
			}
		}
	}
}
