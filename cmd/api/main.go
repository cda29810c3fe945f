package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/auth"
	"github.com/ariefcatur/go-marketplace/internal/checkout"
	"github.com/ariefcatur/go-marketplace/internal/config"
	"github.com/ariefcatur/go-marketplace/internal/dispatch"
	"github.com/ariefcatur/go-marketplace/internal/events"
	"github.com/ariefcatur/go-marketplace/internal/httpx"
	"github.com/ariefcatur/go-marketplace/internal/inventory"
	kafkax "github.com/ariefcatur/go-marketplace/internal/kafka"
	"github.com/ariefcatur/go-marketplace/internal/logging"
	"github.com/ariefcatur/go-marketplace/internal/notify"
	"github.com/ariefcatur/go-marketplace/internal/orders"
	"github.com/ariefcatur/go-marketplace/internal/postgres"
	"github.com/ariefcatur/go-marketplace/internal/products"
	"github.com/ariefcatur/go-marketplace/internal/redisx"
	"github.com/ariefcatur/go-marketplace/internal/reviews"
	"github.com/ariefcatur/go-marketplace/internal/stripex"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New(cfg.LogLevel, cfg.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("db migrate")
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer and the side-effect workers that use it
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	emitter := &events.Emitter{Pub: prod, Producer: cfg.ServiceName}
	workers := dispatch.New(cfg.DispatchWorkers, cfg.DispatchQueue, cfg.DispatchTimeout, log)

	ledger := &inventory.Ledger{Log: log}
	notifications := &notify.Service{Store: &notify.Repo{DB: db}, Events: emitter, Log: log}
	h := &httpx.Handlers{
		Products: &products.Service{Store: &products.Repo{DB: db, Ledger: ledger}, Log: log},
		Orders: &orders.Service{
			Store:    &orders.Repo{DB: db, Ledger: ledger},
			Redis:    rdb,
			Dispatch: workers,
			Notifier: notifications,
			Events:   emitter,
			Log:      log,
		},
		Reviews:       &reviews.Service{Store: &reviews.Repo{DB: db}},
		Notifications: notifications,
		Log:           log,
	}
	if cfg.StripeEnabled() {
		h.Checkout = &checkout.Reconciler{
			Store:    &checkout.Repo{DB: db, Ledger: ledger},
			Gateway:  stripex.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
			Redis:    rdb,
			Dispatch: workers,
			Notifier: notifications,
			Events:   emitter,
			Currency: cfg.Currency,
			Log:      log,
		}
	} else {
		log.Warn("STRIPE_SECRET_KEY or STRIPE_WEBHOOK_SECRET unset; checkout disabled")
	}

	router := httpx.NewRouter(h, &auth.RedisSessions{Redis: rdb})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	workers.Close() // finish queued side effects before the producer goes
	prod.Close()
	cancel()
}
