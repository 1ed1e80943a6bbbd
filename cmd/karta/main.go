package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"karta/internal/app/commands"
	listingapp "karta/internal/app/handlers/listings"
	"karta/internal/app/middleware"
	appoutbox "karta/internal/app/outbox"
	"karta/internal/app/queries"
	authsvc "karta/internal/app/services/auth"
	"karta/internal/app/uow"
	domainauth "karta/internal/domain/auth"
	domainuser "karta/internal/domain/user"
	"karta/internal/infra/broker/kafka"
	"karta/internal/infra/config"
	mongodb "karta/internal/infra/db/mongo"
	ginserver "karta/internal/infra/http/gin"
	"karta/internal/infra/obs"
	outboxinfra "karta/internal/infra/outbox"
	"karta/internal/infra/realtime"
	"karta/internal/infra/security"
	"karta/internal/infra/storage/memory"
	"karta/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("application bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	for _, task := range app.background {
		go func() {
			if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background task stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		app.hub.Close()
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers   ginserver.Handlers
	hub        *realtime.Hub
	background []func(context.Context) error
	ready      func() error
	closers    []func() error
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func buildApplication(cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		hub:   realtime.NewHub(realtime.WithSessionBuffer(cfg.StreamBuffer), realtime.WithLogger(logger)),
		ready: func() error { return nil },
	}

	var (
		uowFactory  uow.UoWFactory
		idStore     middleware.IdempotencyStore
		users       domainuser.Repository
		sessions    domainauth.SessionStore
		outboxStore outboxStoreSink
	)

	switch cfg.StorageMode {
	case config.StorageMongo:
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		app.closers = append(app.closers, func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Close(closeCtx)
		})
		uowFactory = mongodb.Factory{
			DB:           client.DB,
			ListingsRepo: mongodb.NewListingRepository(client.DB),
		}
		idStore = mongodb.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		users = mongodb.NewUserRepository(client.DB)
		sessions = mongodb.NewSessionStore(client.DB)
		outboxStore = outboxinfra.NewStore(client.DB)
		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
	default:
		listingsRepo := memory.NewListingRepository()
		uowFactory = memory.NewUoWFactory(listingsRepo)
		idStore = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		users = memory.NewUserRepository()
		sessions = memory.NewSessionStore()
		outboxStore = outboxinfra.NewMemoryStore()
	}

	sinks := appoutbox.MultiSink{
		&realtime.HubSink{Hub: app.hub, Source: cfg.EventSource},
	}
	if len(cfg.KafkaBrokers) > 0 {
		// The durable store only fills up when a worker drains it.
		sinks = append(sinks, outboxStore)

		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, producer.Close)

		worker := &outboxinfra.Worker{
			Store:       outboxStore,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Source:      cfg.EventSource,
			Backoff:     cfg.RetryBackoff,
		}
		app.background = append(app.background, worker.Run)

		relay := &kafka.Relay{Hub: app.hub, Source: cfg.EventSource, Logger: logger}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, relay)
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, consumer.Close)
		topic := cfg.KafkaTopicPrefix + "listing.events.v1"
		app.background = append(app.background, func(ctx context.Context) error {
			return consumer.Run(ctx, []string{topic})
		})
	}

	encoder := appoutbox.JSONEventEncoder{}
	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, listingapp.CreateListingCommand{}.Key(), &listingapp.CreateListingHandler{Encoder: encoder, Logger: logger})
	commands.RegisterHandler(commandBus, listingapp.UpdateListingCommand{}.Key(), &listingapp.UpdateListingHandler{Encoder: encoder, Logger: logger})
	commands.RegisterHandler(commandBus, listingapp.DeleteListingCommand{}.Key(), &listingapp.DeleteListingHandler{Encoder: encoder, Logger: logger})
	commands.RegisterHandler(commandBus, listingapp.PublishListingCommand{}.Key(), &listingapp.PublishListingHandler{Encoder: encoder, Logger: logger})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, listingapp.SearchCatalogQuery{}.Key(), &listingapp.SearchCatalogHandler{UoWFactory: uowFactory})
	queries.RegisterHandler(queryBus, listingapp.GetListingQuery{}.Key(), &listingapp.GetListingHandler{UoWFactory: uowFactory})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(),
		middleware.Idempotency(idStore, nil),
		middleware.OutboxFlush(sinks),
		middleware.Transaction(uowFactory, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	authService := &authsvc.Service{
		Users:      users,
		Sessions:   sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	var uploader s3.Uploader
	if photos, err := s3.New(s3.Config{
		Endpoint:       cfg.S3Endpoint,
		PublicEndpoint: cfg.S3PublicEndpoint,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		Bucket:         cfg.S3Bucket,
		UseSSL:         cfg.S3UseSSL,
	}, logger); err != nil {
		logger.Warn("object storage unavailable, photo uploads disabled", "error", err)
		uploader = s3.NoopUploader{}
	} else {
		uploader = photos
	}

	app.handlers = ginserver.Handlers{
		Listing: ginserver.ListingHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		Stream: ginserver.StreamHandler{Hub: app.hub, Logger: logger},
		Auth:   ginserver.AuthHandler{Service: authService, Logger: logger},
		Media:  ginserver.MediaHandler{Uploader: uploader, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{
			Service: authService,
			Logger:  logger,
		}.Handle,
	}
	return app, nil
}

// outboxStoreSink is what both durable outbox stores provide: a sink
// for committed records plus the worker's claim surface.
type outboxStoreSink interface {
	appoutbox.Sink
	outboxinfra.EventStore
}
