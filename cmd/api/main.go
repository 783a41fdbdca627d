package main

import (
	"context"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zllovesuki/rtdn/broker"
	"github.com/zllovesuki/rtdn/cache"
	"github.com/zllovesuki/rtdn/db"
	"github.com/zllovesuki/rtdn/external"
	"github.com/zllovesuki/rtdn/handler"
	"github.com/zllovesuki/rtdn/metrics"
	"github.com/zllovesuki/rtdn/notification"
	"github.com/zllovesuki/rtdn/push"
	"github.com/zllovesuki/rtdn/spec"
	specBroker "github.com/zllovesuki/rtdn/spec/broker"
	"github.com/zllovesuki/rtdn/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v7"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var environment spec.Environment
	var dotFile string
	var err error

	// Determine running environment and initialize structural logger
	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		environment = spec.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		environment = spec.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(environment),
		Debug:       environment == spec.EnvDevelopment,
	}); err != nil {
		log.Fatalf("Cannot initialize sentry: %v\n", err)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		log.Fatalf("Cannot attach sentry to logger: %v\n", err)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	defer logger.Sync()

	// Load configurations from dotFile
	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	// Initialize backend connections
	db, err := db.New(db.Options{
		URI:    os.Getenv("POSTGRES_URI"),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{os.Getenv("REDIS_URI")},
		Password:     os.Getenv("REDIS_PW"),
		DB:           0,
		ReadTimeout:  spec.CacheTimeout,
		WriteTimeout: spec.CacheTimeout,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

	var producer specBroker.Producer = &broker.LogProducer{Logger: logger}
	if uri := os.Getenv("AMQP_URI"); len(uri) > 0 {
		amqpBroker, err := broker.NewAMQPBroker(logger, uri, 1)
		if err != nil {
			logger.Fatal("Cannot connect to Broker",
				zap.Error(err),
			)
		}
		defer amqpBroker.Close()
		producer = amqpBroker
	}

	catalog, err := subscription.NewCatalogFromFile(os.Getenv("PLAN_FILE"))
	if err != nil {
		logger.Fatal("Cannot load subscription plans",
			zap.Error(err),
		)
	}

	subscriptionManager, err := subscription.NewManager(subscription.ManagerOptions{
		DB:     db,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	googleClient, err := external.NewGooglePlayClient(context.Background(), external.GooglePlayOptions{
		PackageName:     os.Getenv("GOOGLE_PACKAGE_NAME"),
		CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		Timeout:         spec.VerificationTimeout,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Google Play client",
			zap.Error(err),
		)
	}

	collector, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Cannot register metrics",
			zap.Error(err),
		)
	}

	registry, err := handler.NewRegistry(handler.Options{
		Repository: subscriptionManager,
		Catalog:    catalog,
		Producer:   producer,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize handler Registry",
			zap.Error(err),
		)
	}

	store, err := cache.NewRedisStore(rdb, "rtdn:")
	if err != nil {
		logger.Fatal("Cannot initialize cache Store",
			zap.Error(err),
		)
	}

	guard, err := notification.NewGuard(notification.GuardOptions{
		Store:   store,
		Logger:  logger,
		Metrics: collector,
	})
	if err != nil {
		logger.Fatal("Cannot initialize notification Guard",
			zap.Error(err),
		)
	}

	processor, err := notification.NewProcessor(notification.ProcessorOptions{
		Verifier: googleClient,
		Registry: registry,
		Logger:   logger,
		Metrics:  collector,
	})
	if err != nil {
		logger.Fatal("Cannot initialize notification Processor",
			zap.Error(err),
		)
	}

	decoder, err := notification.NewDecoder(logger)
	if err != nil {
		logger.Fatal("Cannot initialize notification Decoder",
			zap.Error(err),
		)
	}

	pipeline, err := notification.NewPipeline(notification.PipelineOptions{
		Decoder:   decoder,
		Guard:     guard,
		Processor: processor,
	})
	if err != nil {
		logger.Fatal("Cannot initialize notification Pipeline",
			zap.Error(err),
		)
	}

	pushRouter, err := push.NewService(push.Options{
		Pipeline: pipeline,
		Decoder:  decoder,
		Logger:   logger,
		Token:    os.Getenv("PUSH_TOKEN"),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Push Service Router",
			zap.Error(err),
		)
	}
	if environment == spec.EnvProduction && len(os.Getenv("PUSH_TOKEN")) == 0 {
		logger.Warn("PUSH_TOKEN is empty, push endpoint is unauthenticated")
	}

	rootRouter := chi.NewRouter()

	rootRouter.Mount("/pubsub/push", pushRouter.Router())
	rootRouter.Handle("/metrics", promhttp.Handler())

	rootRouter.HandleFunc("/pprof/*", pprof.Index)
	rootRouter.HandleFunc("/pprof/cmdline", pprof.Cmdline)
	rootRouter.HandleFunc("/pprof/profile", pprof.Profile)
	rootRouter.HandleFunc("/pprof/symbol", pprof.Symbol)
	rootRouter.HandleFunc("/pprof/trace", pprof.Trace)

	addr := os.Getenv("LISTEN_ADDR")
	if len(addr) == 0 {
		addr = ":42069"
	}
	srv := &http.Server{
		Handler: rootRouter,
		Addr:    addr,
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Cannot serve push endpoint",
				zap.Error(err),
			)
		}
	}()

	logger.Info("API server started",
		zap.String("Addr", addr),
	)

	<-c

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Cannot shutdown API server gracefully",
			zap.Error(err),
		)
	}
}
