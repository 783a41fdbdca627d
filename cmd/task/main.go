package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/zllovesuki/rtdn/broker"
	"github.com/zllovesuki/rtdn/cache"
	"github.com/zllovesuki/rtdn/db"
	"github.com/zllovesuki/rtdn/external"
	"github.com/zllovesuki/rtdn/handler"
	"github.com/zllovesuki/rtdn/metrics"
	"github.com/zllovesuki/rtdn/notification"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"
	"github.com/zllovesuki/rtdn/task"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
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

	memoryCache := flag.Bool("memory-cache", false, "task instance will suppress duplicates in process memory instead of Redis")
	flag.Parse()

	// Determine running environment and initialize structural logger
	env := os.Getenv("ENV")
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
			"component": "task",
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

	concurrency, err := strconv.Atoi(os.Getenv("TASK_CONCURRENCY"))
	if err != nil || concurrency < 1 {
		concurrency = 4
	}
	queue := os.Getenv("NOTIFICATION_QUEUE")
	if len(queue) == 0 {
		queue = spec.NotificationQueue
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

	amqpBroker, err := broker.NewAMQPBroker(logger, os.Getenv("AMQP_URI"), concurrency)
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer amqpBroker.Close()

	var store cache.Store
	if *memoryCache {
		store = cache.NewMemoryStore()
		logger.Info("Task instance will suppress duplicates in memory")
	} else {
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

		store, err = cache.NewRedisStore(rdb, "rtdn:")
		if err != nil {
			logger.Fatal("Cannot initialize cache Store",
				zap.Error(err),
			)
		}
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
		Producer:   amqpBroker,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize handler Registry",
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

	notificationTask, err := task.NewNotificationTask(task.NotificationOptions{
		Consumer:    amqpBroker,
		Handler:     pipeline,
		Logger:      logger,
		Queue:       queue,
		Concurrency: concurrency,
	})
	if err != nil {
		logger.Fatal("Cannot get notification task",
			zap.Error(err),
		)
	}

	if addr := os.Getenv("LISTEN_ADDR"); len(addr) > 0 {
		go func() {
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				logger.Error("Cannot serve metrics",
					zap.Error(err),
				)
			}
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := notificationTask.Run(ctx); err != nil {
			logger.Fatal("Cannot handle notifications",
				zap.Error(err),
			)
		}
	}()

	logger.Info("Notification task started",
		zap.String("Queue", queue),
		zap.Int("Concurrency", concurrency),
	)

	select {
	case <-c:
	case <-done:
		logger.Error("Notification consumer stopped")
	}
	cancel()
	<-done
}
