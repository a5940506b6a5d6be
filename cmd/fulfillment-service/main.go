package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-bookworks/internal/api"
	"ms-bookworks/internal/compose"
	"ms-bookworks/internal/config"
	"ms-bookworks/internal/delivery"
	"ms-bookworks/internal/kafka"
	"ms-bookworks/internal/lock"
	"ms-bookworks/internal/logger"
	"ms-bookworks/internal/media"
	"ms-bookworks/internal/pdfgen"
	"ms-bookworks/internal/pipeline"
	"ms-bookworks/internal/providers"
	"ms-bookworks/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment")
	}

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL ---
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("failed to connect to postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if err := store.Migrate(bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("migration failed: %v", err))
	}
	log.Info("DATABASE", "connected and migrated")

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("failed to connect to redis: %v", err))
	}
	defer redisClient.Close()
	log.Info("REDIS", "connected to "+cfg.Redis.Addr)

	// --- Kafka ---
	var events pipeline.Events
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := kafka.Topics{
			OrderStatus: cfg.Kafka.Topics.OrderStatus,
			OpsAlerts:   cfg.Kafka.Topics.OpsAlerts,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers,
			[]string{topics.OrderStatus, topics.OpsAlerts}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("topic setup failed, continuing: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, topics, log)
		defer producer.Close()
		events = producer
		log.Info("KAFKA", fmt.Sprintf("producer ready on %v", cfg.Kafka.Brokers))
	} else {
		log.Warn("KAFKA", "disabled, status events will not be published")
	}

	// --- Media store ---
	mediaStore, err := media.NewStore(cfg.Media.RootDir, cfg.Media.PublicURL)
	if err != nil {
		log.Fatal("MEDIA", fmt.Sprintf("failed to init media store: %v", err))
	}

	// --- Providers ---
	httpClient := &http.Client{Timeout: 60 * time.Second}

	var face providers.PersonalizationProvider
	switch cfg.Face.Strategy {
	case "callback":
		face = providers.NewCallbackProvider(cfg.Face, httpClient, log)
	default:
		face = providers.NewPollProvider(cfg.Face, httpClient, log)
	}
	log.Info("PROVIDER", "face personalization backend: "+face.Name())

	textGen := providers.NewTextClient(cfg.TextGen, httpClient, log)
	payment := providers.NewStripePayment(cfg.Payment, log)
	notifier := providers.NewEmailNotifier(cfg.Email, log)

	engine, err := compose.NewEngine(cfg.Media.FontPath)
	if err != nil {
		log.Fatal("COMPOSE", fmt.Sprintf("failed to init compositing engine: %v", err))
	}

	// --- Pipeline ---
	p := &pipeline.Pipeline{
		DB:        &store.DB{Bun: bunDB},
		Media:     mediaStore,
		Lock:      lock.NewRedis(redisClient, cfg.Redis.LockTTL, log),
		Events:    events,
		TextGen:   textGen,
		Face:      face,
		Payment:   payment,
		Notifier:  notifier,
		Composer:  engine,
		Assembler: pdfgen.NewAssembler(mediaStore, log),
		Delivery:  delivery.NewEmailDelivery(mediaStore, notifier, log),
		Logger:    log,
		Client:    httpClient,

		PollDelay:     cfg.Face.PollDelay,
		CancelAfter:   cfg.Pipeline.CancelAfter,
		CompleteAfter: cfg.Pipeline.CompleteAfter,
	}

	handler := api.NewHandler(p, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "fulfillment service listening on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("http server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", fmt.Sprintf("forced shutdown: %v", err))
	}
	log.Info("SERVER", "exited gracefully")
}
