package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/EdrumVIOT/Back-End/internal/auth"
	"github.com/EdrumVIOT/Back-End/internal/cache"
	"github.com/EdrumVIOT/Back-End/internal/events"
	h "github.com/EdrumVIOT/Back-End/internal/http"
	"github.com/EdrumVIOT/Back-End/internal/repository"
	"github.com/EdrumVIOT/Back-End/internal/service"
	"github.com/EdrumVIOT/Back-End/internal/sms"
)

type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDBName     string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	TokenSecret     string
	MessageAPI      string
	MessageKey      string
	MessageFrom     string
	CountryCode     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storedb"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		TokenSecret:     getEnv("ACCESS_TOKEN_SECRET", ""),
		MessageAPI:      getEnv("MESSAGE_API", ""),
		MessageKey:      getEnv("MESSAGE_KEY", ""),
		MessageFrom:     getEnv("MESSAGE_PHONE", ""),
		CountryCode:     getEnv("MESSAGE_COUNTRY_CODE", "+976"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	cfg := loadConfig()
	if cfg.TokenSecret == "" {
		log.Fatal().Msg("ACCESS_TOKEN_SECRET is required")
	}

	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	log.Info().Str("uri", cfg.MongoURI).Msg("connected to MongoDB")

	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}

	cartRepo := repository.NewMongoCartRepository(mongoDB)
	otpRepo := repository.NewMongoOtpRepository(mongoDB)
	orderRepo := repository.NewMongoOrderRepository(mongoDB)
	productRepo := repository.NewMongoProductRepository(mongoDB)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("redis ping succeeded")

	cartCache := cache.NewRedisCache(redisClient)

	sender := sms.NewGateway(sms.GatewayConfig{
		URL:         cfg.MessageAPI,
		Key:         cfg.MessageKey,
		From:        cfg.MessageFrom,
		CountryCode: cfg.CountryCode,
	})

	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers...)
	defer publisher.Close()

	verifier := auth.NewVerifier(cfg.TokenSecret)
	ledger := service.NewOtpLedger(otpRepo, sender)

	cartService := service.NewCartService(cartRepo, productRepo, cartCache)
	checkoutService := service.NewCheckoutService(cartRepo, productRepo, orderRepo, ledger, sender, cartCache, publisher)
	mergeService := service.NewMergeService(cartRepo, cartCache)
	orderService := service.NewOrderService(orderRepo, cartRepo)
	productService := service.NewProductService(productRepo)

	router := h.NewRouter(
		verifier,
		h.NewCartHandler(cartService, mergeService, cfg.RequestTimeout),
		h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout),
		h.NewOrdersHandler(orderService, cfg.RequestTimeout),
		h.NewProductHandler(productService, cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("store backend starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	if err := mongoDB.Client().Disconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("mongo disconnect failed")
	}
	log.Info().Msg("server exited")
}
