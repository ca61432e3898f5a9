package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storefront-service/handlers"
	"storefront-service/internal/addresses"
	"storefront-service/internal/auth"
	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/consul"
	"storefront-service/internal/coupons"
	"storefront-service/internal/orders"
	"storefront-service/internal/remote"
	"storefront-service/internal/stores/kafka"
	"storefront-service/internal/wallet"
)

const serviceName = "storefront"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("service terminated", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	publicKeyPath := os.Getenv("AUTH_PUBLIC_KEY_FILE")
	if publicKeyPath == "" {
		publicKeyPath = "pubkey.pem"
	}
	publicPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return err
	}
	keys, err := auth.NewKeys(publicPEM)
	if err != nil {
		return err
	}

	consulClient, err := consul.NewClient()
	if err != nil {
		return err
	}
	if err := consul.RegisterService(consulClient, serviceName); err != nil {
		return err
	}
	resolver := remote.NewConsulResolver(consulClient)

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		panic("KAFKA_BROKERS is not set")
	}
	kafkaConf, err := kafka.NewConf(strings.Split(brokers, ","))
	if err != nil {
		return err
	}
	defer kafkaConf.Close()

	var sessions checkout.SessionStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		sessions = checkout.NewRedisStore(redisAddr)
	} else {
		sessions = checkout.NewMemoryStore()
	}

	cartStore := cart.NewStore(cart.NewClient(resolver))
	selector := coupons.NewSelector(coupons.NewClient(resolver))
	orderSvc := orders.NewClient(resolver)

	orch := checkout.NewOrchestrator(
		cartStore,
		selector,
		addresses.NewClient(resolver),
		wallet.NewClient(resolver),
		orderSvc,
		kafkaConf,
		sessions,
	)

	prefix := os.Getenv("SERVICE_ENDPOINT_PREFIX")
	if prefix == "" {
		panic("SERVICE_ENDPOINT_PREFIX is not set")
	}
	api := handlers.API(prefix, keys, cartStore, selector, orch, orderSvc, kafkaConf)

	port := os.Getenv("SERVICE_PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting storefront-service", slog.String("port", port))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		slog.Info("shutdown started", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return err
		}
	}

	return nil
}
