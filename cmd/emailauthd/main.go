// Command emailauthd runs the email authentication HTTP server.
//
// Configuration comes from EMAIL_AUTH_* environment variables (a .env file
// is loaded when present). REDIS_ADDR selects the Redis code store and
// MONGO_URI the MongoDB user store; without them everything stays in memory,
// which is fine for development and useless behind more than one replica.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/passwordless/emailauth"
	"github.com/passwordless/emailauth/httpapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	cfg := emailauth.ConfigFromEnv()

	builder := emailauth.New().WithConfig(cfg)

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		builder.WithRedis(client)
		log.Printf("code store: redis at %s", addr)
	} else {
		log.Println("code store: in-memory")
	}

	if uri := os.Getenv("MONGO_URI"); uri != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			cancel()
			log.Fatalf("mongo connect failed: %v", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			cancel()
			log.Fatalf("mongo ping failed: %v", err)
		}
		cancel()
		defer func() {
			_ = client.Disconnect(context.Background())
		}()
		builder.WithUserStore(emailauth.NewMongoUserStore(
			client,
			emailauth.DefaultUsersDBName,
			emailauth.DefaultUsersCollectionName,
		))
		log.Println("user store: mongodb")
	} else {
		log.Println("user store: in-memory")
	}

	if cfg.Audit.Enabled {
		builder.WithAuditSink(emailauth.NewJSONWriterSink(os.Stdout))
	}

	svc, err := builder.Build()
	if err != nil {
		log.Fatalf("service build failed: %v", err)
	}
	defer svc.Close()

	emailauth.SetDefault(svc)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      httpapi.NewRouter(svc),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
