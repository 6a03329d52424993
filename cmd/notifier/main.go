package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harbor/chat-app/internal/messaging"
	"github.com/harbor/chat-app/internal/notify"
)

func main() {
	log.Println("Starting push notifier...")

	// Redis setup.
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	// NATS setup.
	natsConfig := messaging.DefaultConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "chat-notifier"

	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Delivery provider: an HTTP push endpoint when configured, the log
	// otherwise.
	var provider notify.Provider = notify.LogProvider{}
	pushEndpoint := os.Getenv("PUSH_ENDPOINT")
	if pushEndpoint != "" {
		provider = notify.NewHTTPProvider(pushEndpoint)
	}

	tokens := notify.NewTokenRegistry(rdb)
	worker := notify.NewWorker(tokens, provider)

	// Queue-group subscription: jobs are load-balanced across notifier
	// replicas, each job handled once.
	if err := natsClient.SubscribePushJobs(worker.HandleRaw); err != nil {
		log.Fatalf("failed to subscribe to push jobs: %v", err)
	}

	log.Printf("push notifier running")
	log.Printf("  redis_addr:    %s", redisAddr)
	log.Printf("  nats_url:      %s", natsConfig.URL)
	if pushEndpoint != "" {
		log.Printf("  push_endpoint: %s", pushEndpoint)
	} else {
		log.Printf("  push_endpoint: (log only)")
	}

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
	rdb.Close()
}
