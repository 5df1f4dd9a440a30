package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/tradmak/aixos/internal/config"
	"github.com/tradmak/aixos/internal/dispatch"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/pkg/logger"
)

const workerConcurrency = 4

// The dispatcher drains the email queue. It runs as its own process so a
// slow SMTP peer never backs up the console's request path.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)

	rest := gateway.NewRESTClient(gateway.RESTConfig{
		BaseURL:    cfg.Platform.RestURL,
		ServiceKey: cfg.Platform.ServiceKey,
		Timeout:    cfg.Platform.QueryTimeout,
	})

	relay := dispatch.NewRelay(cfg.Dispatch)
	consumer := dispatch.NewConsumer(rest, relay, l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Infof("dispatcher: consuming %s with %d workers", cfg.Dispatch.EmailQueue, workerConcurrency)
	if err := consumer.Run(ctx, cfg.Dispatch.AMQPURL, cfg.Dispatch.EmailQueue, workerConcurrency); err != nil {
		log.Fatalf("Dispatcher exited with error: %v", err)
	}
	l.Infof("dispatcher: stopped")
}
