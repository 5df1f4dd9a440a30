package main

import (
	"context"
	"log"
	"time"

	"github.com/tradmak/aixos/internal/config"
	"github.com/tradmak/aixos/internal/dispatch"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/handler"
	"github.com/tradmak/aixos/internal/metrics"
	"github.com/tradmak/aixos/internal/reasoning"
	"github.com/tradmak/aixos/internal/redis"
	"github.com/tradmak/aixos/internal/server"
	"github.com/tradmak/aixos/internal/services"
	"github.com/tradmak/aixos/internal/storage"
	"github.com/tradmak/aixos/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)
	ctx := context.Background()

	// Platform gateway: REST surface plus the realtime change feed.
	rest := gateway.NewRESTClient(gateway.RESTConfig{
		BaseURL:    cfg.Platform.RestURL,
		ServiceKey: cfg.Platform.ServiceKey,
		Timeout:    cfg.Platform.QueryTimeout,
	})
	auth := gateway.NewAuthClient(cfg.Platform.AuthURL, cfg.Platform.ServiceKey)
	realtime := gateway.NewRealtimeClient(cfg.Platform.RealtimeURL, cfg.Platform.ServiceKey, l)
	if err := realtime.Start(ctx); err != nil {
		log.Fatalf("Failed to connect to the realtime feed: %v", err)
	}
	defer realtime.Close()

	redisClient := redis.NewClient(cfg.Redis)
	cache := redis.NewCacheStore(redisClient, redis.DefaultCacheConfig())
	limiter := redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())
	presence := redis.NewPresenceStore(redisClient, 5*time.Minute)

	// The dashboard aggregator reads the platform's Postgres endpoint
	// directly; every other query goes through REST.
	reader, err := metrics.NewReader(ctx, cfg.Metrics.ReadDSN)
	if err != nil {
		log.Fatalf("Failed to open the metrics reader: %v", err)
	}
	defer reader.Close()

	reasoner := reasoning.NewService(reasoning.NewClient(cfg.Reasoning), l)
	webhooks := dispatch.NewWebhooks(cfg.Dispatch)

	queue, err := dispatch.NewQueue(cfg.Dispatch.AMQPURL, cfg.Dispatch.EmailQueue)
	if err != nil {
		log.Fatalf("Failed to connect to the email queue: %v", err)
	}
	defer queue.Close()

	var store *storage.Client
	if cfg.Storage.Bucket != "" {
		store, err = storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.Storage.Region,
			Bucket:     cfg.Storage.Bucket,
			AccessKey:  cfg.Storage.AccessKey,
			SecretKey:  cfg.Storage.SecretKey,
			Endpoint:   cfg.Storage.Endpoint,
			PublicBase: cfg.Storage.PublicBase,
		})
		if err != nil {
			log.Fatalf("Failed to init object storage: %v", err)
		}
	} else {
		l.Warnf("object storage not configured, attachment uploads disabled")
	}

	resourceSvc := services.NewResourceService(rest)
	monitorSvc := services.NewMonitorService(rest, realtime)
	supportSvc := services.NewSupportService(rest, cache, reasoner, limiter, resourceSvc, l)
	aiChatSvc := services.NewAIChatService(rest, cache, limiter, reasoner, webhooks, reader, resourceSvc, l)
	channelSvc := services.NewChannelService(rest, l)
	inquirySvc := services.NewInquiryService(rest)
	contactSvc := services.NewContactService(rest)
	emailSvc := services.NewEmailService(rest, queue, l)
	researchSvc := services.NewResearchService(rest, webhooks, limiter, l)
	dashboardSvc := services.NewDashboardService(reader, cache, presence, l)
	agentSvc := services.NewAgentService(rest, cache, l)
	uploadSvc := services.NewUploadService(store)

	hub := server.NewHub(rest, realtime, auth, presence, cache, monitorSvc, l)
	go hub.Run()
	defer hub.Stop()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Agent:     handler.NewAgentHandler(agentSvc),
		Support:   handler.NewSupportHandler(supportSvc),
		AIChat:    handler.NewAIChatHandler(aiChatSvc),
		Channel:   handler.NewChannelHandler(channelSvc),
		CRM:       handler.NewCRMHandler(monitorSvc, inquirySvc, contactSvc),
		Email:     handler.NewEmailHandler(emailSvc),
		Research:  handler.NewResearchHandler(researchSvc),
		Resource:  handler.NewResourceHandler(resourceSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Upload:    handler.NewUploadHandler(uploadSvc),
		Stream:    server.NewStreamHandler(hub, cfg.Platform.JWTSecret, rest, cache, l),
	}, rest, cache, limiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
