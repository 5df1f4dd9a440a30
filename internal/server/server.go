package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tradmak/aixos/internal/config"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/handler"
	"github.com/tradmak/aixos/internal/middleware"
	"github.com/tradmak/aixos/internal/redis"
	"github.com/tradmak/aixos/internal/transport/httpdto"
	"github.com/tradmak/aixos/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "production"
	TestMode    = "test"
)

// Handlers bundles every screen's handler plus the stream endpoint.
type Handlers struct {
	Agent     *handler.AgentHandler
	Support   *handler.SupportHandler
	AIChat    *handler.AIChatHandler
	Channel   *handler.ChannelHandler
	CRM       *handler.CRMHandler
	Email     *handler.EmailHandler
	Research  *handler.ResearchHandler
	Resource  *handler.ResourceHandler
	Dashboard *handler.DashboardHandler
	Upload    *handler.UploadHandler
	Stream    *StreamHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.Server.Environment == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Server.Environment == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, data gateway.Data, cache *redis.CacheStore, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := cache.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// The stream endpoint authenticates on its own: browsers cannot set
	// headers on a websocket upgrade. Pre-auth attempts are throttled per IP.
	s.engine.GET("/ws", middleware.AuthRateLimitMiddleware(limiter), handlers.Stream.Handle)

	auth := middleware.AuthMiddleware(s.config.Platform.JWTSecret, data, cache, s.logger)
	v1 := s.engine.Group("/api/v1", auth)
	{
		v1.GET("/me", handlers.Agent.Me)
		v1.PUT("/me/theme", handlers.Agent.UpdateTheme)
		v1.GET("/agents", handlers.Agent.Directory)

		support := v1.Group("/support")
		{
			support.GET("", handlers.Support.List)
			support.GET("/ai-sessions", handlers.Support.MonitorAISessions)
			support.POST("/:id/assign", handlers.Support.Assign)
			support.PUT("/:id/status", handlers.Support.SetStatus)
			support.PUT("/:id/priority", handlers.Support.SetPriority)
			support.POST("/:id/draft", handlers.Support.DraftReply)
			support.GET("/:id/sentiment", handlers.Support.Sentiment)
		}

		ai := v1.Group("/ai/sessions")
		{
			ai.GET("", handlers.AIChat.Sessions)
			ai.POST("", handlers.AIChat.CreateSession)
			ai.PUT("/:id", handlers.AIChat.RenameSession)
			ai.DELETE("/:id", handlers.AIChat.DeleteSession)
			ai.POST("/:id/reply", handlers.AIChat.Reply)
		}

		channels := v1.Group("/channels")
		{
			channels.GET("", handlers.Channel.List)
			channels.POST("", handlers.Channel.Create)
			channels.POST("/direct", handlers.Channel.OpenDirect)
			channels.GET("/:id/members", handlers.Channel.Members)
		}

		crm := v1.Group("/crm")
		{
			crm.GET("/traces", handlers.CRM.Traces)
			crm.GET("/inquiries", handlers.CRM.Inquiries)
			crm.POST("/inquiries/:id/contacted", handlers.CRM.MarkInquiryContacted)
			crm.GET("/contacts", handlers.CRM.Contacts)
			crm.POST("/contacts/:id/conversation", handlers.CRM.OpenContactConversation)
		}

		emails := v1.Group("/emails")
		{
			emails.GET("", handlers.Email.List)
			emails.POST("", middleware.DispatchRateLimitMiddleware(limiter), handlers.Email.Compose)
			emails.POST("/:id/read", handlers.Email.MarkRead)
		}
		v1.GET("/email-settings", handlers.Email.Settings)
		v1.PUT("/email-settings", handlers.Email.UpdateSettings)

		research := v1.Group("/research")
		{
			// Research throttles itself against the reasoning budget.
			research.POST("", handlers.Research.Run)
			research.GET("", handlers.Research.History)
		}

		resources := v1.Group("/resources")
		{
			resources.GET("", handlers.Resource.Catalog)
			resources.POST("/:id/unlock", handlers.Resource.Unlock)
		}

		v1.GET("/dashboard", handlers.Dashboard.Overview)
		v1.POST("/uploads/presign", handlers.Upload.PresignAttachments)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.Server.Port)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.Server.Port)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
