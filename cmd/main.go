package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wumen-backend/internal/config"
	"wumen-backend/internal/graph"
	"wumen-backend/internal/handler"
	"wumen-backend/internal/middleware"
	"wumen-backend/internal/render"
	"wumen-backend/internal/service"
	"wumen-backend/internal/session"
	"wumen-backend/internal/storage"
	"wumen-backend/internal/transport"
	"wumen-backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// 持久层：disk 不可用时退回内存存储，服务照常起
	store := newStore(cfg)

	// 会话存储 + 渲染器
	sessions := session.NewStore(store, cfg.Storage.Key, render.NewMarkdownRenderer())
	if err := sessions.Init(); err != nil {
		logger.Fatalf("Failed to init session store: %v", err)
	}

	// 上游客户端
	client := newUpstreamClient(cfg)

	chatService := service.NewChatService(cfg, sessions, client)
	graphService := graph.NewService(cfg.Graph.BaseURL, cfg.Graph.Timeout)

	chatHandler := handler.NewChatHandler(chatService)
	graphHandler := handler.NewGraphHandler(graphService)

	router := setupRouter(cfg, chatHandler, graphHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	if err := server.Close(); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	if err := store.Close(); err != nil {
		logger.Errorf("存储关闭失败: %v", err)
	}
	logger.Info("服务器已关闭")
}

func newStore(cfg *config.Config) storage.Store {
	var store storage.Store

	if cfg.Storage.Type == "disk" {
		store = storage.NewDiskStore(cfg.Storage.DataDir)
	} else {
		store = storage.NewMemoryStore()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage, falling back to memory: %v", err)
		store = storage.NewMemoryStore()
		store.Init()
	}

	return store
}

func newUpstreamClient(cfg *config.Config) transport.Client {
	switch cfg.Upstream.Provider {
	case "openai":
		return transport.NewOpenAIClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.Model)
	default:
		return transport.NewHTTPClient(cfg.Upstream.Endpoint, cfg.Upstream.Timeout)
	}
}

func setupRouter(cfg *config.Config, chatHandler *handler.ChatHandler, graphHandler *handler.GraphHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RateLimit(cfg.RateLimit))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		chat := api.Group("/chat")
		{
			chat.POST("/submit", chatHandler.Submit)
			chat.POST("/session", chatHandler.CreateSession)
			chat.GET("/session/list", chatHandler.GetSessionList)
			chat.GET("/state", chatHandler.GetState)
			chat.POST("/session/:session_id/switch", chatHandler.SwitchSession)
			chat.PUT("/session/:session_id", chatHandler.RenameSession)
			chat.GET("/session/del/:session_id", chatHandler.DeleteSession)
			chat.GET("/messages/:session_id", chatHandler.GetMessages)
		}

		api.GET("/graph/node", graphHandler.QueryNode)
	}

	return router
}
