// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"copilot-chat-go/internal/config"
	"copilot-chat-go/internal/handler"
	"copilot-chat-go/internal/middleware"
	"copilot-chat-go/internal/model"
	"copilot-chat-go/internal/pipeline"
	"copilot-chat-go/internal/repository"
	"copilot-chat-go/internal/service"
	"copilot-chat-go/pkg/database"
	"copilot-chat-go/pkg/es"
	"copilot-chat-go/pkg/kafka"
	"copilot-chat-go/pkg/log"
	"copilot-chat-go/pkg/storage"
	"copilot-chat-go/pkg/tika"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 按配置选择存储后端并初始化 Repository
	if cfg.Database.Redis.Addr != "" {
		database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	}
	sessionRepo, messageRepo := newRepositories(cfg)
	log.Infof("存储后端: %s", cfg.Storage.Backend)

	// 4. 初始化 Service (依赖注入)
	chatService := service.NewChatHistoryService(sessionRepo, messageRepo, service.ChatHistoryConfig{
		GuestSessionID:    cfg.Chat.GuestSessionID,
		GuestUserID:       cfg.Chat.GuestUserID,
		InitialBotMessage: cfg.Prompt.InitialBotMessage,
	})

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	var bg sync.WaitGroup

	// 5. 文档导入链路：MinIO + Kafka + Tika + Elasticsearch
	var importHandler *handler.ImportHandler
	var producer *kafka.Producer
	if cfg.Import.Enabled {
		objectStore, err := storage.NewMinIO(bgCtx, cfg.MinIO)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		indexer, err := es.NewIndexer(cfg.Elasticsearch)
		if err != nil {
			log.Fatal("Elasticsearch 初始化失败", err)
		}
		producer = kafka.NewProducer(cfg.Kafka)

		importService := service.NewImportService(objectStore, producer, chatService, cfg.Import.MaxFileSize)
		importHandler = handler.NewImportHandler(importService)

		processor := pipeline.NewProcessor(objectStore, tika.NewClient(cfg.Tika), indexer, chatService)
		bg.Add(1)
		go func() {
			defer bg.Done()
			kafka.StartConsumer(bgCtx, cfg.Kafka, database.RDB, processor)
		}()
	}

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	handler.RegisterRoutes(r, handler.NewChatHistoryHandler(chatService), importHandler)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止 Kafka 消费者，等待正在处理的任务退出
	cancelBg()
	bg.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}

// newRepositories 根据 storage.backend 构造会话与消息仓库。
func newRepositories(cfg config.Config) (repository.ChatSessionRepository, repository.ChatMessageRepository) {
	switch cfg.Storage.Backend {
	case config.BackendMySQL:
		database.InitMySQL(cfg.Database.MySQL.DSN, &model.ChatSession{}, &model.ChatMessage{})
		return repository.NewChatSessionRepository(database.DB), repository.NewChatMessageRepository(database.DB)
	case config.BackendRedis:
		return repository.NewRedisChatSessionRepository(database.RDB), repository.NewRedisChatMessageRepository(database.RDB)
	default:
		return repository.NewMemoryChatSessionRepository(), repository.NewMemoryChatMessageRepository()
	}
}
