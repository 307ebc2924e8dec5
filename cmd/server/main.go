// Package main 是查询服务的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docrag/internal/bootstrap"
	"docrag/internal/config"
	"docrag/internal/handler"
	"docrag/internal/pipeline"
	"docrag/internal/service"
	"docrag/pkg/kafka"
	"docrag/pkg/log"
	"docrag/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	level := cfg.Log.Level
	if cfg.Server.Debug {
		level = "debug"
	}
	log.Init(level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 初始化存储与外部依赖
	app, err := bootstrap.New(rootCtx, cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer app.Close()

	// 4. 初始化 Service (依赖注入)
	runner := pipeline.NewTaskRunner(app.Processor(), app.ResolveSource)
	dispatch := service.LocalDispatcher(rootCtx, runner)
	if cfg.Kafka.Brokers != "" {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		dispatch = producer.ProduceIngestTask

		// 5. 启动后台 Kafka 消费者
		var attempts kafka.AttemptCounter
		if app.Redis != nil {
			attempts = kafka.NewRedisAttempts(app.Redis)
		}
		go kafka.StartConsumer(rootCtx, cfg.Kafka, runner, attempts)
	}

	services := handler.Services{
		RAG:       service.NewRAGService(app.Store, app.LLM, cfg.LLM.Model, cfg.Retrieval.K),
		Documents: service.NewDocumentService(app.Store, app.Ledger, app.Uploader(), cfg.MinIO.Prefix, app.Registry.Supports),
		Ingest:    service.NewIngestService(dispatch, runner, app.ValidateTask, cfg.Ingest.Source, app.Sources()...),
		JWT:       token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpireHours),
	}
	if !services.JWT.Enabled() {
		log.Warnf("未配置 jwt.secret，管理接口已关闭")
	}

	// 6. 创建路由引擎并注册路由
	r := handler.NewRouter(cfg.Server.GinMode(), services)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("服务启动于 %s, 模型: %s, 生成后端: %s", srv.Addr, cfg.LLM.Model, cfg.LLM.Endpoint())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 停止 Kafka 消费者与进程内导入任务
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
