package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"drxchat/config"
	"drxchat/logger"
	"drxchat/router"
	"drxchat/service"
	"drxchat/storage"
)

// @title dr.x 聊天服务 API
// @version 1.0
// @description 基于 DeepSeek 的对话服务：会话管理、消息收发、深度思考与会话导出
// @host localhost:5000
// @BasePath /

const version = "1.0.0"

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "外部配置文件路径（可选）")
	flag.StringVar(&configFile, "c", "", "外部配置文件路径（简写）")
	flag.StringVar(&port, "port", "", "监听端口，如: 5000 或 :5000")
	flag.StringVar(&port, "p", "", "监听端口（简写）")
	flag.BoolVar(&showVersion, "version", false, "显示版本信息")
	flag.BoolVar(&showVersion, "v", false, "显示版本信息（简写）")
}

func main() {
	flag.Parse()

	if showVersion {
		log.Printf("drxchat v%s", version)
		return
	}

	// 加载配置（内置配置 + 可选的外部配置覆盖 + 环境变量）
	cfg := config.MustLoadConfig(configFile)

	// 命令行参数覆盖端口配置
	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("配置已加载", zap.Any("config", cfg.Summary()))
	if strings.TrimSpace(cfg.DeepSeek.APIKey) == "" {
		zlog.Warn("未配置 DEEPSEEK_API_KEY，发送消息将返回错误")
	}

	store, err := storage.New(cfg, zlog)
	if err != nil {
		zlog.Fatal("存储初始化失败", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Warn("关闭存储失败", zap.Error(err))
		}
	}()

	gateway := service.NewDeepSeekClient(cfg.DeepSeek, nil)
	r := router.SetupRouter(cfg, store, gateway, zlog)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}

	go func() {
		zlog.Info("服务已启动",
			zap.String("addr", cfg.Server.Port),
			zap.String("swagger", "http://localhost"+cfg.Server.Port+"/swagger/index.html"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("正在关闭服务...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("服务关闭超时", zap.Error(err))
	}
}
