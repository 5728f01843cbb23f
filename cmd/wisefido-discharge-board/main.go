package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logpkg "wisefido-discharge-board/internal/common/logger"
	"wisefido-discharge-board/internal/config"
	httpapi "wisefido-discharge-board/internal/http"
	"wisefido-discharge-board/internal/service"
	"wisefido-discharge-board/internal/telemetry"

	"go.uber.org/zap"
)

const serviceName = "wisefido-discharge-board"

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting wisefido-discharge-board service",
		zap.String("reference_timezone", cfg.Discharge.ReferenceTimezone),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatal("Failed to set up telemetry", zap.Error(err))
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to create metrics", zap.Error(err))
	}

	// 创建服务
	svc, err := service.NewBoardService(cfg, metrics, log)
	if err != nil {
		log.Fatal("Failed to create discharge board service", zap.Error(err))
	}

	router := httpapi.NewRouter(metrics, log)
	router.RegisterBoardRoutes(httpapi.NewBoardHandler(svc.Board(), log))
	router.RegisterRequestRoutes(httpapi.NewRequestHandler(svc.Requests(), log))
	svc.SetHandler(router)

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := svc.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()

	if err := svc.Stop(stopCtx); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}
	if err := shutdownTelemetry(stopCtx); err != nil {
		log.Warn("Error flushing telemetry", zap.Error(err))
	}

	log.Info("Service stopped")
}
