package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"notekeeper/internal/config"
	"notekeeper/internal/logger"
	"notekeeper/internal/server"

	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "config.yml", "path to config file")
	flag.Parse()

	// Загружаем конфигурацию из файла
	appConfig, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Error initializing config: %v", err)
	}

	lg, err := logger.New(appConfig.Logger.Level)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	srv, err := server.NewServer(appConfig, lg)
	if err != nil {
		lg.Fatal("failed to create server", zap.Error(err))
	}

	initCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Initialize(initCtx); err != nil {
		lg.Fatal("failed to initialize server", zap.Error(err))
	}

	// Канал для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := srv.Start()

	// Ожидание сигнала или ошибки
	select {
	case err := <-errChan:
		lg.Error("server error", zap.Error(err))
	case sig := <-sigChan:
		lg.Info("received signal", zap.String("signal", sig.String()))
	}

	if err := srv.Shutdown(); err != nil {
		lg.Error("shutdown finished with errors", zap.Error(err))
	}
}
