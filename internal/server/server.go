package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"notekeeper/internal/api/gateway"
	"notekeeper/internal/api/http/middleware"
	"notekeeper/internal/api/rest"
	"notekeeper/internal/config"
	"notekeeper/internal/repository/backend"
	accountsService "notekeeper/internal/service/accounts"
	notesService "notekeeper/internal/service/notes"

	"go.uber.org/zap"
)

// Server представляет HTTP сервер приложения вместе с клиентом хранилища
type Server struct {
	HTTPServer *http.Server
	HTTPAddr   string
	Listener   net.Listener

	// Конфигурация
	Config *config.Config

	closeStore backend.CloseFunc
	logger     *zap.Logger
}

// NewServer создает сервер и открывает listener на порту из конфигурации
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	httpAddr := "0.0.0.0:" + strconv.Itoa(cfg.Server.Port)

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", httpAddr, err)
	}

	return &Server{
		HTTPAddr: httpAddr,
		Listener: listener,
		Config:   cfg,
		logger:   logger,
	}, nil
}

// Initialize инициализирует компоненты сервера (Repository → Service → Handler)
func (s *Server) Initialize(ctx context.Context) error {
	store, closeStore, err := backend.Open(ctx, s.Config.Storage, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	s.closeStore = closeStore

	noteSvc := notesService.NewNoteService(store)
	accountSvc := accountsService.NewAccountService(store, noteSvc, s.logger.Named("accounts"))

	sessions, err := middleware.NewSessions(s.Config.Auth.SessionSecret, seconds(s.Config.Auth.SessionTTL))
	if err != nil {
		return fmt.Errorf("failed to create session issuer: %w", err)
	}

	handler := rest.NewHandler(noteSvc, accountSvc, sessions, s.Config.Auth, s.logger.Named("rest"))

	h, err := gateway.Setup(s.Config.Gateway, sessions, handler, s.logger.Named("http"))
	if err != nil {
		return err
	}

	s.HTTPServer = &http.Server{
		Handler:           h,
		ReadTimeout:       seconds(s.Config.Server.HTTPReadTimeout),
		WriteTimeout:      seconds(s.Config.Server.HTTPWriteTimeout),
		IdleTimeout:       seconds(s.Config.Server.HTTPIdleTimeout),
		ReadHeaderTimeout: seconds(s.Config.Server.HTTPReadHeaderTimeout),
	}

	return nil
}

// Start запускает HTTP сервер в горутине
// Возвращает канал ошибок для отслеживания ошибок сервера
func (s *Server) Start() <-chan error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.HTTPAddr))
		if err := s.HTTPServer.Serve(s.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	return errChan
}

// Shutdown выполняет graceful shutdown сервера и закрывает клиент хранилища
func (s *Server) Shutdown() error {
	s.logger.Info("starting graceful shutdown")

	shutdownTimeout := time.Duration(s.Config.Server.GracefulShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if s.HTTPServer != nil {
		if err := s.HTTPServer.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown timeout, forcing stop", zap.Error(err))
			errs = append(errs, err, s.HTTPServer.Close())
		}
	}

	if s.closeStore != nil {
		if err := s.closeStore(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
	}

	s.logger.Info("server stopped")

	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
