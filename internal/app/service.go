package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"alertstate/internal/clock"
	"alertstate/internal/config"
	"alertstate/internal/ingest"
	"alertstate/internal/logging"
	"alertstate/internal/metrics"
	"alertstate/internal/notifyqueue"
	"alertstate/internal/state"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable alert state service.
type Service struct {
	source    config.ConfigSource
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	metrics   *metrics.Metrics
	store     state.Store
	manager   *Manager
	httpSrv   *http.Server
	natsSub   interface{ Close() error }
	notifyPub notifyqueue.Producer
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger = logger.With("service", cfg.Service.Name)

	service := &Service{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		metrics:  metrics.New(),
		clock:    clk,
	}

	store, err := buildStore(cfg)
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	service.store = store

	producer, err := buildProducer(cfg, logger)
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	service.notifyPub = producer
	service.manager = NewManager(cfg, logger, store, producer, service.metrics, clk)

	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	return service, nil
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	restored, err := s.manager.Warm(runCtx)
	if err != nil {
		_ = s.shutdown()
		return err
	}
	s.logger.Info("instances restored", "count", restored)

	// NATS ingest starts after warm-up so first results see restored history.
	if err := s.buildNATSSubscriber(); err != nil {
		_ = s.shutdown()
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.runEvery(runCtx, time.Duration(s.cfg.Service.GCIntervalSec)*time.Second, "gc", s.manager.Tick)
	if s.cfg.Service.ReloadEnabled {
		go s.runEvery(runCtx, time.Duration(s.cfg.Service.ReloadIntervalSec)*time.Second, "reload", s.reloadConfig)
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		runCancel()
		return s.shutdown()
	case err := <-errChan:
		runCancel()
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		runCancel()
		return s.shutdown()
	}
}

// runEvery calls fn on each interval tick until ctx is done.
func (s *Service) runEvery(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error(name+" failed", "error", err.Error())
			}
		}
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	// Final flush of snapshots whose writes failed earlier.
	if err := s.manager.Tick(ctx); err != nil {
		markErr(fmt.Errorf("final flush: %w", err))
	}
	if s.notifyPub != nil {
		if err := s.notifyPub.Close(); err != nil {
			s.logger.Error("notify producer close failed", "error", err.Error())
			markErr(fmt.Errorf("notify producer close: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
func (s *Service) cleanupInitResources() {
	if s.notifyPub != nil {
		_ = s.notifyPub.Close()
		s.notifyPub = nil
	}
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires router with ingest, health and metrics endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Ingest.HTTP.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// routes builds the HTTP mux.
func (s *Service) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Ingest.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.Ingest.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})
	mux.Handle(s.cfg.Ingest.HTTP.MetricsPath, s.metrics.Handler())
	if s.cfg.Ingest.HTTP.Enabled {
		mux.Handle(s.cfg.Ingest.HTTP.IngestPath, ingest.NewHTTPHandler(s.manager, s.cfg.Ingest.HTTP.MaxBodyBytes, s.metrics))
	}
	return mux
}

// buildNATSSubscriber starts NATS ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if isSingleMode(s.cfg) || !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, s.manager, s.logger, s.metrics)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// reloadConfig atomically reloads and applies new config snapshot.
// Params: context for cleanup operations.
// Returns: reload or apply error.
func (s *Service) reloadConfig(ctx context.Context) error {
	nextCfg, err := config.LoadSnapshot(s.source)
	if err != nil {
		return err
	}
	if isSingleMode(nextCfg) != isSingleMode(s.cfg) {
		return fmt.Errorf("service.mode change requires restart")
	}
	if nextCfg.Notify.Queue.Enabled != s.cfg.Notify.Queue.Enabled {
		return fmt.Errorf("notify.queue.enabled change requires restart")
	}
	if err := s.manager.ApplyConfig(ctx, nextCfg); err != nil {
		return err
	}
	s.cfg = nextCfg
	s.logger.Info("configuration reloaded", "rules", len(nextCfg.Rule))
	return nil
}

// buildStore creates snapshot store from config.
// Params: root config snapshot.
// Returns: selected store backend.
func buildStore(cfg config.Config) (state.Store, error) {
	if isSingleMode(cfg) {
		return state.NewMemoryStore(), nil
	}
	return state.NewNATSStore(config.DeriveStateNATSConfig(cfg))
}

// buildProducer selects where "needs sending" announcements go.
// Params: root config snapshot and logger.
// Returns: NATS producer when queue is enabled, log producer otherwise.
func buildProducer(cfg config.Config, logger *slog.Logger) (notifyqueue.Producer, error) {
	if isSingleMode(cfg) || !cfg.Notify.Queue.Enabled {
		return notifyqueue.NewLogProducer(logger), nil
	}
	return notifyqueue.NewNATSProducer(cfg.Notify.Queue)
}

func isSingleMode(cfg config.Config) bool {
	return config.NormalizeServiceMode(cfg.Service.Mode) == config.ServiceModeSingle
}
