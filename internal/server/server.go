// Package server exposes read-only telemetry for a running simulation: a
// WebSocket stream, a QUIC stream and a JSON snapshot endpoint. Nothing here
// can mutate simulation state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/locomotion/sim"
	"github.com/zeusync/locomotion/internal/core/observability/log"
)

const shutdownTimeout = 5 * time.Second

// Source is where the latest snapshot comes from.
type Source interface {
	Latest() sim.Snapshot
}

type Server struct {
	cfg    config.Telemetry
	logger log.Log
	source Source

	hub  *Hub
	quic *QUICBroadcaster
	http *http.Server

	running atomic.Bool
	closed  atomic.Bool
}

// NewServer builds the sinks. QUIC is disabled when cfg.QUICAddr is empty.
func NewServer(cfg config.Telemetry, source Source, logger log.Log) (*Server, error) {
	logger = logger.With(log.String("component", "server"))
	s := &Server{
		cfg:    cfg,
		logger: logger,
		source: source,
		hub:    NewHub(logger, 32),
	}
	if cfg.QUICAddr != "" {
		tlsConf, err := GenerateTLSConfig()
		if err != nil {
			return nil, err
		}
		s.quic = NewQUICBroadcaster(logger, tlsConf, 32)
	}
	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Sinks are the frame consumers to hand to the simulation.
func (s *Server) Sinks() []sim.Sink {
	sinks := []sim.Sink{s.hub}
	if s.quic != nil {
		sinks = append(sinks, s.quic)
	}
	return sinks
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /telemetry", s.hub)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Latest()); err != nil {
		s.logger.Warn("encode snapshot", log.Error(err))
	}
}

// Run serves until ctx is done, then shuts every sink down.
func (s *Server) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("%w: http %s: %w", ErrListenerFailed, s.cfg.HTTPAddr, err)
	}
	if s.quic != nil {
		if err := s.quic.Listen(s.cfg.QUICAddr); err != nil {
			_ = ln.Close()
			s.running.Store(false)
			return err
		}
	}
	s.logger.Info("telemetry listening", log.String("http", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	if s.quic != nil {
		g.Go(func() error { return s.quic.Serve(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})
	return g.Wait()
}

func (s *Server) shutdown() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("telemetry shutting down")
	s.hub.Close()

	var errs []error
	if s.quic != nil {
		errs = append(errs, s.quic.Close())
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	errs = append(errs, s.http.Shutdown(ctx))
	return errors.Join(errs...)
}
