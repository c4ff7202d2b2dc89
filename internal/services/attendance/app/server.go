// Package server wires the attendance runtime around one SQLite store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/platform/logging"
	"github.com/louisbranch/siteledger/internal/platform/timeouts"
	"github.com/louisbranch/siteledger/internal/services/attendance/api/httpapi"
	"github.com/louisbranch/siteledger/internal/services/attendance/api/mcptools"
	"github.com/louisbranch/siteledger/internal/services/attendance/autoattend"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage/sqlite"
	"github.com/louisbranch/siteledger/internal/services/attendance/summary"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported alongside "".
const HealthService = "siteledger.attendance"

// Config defines the inputs for the attendance process.
type Config struct {
	HTTPAddr string
	// GRPCAddr enables the gRPC health endpoint when set.
	GRPCAddr          string
	DBPath            string
	Timezone          string
	CacheEnabled      bool
	MCPEnabled        bool
	Logger            *slog.Logger
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the attendance HTTP API with the optional MCP and gRPC health
// endpoints over one store.
type Server struct {
	logger          *slog.Logger
	shutdownTimeout time.Duration
	store           *sqlite.Store
	httpListener    net.Listener
	httpServer      *http.Server
	grpcListener    net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
}

// NewServer opens storage and binds listeners for cfg.
func NewServer(cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "attendance.db")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}
	logger := logging.OrDefault(cfg.Logger)
	civil.SetZone(civil.LoadZone(cfg.Timezone))

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s := &Server{logger: logger, shutdownTimeout: cfg.ShutdownTimeout, store: store}

	engine := autoattend.NewEngine(store, autoattend.WithLogger(logger))
	summaries := summary.NewService(store, summary.WithLogger(logger), summary.WithCache(cfg.CacheEnabled))

	mux := http.NewServeMux()
	if cfg.MCPEnabled {
		mux.Handle("/mcp", mcptools.NewHTTPHandler(mcptools.NewServer(engine, summaries)))
	}
	mux.Handle("/", httpapi.NewHandler(httpapi.Deps{
		Store:     store,
		Engine:    engine,
		Summaries: summaries,
		Logger:    logger,
		Probe:     store.Ping,
	}))
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	s.httpListener, err = net.Listen("tcp", httpAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}

	if grpcAddr := strings.TrimSpace(cfg.GRPCAddr); grpcAddr != "" {
		s.grpcListener, err = net.Listen("tcp", grpcAddr)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("listen on %s: %w", grpcAddr, err)
		}
		s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		s.health = health.NewServer()
		grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	return s, nil
}

// HTTPAddr returns the bound HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC listener address, or "" when disabled.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates a server and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("init attendance server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve attendance: %w", err)
	}
	return nil
}

// ListenAndServe runs the transports until the context ends or one of them
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("attendance server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 2)
	s.logger.Info("attendance http listening", "addr", s.HTTPAddr())
	go func() {
		err := s.httpServer.Serve(s.httpListener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("serve http: %w", err)
		}
		serveErr <- err
	}()
	if s.grpcServer != nil {
		s.logger.Info("attendance grpc health listening", "addr", s.GRPCAddr())
		go func() {
			err := s.grpcServer.Serve(s.grpcListener)
			if errors.Is(err, grpc.ErrServerStopped) {
				err = nil
			}
			if err != nil {
				err = fmt.Errorf("serve gRPC: %w", err)
			}
			serveErr <- err
		}()
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-serveErr:
		shutdownErr := s.shutdown()
		if err != nil {
			return err
		}
		return shutdownErr
	}
}

func (s *Server) shutdown() error {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases listeners and storage.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close attendance store", "error", err)
		}
		s.store = nil
	}
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attendance sqlite store: %w", err)
	}
	return store, nil
}
