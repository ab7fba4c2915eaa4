// Package server wires the rendezvous runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/duet.space/internal/platform/config"
	platformgrpc "github.com/louisbranch/duet.space/internal/platform/grpc"
	"github.com/louisbranch/duet.space/internal/platform/timeouts"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/api/rest"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/service"
	rendezvoussqlite "github.com/louisbranch/duet.space/internal/services/rendezvous/storage/sqlite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

const serviceName = "rendezvous"

type serverEnv struct {
	DBPath         string        `env:"DUET_SPACE_RENDEZVOUS_DB_PATH"`
	DecisionWindow time.Duration `env:"DUET_SPACE_RENDEZVOUS_DECISION_WINDOW"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "rendezvous.db")
	}
	return cfg
}

// Server hosts the rendezvous HTTP API, its health endpoint, and the
// storage lifecycle.
type Server struct {
	httpListener   net.Listener
	healthListener net.Listener
	httpServer     *http.Server
	grpcServer     *grpc.Server
	health         *health.Server
	store          *rendezvoussqlite.Store
}

// New creates a configured rendezvous server listening on the provided ports.
func New(httpPort, healthPort int) (*Server, error) {
	return NewWithAddrs(fmt.Sprintf(":%d", httpPort), fmt.Sprintf(":%d", healthPort))
}

// NewWithAddrs creates a configured rendezvous server for the provided
// addresses. The health address may be empty to skip the gRPC health
// endpoint.
func NewWithAddrs(httpAddr, healthAddr string) (*Server, error) {
	grants, err := rest.LoadPairGrantConfigFromEnv(time.Now)
	if err != nil {
		return nil, fmt.Errorf("load pair grant config: %w", err)
	}

	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}

	srvEnv := loadServerEnv()
	store, err := openRendezvousStore(srvEnv.DBPath)
	if err != nil {
		_ = httpListener.Close()
		return nil, err
	}

	svc := service.NewWithConfig(service.Stores{
		Session:   store,
		Outcome:   store,
		Telemetry: store,
	}, service.Config{DecisionWindow: srvEnv.DecisionWindow})
	router := rest.Router(rest.NewHandler(svc), grants, serviceName)
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	server := &Server{
		httpListener: httpListener,
		httpServer:   httpServer,
		store:        store,
	}

	if strings.TrimSpace(healthAddr) != "" {
		healthListener, err := net.Listen("tcp", healthAddr)
		if err != nil {
			server.Close()
			return nil, fmt.Errorf("listen on %s: %w", healthAddr, err)
		}
		grpcServer, healthServer := platformgrpc.NewHealthServer(serviceName)
		server.healthListener = healthListener
		server.grpcServer = grpcServer
		server.health = healthServer
	}

	return server, nil
}

// Addr returns the HTTP listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// HealthAddr returns the gRPC health listener address, if configured.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Run creates and serves a rendezvous server until context cancellation.
func Run(ctx context.Context, httpPort, healthPort int) error {
	server, err := New(httpPort, healthPort)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP and health servers until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("rendezvous server listening at %v", s.httpListener.Addr())
	serveErr := make(chan error, 2)
	go func() {
		serveErr <- s.httpServer.Serve(s.httpListener)
	}()
	if s.grpcServer != nil {
		log.Printf("rendezvous health listening at %v", s.healthListener.Addr())
		go func() {
			serveErr <- s.grpcServer.Serve(s.healthListener)
		}()
	}

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if s.grpcServer != nil {
			s.grpcServer.GracefulStop()
		}
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// Close releases rendezvous server resources.
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
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.healthListener != nil {
		_ = s.healthListener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close rendezvous store: %v", err)
		}
	}
}

func openRendezvousStore(path string) (*rendezvoussqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := rendezvoussqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rendezvous sqlite store: %w", err)
	}
	return store, nil
}
