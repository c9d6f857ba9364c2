// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"

	"github.com/pgtest/injection-points/injection/api/handler"
)

// PathPrefix is where the API is mounted.
const PathPrefix = "/test"

// ShutdownTimeout bounds how long Serve waits for in-flight requests once
// its context is done. Requests parked on a wait point are cut off after it.
const ShutdownTimeout = 2 * time.Second

// Server is an injection points API server
type Server struct {
	host     string
	port     int
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new injection points API server.
//
// Listen() and Serve() are separate so that the address is known, and
// connections are accepted, before anything else is started.
//
// When port is 0, OS will dynamically allocate the listening port.
func NewServer(host string, port int, module handler.InjectionPoints, points handler.PointLister, activity handler.ActivityReporter) *Server {
	router := chi.NewRouter()
	router.Mount(PathPrefix, NewRouter(module, points, activity))

	return &Server{
		host:   host,
		port:   port,
		server: &http.Server{Handler: router},
	}
}

// Listen on port
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.listener = ln
	if s.port == 0 {
		s.port = ln.Addr().(*net.TCPAddr).Port
		log.WithField("port", s.port).Info("Listening port was dynamically allocated")
	}

	log.Infof("Injection points API listening on %s", s.Addr())
	return nil
}

// Serve requests until ctx is done or the server fails.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()

	select {
	case err := <-s.serveAsync():
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Requests still in flight at shutdown, closing connections")
		}
		return ctx.Err()
	}
}

func (s *Server) serveAsync() chan error {
	errors := make(chan error, 1)
	go func() {
		errors <- s.server.Serve(s.listener)
	}()

	return errors
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, fmt.Sprint(s.port))
}

// URL is full server url for specified endpoint
func (s *Server) URL(endpoint string) string {
	return fmt.Sprintf("http://%s%s%s", s.Addr(), PathPrefix, endpoint)
}

// Close forcefully closes listeners & connections
func (s *Server) Close() error {
	err := s.server.Close()
	if err == nil {
		log.Info("Injection points API server closed")
	}
	return err
}

// Shutdown gracefully shuts down server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
