// Package httpd runs the HTTP listener with graceful shutdown. TLS and
// other schemes are left to the reverse proxy in front of the service.
package httpd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-openapi/swag"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// Server is the interface a server implements
type Server interface {
	GetHandler() http.Handler
	HTTPListener() (net.Listener, error)
	Listen() error
	Serve() error
	Shutdown() error
}

// Option for the server
type Option func(*defaultServer)

// HandlesRequestsWith handles the http requests to the server
func HandlesRequestsWith(h http.Handler) Option {
	return func(s *defaultServer) {
		s.handler = h
	}
}

// LogsWith provides a logger to the server
func LogsWith(l *zap.Logger) Option {
	return func(s *defaultServer) {
		if l != nil {
			s.l = l
		}
	}
}

// ListensOn sets the host and port to bind
func ListensOn(host string, port int) Option {
	return func(s *defaultServer) {
		s.Host = host
		s.Port = port
	}
}

// WithListenLimit limits the number of outstanding requests
func WithListenLimit(limit int) Option {
	return func(s *defaultServer) {
		s.ListenLimit = limit
	}
}

// OnShutdown runs the provided functions on shutdown
func OnShutdown(handlers ...func()) Option {
	return func(s *defaultServer) {
		if len(handlers) == 0 {
			return
		}
		s.onShutdown = func() {
			for _, run := range handlers {
				run()
			}
		}
	}
}

// New creates a new server but does not start listening
func New(opts ...Option) Server {
	s := new(defaultServer)

	s.Host = "localhost"
	s.KeepAlive = 3 * time.Minute
	s.ReadTimeout = 30 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.CleanupTimeout = 10 * time.Second
	s.shutdown = make(chan struct{})
	s.interrupt = make(chan os.Signal, 1)
	s.l = zap.NewNop()
	s.onShutdown = func() {}

	for _, apply := range opts {
		apply(s)
	}
	return s
}

type defaultServer struct {
	Host           string
	Port           int
	ListenLimit    int
	KeepAlive      time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CleanupTimeout time.Duration

	httpServerL  net.Listener
	handler      http.Handler
	hasListeners bool
	shutdown     chan struct{}
	shuttingDown int32
	interrupted  bool
	interrupt    chan os.Signal
	l            *zap.Logger
	onShutdown   func()
}

// Serve the api
func (s *defaultServer) Serve() error {
	if !s.hasListeners {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	once := new(sync.Once)
	signal.Notify(s.interrupt, syscall.SIGINT, syscall.SIGTERM)
	go handleInterrupt(once, s)

	httpServer := new(http.Server)
	httpServer.ReadTimeout = s.ReadTimeout
	httpServer.WriteTimeout = s.WriteTimeout
	httpServer.SetKeepAlivesEnabled(int64(s.KeepAlive) > 0)
	if int64(s.CleanupTimeout) > 0 {
		httpServer.IdleTimeout = s.CleanupTimeout
	}
	httpServer.Handler = s.handler

	listener := s.httpServerL
	if s.ListenLimit > 0 {
		listener = netutil.LimitListener(listener, s.ListenLimit)
	}

	wg.Add(2)
	go s.handleShutdown(&wg, httpServer)

	s.l.Info("serving", zap.String("addr", "http://"+listener.Addr().String()))
	go func(l net.Listener) {
		defer wg.Done()
		if err := httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
			s.l.Fatal("server failed", zap.Error(err))
		}
		s.l.Info("stopped serving", zap.String("addr", l.Addr().String()))
	}(listener)

	wg.Wait()
	return nil
}

// Listen creates the listener for the server
func (s *defaultServer) Listen() error {
	if s.hasListeners { // already done this
		return nil
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
	if err != nil {
		return err
	}

	h, p, err := swag.SplitHostPort(listener.Addr().String())
	if err != nil {
		return err
	}
	s.Host = h
	s.Port = p
	s.httpServerL = listener
	s.hasListeners = true
	return nil
}

// Shutdown server and clean up resources
func (s *defaultServer) Shutdown() error {
	if atomic.CompareAndSwapInt32(&s.shuttingDown, 0, 1) {
		close(s.shutdown)
	}
	return nil
}

func (s *defaultServer) handleShutdown(wg *sync.WaitGroup, server *http.Server) {
	// wg.Done must occur last, after onShutdown
	defer wg.Done()

	<-s.shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		// Error from closing listeners, or context timeout:
		s.l.Warn("HTTP server shutdown", zap.Error(err))
	} else {
		s.onShutdown()
	}
}

// GetHandler returns a handler useful for testing
func (s *defaultServer) GetHandler() http.Handler {
	return s.handler
}

// HTTPListener returns the http listener
func (s *defaultServer) HTTPListener() (net.Listener, error) {
	if !s.hasListeners {
		if err := s.Listen(); err != nil {
			return nil, err
		}
	}
	return s.httpServerL, nil
}

func handleInterrupt(once *sync.Once, s *defaultServer) {
	once.Do(func() {
		<-s.interrupt
		s.l.Info("shutting down...")
		s.interrupted = true
		if err := s.Shutdown(); err != nil {
			s.l.Warn("error during server shutdown", zap.Error(err))
		}
		// further signals go back to the default handler
		signal.Stop(s.interrupt)
	})
}
