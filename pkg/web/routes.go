// Package web exposes the package index over HTTP: authenticated JSON
// mutations plus the read-only TOML surface served to pahkat clients.
package web

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/divvun/pahkat-reposrv/pkg/index"
)

// ServerParams describes the request-independent state of the server.
type ServerParams struct {
	// APIToken is the bearer token accepted for mutations across the
	// full configured repo set.
	APIToken string
}

// Server holds the handlers for the HTTP surface.
type Server struct {
	engine *index.Engine
	params ServerParams
	fs     afero.Afero
	l      *zap.Logger
}

// Option is a functor to build a server with some options
type Option func(*Server)

// Logger provides a logger to the server
func Logger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.l = l
		}
	}
}

// Filesystem overrides the filesystem the read-only TOML files are
// served from (the OS filesystem by default)
func Filesystem(fs afero.Fs) Option {
	return func(s *Server) {
		s.fs = afero.Afero{Fs: fs}
	}
}

// NewServer creates the HTTP server state over a mutation engine.
func NewServer(engine *index.Engine, params ServerParams, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		params: params,
		fs:     afero.Afero{Fs: afero.NewOsFs()},
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// InitRouter wires the HTTP surface onto a chi router.
func InitRouter(srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(srv.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/status", srv.HandleStatus())

	r.Route("/{repoID}", func(r chi.Router) {
		r.Get("/index.toml", srv.HandleRepoIndex())
		r.Get("/strings/{lang}", srv.HandleStrings())
		r.Get("/download/{packageID}", srv.HandleDownload())
		r.Get("/packages/{packageID}/index.toml", srv.HandlePackageDescriptor())

		r.Group(func(r chi.Router) {
			r.Use(srv.requireBearerToken)
			r.Post("/packages/{packageID}", srv.HandleCreatePackage())
			r.Patch("/packages/{packageID}", srv.HandleUpdatePackage())
		})
	})

	return r
}

// requireBearerToken rejects mutation requests whose Authorization
// header does not carry the configured token.
func (s *Server) requireBearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.params.APIToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

// logRequests emits one structured record per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.l.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
