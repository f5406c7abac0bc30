// Package server exposes sketch versions over HTTP: anonymous token
// issuance, version CRUD, PDF and gallery exports and a websocket change
// feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sketchboard/internal/auth"
	"sketchboard/internal/discovery"
	"sketchboard/internal/store"
)

const (
	DefaultBodyLimit = 10 << 20
	shutdownTimeout  = 10 * time.Second
)

type Options struct {
	Addr        string
	BodyLimit   int64
	CORSOrigins []string
	// Advertise announces the server over mDNS under Instance.
	Advertise bool
	Instance  string
	Logger    *slog.Logger
}

type Server struct {
	opts     Options
	versions *store.Service
	auth     *auth.Service
	hub      *Hub
	log      *slog.Logger
	router   chi.Router
	now      func() time.Time
}

// New builds the router. hub may be nil, in which case the event feed is
// not mounted.
func New(opts Options, versions *store.Service, authSvc *auth.Service, hub *Hub) *Server {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"http://localhost:3000"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		opts:     opts,
		versions: versions,
		auth:     authSvc,
		hub:      hub,
		log:      opts.Logger.With(slog.String("component", "http")),
		now:      time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestSize(s.opts.BodyLimit))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/generate", s.handleGenerateToken)
		r.Get("/auth/validate", s.handleValidateToken)

		r.Route("/sketches", func(r chi.Router) {
			r.Use(s.auth.Middleware(writeError))
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Get("/gallery.png", s.handleGallery)
			if s.hub != nil {
				r.Get("/events", s.handleEvents)
			}
			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
			r.Get("/{id}/pdf", s.handlePDF)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.opts.Advertise {
		if _, port, err := net.SplitHostPort(ln.Addr().String()); err == nil {
			p, _ := strconv.Atoi(port)
			adv, err := discovery.Advertise(s.opts.Instance, p)
			if err != nil {
				s.log.Warn("mdns advertise failed", slog.Any("err", err))
			} else {
				s.log.Info("advertising over mdns", slog.String("service", discovery.ServiceType), slog.Int("port", p))
				defer adv.Shutdown()
			}
		}
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
