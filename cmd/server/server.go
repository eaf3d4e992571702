package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	appkafka "example.com/tinyfeed/internal/broker"
	"example.com/tinyfeed/internal/feed"
	config "example.com/tinyfeed/internal/init"
	"example.com/tinyfeed/internal/logger"
	"example.com/tinyfeed/internal/middleware"
	"example.com/tinyfeed/internal/seed"
	"example.com/tinyfeed/internal/store"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

//go:embed templates/index.html
var templates embed.FS

type Server struct {
	feed          *feed.Service
	seeder        *seed.Seeder
	sessions      *middleware.Sessions
	seedWriter    appkafka.KafkaWriter // nil when async seeding is disabled
	seedToken     string
	timelineLimit int
}

var logg = logger.New()

// New wires the HTTP handlers to st. writer may be nil.
func New(st store.Store, writer appkafka.KafkaWriter, cfg *config.Config) *Server {
	limit := cfg.TimelineLimit
	if limit < 1 {
		limit = feed.DefaultTimelineLimit
	}
	return &Server{
		feed:          feed.NewService(st),
		seeder:        seed.New(st, nil),
		sessions:      middleware.NewSessions(cfg.SessionSecret, cfg.TLSCert != "" && cfg.TLSKey != ""),
		seedWriter:    writer,
		seedToken:     cfg.SeedToken,
		timelineLimit: clampLimit(limit),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(s.sessions.Load())
	r.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/index.html")))

	r.GET("/", s.indexHandler)
	r.GET("/healthz", s.healthHandler)
	r.POST("/login", s.loginHandler)
	r.GET("/logout", s.logoutHandler)

	// Form routes redirect to the index page without a session
	authed := r.Group("/", middleware.RequireUser())
	authed.POST("/post", s.postHandler)
	authed.POST("/follow", s.followHandler)

	r.GET("/api/timeline", s.timelineHandler)
	r.POST("/admin/seed", s.seedHandler)
	return r
}

// Run starts the HTTP(S) server and shuts it down gracefully when ctx is done.
func Run(ctx context.Context, st store.Store, writer appkafka.KafkaWriter, cfg *config.Config) error {
	gin.SetMode(gin.ReleaseMode)
	s := New(st, writer, cfg)

	if s.seedToken == "" {
		logg.Warn("server", "SEED_TOKEN is empty: /admin/seed is open to anyone")
	}
	if s.seedWriter == nil {
		logg.Info("server", "KAFKA_BROKER not set, async seeding disabled")
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			logg.Info("server", "Starting HTTPS server on "+cfg.ServerAddr)
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			logg.Info("server", "Starting HTTP server on "+cfg.ServerAddr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server", "Server stopped unexpectedly", err)
			errCh <- err
		}
	}()

	// --- Graceful shutdown ---
	select {
	case <-ctx.Done():
		logg.Info("server", "Shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
		return err
	}
	logg.Info("server", "Server stopped gracefully")
	return nil
}
