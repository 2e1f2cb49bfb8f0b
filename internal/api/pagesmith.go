package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/Papun1111/pagesmith/internal/config"
	"github.com/Papun1111/pagesmith/internal/database"
	"github.com/Papun1111/pagesmith/internal/ratelimit"
	"github.com/Papun1111/pagesmith/internal/server"
	"github.com/Papun1111/pagesmith/internal/stats"
)

const (
	metricRateLimitRejections = "RateLimitRejections"
	metricRateLimitFailOpens  = "RateLimitFailOpens"
)

type PagesmithApp struct {
	log             *log.Logger
	db              database.PagesmithRepository
	mux             *http.Server
	cs              *server.CollabServer
	resolver        *ratelimit.PlanResolver
	limiter         *ratelimit.Limiter
	stats           stats.StatsProvider
	signingKey      []byte
	allowedOrigins  []string
	generateShortId func() (string, error)
}

func NewPagesmithApp(mux *http.ServeMux, logger *log.Logger, cs *server.CollabServer, db database.PagesmithRepository,
	resolver *ratelimit.PlanResolver, limiter *ratelimit.Limiter, su stats.StatsProvider, cfg *config.Config) *PagesmithApp {
	s := &PagesmithApp{
		log:             logger,
		db:              db,
		cs:              cs,
		resolver:        resolver,
		limiter:         limiter,
		stats:           su,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	su.RegisterMetric(metricRateLimitRejections)
	su.RegisterMetric(metricRateLimitFailOpens)

	mux.HandleFunc("GET /api/healthz", s.healthCheck)
	mux.Handle("GET /api/account", s.authMiddleware(s.account))
	mux.Handle("POST /api/documents", s.authMiddleware(s.rateLimitMiddleware(s.createDocument)))
	mux.Handle("GET /api/documents", s.authMiddleware(s.rateLimitMiddleware(s.getDocuments)))
	mux.Handle("PUT /api/documents/content", s.authMiddleware(s.rateLimitMiddleware(s.updateDocumentContent)))
	mux.Handle("PUT /api/documents/permissions", s.authMiddleware(s.rateLimitMiddleware(s.updateDocumentPermissions)))
	mux.Handle("DELETE /api/documents", s.authMiddleware(s.rateLimitMiddleware(s.deleteDocument)))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *PagesmithApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *PagesmithApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
