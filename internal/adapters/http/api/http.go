// Package api exposes the sync, verdict and history operations over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/vitalsync/internal/adapters/http/swagger"
	service "github.com/okian/vitalsync/internal/app"
	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/internal/domain/scoring"
	"github.com/okian/vitalsync/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	EnqueueSync(ctx context.Context, userID string, fallbackDays int, reason string) (string, error)
	SyncUser(ctx context.Context, userID string, fallbackDays int) (service.SyncReport, error)
	Anomaly(ctx context.Context, userID, date string) (scoring.Verdict, error)
	ModelStatus(ctx context.Context, userID string) (service.ModelStatus, error)
	Train(ctx context.Context, userID string) (model.ModelMetadata, error)
	History(ctx context.Context, userID string, kinds []model.MetricKind, from, to time.Time) (service.History, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	usersHandler  *UsersHandler
	log           logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*serverOptions)

type serverOptions struct {
	checks map[string]Pinger
	loc    *time.Location
	now    func() time.Time
}

// WithHealthCheck adds a named dependency to /healthz.
func WithHealthCheck(name string, p Pinger) Option {
	return func(o *serverOptions) {
		if p != nil {
			o.checks[name] = p
		}
	}
}

// WithLocation sets the zone used to parse bare dates in range queries.
func WithLocation(loc *time.Location) Option {
	return func(o *serverOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithClock overrides the time source for default ranges.
func WithClock(now func() time.Time) Option {
	return func(o *serverOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := &serverOptions{checks: map[string]Pinger{}, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &Server{
		healthHandler: NewHealthHandler(o.checks),
		statsHandler:  NewStatsHandler(deps),
		usersHandler:  NewUsersHandler(deps, o.loc, o.now),
		log:           logger.Get().Named("http"),
	}
}

// usersPrefix roots the per-user routes. They are registered on the root
// router so a wrong method yields 405 instead of a subrouter 404.
const usersPrefix = "/v1/users/{id}"

// Register attaches all HTTP routes to r.
func (s *Server) Register(r *mux.Router) {
	r.Use(MetricsMiddleware, LoggingMiddleware(s.log))

	r.HandleFunc("/healthz", s.healthHandler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.statsHandler.HandleStats).Methods(http.MethodGet)
	r.Handle("/metrics", MetricsHandler()).Methods(http.MethodGet)
	swagger.Register(r)

	r.HandleFunc(usersPrefix+"/sync", s.usersHandler.HandleSync).Methods(http.MethodPost)
	r.HandleFunc(usersPrefix+"/anomaly", s.usersHandler.HandleAnomaly).Methods(http.MethodGet)
	r.HandleFunc(usersPrefix+"/model", s.usersHandler.HandleModelStatus).Methods(http.MethodGet)
	r.HandleFunc(usersPrefix+"/model/train", s.usersHandler.HandleTrain).Methods(http.MethodPost)
	r.HandleFunc(usersPrefix+"/readings", s.usersHandler.HandleReadings).Methods(http.MethodGet)
}

// Handler returns a router with every route registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)
	return r
}
