// Package api exposes the public intake endpoint and the internal admin API
// over chi.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reservations-api/internal/common/config"
	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
	"reservations-api/internal/outbox/dispatch"
	"reservations-api/internal/outbox/enqueue"
	"reservations-api/internal/outbox/store"
	"reservations-api/internal/reservations"
)

// ReservationStore is the slice of the reservation store the handlers use.
type ReservationStore interface {
	Insert(ctx context.Context, r *models.Reservation) (*models.Reservation, error)
	GetByID(ctx context.Context, id int64) (*models.Reservation, error)
	List(ctx context.Context, f reservations.ListFilter) ([]*models.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*models.Reservation, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
}

// NotificationStore is the slice of the outbox store the handlers use.
type NotificationStore interface {
	List(ctx context.Context, f store.ListFilter) ([]*models.Notification, error)
	Counts(ctx context.Context, now time.Time) (store.QueueCounts, error)
}

// Enqueuer fans a reservation event out into queued notifications.
type Enqueuer interface {
	Enqueue(ctx context.Context, req enqueue.Request) (*enqueue.Result, error)
}

// Dispatcher drains the outbox.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Summary, error)
	Retry(ctx context.Context, id int64, dispatchNow bool) (*models.Notification, *dispatch.Summary, error)
}

// Cache is the slice of the Redis client the metrics summary uses.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Server struct {
	cfg        *config.Config
	logger     logger.Logger
	responder  *apperrors.HTTPResponder
	resStore   ReservationStore
	outbox     NotificationStore
	enqueuer   Enqueuer
	dispatcher Dispatcher
	cache      Cache
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	resStore ReservationStore,
	outbox NotificationStore,
	enqueuer Enqueuer,
	dispatcher Dispatcher,
	cache Cache,
) *Server {
	apiLog := log.WithFields(map[string]interface{}{"component": "api"})
	return &Server{
		cfg:        cfg,
		logger:     apiLog,
		responder:  apperrors.NewHTTPResponder(apiLog),
		resStore:   resStore,
		outbox:     outbox,
		enqueuer:   enqueuer,
		dispatcher: dispatcher,
		cache:      cache,
	}
}

// Router builds the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/reservations", s.handleCreateReservation)

	r.Route("/api/internal", func(r chi.Router) {
		r.Use(s.requireAdminToken)

		r.Get("/reservations", s.handleListReservations)
		r.Patch("/reservations/{id}/status", s.handleUpdateReservationStatus)
		r.Post("/reservations/{id}/notify", s.handleNotifyReservation)

		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/dispatch", s.handleDispatch)
		r.Post("/notifications/{id}/retry", s.handleRetry)

		r.Get("/metrics/summary", s.handleMetricsSummary)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"service": s.cfg.App.Name,
	})
}
