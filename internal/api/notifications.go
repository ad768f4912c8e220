package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"reservations-api/internal/common/config"
	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/metrics"
	"reservations-api/internal/models"
	"reservations-api/internal/outbox/dispatch"
	"reservations-api/internal/outbox/store"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	reservationID, _ := strconv.ParseInt(q.Get("reservation_id"), 10, 64)

	out, err := s.outbox.List(r.Context(), store.ListFilter{
		Status:        q.Get("status"),
		Channel:       models.Channel(q.Get("channel")),
		ReservationID: reservationID,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":            true,
		"notifications": out,
	})
}

type dispatchRequest struct {
	IDs           []int64 `json:"ids"`
	Channel       string  `json:"channel"`
	ReservationID int64   `json:"reservation_id"`
	Force         bool    `json:"force"`
	Limit         int     `json:"limit"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.responder.WriteError(w, r, apperrors.NewInvalidReservationPayloadError("body is not valid JSON"))
		return
	}

	channel := models.Channel("")
	if req.Channel != "" {
		parsed, err := models.ParseChannel(req.Channel)
		if err != nil {
			s.responder.WriteError(w, r, apperrors.NewInvalidNotificationChannelError(req.Channel))
			return
		}
		channel = parsed
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.Notifications.DefaultDispatchLimit
	}

	summary, err := s.dispatcher.Dispatch(r.Context(), dispatch.Request{
		IDs:           req.IDs,
		Channel:       channel,
		ReservationID: req.ReservationID,
		Force:         req.Force,
		Limit:         limit,
	})
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"summary": summary,
	})
}

type retryRequest struct {
	DispatchNow bool `json:"dispatch_now"`
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.responder.WriteError(w, r, apperrors.NewNotificationNotFoundError(0))
		return
	}

	var req retryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.responder.WriteError(w, r, apperrors.NewInvalidReservationPayloadError("body is not valid JSON"))
			return
		}
	}

	n, summary, err := s.dispatcher.Retry(r.Context(), id, req.DispatchNow)
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"ok":           true,
		"notification": n,
	}
	if summary != nil {
		response["summary"] = summary
	}
	writeJSON(w, http.StatusOK, response)
}

const metricsSummaryCacheKey = "reservations-api:metrics-summary"

type metricsSummary struct {
	Reservations  map[string]int    `json:"reservations"`
	Notifications store.QueueCounts `json:"notifications"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// handleMetricsSummary serves the admin dashboard counters, briefly cached
// in Redis so a busy dashboard does not hammer Postgres. A cache failure
// falls through to a fresh read.
func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	if cached, err := s.cache.Get(r.Context(), metricsSummaryCacheKey); err == nil && cached != "" {
		var summary metricsSummary
		if err := json.Unmarshal([]byte(cached), &summary); err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"ok":      true,
				"cached":  true,
				"summary": summary,
			})
			return
		}
	}

	resCounts, err := s.resStore.StatusCounts(r.Context())
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	queueCounts, err := s.outbox.Counts(r.Context(), time.Now().UTC())
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}
	metrics.QueueDepth.Set(float64(queueCounts.Queued))

	summary := metricsSummary{
		Reservations:  resCounts,
		Notifications: queueCounts,
		GeneratedAt:   time.Now().UTC(),
	}

	if payload, err := json.Marshal(summary); err == nil {
		ttl := config.GetDuration(s.cfg.Admin.MetricsCacheTTL * 1000)
		if err := s.cache.Set(r.Context(), metricsSummaryCacheKey, string(payload), ttl); err != nil {
			s.logger.Warn("metrics summary cache write failed", map[string]interface{}{
				"error": err,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"cached":  false,
		"summary": summary,
	})
}
