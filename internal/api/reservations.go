package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/validation"
	"reservations-api/internal/models"
	"reservations-api/internal/outbox/dispatch"
	"reservations-api/internal/outbox/enqueue"
	"reservations-api/internal/reservations"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func stringField(payload map[string]interface{}, key string) string {
	v, _ := payload[key].(string)
	return v
}

// handleCreateReservation is the public intake endpoint. The raw payload is
// schema-validated before it is mapped onto the model, so unknown fields and
// out-of-range values are rejected with the full violation list.
func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.responder.WriteError(w, r, apperrors.NewInvalidReservationPayloadError("body is not valid JSON"))
		return
	}

	if err := validation.ValidateReservationPayload(payload); err != nil {
		s.responder.WriteError(w, r, apperrors.NewInvalidReservationPayloadError(err.Error()))
		return
	}

	guests, _ := payload["guests"].(float64)
	reservation := &models.Reservation{
		FullName:        stringField(payload, "full_name"),
		Phone:           stringField(payload, "phone"),
		Email:           stringField(payload, "email"),
		Location:        stringField(payload, "location"),
		ReservationDate: stringField(payload, "reservation_date"),
		ReservationTime: stringField(payload, "reservation_time"),
		Guests:          int(guests),
		Comments:        stringField(payload, "comments"),
		Source:          stringField(payload, "source"),
		UserAgent:       r.UserAgent(),
		ClientIP:        r.RemoteAddr,
	}

	saved, err := s.resStore.Insert(r.Context(), reservation)
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	result, err := s.enqueuer.Enqueue(r.Context(), enqueue.Request{
		Reservation:  saved,
		TargetStatus: saved.Status,
		Channels:     rawChannels(models.AllChannels),
		Trigger:      "reservation_created",
		UpdatedBy:    "system",
	})
	if err != nil {
		// The reservation is saved; a notification problem must not lose it.
		s.logger.Error("enqueue after intake failed", map[string]interface{}{
			"reservationId": saved.ID,
			"error":         err,
		})
		result = &enqueue.Result{}
	}

	if s.cfg.Notifications.AutoDispatchOnCreate && result.Queued > 0 {
		if _, err := s.dispatcher.Dispatch(r.Context(), dispatch.Request{
			ReservationID: saved.ID,
			Force:         true,
			Limit:         result.Queued,
		}); err != nil {
			s.logger.Error("auto dispatch after intake failed", map[string]interface{}{
				"reservationId": saved.ID,
				"error":         err,
			})
		}
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":          true,
		"reservation": saved,
		"queued":      result.Queued,
	})
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	out, err := s.resStore.List(r.Context(), reservations.ListFilter{
		Status:   q.Get("status"),
		Location: q.Get("location"),
		Date:     q.Get("date"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"reservations": out,
	})
}

type updateStatusRequest struct {
	Status               string   `json:"status"`
	Note                 string   `json:"note"`
	UpdatedBy            string   `json:"updated_by"`
	EnqueueNotifications *bool    `json:"enqueue_notifications"`
	NotificationChannels []string `json:"channels"`
	DispatchNow          *bool    `json:"dispatch_now"`
}

// handleUpdateReservationStatus transitions a reservation and, unless the
// caller opts out, fans the change out to the guest's channels.
func (s *Server) handleUpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.responder.WriteError(w, r, apperrors.NewReservationNotFoundError(0))
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.responder.WriteError(w, r, apperrors.NewInvalidReservationStatusError(""))
		return
	}

	updated, err := s.resStore.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	enqueueWanted := req.EnqueueNotifications == nil || *req.EnqueueNotifications
	response := map[string]interface{}{
		"ok":          true,
		"reservation": updated,
	}

	if enqueueWanted {
		channels := req.NotificationChannels
		if len(channels) == 0 {
			channels = rawChannels(models.AllChannels)
		}

		updatedBy := req.UpdatedBy
		if updatedBy == "" {
			updatedBy = "admin"
		}

		result, err := s.enqueuer.Enqueue(r.Context(), enqueue.Request{
			Reservation:  updated,
			TargetStatus: updated.Status,
			Note:         req.Note,
			Channels:     channels,
			Trigger:      "status_changed",
			UpdatedBy:    updatedBy,
		})
		if err != nil {
			s.responder.WriteError(w, r, err)
			return
		}
		response["queued"] = result.Queued

		dispatchNow := req.DispatchNow != nil && *req.DispatchNow ||
			req.DispatchNow == nil && s.cfg.Notifications.AutoDispatchOnStatusChange
		if dispatchNow && result.Queued > 0 {
			summary, err := s.dispatcher.Dispatch(r.Context(), dispatch.Request{
				ReservationID: updated.ID,
				Force:         true,
				Limit:         result.Queued,
			})
			if err != nil {
				s.responder.WriteError(w, r, err)
				return
			}
			response["summary"] = summary
		}
	}

	writeJSON(w, http.StatusOK, response)
}

type notifyRequest struct {
	Channels    []string `json:"channels"`
	Note        string   `json:"note"`
	DispatchNow bool     `json:"dispatch_now"`
	UpdatedBy   string   `json:"updated_by"`
}

// handleNotifyReservation enqueues messages for the reservation's current
// status on demand.
func (s *Server) handleNotifyReservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.responder.WriteError(w, r, apperrors.NewReservationNotFoundError(0))
		return
	}

	var req notifyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.responder.WriteError(w, r, apperrors.NewEmptyNotificationChannelsError())
			return
		}
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = rawChannels(models.AllChannels)
	}

	reservation, err := s.resStore.GetByID(r.Context(), id)
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	updatedBy := req.UpdatedBy
	if updatedBy == "" {
		updatedBy = "admin"
	}

	result, err := s.enqueuer.Enqueue(r.Context(), enqueue.Request{
		Reservation:  reservation,
		TargetStatus: reservation.Status,
		Note:         req.Note,
		Channels:     channels,
		Trigger:      "manual",
		UpdatedBy:    updatedBy,
	})
	if err != nil {
		s.responder.WriteError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"ok":            true,
		"queued":        result.Queued,
		"skipped":       result.Skipped,
		"notifications": result.Notifications,
	}

	if req.DispatchNow && result.Queued > 0 {
		summary, err := s.dispatcher.Dispatch(r.Context(), dispatch.Request{
			ReservationID: reservation.ID,
			Force:         true,
			Limit:         result.Queued,
		})
		if err != nil {
			s.responder.WriteError(w, r, err)
			return
		}
		response["summary"] = summary
	}

	writeJSON(w, http.StatusOK, response)
}

func rawChannels(channels []models.Channel) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = string(ch)
	}
	return out
}
