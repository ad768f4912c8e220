// Package enqueue turns reservation events into queued outbox rows.
package enqueue

import (
	"context"
	"time"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/common/metrics"
	"reservations-api/internal/models"
	"reservations-api/internal/outbox/store"
	"reservations-api/internal/outbox/template"
)

// Inserter is the slice of the outbox store the enqueue service writes to.
type Inserter interface {
	Insert(ctx context.Context, p store.InsertParams) (*models.Notification, error)
}

type Service struct {
	store       Inserter
	logger      logger.Logger
	maxAttempts int
	providers   map[models.Channel]string
}

// ProviderNames maps each channel to the provider label recorded on rows it
// enqueues. The label reflects the configured mode, not a delivery promise.
type ProviderNames map[models.Channel]string

func NewService(st Inserter, log logger.Logger, maxAttempts int, providers ProviderNames) *Service {
	return &Service{
		store:       st,
		logger:      log.WithFields(map[string]interface{}{"component": "outbox-enqueue"}),
		maxAttempts: maxAttempts,
		providers:   providers,
	}
}

// Request describes one enqueue call: a reservation event fanned out over a
// set of channels.
type Request struct {
	Reservation  *models.Reservation
	TargetStatus string   // reservation status the message announces
	Note         string   // optional operator note appended to the body
	Channels     []string // raw channel names; empty slice is an error
	Trigger      string   // audit: reservation_created, status_changed, manual
	UpdatedBy    string   // audit: admin user or "system"
}

// Result reports what one enqueue call produced.
type Result struct {
	Queued        int                    `json:"queued"`
	Skipped       []string               `json:"skipped,omitempty"`
	Notifications []*models.Notification `json:"notifications"`
}

// Enqueue validates the channel set, renders one message per channel and
// inserts queued rows. Channels whose recipient is missing on the
// reservation are skipped silently; an invalid channel name fails the whole
// call before any row is written.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Result, error) {
	if len(req.Channels) == 0 {
		return nil, apperrors.NewEmptyNotificationChannelsError()
	}

	channels := make([]models.Channel, 0, len(req.Channels))
	for _, raw := range req.Channels {
		ch, err := models.ParseChannel(raw)
		if err != nil {
			return nil, apperrors.NewInvalidNotificationChannelError(raw)
		}
		channels = append(channels, ch)
	}

	rendered := template.Build(req.Reservation, req.TargetStatus, req.Note)

	result := &Result{Notifications: []*models.Notification{}}
	for _, ch := range channels {
		recipient := req.Reservation.RecipientFor(ch)
		if recipient == "" {
			s.logger.Info("skipping channel without recipient", map[string]interface{}{
				"reservationId": req.Reservation.ID,
				"channel":       string(ch),
			})
			result.Skipped = append(result.Skipped, string(ch))
			continue
		}

		msg := rendered.ForChannel(ch)
		n, err := s.store.Insert(ctx, store.InsertParams{
			ReservationID: req.Reservation.ID,
			Channel:       ch,
			Recipient:     recipient,
			Subject:       msg.Subject,
			Body:          msg.Body,
			Provider:      s.providers[ch],
			MaxAttempts:   s.maxAttempts,
			Metadata:      s.auditMetadata(req),
		})
		if err != nil {
			return nil, err
		}

		metrics.NotificationsEnqueued.WithLabelValues(string(ch), req.Trigger).Inc()
		result.Queued++
		result.Notifications = append(result.Notifications, n)
	}

	s.logger.Info("notifications enqueued", map[string]interface{}{
		"reservationId": req.Reservation.ID,
		"queued":        result.Queued,
		"skipped":       len(result.Skipped),
		"trigger":       req.Trigger,
	})
	return result, nil
}

func (s *Service) auditMetadata(req Request) map[string]string {
	m := map[string]string{
		"trigger":       req.Trigger,
		"target_status": req.TargetStatus,
		"enqueued_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if req.Note != "" {
		m["note"] = req.Note
	}
	if req.UpdatedBy != "" {
		m["updated_by"] = req.UpdatedBy
	}
	return m
}
