// Package dispatch drains the notification outbox: it selects eligible
// queued rows, attempts delivery sequentially and applies the
// sent/requeued/failed state machine per row.
package dispatch

import (
	"context"
	"time"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/common/metrics"
	"reservations-api/internal/models"
	"reservations-api/internal/outbox/sender"
	"reservations-api/internal/outbox/store"
)

// Store is the slice of the outbox store the engine drives.
type Store interface {
	SelectForDispatch(ctx context.Context, f store.DispatchFilter, now time.Time) ([]*models.Notification, error)
	MarkSent(ctx context.Context, id int64, attempts int, provider, providerMessageID string, sentAt time.Time) error
	MarkRequeued(ctx context.Context, id int64, attempts int, provider, lastError string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id int64, attempts int, provider, lastError string) error
	ResetForRetry(ctx context.Context, id int64) (*models.Notification, error)
}

// Senders resolves one sender per channel.
type Senders interface {
	For(ch models.Channel) (sender.Sender, bool)
}

type Engine struct {
	store   Store
	senders Senders
	logger  logger.Logger
	now     func() time.Time
}

func NewEngine(st Store, senders Senders, log logger.Logger) *Engine {
	return &Engine{
		store:   st,
		senders: senders,
		logger:  log.WithFields(map[string]interface{}{"component": "outbox-dispatch"}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Request narrows one dispatch batch.
type Request struct {
	IDs           []int64
	Channel       models.Channel
	ReservationID int64
	Force         bool
	Limit         int
}

// Summary reports what one batch did. Selected is always the sum of the
// other three counters.
type Summary struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Requeued int `json:"requeued"`
}

// Dispatch runs one batch. Send failures never fail the batch; only storage
// errors propagate, and the summary then covers the rows processed before
// the error.
func (e *Engine) Dispatch(ctx context.Context, req Request) (Summary, error) {
	started := e.now()
	defer func() {
		metrics.DispatchBatchDuration.Observe(time.Since(started).Seconds())
	}()

	rows, err := e.store.SelectForDispatch(ctx, store.DispatchFilter{
		IDs:           req.IDs,
		Channel:       req.Channel,
		ReservationID: req.ReservationID,
		Force:         req.Force,
		Limit:         req.Limit,
	}, started)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Selected: len(rows)}
	for _, n := range rows {
		outcome, err := e.dispatchOne(ctx, n)
		if err != nil {
			return summary, err
		}
		switch outcome {
		case models.NotificationStatusSent:
			summary.Sent++
		case models.NotificationStatusFailed:
			summary.Failed++
		default:
			summary.Requeued++
		}
	}

	e.logger.Info("dispatch batch complete", map[string]interface{}{
		"selected": summary.Selected,
		"sent":     summary.Sent,
		"failed":   summary.Failed,
		"requeued": summary.Requeued,
	})
	return summary, nil
}

// dispatchOne attempts one row and returns the status it ended in. The
// returned error is a storage error only; send failures are absorbed into
// the row's state.
func (e *Engine) dispatchOne(ctx context.Context, n *models.Notification) (string, error) {
	attemptNumber := n.Attempts + 1

	snd, ok := e.senders.For(n.Channel)
	if !ok {
		err := apperrors.NewInvalidNotificationChannelError(string(n.Channel))
		if markErr := e.store.MarkFailed(ctx, n.ID, attemptNumber, n.Provider, err.Error()); markErr != nil {
			return "", markErr
		}
		metrics.DispatchAttempts.WithLabelValues(string(n.Channel), "failed").Inc()
		return models.NotificationStatusFailed, nil
	}

	sendStart := e.now()
	outcome := snd.Send(ctx, n)
	metrics.SendDuration.WithLabelValues(string(n.Channel), snd.Provider()).
		Observe(time.Since(sendStart).Seconds())

	if outcome.OK {
		if err := e.store.MarkSent(ctx, n.ID, attemptNumber, outcome.Provider, outcome.MessageID, e.now()); err != nil {
			return "", err
		}
		metrics.DispatchAttempts.WithLabelValues(string(n.Channel), "sent").Inc()
		e.logger.Info("notification sent", map[string]interface{}{
			"notificationId":    n.ID,
			"channel":           string(n.Channel),
			"provider":          outcome.Provider,
			"providerMessageId": outcome.MessageID,
			"attempt":           attemptNumber,
		})
		return models.NotificationStatusSent, nil
	}

	lastError := "send failed"
	if outcome.Err != nil {
		lastError = outcome.Err.Error()
	}

	if outcome.Retryable && attemptNumber < n.MaxAttempts {
		nextAt := e.now().Add(Backoff(attemptNumber))
		if err := e.store.MarkRequeued(ctx, n.ID, attemptNumber, outcome.Provider, lastError, nextAt); err != nil {
			return "", err
		}
		metrics.DispatchAttempts.WithLabelValues(string(n.Channel), "requeued").Inc()
		e.logger.Warn("notification requeued", map[string]interface{}{
			"notificationId": n.ID,
			"channel":        string(n.Channel),
			"attempt":        attemptNumber,
			"maxAttempts":    n.MaxAttempts,
			"nextAttemptAt":  nextAt,
			"error":          lastError,
		})
		return models.NotificationStatusQueued, nil
	}

	if err := e.store.MarkFailed(ctx, n.ID, attemptNumber, outcome.Provider, lastError); err != nil {
		return "", err
	}
	metrics.DispatchAttempts.WithLabelValues(string(n.Channel), "failed").Inc()
	e.logger.Error("notification failed", map[string]interface{}{
		"notificationId": n.ID,
		"channel":        string(n.Channel),
		"attempt":        attemptNumber,
		"retryable":      outcome.Retryable,
		"error":          lastError,
	})
	return models.NotificationStatusFailed, nil
}

// Retry rewinds a failed notification to queued and, when dispatchNow is
// set, immediately runs a forced single-row batch for it.
func (e *Engine) Retry(ctx context.Context, id int64, dispatchNow bool) (*models.Notification, *Summary, error) {
	n, err := e.store.ResetForRetry(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("notification reset for retry", map[string]interface{}{
		"notificationId": id,
		"dispatchNow":    dispatchNow,
	})

	if !dispatchNow {
		return n, nil, nil
	}

	summary, err := e.Dispatch(ctx, Request{IDs: []int64{id}, Force: true, Limit: 1})
	if err != nil {
		return n, nil, err
	}
	return n, &summary, nil
}
