// Package store persists notification outbox rows in PostgreSQL.
//
// The store exposes exactly the operations the outbox needs: insert,
// filtered select-for-dispatch, per-row state updates and the manual retry
// reset. The metadata column is a write-only audit payload: it is written at
// insert and never scanned back, so nothing downstream can branch on it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
)

const selectColumns = `id, reservation_id, channel, recipient, subject, body, status,
	provider, provider_message_id, attempts, max_attempts, next_attempt_at,
	sent_at, last_error, created_at, updated_at`

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "outbox-store"}),
	}
}

// InsertParams describes one new outbox row. Status, attempts and
// next_attempt_at are fixed by the enqueue contract: queued, 0, now.
type InsertParams struct {
	ReservationID int64
	Channel       models.Channel
	Recipient     string
	Subject       string
	Body          string
	Provider      string
	MaxAttempts   int
	Metadata      map[string]string
}

// Insert creates a queued notification row and returns it.
func (s *Store) Insert(ctx context.Context, p InsertParams) (*models.Notification, error) {
	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		s.logger.Warn("failed to marshal notification metadata", map[string]interface{}{
			"error":         err,
			"reservationId": p.ReservationID,
		})
		metadataJSON = []byte("{}")
	}

	now := time.Now().UTC()

	var n models.Notification
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO reservation_notifications (
			reservation_id, channel, recipient, subject, body,
			status, provider, attempts, max_attempts, next_attempt_at,
			metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, $9, $9)
		RETURNING id, created_at, updated_at`,
		p.ReservationID,
		string(p.Channel),
		p.Recipient,
		p.Subject,
		p.Body,
		models.NotificationStatusQueued,
		p.Provider,
		p.MaxAttempts,
		now,
		metadataJSON,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("insert notification", err)
	}

	n.ReservationID = p.ReservationID
	n.Channel = p.Channel
	n.Recipient = p.Recipient
	n.Subject = p.Subject
	n.Body = p.Body
	n.Status = models.NotificationStatusQueued
	n.Provider = p.Provider
	n.MaxAttempts = p.MaxAttempts
	n.NextAttemptAt = now
	return &n, nil
}

// DispatchFilter narrows the set of queued rows eligible for one batch.
type DispatchFilter struct {
	IDs           []int64
	Channel       models.Channel // empty = any channel
	ReservationID int64          // 0 = any reservation
	Force         bool           // true ignores next_attempt_at
	Limit         int
}

// SelectForDispatch returns queued rows eligible at now, oldest first.
// Selection is not an atomic claim: racing batches may pick the same row,
// which the at-least-once contract tolerates.
func (s *Store) SelectForDispatch(ctx context.Context, f DispatchFilter, now time.Time) ([]*models.Notification, error) {
	where := []string{"status = $1"}
	args := []interface{}{models.NotificationStatusQueued}

	if !f.Force {
		args = append(args, now)
		where = append(where, fmt.Sprintf("next_attempt_at <= $%d", len(args)))
	}
	if len(f.IDs) > 0 {
		args = append(args, pq.Array(f.IDs))
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if f.Channel != "" {
		args = append(args, string(f.Channel))
		where = append(where, fmt.Sprintf("channel = $%d", len(args)))
	}
	if f.ReservationID != 0 {
		args = append(args, f.ReservationID)
		where = append(where, fmt.Sprintf("reservation_id = $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM reservation_notifications
		WHERE %s
		ORDER BY created_at ASC, id ASC
		LIMIT $%d`,
		selectColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("select for dispatch", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Status        string
	Channel       models.Channel
	ReservationID int64
	Limit         int
	Offset        int
}

// List returns notification rows for the admin panel, newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]*models.Notification, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Channel != "" {
		args = append(args, string(f.Channel))
		where = append(where, fmt.Sprintf("channel = $%d", len(args)))
	}
	if f.ReservationID != 0 {
		args = append(args, f.ReservationID)
		where = append(where, fmt.Sprintf("reservation_id = $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	limitIdx := len(args)
	args = append(args, f.Offset)

	query := fmt.Sprintf(`
		SELECT %s FROM reservation_notifications
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		selectColumns, strings.Join(where, " AND "), limitIdx, limitIdx+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list notifications", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetByID returns one row or a not-found error.
func (s *Store) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM reservation_notifications WHERE id = $1`, selectColumns), id)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotificationNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get notification", err)
	}
	return n, nil
}

// MarkSent records a successful delivery: terminal success.
func (s *Store) MarkSent(ctx context.Context, id int64, attempts int, provider, providerMessageID string, sentAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reservation_notifications
		SET status = $2, attempts = $3, provider = $4, provider_message_id = $5,
			sent_at = $6, last_error = '', updated_at = NOW()
		WHERE id = $1`,
		id, models.NotificationStatusSent, attempts, provider, providerMessageID, sentAt)
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("mark sent", err)
	}
	return nil
}

// MarkRequeued records a retryable failure with a future eligibility window.
func (s *Store) MarkRequeued(ctx context.Context, id int64, attempts int, provider, lastError string, nextAttemptAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reservation_notifications
		SET status = $2, attempts = $3, provider = $4, last_error = $5,
			next_attempt_at = $6, updated_at = NOW()
		WHERE id = $1`,
		id, models.NotificationStatusQueued, attempts, provider, lastError, nextAttemptAt)
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("mark requeued", err)
	}
	return nil
}

// MarkFailed records a terminal failure.
func (s *Store) MarkFailed(ctx context.Context, id int64, attempts int, provider, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reservation_notifications
		SET status = $2, attempts = $3, provider = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1`,
		id, models.NotificationStatusFailed, attempts, provider, lastError)
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("mark failed", err)
	}
	return nil
}

// ResetForRetry rewinds a failed row to queued with a clean slate. Rows in
// another status are rejected with a conflict error; unknown ids with
// not-found.
func (s *Store) ResetForRetry(ctx context.Context, id int64) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE reservation_notifications
		SET status = $2, attempts = 0, last_error = '', next_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING %s`, selectColumns),
		id, models.NotificationStatusQueued, models.NotificationStatusFailed)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		existing, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.NewNotificationNotRetryableError(id, existing.Status)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("reset for retry", err)
	}
	return n, nil
}

// QueueCounts summarizes outbox state for the admin metrics endpoint.
type QueueCounts struct {
	Queued          int `json:"queued"`
	ReadyToDispatch int `json:"ready_to_dispatch"`
	FailedLast24h   int `json:"failed_last_24h"`
}

// Counts returns queue depth numbers as of now.
func (s *Store) Counts(ctx context.Context, now time.Time) (QueueCounts, error) {
	var c QueueCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'queued'),
			COUNT(*) FILTER (WHERE status = 'queued' AND next_attempt_at <= $1),
			COUNT(*) FILTER (WHERE status = 'failed' AND updated_at >= $2)
		FROM reservation_notifications`,
		now, now.Add(-24*time.Hour)).Scan(&c.Queued, &c.ReadyToDispatch, &c.FailedLast24h)
	if err != nil {
		return QueueCounts{}, apperrors.NewDatabaseQueryFailedError("count notifications", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n       models.Notification
		channel string
		sentAt  sql.NullTime
	)

	err := row.Scan(
		&n.ID,
		&n.ReservationID,
		&channel,
		&n.Recipient,
		&n.Subject,
		&n.Body,
		&n.Status,
		&n.Provider,
		&n.ProviderMessageID,
		&n.Attempts,
		&n.MaxAttempts,
		&n.NextAttemptAt,
		&sentAt,
		&n.LastError,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Channel = models.Channel(channel)
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	return &n, nil
}

func scanNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	out := []*models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan notification row", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("iterate notification rows", err)
	}
	return out, nil
}
