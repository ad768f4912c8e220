// Package reservations persists reservation records in PostgreSQL.
package reservations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reservations (
	id               BIGSERIAL PRIMARY KEY,
	full_name        TEXT NOT NULL,
	phone            TEXT NOT NULL,
	email            TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL CHECK (location IN ('village', 'downtown', 'los-corales')),
	reservation_date TEXT NOT NULL,
	reservation_time TEXT NOT NULL,
	guests           INTEGER NOT NULL CHECK (guests BETWEEN 1 AND 30),
	comments         TEXT NOT NULL DEFAULT '',
	source           TEXT NOT NULL DEFAULT '',
	user_agent       TEXT NOT NULL DEFAULT '',
	client_ip        TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled')) DEFAULT 'pending',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations (status);
CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations (reservation_date);
`

const reservationColumns = `id, full_name, phone, email, location, reservation_date,
	reservation_time, guests, comments, source, user_agent, client_ip, status,
	created_at, updated_at`

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "reservation-store"}),
	}
}

// EnsureSchema creates the reservations table. It must run before the outbox
// schema, which references reservations(id).
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return apperrors.NewDatabaseQueryFailedError("ensure reservations schema", err)
	}
	return nil
}

// Insert persists a new pending reservation and returns it.
func (s *Store) Insert(ctx context.Context, r *models.Reservation) (*models.Reservation, error) {
	saved := *r
	saved.Status = models.ReservationStatusPending

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reservations (
			full_name, phone, email, location, reservation_date, reservation_time,
			guests, comments, source, user_agent, client_ip, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		r.FullName, r.Phone, r.Email, r.Location, r.ReservationDate, r.ReservationTime,
		r.Guests, r.Comments, r.Source, r.UserAgent, r.ClientIP, saved.Status,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("insert reservation", err)
	}
	return &saved, nil
}

// GetByID returns one reservation or a not-found error.
func (s *Store) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM reservations WHERE id = $1`, reservationColumns), id)

	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewReservationNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get reservation", err)
	}
	return r, nil
}

// ListFilter narrows the admin reservation listing.
type ListFilter struct {
	Status   string
	Location string
	Date     string // YYYY-MM-DD
	Limit    int
	Offset   int
}

// List returns reservations for the admin panel, newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]*models.Reservation, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Location != "" {
		args = append(args, f.Location)
		where = append(where, fmt.Sprintf("location = $%d", len(args)))
	}
	if f.Date != "" {
		args = append(args, f.Date)
		where = append(where, fmt.Sprintf("reservation_date = $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	limitIdx := len(args)
	args = append(args, f.Offset)

	query := fmt.Sprintf(`
		SELECT %s FROM reservations
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		reservationColumns, strings.Join(where, " AND "), limitIdx, limitIdx+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list reservations", err)
	}
	defer rows.Close()

	out := []*models.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan reservation row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("iterate reservation rows", err)
	}
	return out, nil
}

// UpdateStatus transitions a reservation and returns the updated record.
// Unknown target statuses are rejected before touching the database.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status string) (*models.Reservation, error) {
	if !models.IsValidReservationStatus(status) {
		return nil, apperrors.NewInvalidReservationStatusError(status)
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE reservations SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, reservationColumns), id, status)

	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewReservationNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("update reservation status", err)
	}
	return r, nil
}

// StatusCounts returns per-status reservation totals for the admin metrics
// endpoint.
func (s *Store) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM reservations GROUP BY status`)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("count reservations", err)
	}
	defer rows.Close()

	counts := map[string]int{
		models.ReservationStatusPending:   0,
		models.ReservationStatusConfirmed: 0,
		models.ReservationStatusCancelled: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan reservation counts", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("iterate reservation counts", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(
		&r.ID,
		&r.FullName,
		&r.Phone,
		&r.Email,
		&r.Location,
		&r.ReservationDate,
		&r.ReservationTime,
		&r.Guests,
		&r.Comments,
		&r.Source,
		&r.UserAgent,
		&r.ClientIP,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
