package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
)

var reservationTestColumns = []string{
	"id", "full_name", "phone", "email", "location", "reservation_date",
	"reservation_time", "guests", "comments", "source", "user_agent", "client_ip",
	"status", "created_at", "updated_at",
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db, logger.NewZapAdapter(zaptest.NewLogger(t))), mock
}

func reservationRow(id int64, status string, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(reservationTestColumns).AddRow(
		id, "Ana Morales", "+34600111222", "ana@example.com", "village",
		"2026-09-12", "20:30", 4, "", "web", "", "", status, at, at,
	)
}

func TestStore_Insert(t *testing.T) {
	s, mock := newTestStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO reservations`).
		WithArgs(
			"Ana Morales", "+34600111222", "ana@example.com", "village",
			"2026-09-12", "20:30", 4, "sin gluten", "web", "Mozilla/5.0", "203.0.113.9",
			models.ReservationStatusPending,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(42), now, now))

	saved, err := s.Insert(context.Background(), &models.Reservation{
		FullName:        "Ana Morales",
		Phone:           "+34600111222",
		Email:           "ana@example.com",
		Location:        "village",
		ReservationDate: "2026-09-12",
		ReservationTime: "20:30",
		Guests:          4,
		Comments:        "sin gluten",
		Source:          "web",
		UserAgent:       "Mozilla/5.0",
		ClientIP:        "203.0.113.9",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), saved.ID)
	assert.Equal(t, models.ReservationStatusPending, saved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newTestStore(t)

		mock.ExpectQuery(`SELECT .+ FROM reservations WHERE id = \$1`).
			WithArgs(int64(42)).
			WillReturnRows(reservationRow(42, "confirmed", time.Now().UTC()))

		r, err := s.GetByID(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, "Ana Morales", r.FullName)
		assert.Equal(t, models.ReservationStatusConfirmed, r.Status)
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newTestStore(t)

		mock.ExpectQuery(`SELECT .+ FROM reservations WHERE id = \$1`).
			WithArgs(int64(999)).
			WillReturnRows(sqlmock.NewRows(reservationTestColumns))

		_, err := s.GetByID(context.Background(), 999)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeReservationNotFound, apperrors.CodeOf(err))
	})
}

func TestStore_List_Filters(t *testing.T) {
	s, mock := newTestStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM reservations WHERE TRUE AND status = \$1 AND reservation_date = \$2 ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("pending", "2026-09-12", 25, 0).
		WillReturnRows(reservationRow(42, "pending", now))

	out, err := s.List(context.Background(), ListFilter{
		Status: "pending",
		Date:   "2026-09-12",
		Limit:  25,
	})

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(42), out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateStatus(t *testing.T) {
	t.Run("valid transition", func(t *testing.T) {
		s, mock := newTestStore(t)

		mock.ExpectQuery(`UPDATE reservations SET status = \$2`).
			WithArgs(int64(42), "confirmed").
			WillReturnRows(reservationRow(42, "confirmed", time.Now().UTC()))

		r, err := s.UpdateStatus(context.Background(), 42, "confirmed")
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusConfirmed, r.Status)
	})

	t.Run("invalid status rejected before hitting the database", func(t *testing.T) {
		s, mock := newTestStore(t)

		_, err := s.UpdateStatus(context.Background(), 42, "archived")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidReservationStatus, apperrors.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown reservation", func(t *testing.T) {
		s, mock := newTestStore(t)

		mock.ExpectQuery(`UPDATE reservations SET status = \$2`).
			WithArgs(int64(999), "cancelled").
			WillReturnRows(sqlmock.NewRows(reservationTestColumns))

		_, err := s.UpdateStatus(context.Background(), 999, "cancelled")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeReservationNotFound, apperrors.CodeOf(err))
	})
}

func TestStore_StatusCounts(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM reservations GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 3).
			AddRow("confirmed", 7))

	counts, err := s.StatusCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"pending": 3, "confirmed": 7, "cancelled": 0}, counts)
}
