package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
	"reservations-api/internal/outbox/sender"
	"reservations-api/internal/outbox/store"
)

// fakeStore keeps notifications in memory and applies the same transitions
// the SQL store does.
type fakeStore struct {
	rows      map[int64]*models.Notification
	order     []int64
	selectErr error
	markErr   error
}

func newFakeStore(rows ...*models.Notification) *fakeStore {
	f := &fakeStore{rows: map[int64]*models.Notification{}}
	for _, n := range rows {
		f.rows[n.ID] = n
		f.order = append(f.order, n.ID)
	}
	return f
}

func (f *fakeStore) SelectForDispatch(ctx context.Context, flt store.DispatchFilter, now time.Time) ([]*models.Notification, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}

	idSet := map[int64]bool{}
	for _, id := range flt.IDs {
		idSet[id] = true
	}

	limit := flt.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	out := []*models.Notification{}
	for _, id := range f.order {
		n := f.rows[id]
		if n.Status != models.NotificationStatusQueued {
			continue
		}
		if !flt.Force && n.NextAttemptAt.After(now) {
			continue
		}
		if len(idSet) > 0 && !idSet[n.ID] {
			continue
		}
		if flt.Channel != "" && n.Channel != flt.Channel {
			continue
		}
		if flt.ReservationID != 0 && n.ReservationID != flt.ReservationID {
			continue
		}
		copied := *n
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSent(ctx context.Context, id int64, attempts int, provider, providerMessageID string, sentAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	n := f.rows[id]
	n.Status = models.NotificationStatusSent
	n.Attempts = attempts
	n.Provider = provider
	n.ProviderMessageID = providerMessageID
	n.SentAt = &sentAt
	n.LastError = ""
	return nil
}

func (f *fakeStore) MarkRequeued(ctx context.Context, id int64, attempts int, provider, lastError string, nextAttemptAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	n := f.rows[id]
	n.Status = models.NotificationStatusQueued
	n.Attempts = attempts
	n.Provider = provider
	n.LastError = lastError
	n.NextAttemptAt = nextAttemptAt
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id int64, attempts int, provider, lastError string) error {
	if f.markErr != nil {
		return f.markErr
	}
	n := f.rows[id]
	n.Status = models.NotificationStatusFailed
	n.Attempts = attempts
	n.Provider = provider
	n.LastError = lastError
	return nil
}

func (f *fakeStore) ResetForRetry(ctx context.Context, id int64) (*models.Notification, error) {
	n, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NewNotificationNotFoundError(id)
	}
	if n.Status != models.NotificationStatusFailed {
		return nil, apperrors.NewNotificationNotRetryableError(id, n.Status)
	}
	n.Status = models.NotificationStatusQueued
	n.Attempts = 0
	n.LastError = ""
	n.NextAttemptAt = time.Now().UTC()
	copied := *n
	return &copied, nil
}

// fakeSender returns scripted outcomes in sequence, repeating the last one.
type fakeSender struct {
	provider string
	outcomes []sender.Outcome
	calls    int
}

func (f *fakeSender) Provider() string { return f.provider }

func (f *fakeSender) Send(ctx context.Context, n *models.Notification) sender.Outcome {
	i := f.calls
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	f.calls++
	return f.outcomes[i]
}

func sendOK() sender.Outcome {
	return sender.Outcome{OK: true, Provider: "mock", MessageID: "msg-1"}
}

func sendRetryable() sender.Outcome {
	return sender.Outcome{Retryable: true, Provider: "mock",
		Err: apperrors.NewProviderUnavailableError("mock", "connection refused")}
}

func sendPermanent() sender.Outcome {
	return sender.Outcome{Retryable: false, Provider: "mock",
		Err: apperrors.NewProviderRejectedError("mock", 400, "bad recipient")}
}

func queuedNotification(id int64, channel models.Channel, attempts int) *models.Notification {
	return &models.Notification{
		ID:            id,
		ReservationID: 42,
		Channel:       channel,
		Recipient:     "guest@example.com",
		Body:          "Reserva #42 - La Casita de Yeya",
		Status:        models.NotificationStatusQueued,
		Attempts:      attempts,
		MaxAttempts:   3,
		NextAttemptAt: time.Now().UTC().Add(-time.Minute),
	}
}

func newTestEngine(t *testing.T, st Store, senders map[models.Channel]sender.Sender) *Engine {
	registry := sender.NewRegistry()
	for ch, s := range senders {
		registry.Register(ch, s)
	}
	return NewEngine(st, registry, logger.NewZapAdapter(zaptest.NewLogger(t)))
}

func TestEngine_Dispatch_AllSent(t *testing.T) {
	st := newFakeStore(
		queuedNotification(1, models.ChannelEmail, 0),
		queuedNotification(2, models.ChannelWhatsApp, 0),
	)
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail:    &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK()}},
		models.ChannelWhatsApp: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK()}},
	})

	summary, err := e.Dispatch(context.Background(), Request{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 2, Sent: 2}, summary)

	assert.Equal(t, models.NotificationStatusSent, st.rows[1].Status)
	assert.Equal(t, 1, st.rows[1].Attempts)
	assert.Equal(t, "msg-1", st.rows[1].ProviderMessageID)
	require.NotNil(t, st.rows[1].SentAt)
}

func TestEngine_Dispatch_RetryableRequeuesWithBackoff(t *testing.T) {
	st := newFakeStore(queuedNotification(1, models.ChannelEmail, 0))
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendRetryable()}},
	})

	before := time.Now().UTC()
	summary, err := e.Dispatch(context.Background(), Request{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 1, Requeued: 1}, summary)

	row := st.rows[1]
	assert.Equal(t, models.NotificationStatusQueued, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.Contains(t, row.LastError, "connection refused")
	assert.WithinDuration(t, before.Add(60*time.Second), row.NextAttemptAt, 5*time.Second)
}

func TestEngine_Dispatch_PermanentFailure(t *testing.T) {
	st := newFakeStore(queuedNotification(1, models.ChannelEmail, 0))
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendPermanent()}},
	})

	summary, err := e.Dispatch(context.Background(), Request{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 1, Failed: 1}, summary)
	assert.Equal(t, models.NotificationStatusFailed, st.rows[1].Status)
	assert.Equal(t, 1, st.rows[1].Attempts)
}

func TestEngine_Dispatch_AttemptExhaustion(t *testing.T) {
	// Two attempts already burned; the third retryable failure is terminal.
	st := newFakeStore(queuedNotification(1, models.ChannelEmail, 2))
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendRetryable()}},
	})

	summary, err := e.Dispatch(context.Background(), Request{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 1, Failed: 1}, summary)
	assert.Equal(t, models.NotificationStatusFailed, st.rows[1].Status)
	assert.Equal(t, 3, st.rows[1].Attempts)
}

func TestEngine_Dispatch_TransientThenRecovery(t *testing.T) {
	st := newFakeStore(queuedNotification(1, models.ChannelEmail, 0))
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendRetryable(), sendOK()}},
	})

	summary, err := e.Dispatch(context.Background(), Request{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 1, Requeued: 1}, summary)

	// Not yet eligible without force.
	summary, err = e.Dispatch(context.Background(), Request{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)

	summary, err = e.Dispatch(context.Background(), Request{Force: true, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 1, Sent: 1}, summary)
	assert.Equal(t, models.NotificationStatusSent, st.rows[1].Status)
	assert.Equal(t, 2, st.rows[1].Attempts)
}

func TestEngine_Dispatch_MixedBatch(t *testing.T) {
	st := newFakeStore(
		queuedNotification(1, models.ChannelEmail, 0),
		queuedNotification(2, models.ChannelEmail, 0),
		queuedNotification(3, models.ChannelWhatsApp, 0),
	)
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail:    &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK(), sendPermanent()}},
		models.ChannelWhatsApp: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendRetryable()}},
	})

	summary, err := e.Dispatch(context.Background(), Request{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 3, Sent: 1, Failed: 1, Requeued: 1}, summary)
	assert.Equal(t, summary.Selected, summary.Sent+summary.Failed+summary.Requeued)
}

func TestEngine_Dispatch_Filters(t *testing.T) {
	st := newFakeStore(
		queuedNotification(1, models.ChannelEmail, 0),
		queuedNotification(2, models.ChannelWhatsApp, 0),
	)
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail:    &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK()}},
		models.ChannelWhatsApp: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK()}},
	})

	summary, err := e.Dispatch(context.Background(), Request{Channel: models.ChannelWhatsApp, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 1, Sent: 1}, summary)
	assert.Equal(t, models.NotificationStatusQueued, st.rows[1].Status)
	assert.Equal(t, models.NotificationStatusSent, st.rows[2].Status)
}

func TestEngine_Dispatch_StoreErrorPropagates(t *testing.T) {
	st := newFakeStore(queuedNotification(1, models.ChannelEmail, 0))
	st.selectErr = errors.New("connection reset")
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK()}},
	})

	_, err := e.Dispatch(context.Background(), Request{Limit: 10})
	require.Error(t, err)
}

func TestEngine_Dispatch_MarkErrorStopsBatch(t *testing.T) {
	st := newFakeStore(
		queuedNotification(1, models.ChannelEmail, 0),
		queuedNotification(2, models.ChannelEmail, 0),
	)
	st.markErr = errors.New("connection reset")
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{
		models.ChannelEmail: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK()}},
	})

	summary, err := e.Dispatch(context.Background(), Request{Limit: 10})

	require.Error(t, err)
	assert.Equal(t, 2, summary.Selected)
	assert.Zero(t, summary.Sent)
}

func TestEngine_Dispatch_UnknownChannelRowFails(t *testing.T) {
	st := newFakeStore(queuedNotification(1, models.Channel("pigeon"), 0))
	e := newTestEngine(t, st, map[models.Channel]sender.Sender{})

	summary, err := e.Dispatch(context.Background(), Request{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, Summary{Selected: 1, Failed: 1}, summary)
	assert.Equal(t, models.NotificationStatusFailed, st.rows[1].Status)
}

func TestEngine_Retry(t *testing.T) {
	t.Run("failed row is rewound", func(t *testing.T) {
		failed := queuedNotification(1, models.ChannelEmail, 3)
		failed.Status = models.NotificationStatusFailed
		failed.LastError = "provider_rejected: bad recipient"
		st := newFakeStore(failed)
		e := newTestEngine(t, st, map[models.Channel]sender.Sender{
			models.ChannelEmail: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK()}},
		})

		n, summary, err := e.Retry(context.Background(), 1, false)

		require.NoError(t, err)
		assert.Nil(t, summary)
		assert.Equal(t, models.NotificationStatusQueued, n.Status)
		assert.Zero(t, n.Attempts)
		assert.Empty(t, n.LastError)
	})

	t.Run("dispatch now sends immediately", func(t *testing.T) {
		failed := queuedNotification(1, models.ChannelEmail, 3)
		failed.Status = models.NotificationStatusFailed
		st := newFakeStore(failed)
		e := newTestEngine(t, st, map[models.Channel]sender.Sender{
			models.ChannelEmail: &fakeSender{provider: "mock", outcomes: []sender.Outcome{sendOK()}},
		})

		_, summary, err := e.Retry(context.Background(), 1, true)

		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.Equal(t, Summary{Selected: 1, Sent: 1}, *summary)
		assert.Equal(t, models.NotificationStatusSent, st.rows[1].Status)
	})

	t.Run("queued row is a conflict", func(t *testing.T) {
		st := newFakeStore(queuedNotification(1, models.ChannelEmail, 0))
		e := newTestEngine(t, st, map[models.Channel]sender.Sender{})

		_, _, err := e.Retry(context.Background(), 1, false)

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotificationNotRetryable, apperrors.CodeOf(err))
	})

	t.Run("unknown row is not found", func(t *testing.T) {
		st := newFakeStore()
		e := newTestEngine(t, st, map[models.Channel]sender.Sender{})

		_, _, err := e.Retry(context.Background(), 404, false)

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotificationNotFound, apperrors.CodeOf(err))
	})
}
