package store

import "context"

// Idempotent outbox schema. EnsureSchema is invoked once during startup,
// after the reservations table exists (FK target).
const schemaSQL = `
CREATE TABLE IF NOT EXISTS reservation_notifications (
	id BIGSERIAL PRIMARY KEY,
	reservation_id BIGINT NOT NULL REFERENCES reservations(id),
	channel TEXT NOT NULL CHECK (channel IN ('email', 'whatsapp')),
	recipient TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued' CHECK (status IN ('queued', 'sent', 'failed')),
	provider TEXT NOT NULL DEFAULT '',
	provider_message_id TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	sent_at TIMESTAMPTZ,
	last_error TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_dispatch
	ON reservation_notifications (status, next_attempt_at);
CREATE INDEX IF NOT EXISTS idx_notifications_reservation
	ON reservation_notifications (reservation_id);
`

// EnsureSchema creates the notifications table and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}
