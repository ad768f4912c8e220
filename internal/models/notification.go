package models

import (
	"fmt"
	"time"
)

// Channel is a delivery medium with its own sender, recipient format and
// template. The set is closed: email and whatsapp.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// AllChannels in enqueue default order.
var AllChannels = []Channel{ChannelEmail, ChannelWhatsApp}

// ParseChannel maps a raw channel name onto the closed Channel set.
func ParseChannel(raw string) (Channel, error) {
	switch Channel(raw) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelWhatsApp:
		return ChannelWhatsApp, nil
	}
	return "", fmt.Errorf("unknown channel: %s", raw)
}

// Notification statuses
const (
	NotificationStatusQueued = "queued"
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// Notification is one outbox row: a single rendered message for a single
// channel, owned by exactly one reservation. Subject and body are immutable
// once enqueued; a retry resends the same content.
type Notification struct {
	ID                int64             `json:"id"`
	ReservationID     int64             `json:"reservation_id"`
	Channel           Channel           `json:"channel"`
	Recipient         string            `json:"recipient"`
	Subject           string            `json:"subject"`
	Body              string            `json:"body"`
	Status            string            `json:"status"`
	Provider          string            `json:"provider"`
	ProviderMessageID string            `json:"provider_message_id"`
	Attempts          int               `json:"attempts"`
	MaxAttempts       int               `json:"max_attempts"`
	NextAttemptAt     time.Time         `json:"next_attempt_at"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	LastError         string            `json:"last_error"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}
