// Package sender delivers rendered notifications through channel providers.
//
// Each channel resolves to exactly one Sender at startup, picked by the
// configured mode. Senders report an Outcome instead of a bare error so the
// dispatch engine can tell retryable provider trouble apart from permanent
// rejection without inspecting provider-specific errors.
package sender

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/models"
)

// Outcome is the result of one send attempt.
type Outcome struct {
	OK        bool
	Retryable bool
	Provider  string
	MessageID string
	Err       error
}

// Sender performs one delivery attempt for its channel.
type Sender interface {
	Provider() string
	Send(ctx context.Context, n *models.Notification) Outcome
}

// Registry maps each channel onto its configured sender.
type Registry struct {
	senders map[models.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[models.Channel]Sender)}
}

func (r *Registry) Register(ch models.Channel, s Sender) {
	r.senders[ch] = s
}

// For returns the sender for ch. Every channel in models.AllChannels is
// registered at startup, so a miss means a corrupted row; it is reported as
// a non-retryable outcome rather than a panic.
func (r *Registry) For(ch models.Channel) (Sender, bool) {
	s, ok := r.senders[ch]
	return s, ok
}

// MockSender accepts every message and fabricates a provider message id.
// It is the default mode for local development and tests.
type MockSender struct {
	provider string
}

func NewMockSender(channel models.Channel) *MockSender {
	return &MockSender{provider: "mock-" + string(channel)}
}

func (m *MockSender) Provider() string { return m.provider }

func (m *MockSender) Send(ctx context.Context, n *models.Notification) Outcome {
	return Outcome{
		OK:        true,
		Provider:  m.provider,
		MessageID: fmt.Sprintf("mock-%s", uuid.New().String()),
	}
}

// MisconfiguredSender stands in for a real provider whose configuration is
// incomplete. The process still starts; every send on that channel fails
// non-retryably with the configuration problem in last_error, so a mixed
// mock/real setup degrades per channel instead of crashing.
type MisconfiguredSender struct {
	provider string
	err      error
}

func NewMisconfiguredSender(provider string, err error) *MisconfiguredSender {
	return &MisconfiguredSender{provider: provider, err: err}
}

func (m *MisconfiguredSender) Provider() string { return m.provider }

func (m *MisconfiguredSender) Send(ctx context.Context, n *models.Notification) Outcome {
	return Outcome{
		OK:        false,
		Retryable: false,
		Provider:  m.provider,
		Err:       m.err,
	}
}

// DisabledSender refuses every message permanently. A disabled channel is an
// operator decision, so the failure must not burn retry attempts.
type DisabledSender struct {
	channel models.Channel
}

func NewDisabledSender(channel models.Channel) *DisabledSender {
	return &DisabledSender{channel: channel}
}

func (d *DisabledSender) Provider() string { return "disabled" }

func (d *DisabledSender) Send(ctx context.Context, n *models.Notification) Outcome {
	return Outcome{
		OK:        false,
		Retryable: false,
		Provider:  "disabled",
		Err:       apperrors.NewChannelDisabledError(string(d.channel)),
	}
}
