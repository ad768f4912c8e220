package sender

import (
	"context"
	"fmt"

	"reservations-api/internal/common/config"
	httpclient "reservations-api/internal/common/http"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
)

// BuildRegistry wires one sender per channel from the configured modes.
// A real provider with incomplete configuration still registers: it becomes
// a MisconfiguredSender so the process starts and only that channel's sends
// fail. Unknown modes are caught by config validation before this runs, but
// are still rejected here.
func BuildRegistry(ctx context.Context, cfg *config.Config, log logger.Logger) (*Registry, error) {
	registry := NewRegistry()

	switch cfg.Notifications.Email.Mode {
	case config.ModeMock:
		registry.Register(models.ChannelEmail, NewMockSender(models.ChannelEmail))
	case config.ModeDisabled:
		registry.Register(models.ChannelEmail, NewDisabledSender(models.ChannelEmail))
	case config.ModeSES:
		s, err := NewEmailSender(ctx, cfg.Notifications.Email.AWSRegion, cfg.Notifications.Email.FromEmail, log)
		if err != nil {
			log.Warn("email provider misconfigured, sends on this channel will fail", map[string]interface{}{
				"error": err,
			})
			registry.Register(models.ChannelEmail, NewMisconfiguredSender("ses", err))
		} else {
			registry.Register(models.ChannelEmail, s)
		}
	default:
		return nil, fmt.Errorf("unknown email mode: %s", cfg.Notifications.Email.Mode)
	}

	switch cfg.Notifications.WhatsApp.Mode {
	case config.ModeMock:
		registry.Register(models.ChannelWhatsApp, NewMockSender(models.ChannelWhatsApp))
	case config.ModeDisabled:
		registry.Register(models.ChannelWhatsApp, NewDisabledSender(models.ChannelWhatsApp))
	case config.ModeWABA:
		s, err := NewWhatsAppSender(WhatsAppConfig{
			APIVersion:    cfg.Notifications.WhatsApp.APIVersion,
			PhoneNumberID: cfg.Notifications.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.Notifications.WhatsApp.AccessToken,
		}, httpclient.NewClient(config.GetDuration(cfg.Notifications.SendTimeout)), log)
		if err != nil {
			log.Warn("whatsapp provider misconfigured, sends on this channel will fail", map[string]interface{}{
				"error": err,
			})
			registry.Register(models.ChannelWhatsApp, NewMisconfiguredSender("waba", err))
		} else {
			registry.Register(models.ChannelWhatsApp, s)
		}
	default:
		return nil, fmt.Errorf("unknown whatsapp mode: %s", cfg.Notifications.WhatsApp.Mode)
	}

	return registry, nil
}
