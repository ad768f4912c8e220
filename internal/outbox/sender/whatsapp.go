package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	apperrors "reservations-api/internal/common/errors"
	httpclient "reservations-api/internal/common/http"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
)

const graphAPIBaseURL = "https://graph.facebook.com"

// WhatsAppSender delivers notifications through the WhatsApp Cloud API.
type WhatsAppSender struct {
	httpClient    *httpclient.Client
	baseURL       string
	apiVersion    string
	phoneNumberID string
	accessToken   string
	logger        logger.Logger
}

type WhatsAppConfig struct {
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	BaseURL       string // empty = Graph API production host
}

func NewWhatsAppSender(cfg WhatsAppConfig, client *httpclient.Client, log logger.Logger) (*WhatsAppSender, error) {
	if cfg.PhoneNumberID == "" || cfg.AccessToken == "" {
		return nil, apperrors.NewProviderConfigMissingError("waba", "phone_number_id and access_token are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = graphAPIBaseURL
	}

	return &WhatsAppSender{
		httpClient:    client,
		baseURL:       baseURL,
		apiVersion:    cfg.APIVersion,
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
		logger:        log.WithFields(map[string]interface{}{"provider": "waba"}),
	}, nil
}

func (w *WhatsAppSender) Provider() string { return "waba" }

type wabaMessageRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             wabaTextBody `json:"text"`
}

type wabaTextBody struct {
	Body string `json:"body"`
}

type wabaMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (w *WhatsAppSender) Send(ctx context.Context, n *models.Notification) Outcome {
	payload, err := json.Marshal(wabaMessageRequest{
		MessagingProduct: "whatsapp",
		To:               n.Recipient,
		Type:             "text",
		Text:             wabaTextBody{Body: n.Body},
	})
	if err != nil {
		return Outcome{Provider: "waba", Err: apperrors.NewProviderRejectedError("waba", 0, err.Error())}
	}

	url := fmt.Sprintf("%s/%s/%s/messages", w.baseURL, w.apiVersion, w.phoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Outcome{Provider: "waba", Err: apperrors.NewProviderRejectedError("waba", 0, err.Error())}
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.DoWithContext(ctx, req)
	if err != nil {
		if isTimeout(ctx, err) {
			return Outcome{Provider: "waba", Retryable: true, Err: apperrors.NewProviderTimeoutError("waba")}
		}
		return Outcome{Provider: "waba", Retryable: true, Err: apperrors.NewProviderUnavailableError("waba", err.Error())}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var parsed wabaMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil && resp.StatusCode < 300 {
		w.logger.Warn("unparseable provider response", map[string]interface{}{
			"status": resp.StatusCode,
		})
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		messageID := ""
		if len(parsed.Messages) > 0 {
			messageID = parsed.Messages[0].ID
		}
		return Outcome{OK: true, Provider: "waba", MessageID: messageID}

	case resp.StatusCode == http.StatusTooManyRequests:
		return Outcome{Provider: "waba", Retryable: true,
			Err: apperrors.NewProviderRateLimitedError("waba", parsed.Error.Message)}

	case resp.StatusCode >= 500:
		return Outcome{Provider: "waba", Retryable: true,
			Err: apperrors.NewProviderUnavailableError("waba", parsed.Error.Message)}

	default:
		return Outcome{Provider: "waba", Retryable: false,
			Err: apperrors.NewProviderRejectedError("waba", resp.StatusCode, parsed.Error.Message)}
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
