package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "reservations-api/internal/common/errors"
	httpclient "reservations-api/internal/common/http"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
)

func newTestWhatsAppSender(t *testing.T, baseURL string) *WhatsAppSender {
	s, err := NewWhatsAppSender(WhatsAppConfig{
		APIVersion:    "v21.0",
		PhoneNumberID: "123456789",
		AccessToken:   "test-token",
		BaseURL:       baseURL,
	}, httpclient.NewClient(2*time.Second), logger.NewZapAdapter(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func TestWhatsAppSender_Send_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.ABC123"}},
		})
	}))
	defer server.Close()

	s := newTestWhatsAppSender(t, server.URL)
	n := testNotification(models.ChannelWhatsApp)
	n.Recipient = "+34600111222"

	out := s.Send(context.Background(), n)

	assert.True(t, out.OK)
	assert.Equal(t, "waba", out.Provider)
	assert.Equal(t, "wamid.ABC123", out.MessageID)

	assert.Equal(t, "/v21.0/123456789/messages", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "whatsapp", gotBody["messaging_product"])
	assert.Equal(t, "+34600111222", gotBody["to"])
	assert.Equal(t, "text", gotBody["type"])
	assert.Equal(t, n.Body, gotBody["text"].(map[string]interface{})["body"])
}

func TestWhatsAppSender_Send_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
		wantCode      apperrors.ErrorCode
	}{
		{"rate limited", http.StatusTooManyRequests, true, apperrors.ErrCodeProviderRateLimited},
		{"server error", http.StatusInternalServerError, true, apperrors.ErrCodeProviderUnavailable},
		{"bad gateway", http.StatusBadGateway, true, apperrors.ErrCodeProviderUnavailable},
		{"bad request", http.StatusBadRequest, false, apperrors.ErrCodeProviderRejected},
		{"unauthorized token", http.StatusUnauthorized, false, apperrors.ErrCodeProviderRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]interface{}{"message": "provider says no", "code": tt.status},
				})
			}))
			defer server.Close()

			s := newTestWhatsAppSender(t, server.URL)
			out := s.Send(context.Background(), testNotification(models.ChannelWhatsApp))

			assert.False(t, out.OK)
			assert.Equal(t, tt.wantRetryable, out.Retryable)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(out.Err))
		})
	}
}

func TestWhatsAppSender_Send_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	s, err := NewWhatsAppSender(WhatsAppConfig{
		APIVersion:    "v21.0",
		PhoneNumberID: "123456789",
		AccessToken:   "test-token",
		BaseURL:       server.URL,
	}, httpclient.NewClient(50*time.Millisecond), logger.NewZapAdapter(zaptest.NewLogger(t)))
	require.NoError(t, err)

	out := s.Send(context.Background(), testNotification(models.ChannelWhatsApp))

	assert.False(t, out.OK)
	assert.True(t, out.Retryable)
	assert.Equal(t, apperrors.ErrCodeProviderTimeout, apperrors.CodeOf(out.Err))
}

func TestWhatsAppSender_MissingCredentials(t *testing.T) {
	_, err := NewWhatsAppSender(WhatsAppConfig{APIVersion: "v21.0"},
		httpclient.NewClient(time.Second), logger.NewZapAdapter(zaptest.NewLogger(t)))

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderConfigMissing, apperrors.CodeOf(err))
}
