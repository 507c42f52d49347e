package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/billing-engine/config"
	"github.com/zapflow/billing-engine/models"
)

func testInstance(apiURL string) *models.WhatsAppInstance {
	return &models.WhatsAppInstance{
		ID:           1,
		TenantID:     1,
		InstanceName: "cobranca-01",
		APIURL:       apiURL,
		APIKey:       "test-api-key",
	}
}

func TestSendTextSuccess(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotPayload sendTextPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"key":{"id":"BAE5F1A2C3D4"},"status":"PENDING"}`))
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{MaxRetries: 2})
	resp, err := client.SendText(context.Background(), testInstance(server.URL), "+5511999990000", "Olá Maria", nil)

	require.NoError(t, err)
	assert.Equal(t, "BAE5F1A2C3D4", resp.MessageID)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, 1, resp.Attempts)

	assert.Equal(t, "/message/sendText/cobranca-01", gotPath)
	assert.Equal(t, "test-api-key", gotAPIKey)
	assert.Equal(t, "5511999990000", gotPayload.Number)
	assert.Equal(t, "Olá Maria", gotPayload.Text)
}

func TestSendTextQuoted(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"key":{"id":"X"}}`))
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{MaxRetries: 1})
	_, err := client.SendText(context.Background(), testInstance(server.URL), "+5511999990000", "resposta", &QuotedRef{
		ID:        "MSG123",
		RemoteJid: "5511999990000@s.whatsapp.net",
	})
	require.NoError(t, err)

	quoted, ok := body["quoted"].(map[string]any)
	require.True(t, ok, "payload must carry the quoted key")
	key := quoted["key"].(map[string]any)
	assert.Equal(t, "MSG123", key["id"])
}

func TestSendTextClientErrorIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid number"}`))
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{MaxRetries: 3})
	_, err := client.SendText(context.Background(), testInstance(server.URL), "+5511999990000", "oi", nil)

	require.Error(t, err)
	ge, ok := IsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, GatewayErrHTTP4xx, ge.Code)
	assert.Equal(t, http.StatusBadRequest, ge.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestSendTextServerErrorRetriesThenFails(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{MaxRetries: 2})
	_, err := client.SendText(context.Background(), testInstance(server.URL), "+5511999990000", "oi", nil)

	require.Error(t, err)
	ge, ok := IsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, GatewayErrMaxRetriesExceeded, ge.Code)
	assert.Equal(t, http.StatusBadGateway, ge.StatusCode)
	assert.Equal(t, 2, ge.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	var inner *GatewayError
	require.ErrorAs(t, ge.Err, &inner)
	assert.Equal(t, GatewayErrHTTP5xx, inner.Code)
}

func TestSendTextRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"key":{"id":"OK1"}}`))
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{MaxRetries: 3})
	resp, err := client.SendText(context.Background(), testInstance(server.URL), "+5511999990000", "oi", nil)

	require.NoError(t, err)
	assert.Equal(t, "OK1", resp.MessageID)
	assert.Equal(t, 2, resp.Attempts)
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		healthy bool
	}{
		{
			name:    "open state is healthy",
			status:  http.StatusOK,
			body:    `{"instance":{"state":"open"}}`,
			healthy: true,
		},
		{
			name:    "flat state field",
			status:  http.StatusOK,
			body:    `{"state":"open"}`,
			healthy: true,
		},
		{
			name:    "connecting is unhealthy",
			status:  http.StatusOK,
			body:    `{"instance":{"state":"connecting"}}`,
			healthy: false,
		},
		{
			name:    "closed is unhealthy",
			status:  http.StatusOK,
			body:    `{"instance":{"state":"closed"}}`,
			healthy: false,
		},
		{
			name:    "http error is unhealthy",
			status:  http.StatusNotFound,
			body:    `{}`,
			healthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/instance/connectionState/cobranca-01", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewGatewayClient(config.GatewayConfig{})
			healthy, detail := client.CheckHealth(context.Background(), testInstance(server.URL))
			assert.Equal(t, tt.healthy, healthy)
			assert.NotEmpty(t, detail)
		})
	}
}

func TestCheckHealthUnreachable(t *testing.T) {
	client := NewGatewayClient(config.GatewayConfig{})
	healthy, detail := client.CheckHealth(context.Background(), testInstance("http://127.0.0.1:1"))
	assert.False(t, healthy)
	assert.NotEmpty(t, detail)
}
