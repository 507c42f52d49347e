package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zapflow/billing-engine/config"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/utils"
)

// Gateway error codes surfaced after the retry budget is spent.
const (
	GatewayErrTimeout            = "TIMEOUT"
	GatewayErrConnection         = "CONNECTION_ERROR"
	GatewayErrHTTP4xx            = "HTTP_4xx"
	GatewayErrHTTP5xx            = "HTTP_5xx"
	GatewayErrMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
)

// GatewayError is the structured failure returned by the gateway client.
type GatewayError struct {
	Code       string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway error %s (status=%d attempts=%d): %v", e.Code, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("gateway error %s (status=%d attempts=%d)", e.Code, e.StatusCode, e.Attempts)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError extracts a GatewayError from an error chain.
func IsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// SendTextResponse carries the gateway's acknowledgment of an accepted send.
type SendTextResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
}

// QuotedRef references an earlier message to quote in the send.
type QuotedRef struct {
	ID        string `json:"id"`
	RemoteJid string `json:"remoteJid"`
}

// GatewayClient is the WhatsApp send endpoint the engine talks to. The
// gateway itself is an opaque collaborator; only the send and health surfaces
// matter here.
type GatewayClient interface {
	SendText(ctx context.Context, instance *models.WhatsAppInstance, phone, body string, quoted *QuotedRef) (*SendTextResponse, error)
	CheckHealth(ctx context.Context, instance *models.WhatsAppInstance) (bool, string)
}

// GatewayClientImpl implements GatewayClient over HTTP with exponential
// backoff on transient failures.
type GatewayClientImpl struct {
	cfg    config.GatewayConfig
	client *http.Client
	health *http.Client
}

// NewGatewayClient creates a gateway client from configuration.
func NewGatewayClient(cfg config.GatewayConfig) GatewayClient {
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = utils.GatewaySendTimeout
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = utils.GatewayHealthTimeout
	}
	return &GatewayClientImpl{
		cfg:    cfg,
		client: &http.Client{Timeout: sendTimeout},
		health: &http.Client{Timeout: healthTimeout},
	}
}

type sendTextPayload struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Quoted *struct {
		Key QuotedRef `json:"key"`
	} `json:"quoted,omitempty"`
}

type sendTextResult struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

// SendText posts the message to the gateway. 2xx succeeds, 4xx fails
// terminally, and 5xx/connection/timeout failures are retried with
// exponential backoff (1s base, doubling) up to the configured budget.
func (g *GatewayClientImpl) SendText(ctx context.Context, instance *models.WhatsAppInstance, phone, body string, quoted *QuotedRef) (*SendTextResponse, error) {
	maxTries := g.cfg.MaxRetries
	if maxTries <= 0 {
		maxTries = 3
	}

	payload := sendTextPayload{
		Number: PhoneDigits(phone),
		Text:   body,
	}
	if quoted != nil {
		payload.Quoted = &struct {
			Key QuotedRef `json:"key"`
		}{Key: *quoted}
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send payload: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", instance.APIURL, instance.InstanceName)
	delay := utils.GatewayRetryBaseDelay

	var lastErr *GatewayError
	for attempt := 1; attempt <= maxTries; attempt++ {
		result, gwErr := g.attemptSend(ctx, url, instance.APIKey, reqBody, attempt)
		if gwErr == nil {
			result.Attempts = attempt
			return result, nil
		}
		// 4xx is terminal, no retry.
		if gwErr.Code == GatewayErrHTTP4xx {
			return nil, gwErr
		}
		lastErr = gwErr

		if attempt < maxTries {
			select {
			case <-ctx.Done():
				return nil, &GatewayError{Code: GatewayErrTimeout, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return nil, &GatewayError{
		Code:       GatewayErrMaxRetriesExceeded,
		StatusCode: lastErr.StatusCode,
		Attempts:   maxTries,
		Err:        lastErr,
	}
}

// CheckHealth probes the gateway's connection-state endpoint. Only the
// "open" state counts as healthy.
func (g *GatewayClientImpl) CheckHealth(ctx context.Context, instance *models.WhatsAppInstance) (bool, string) {
	url := fmt.Sprintf("%s/instance/connectionState/%s", instance.APIURL, instance.InstanceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Sprintf("failed to build health request: %v", err)
	}
	req.Header.Set("apikey", instance.APIKey)

	resp, err := g.health.Do(req)
	if err != nil {
		return false, fmt.Sprintf("connection state probe failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("connection state http status: %d", resp.StatusCode)
	}

	var out struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Sprintf("failed to decode connection state: %v", err)
	}

	state := out.Instance.State
	if state == "" {
		state = out.State
	}

	switch state {
	case models.ConnectionStateOpen:
		return true, state
	case models.ConnectionStateConnecting:
		return false, "connecting"
	default:
		return false, fmt.Sprintf("connection state: %s", state)
	}
}

// attemptSend performs one HTTP attempt and classifies the outcome.
func (g *GatewayClientImpl) attemptSend(ctx context.Context, url, apiKey string, reqBody []byte, attempt int) (*SendTextResponse, *GatewayError) {
	resp, err := g.post(ctx, url, apiKey, reqBody)
	if err != nil {
		code := GatewayErrConnection
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			code = GatewayErrTimeout
		}
		return nil, &GatewayError{Code: code, Attempts: attempt, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var result sendTextResult
		if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil {
			// Accepted but unparseable body; treat as sent without id.
			result = sendTextResult{}
		}
		return &SendTextResponse{MessageID: result.Key.ID, Status: result.Status}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &GatewayError{Code: GatewayErrHTTP4xx, StatusCode: resp.StatusCode, Attempts: attempt, Err: fmt.Errorf("%s", string(b))}
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &GatewayError{Code: GatewayErrHTTP5xx, StatusCode: resp.StatusCode, Attempts: attempt, Err: fmt.Errorf("%s", string(b))}
	}
}

func (g *GatewayClientImpl) post(ctx context.Context, url, apiKey string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", apiKey)
	return g.client.Do(req)
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
