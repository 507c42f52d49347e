package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/zapflow/billing-engine/models"
)

// MockGatewayClient implements GatewayClient for testing
type MockGatewayClient struct {
	mu       sync.Mutex
	sent     []MockSentMessage
	failWith error
	healthy  bool
	state    string
}

// MockSentMessage records one SendText call
type MockSentMessage struct {
	InstanceName string
	Phone        string
	Body         string
}

// NewMockGatewayClient creates a mock gateway client that accepts every send
func NewMockGatewayClient() *MockGatewayClient {
	return &MockGatewayClient{healthy: true, state: models.ConnectionStateOpen}
}

// SendText records the message and returns either the configured failure or a
// synthetic message id.
func (m *MockGatewayClient) SendText(ctx context.Context, instance *models.WhatsAppInstance, phone, body string, quoted *QuotedRef) (*SendTextResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	m.sent = append(m.sent, MockSentMessage{
		InstanceName: instance.InstanceName,
		Phone:        phone,
		Body:         body,
	})
	return &SendTextResponse{
		MessageID: fmt.Sprintf("mock-%d", len(m.sent)),
		Status:    "PENDING",
		Attempts:  1,
	}, nil
}

// CheckHealth returns the configured health state
func (m *MockGatewayClient) CheckHealth(ctx context.Context, instance *models.WhatsAppInstance) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy, m.state
}

// SetHealthy configures the health probe result
func (m *MockGatewayClient) SetHealthy(healthy bool, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	m.state = state
}

// FailWith makes every subsequent SendText return err
func (m *MockGatewayClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SentMessages returns a copy of the recorded sends
func (m *MockGatewayClient) SentMessages() []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// ClearSentMessages resets the recorded sends
func (m *MockGatewayClient) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
