package mailer

import (
	"context"
	"sync"
)

// MockClient is a mock mail client for testing
type MockClient struct {
	mu       sync.Mutex
	sent     []Message
	sendErr  error
	errorFor map[string]error
	panicMsg string
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithSendError makes every SendEmail call fail
func WithSendError(err error) MockOption {
	return func(m *MockClient) {
		m.sendErr = err
	}
}

// WithErrorFor makes SendEmail fail only for the given recipient
func WithErrorFor(to string, err error) MockOption {
	return func(m *MockClient) {
		if m.errorFor == nil {
			m.errorFor = make(map[string]error)
		}
		m.errorFor[to] = err
	}
}

// WithPanic makes SendEmail panic with msg
func WithPanic(msg string) MockOption {
	return func(m *MockClient) {
		m.panicMsg = msg
	}
}

// NewMockClient creates a new mock mail client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendEmail records the message or returns the configured error
func (m *MockClient) SendEmail(ctx context.Context, msg Message) error {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if msg.To == "" {
		return ErrNoRecipient
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	if err, ok := m.errorFor[msg.To]; ok {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns the messages delivered so far (for testing)
func (m *MockClient) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)
