package email

import (
	"context"
	"sync"
)

// SentEmail records one email handed to the mock provider.
type SentEmail struct {
	To      string
	Subject string
	HTML    string
}

// MockProvider captures sends in memory for tests and local development. It
// can be told to fail a fixed number of sends to exercise retry and
// unprocessed-row behavior.
type MockProvider struct {
	mu        sync.Mutex
	sent      []SentEmail
	failNext  int
	failError error
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// FailNext makes the next n Send calls return err.
func (m *MockProvider) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.failError = err
}

// Send records the email, or fails if a failure was requested.
func (m *MockProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return m.failError
	}

	m.sent = append(m.sent, SentEmail{To: to, Subject: subject, HTML: htmlBody})
	return nil
}

// Sent returns a copy of everything delivered so far.
func (m *MockProvider) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEmail, len(m.sent))
	copy(out, m.sent)
	return out
}
