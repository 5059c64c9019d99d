// Package email composes and sends notification emails through a pluggable
// delivery provider.
package email

import "context"

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends a single email.
	Send(ctx context.Context, to, subject, htmlBody string) error
}
