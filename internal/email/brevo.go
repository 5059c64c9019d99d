package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/wellwatchhq/wellwatch/internal/logger"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoProvider sends emails via the Brevo transactional API.
type BrevoProvider struct {
	apiKey   string
	fromAddr string
	fromName string
	client   *http.Client
	log      *logger.Logger
}

// NewBrevoProvider creates a new Brevo email provider.
func NewBrevoProvider(apiKey, fromAddr, fromName string, log *logger.Logger) *BrevoProvider {
	return &BrevoProvider{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// brevoSendRequest represents the Brevo API send email request.
type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Send sends an email via the Brevo API, retrying transient failures with
// backoff before giving up.
func (b *BrevoProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	reqBody := brevoSendRequest{
		Sender: brevoContact{
			Email: b.fromAddr,
			Name:  b.fromName,
		},
		To:      []brevoContact{{Email: to}},
		Subject: subject,
		HTML:    htmlBody,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			start := time.Now()

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoEndpoint, bytes.NewReader(jsonData))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api-key", b.apiKey)

			resp, err := b.client.Do(req)
			if err != nil {
				b.log.Warn("Brevo request failed, will retry", map[string]interface{}{
					"to":          to,
					"duration_ms": time.Since(start).Milliseconds(),
					"error":       err.Error(),
				})
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					b.log.Warn("Failed to close response body", map[string]interface{}{"error": closeErr.Error()})
				}
			}()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				b.log.Warn("Brevo returned non-2xx status", map[string]interface{}{
					"status_code": resp.StatusCode,
					"to":          to,
				})
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			b.log.Info("Email delivered", map[string]interface{}{
				"to":          to,
				"subject":     subject,
				"duration_ms": time.Since(start).Milliseconds(),
			})

			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			b.log.Info("Retrying email send", map[string]interface{}{"attempt": n, "error": err.Error()})
		}),
	)
}
