package email

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"golang.org/x/time/rate"
)

// Sender composes notification emails and delivers them through the provider,
// pacing sequential sends with the injected limiter to respect provider
// quotas.
type Sender struct {
	provider     Provider
	limiter      *rate.Limiter
	log          *logger.Logger
	operatorAddr string
}

// NewSender creates a sender. sendsPerSecond bounds outbound pacing;
// operatorAddr receives feed-health notifications.
func NewSender(provider Provider, sendsPerSecond float64, operatorAddr string, log *logger.Logger) *Sender {
	if sendsPerSecond <= 0 {
		sendsPerSecond = 1
	}
	return &Sender{
		provider:     provider,
		limiter:      rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
		log:          log,
		operatorAddr: operatorAddr,
	}
}

// SendImmediate delivers one immediate-path alert.
func (s *Sender) SendImmediate(ctx context.Context, payload models.ImmediatePayload) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	subject := payload.Summary.Headline
	body := immediateBody(payload)

	if err := s.provider.Send(ctx, payload.Email, subject, body); err != nil {
		return fmt.Errorf("send immediate alert to %s: %w", payload.Email, err)
	}
	return nil
}

// SendDigest delivers one subscriber's grouped digest. Returning nil is the
// delivery confirmation the assembler relies on before marking rows
// processed.
func (s *Sender) SendDigest(ctx context.Context, payload models.DigestPayload) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	subject := digestSubject(payload)
	body := digestBody(payload)

	if err := s.provider.Send(ctx, payload.Email, subject, body); err != nil {
		return fmt.Errorf("send %s digest to %s: %w", payload.Cadence, payload.Email, err)
	}
	return nil
}

// NotifyOperator delivers a feed-health signal to the operator address.
// A sender configured without one logs and drops the signal.
func (s *Sender) NotifyOperator(ctx context.Context, subject, body string) error {
	if s.operatorAddr == "" {
		s.log.Warn("No operator address configured, dropping operator notification", map[string]interface{}{
			"subject": subject,
		})
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if err := s.provider.Send(ctx, s.operatorAddr, subject, "<p>"+html.EscapeString(body)+"</p>"); err != nil {
		return fmt.Errorf("send operator notification: %w", err)
	}
	return nil
}

// immediateBody renders the single-alert email body.
func immediateBody(payload models.ImmediatePayload) string {
	var b strings.Builder
	s := payload.Summary

	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(s.Headline))
	fmt.Fprintf(&b, "<p><strong>Severity:</strong> %s</p>", html.EscapeString(severityLabel(payload.Severity)))
	fmt.Fprintf(&b, "<p><strong>Well:</strong> %s<br>", html.EscapeString(string(s.WellID)))
	fmt.Fprintf(&b, "<strong>Location:</strong> %s<br>", html.EscapeString(s.Location))
	if s.Operator != "" {
		fmt.Fprintf(&b, "<strong>Operator:</strong> %s<br>", html.EscapeString(s.Operator))
	}
	if s.County != "" {
		fmt.Fprintf(&b, "<strong>County:</strong> %s<br>", html.EscapeString(s.County))
	}
	fmt.Fprintf(&b, "<strong>Detected:</strong> %s</p>", s.DetectedAt.Format("Jan 2, 2006"))
	if s.ExpiresAt != nil {
		fmt.Fprintf(&b, "<p><strong>Permit expires:</strong> %s</p>", s.ExpiresAt.Format("Jan 2, 2006"))
	}

	return b.String()
}

// digestSubject summarizes the digest for the subject line.
func digestSubject(payload models.DigestPayload) string {
	period := "Daily"
	if payload.Cadence == models.CadenceWeekly {
		period = "Weekly"
	}
	return fmt.Sprintf("%s well activity digest: %d update(s)", period, payload.ItemCount())
}

// Section order for digest rendering; urgent filings first.
var digestOrder = []models.ActivityType{
	models.ActivityNewPermit,
	models.ActivityCompletion,
	models.ActivityStatusChange,
	models.ActivityOperatorTransfer,
	models.ActivityDocketFiling,
}

func digestSectionTitle(t models.ActivityType) string {
	switch t {
	case models.ActivityNewPermit:
		return "New Permits"
	case models.ActivityCompletion:
		return "Completions"
	case models.ActivityStatusChange:
		return "Status Changes"
	case models.ActivityOperatorTransfer:
		return "Operator Transfers"
	case models.ActivityDocketFiling:
		return "Docket Filings"
	default:
		return string(t)
	}
}

// digestBody renders the grouped digest: highlights first, then one section
// per activity type.
func digestBody(payload models.DigestPayload) string {
	var b strings.Builder

	if len(payload.Highlights) > 0 {
		b.WriteString("<h2>Needs attention</h2><ul>")
		for _, h := range payload.Highlights {
			fmt.Fprintf(&b, "<li><strong>%s</strong>", html.EscapeString(h.Headline))
			if h.ExpiresAt != nil {
				fmt.Fprintf(&b, " &mdash; permit expires %s", h.ExpiresAt.Format("Jan 2, 2006"))
			}
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
	}

	for _, t := range digestOrder {
		group := payload.Groups[t]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].DetectedAt.Before(group[j].DetectedAt) })

		fmt.Fprintf(&b, "<h3>%s (%d)</h3><ul>", digestSectionTitle(t), len(group))
		for _, s := range group {
			fmt.Fprintf(&b, "<li>%s &mdash; %s, detected %s</li>",
				html.EscapeString(s.Headline),
				html.EscapeString(severityLabel(s.Severity)),
				s.DetectedAt.Format("Jan 2"))
		}
		b.WriteString("</ul>")
	}

	fmt.Fprintf(&b, "<p><em>Generated %s</em></p>", time.Now().Format(time.RFC1123))

	return b.String()
}

// severityLabel renders a severity for human readers.
func severityLabel(s models.Severity) string {
	switch s {
	case models.SeverityYourProperty:
		return "On your property"
	case models.SeverityHorizontalPathThroughProperty:
		return "Horizontal path through your property"
	case models.SeverityAdjacentSection:
		return "Adjacent section"
	case models.SeverityHorizontalPathAdjacent:
		return "Horizontal path near your property"
	case models.SeverityTrackedWell:
		return "Tracked well"
	default:
		return "Activity"
	}
}
