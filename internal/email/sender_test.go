package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/models"
)

// High rate so pacing never delays tests.
const testRate = 1000.0

var sentAt = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

func testSummary() models.AlertSummary {
	return models.AlertSummary{
		WellID:       "35-017-12345",
		ActivityType: models.ActivityNewPermit,
		Severity:     models.SeverityYourProperty,
		Operator:     "Continental Resources",
		County:       "Canadian",
		Location:     "S14-T7N-R4W-IM",
		Headline:     "New drilling permit by Continental Resources at S14-T7N-R4W-IM (Canadian County)",
		DetectedAt:   sentAt,
	}
}

func TestSendImmediate_DeliversThroughProvider(t *testing.T) {
	// Arrange
	provider := NewMockProvider()
	sender := NewSender(provider, testRate, "", logger.New("test"))

	payload := models.ImmediatePayload{
		Email:    "owner@example.com",
		Severity: models.SeverityYourProperty,
		Summary:  testSummary(),
	}

	// Act
	err := sender.SendImmediate(context.Background(), payload)

	// Assert
	require.NoError(t, err)
	sent := provider.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "owner@example.com", sent[0].To)
	assert.Equal(t, payload.Summary.Headline, sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "35-017-12345")
	assert.Contains(t, sent[0].HTML, "S14-T7N-R4W-IM")
	assert.Contains(t, sent[0].HTML, "On your property")
}

func TestSendImmediate_ProviderFailureWrapped(t *testing.T) {
	// Arrange
	provider := NewMockProvider()
	provider.FailNext(1, errors.New("provider 503"))
	sender := NewSender(provider, testRate, "", logger.New("test"))

	// Act
	err := sender.SendImmediate(context.Background(), models.ImmediatePayload{
		Email:   "owner@example.com",
		Summary: testSummary(),
	})

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send immediate alert to owner@example.com")
	assert.Empty(t, provider.Sent())
}

func TestSendDigest_SubjectCountsItems(t *testing.T) {
	// Arrange
	provider := NewMockProvider()
	sender := NewSender(provider, testRate, "", logger.New("test"))

	payload := models.DigestPayload{
		Email:   "owner@example.com",
		Cadence: models.CadenceWeekly,
		Groups: map[models.ActivityType][]models.AlertSummary{
			models.ActivityNewPermit:  {testSummary(), testSummary()},
			models.ActivityCompletion: {testSummary()},
		},
	}

	// Act
	err := sender.SendDigest(context.Background(), payload)

	// Assert
	require.NoError(t, err)
	sent := provider.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Weekly well activity digest: 3 update(s)", sent[0].Subject)
}

func TestSendDigest_BodySectionOrder(t *testing.T) {
	// Arrange: permits render before transfers regardless of map order.
	provider := NewMockProvider()
	sender := NewSender(provider, testRate, "", logger.New("test"))

	transfer := testSummary()
	transfer.ActivityType = models.ActivityOperatorTransfer
	transfer.Headline = "Operator transfer at S14-T7N-R4W-IM"

	payload := models.DigestPayload{
		Email:   "owner@example.com",
		Cadence: models.CadenceDaily,
		Groups: map[models.ActivityType][]models.AlertSummary{
			models.ActivityOperatorTransfer: {transfer},
			models.ActivityNewPermit:        {testSummary()},
		},
	}

	// Act
	err := sender.SendDigest(context.Background(), payload)

	// Assert
	require.NoError(t, err)
	body := provider.Sent()[0].HTML
	permitIdx := strings.Index(body, "New Permits")
	transferIdx := strings.Index(body, "Operator Transfers")
	require.GreaterOrEqual(t, permitIdx, 0)
	require.GreaterOrEqual(t, transferIdx, 0)
	assert.Less(t, permitIdx, transferIdx)
}

func TestSendDigest_HighlightsRenderFirst(t *testing.T) {
	// Arrange
	provider := NewMockProvider()
	sender := NewSender(provider, testRate, "", logger.New("test"))

	expiring := testSummary()
	expiresAt := sentAt.Add(3 * 24 * time.Hour)
	expiring.ExpiresAt = &expiresAt

	payload := models.DigestPayload{
		Email:   "owner@example.com",
		Cadence: models.CadenceDaily,
		Groups: map[models.ActivityType][]models.AlertSummary{
			models.ActivityNewPermit: {expiring},
		},
		Highlights: []models.AlertSummary{expiring},
	}

	// Act
	err := sender.SendDigest(context.Background(), payload)

	// Assert
	require.NoError(t, err)
	body := provider.Sent()[0].HTML
	assert.Contains(t, body, "Needs attention")
	assert.Less(t, strings.Index(body, "Needs attention"), strings.Index(body, "New Permits"))
}

func TestNotifyOperator_Delivers(t *testing.T) {
	// Arrange
	provider := NewMockProvider()
	sender := NewSender(provider, testRate, "ops@example.com", logger.New("test"))

	// Act
	err := sender.NotifyOperator(context.Background(), "Feed PERMITS returned no records", "fetched=0")

	// Assert
	require.NoError(t, err)
	sent := provider.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops@example.com", sent[0].To)
	assert.Equal(t, "Feed PERMITS returned no records", sent[0].Subject)
}

func TestNotifyOperator_NoAddressDropsSilently(t *testing.T) {
	// Arrange
	provider := NewMockProvider()
	sender := NewSender(provider, testRate, "", logger.New("test"))

	// Act
	err := sender.NotifyOperator(context.Background(), "Feed PERMITS is stale", "no new records")

	// Assert
	require.NoError(t, err)
	assert.Empty(t, provider.Sent())
}

func TestMockProvider_FailNextCountsDown(t *testing.T) {
	provider := NewMockProvider()
	provider.FailNext(2, errors.New("boom"))
	ctx := context.Background()

	assert.Error(t, provider.Send(ctx, "a@example.com", "s", "b"))
	assert.Error(t, provider.Send(ctx, "a@example.com", "s", "b"))
	assert.NoError(t, provider.Send(ctx, "a@example.com", "s", "b"))
	assert.Len(t, provider.Sent(), 1)
}
