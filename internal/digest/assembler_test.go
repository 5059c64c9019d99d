package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/models"
)

// MockPendingStore is a mock implementation of repository.PendingStore for testing
type MockPendingStore struct {
	mock.Mock
}

func (m *MockPendingStore) Enqueue(ctx context.Context, pn models.PendingNotification) error {
	args := m.Called(ctx, pn)
	return args.Error(0)
}

func (m *MockPendingStore) FindUnprocessed(ctx context.Context, cadence models.Cadence) ([]models.PendingNotification, error) {
	args := m.Called(ctx, cadence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PendingNotification), args.Error(1)
}

func (m *MockPendingStore) MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

// MockDigestSender is a mock implementation of Sender for testing
type MockDigestSender struct {
	mock.Mock
}

func (m *MockDigestSender) SendDigest(ctx context.Context, payload models.DigestPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

var digestNow = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

func newTestAssembler() (*Assembler, *MockPendingStore, *MockDigestSender) {
	pending := new(MockPendingStore)
	sender := new(MockDigestSender)
	assembler := NewAssemblerWithClock(pending, sender, logger.New("test"), func() time.Time { return digestNow })
	return assembler, pending, sender
}

func queuedItem(subscriber string, activity models.ActivityType, expiresAt *time.Time) models.PendingNotification {
	return models.PendingNotification{
		ID:         uuid.New(),
		Subscriber: models.SubscriberID(subscriber),
		Email:      subscriber + "@example.com",
		Cadence:    models.CadenceDaily,
		Summary: models.AlertSummary{
			WellID:       "35-017-12345",
			ActivityType: activity,
			Severity:     models.SeverityYourProperty,
			Location:     "S14-T7N-R4W-IM",
			Headline:     "New drilling permit at S14-T7N-R4W-IM",
			DetectedAt:   digestNow.Add(-12 * time.Hour),
			ExpiresAt:    expiresAt,
		},
		QueuedAt: digestNow.Add(-12 * time.Hour),
	}
}

func TestRun_EmptyQueueProducesNoPayloads(t *testing.T) {
	// Arrange
	assembler, pending, sender := newTestAssembler()
	ctx := context.Background()

	pending.On("FindUnprocessed", ctx, models.CadenceDaily).Return([]models.PendingNotification{}, nil)

	// Act
	report, err := assembler.Run(ctx, models.CadenceDaily)

	// Assert
	require.NoError(t, err)
	assert.Zero(t, report.Subscribers)
	assert.Zero(t, report.Delivered)
	sender.AssertNotCalled(t, "SendDigest", mock.Anything, mock.Anything)
	pending.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_GroupsPerSubscriber(t *testing.T) {
	// Arrange: three queued items across two subscribers yield two payloads.
	assembler, pending, sender := newTestAssembler()
	ctx := context.Background()

	items := []models.PendingNotification{
		queuedItem("sub-a", models.ActivityNewPermit, nil),
		queuedItem("sub-a", models.ActivityCompletion, nil),
		queuedItem("sub-b", models.ActivityNewPermit, nil),
	}
	pending.On("FindUnprocessed", ctx, models.CadenceDaily).Return(items, nil)

	var payloads []models.DigestPayload
	sender.On("SendDigest", ctx, mock.Anything).Run(func(args mock.Arguments) {
		payloads = append(payloads, args.Get(1).(models.DigestPayload))
	}).Return(nil)
	pending.On("MarkProcessed", ctx, mock.Anything, digestNow).Return(nil)

	// Act
	report, err := assembler.Run(ctx, models.CadenceDaily)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, report.Subscribers)
	assert.Equal(t, 2, report.Delivered)
	require.Len(t, payloads, 2)

	// Deterministic subscriber order.
	assert.Equal(t, "sub-a@example.com", payloads[0].Email)
	assert.Equal(t, "sub-b@example.com", payloads[1].Email)

	// sub-a's payload groups by activity type.
	assert.Len(t, payloads[0].Groups[models.ActivityNewPermit], 1)
	assert.Len(t, payloads[0].Groups[models.ActivityCompletion], 1)
	assert.Equal(t, 2, payloads[0].ItemCount())
}

func TestRun_FailedDeliveryLeavesRowsUnprocessed(t *testing.T) {
	// Arrange: sub-a's send fails; its rows must stay unprocessed while sub-b
	// is delivered and marked.
	assembler, pending, sender := newTestAssembler()
	ctx := context.Background()

	itemA := queuedItem("sub-a", models.ActivityNewPermit, nil)
	itemB := queuedItem("sub-b", models.ActivityNewPermit, nil)
	pending.On("FindUnprocessed", ctx, models.CadenceDaily).Return([]models.PendingNotification{itemA, itemB}, nil)

	sender.On("SendDigest", ctx, mock.MatchedBy(func(p models.DigestPayload) bool {
		return p.Email == "sub-a@example.com"
	})).Return(errors.New("provider 503"))
	sender.On("SendDigest", ctx, mock.MatchedBy(func(p models.DigestPayload) bool {
		return p.Email == "sub-b@example.com"
	})).Return(nil)
	pending.On("MarkProcessed", ctx, []uuid.UUID{itemB.ID}, digestNow).Return(nil)

	// Act
	report, err := assembler.Run(ctx, models.CadenceDaily)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "sub-a")
	// MarkProcessed called only for sub-b's rows.
	pending.AssertNumberOfCalls(t, "MarkProcessed", 1)
}

func TestRun_RetriedPayloadProcessedOnce(t *testing.T) {
	// Arrange: a payload that failed last tick is re-sent whole on the next
	// tick and only then marked processed.
	assembler, pending, sender := newTestAssembler()
	ctx := context.Background()

	item := queuedItem("sub-a", models.ActivityNewPermit, nil)

	pending.On("FindUnprocessed", ctx, models.CadenceDaily).Return([]models.PendingNotification{item}, nil).Once()
	sender.On("SendDigest", ctx, mock.Anything).Return(errors.New("timeout")).Once()

	report1, err := assembler.Run(ctx, models.CadenceDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, report1.Failed)

	// Next tick: the same row is still unprocessed.
	pending.On("FindUnprocessed", ctx, models.CadenceDaily).Return([]models.PendingNotification{item}, nil).Once()
	sender.On("SendDigest", ctx, mock.Anything).Return(nil).Once()
	pending.On("MarkProcessed", ctx, []uuid.UUID{item.ID}, digestNow).Return(nil).Once()

	// Act
	report2, err := assembler.Run(ctx, models.CadenceDaily)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, report2.Delivered)
	pending.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestRun_QueueLoadFailureIsFatal(t *testing.T) {
	// Arrange
	assembler, pending, _ := newTestAssembler()
	ctx := context.Background()

	pending.On("FindUnprocessed", ctx, models.CadenceWeekly).Return(nil, errors.New("connection refused"))

	// Act
	_, err := assembler.Run(ctx, models.CadenceWeekly)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest queue")
}

func TestRun_HighlightsExpiringPermits(t *testing.T) {
	// Arrange: three permits, one expiring inside the window, one far out,
	// one already expired.
	assembler, pending, sender := newTestAssembler()
	ctx := context.Background()

	soon := digestNow.Add(3 * 24 * time.Hour)
	far := digestNow.Add(30 * 24 * time.Hour)
	past := digestNow.Add(-24 * time.Hour)

	items := []models.PendingNotification{
		queuedItem("sub-a", models.ActivityNewPermit, &soon),
		queuedItem("sub-a", models.ActivityNewPermit, &far),
		queuedItem("sub-a", models.ActivityNewPermit, &past),
	}
	pending.On("FindUnprocessed", ctx, models.CadenceDaily).Return(items, nil)

	var payload models.DigestPayload
	sender.On("SendDigest", ctx, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(models.DigestPayload)
	}).Return(nil)
	pending.On("MarkProcessed", ctx, mock.Anything, digestNow).Return(nil)

	// Act
	_, err := assembler.Run(ctx, models.CadenceDaily)

	// Assert
	require.NoError(t, err)
	require.Len(t, payload.Highlights, 1)
	assert.True(t, payload.Highlights[0].ExpiresAt.Equal(soon))
	assert.Equal(t, 3, payload.ItemCount(), "non-highlighted permits still appear in their group")
}

func TestRun_HighlightsSortedByExpiry(t *testing.T) {
	// Arrange
	assembler, pending, sender := newTestAssembler()
	ctx := context.Background()

	in5 := digestNow.Add(5 * 24 * time.Hour)
	in2 := digestNow.Add(2 * 24 * time.Hour)

	items := []models.PendingNotification{
		queuedItem("sub-a", models.ActivityNewPermit, &in5),
		queuedItem("sub-a", models.ActivityNewPermit, &in2),
	}
	pending.On("FindUnprocessed", ctx, models.CadenceDaily).Return(items, nil)

	var payload models.DigestPayload
	sender.On("SendDigest", ctx, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(models.DigestPayload)
	}).Return(nil)
	pending.On("MarkProcessed", ctx, mock.Anything, digestNow).Return(nil)

	// Act
	_, err := assembler.Run(ctx, models.CadenceDaily)

	// Assert
	require.NoError(t, err)
	require.Len(t, payload.Highlights, 2)
	assert.True(t, payload.Highlights[0].ExpiresAt.Equal(in2), "soonest expiry leads")
	assert.True(t, payload.Highlights[1].ExpiresAt.Equal(in5))
}

func TestRun_MarkProcessedFailureRecorded(t *testing.T) {
	// Arrange: delivery succeeded but stamping failed; the error is recorded
	// so operators know the rows may resend.
	assembler, pending, sender := newTestAssembler()
	ctx := context.Background()

	item := queuedItem("sub-a", models.ActivityNewPermit, nil)
	pending.On("FindUnprocessed", ctx, models.CadenceDaily).Return([]models.PendingNotification{item}, nil)
	sender.On("SendDigest", ctx, mock.Anything).Return(nil)
	pending.On("MarkProcessed", ctx, mock.Anything, digestNow).Return(errors.New("deadlock detected"))

	// Act
	report, err := assembler.Run(ctx, models.CadenceDaily)

	// Assert
	require.NoError(t, err)
	assert.Zero(t, report.Delivered)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "mark processed")
}
