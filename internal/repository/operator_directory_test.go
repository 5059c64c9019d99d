package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wellwatchhq/wellwatch/internal/cache"
)

// MockOperatorDirectory is a mock implementation of OperatorDirectory for testing
type MockOperatorDirectory struct {
	mock.Mock
}

func (m *MockOperatorDirectory) LookupName(ctx context.Context, operatorNo string) (string, error) {
	args := m.Called(ctx, operatorNo)
	return args.String(0), args.Error(1)
}

func TestCachedLookupName_MissPopulatesCache(t *testing.T) {
	// Arrange
	inner := new(MockOperatorDirectory)
	ctx := context.Background()
	inner.On("LookupName", ctx, "22281").Return("Continental Resources", nil).Once()

	cached := NewCachedOperatorDirectory(inner, cache.NewTTL[string, string](), time.Hour)

	// Act: second lookup must be served from cache.
	first, err1 := cached.LookupName(ctx, "22281")
	second, err2 := cached.LookupName(ctx, "22281")

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, "Continental Resources", first)
	assert.Equal(t, "Continental Resources", second)
	inner.AssertExpectations(t)
}

func TestCachedLookupName_ErrorNotCached(t *testing.T) {
	// Arrange: the failed lookup must not poison the cache.
	inner := new(MockOperatorDirectory)
	ctx := context.Background()
	inner.On("LookupName", ctx, "22281").Return("", errors.New("connection refused")).Once()
	inner.On("LookupName", ctx, "22281").Return("Continental Resources", nil).Once()

	cached := NewCachedOperatorDirectory(inner, cache.NewTTL[string, string](), time.Hour)

	// Act
	_, err1 := cached.LookupName(ctx, "22281")
	name, err2 := cached.LookupName(ctx, "22281")

	// Assert
	require.Error(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, "Continental Resources", name)
	inner.AssertExpectations(t)
}

func TestCachedLookupName_ExpiredEntryRefetched(t *testing.T) {
	// Arrange
	inner := new(MockOperatorDirectory)
	ctx := context.Background()
	inner.On("LookupName", ctx, "22281").Return("Continental Resources", nil).Twice()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := cache.NewTTLWithClock[string, string](func() time.Time { return now })
	cached := NewCachedOperatorDirectory(inner, c, time.Hour)

	// Act
	_, err1 := cached.LookupName(ctx, "22281")
	now = now.Add(2 * time.Hour)
	_, err2 := cached.LookupName(ctx, "22281")

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	inner.AssertExpectations(t)
}

func TestCachedLookupName_NoopCacheAlwaysDelegates(t *testing.T) {
	// Arrange
	inner := new(MockOperatorDirectory)
	ctx := context.Background()
	inner.On("LookupName", ctx, "22281").Return("Continental Resources", nil).Twice()

	cached := NewCachedOperatorDirectory(inner, &cache.Noop[string, string]{}, time.Hour)

	// Act
	_, err1 := cached.LookupName(ctx, "22281")
	_, err2 := cached.LookupName(ctx, "22281")

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	inner.AssertExpectations(t)
}
