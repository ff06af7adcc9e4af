package reference

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	args := m.Called(ctx, reference)
	return args.Bool(0), args.Error(1)
}

func fixedNow() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

func TestNext_UsesRedisCounter(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	store := new(mockStore)
	ctx := context.Background()

	a := NewAllocator("cn", db, store, nil)
	a.now = fixedNow

	mockRedis.ExpectIncr("booking:reference:2026").SetVal(42)
	store.On("ReferenceExists", ctx, "CN-2026-000042").Return(false, nil)

	ref, err := a.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CN-2026-000042", ref)
	assert.NoError(t, mockRedis.ExpectationsWereMet())
	store.AssertExpectations(t)
}

func TestNext_SkipsTakenReference(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	store := new(mockStore)
	ctx := context.Background()

	a := NewAllocator("CN", db, store, nil)
	a.now = fixedNow

	mockRedis.ExpectIncr("booking:reference:2026").SetVal(7)
	mockRedis.ExpectIncr("booking:reference:2026").SetVal(8)
	store.On("ReferenceExists", ctx, "CN-2026-000007").Return(true, nil)
	store.On("ReferenceExists", ctx, "CN-2026-000008").Return(false, nil)

	ref, err := a.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CN-2026-000008", ref)
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}

func TestNext_FallsBackWhenRedisFails(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	store := new(mockStore)
	ctx := context.Background()

	a := NewAllocator("CN", db, store, nil)
	a.now = fixedNow

	mockRedis.ExpectIncr("booking:reference:2026").SetErr(errors.New("connection refused"))
	store.On("ReferenceExists", ctx, mock.AnythingOfType("string")).Return(false, nil)

	ref, err := a.Next(ctx)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^CN-2026-[0-9A-F]{8}$`), ref)
}

func TestNext_WithoutRedis(t *testing.T) {
	store := new(mockStore)
	ctx := context.Background()
	a := NewAllocator("CN", nil, store, nil)

	store.On("ReferenceExists", ctx, mock.AnythingOfType("string")).Return(false, nil)

	first, err := a.Next(ctx)
	require.NoError(t, err)
	second, err := a.Next(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestNext_GivesUpAfterRepeatedCollisions(t *testing.T) {
	store := new(mockStore)
	ctx := context.Background()
	a := NewAllocator("CN", nil, store, nil)

	store.On("ReferenceExists", ctx, mock.AnythingOfType("string")).Return(true, nil)

	_, err := a.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	store.AssertNumberOfCalls(t, "ReferenceExists", maxAttempts)
}
