package passcode

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetpin/entity"
	"meetpin/lib/apperr"
)

type fakeDialInStore struct {
	taken map[string]*entity.AccessRequest
	calls int
}

func (f *fakeDialInStore) AccessRequestByDialInCode(_ context.Context, code, _ string) (*entity.AccessRequest, error) {
	f.calls++
	return f.taken[code], nil
}

func neverCollides(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func TestGenerateSuffixRange(t *testing.T) {
	gen := NewGenerator(nil, testLogger())

	for i := 0; i < 50; i++ {
		code, err := gen.Generate(context.Background(), "1234567890", "test", 5, neverCollides)
		require.NoError(t, err)
		require.Len(t, code, 15)
		assert.Equal(t, "1234567890", code[:10])

		suffix, err := strconv.Atoi(code[10:])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, suffix, 10000)
		assert.LessOrEqual(t, suffix, 99999)
	}
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	gen := NewGenerator(nil, testLogger())

	calls := 0
	collides := func(_ context.Context, _, _ string) (bool, error) {
		calls++
		return calls < maxGenerateTries, nil
	}

	code, err := gen.Generate(context.Background(), "", "test", 5, collides)
	require.NoError(t, err)
	assert.Len(t, code, 5)
	assert.Equal(t, maxGenerateTries, calls)
}

func TestGenerateFailsClosedOnExhaustion(t *testing.T) {
	gen := NewGenerator(nil, testLogger())

	calls := 0
	alwaysTaken := func(_ context.Context, _, _ string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := gen.Generate(context.Background(), "", "test", 5, alwaysTaken)
	require.Error(t, err)
	assert.Equal(t, apperr.KindLimitExceeded, apperr.KindOf(err))
	assert.Equal(t, maxGenerateTries, calls)
}

func TestGeneratePropagatesCollisionError(t *testing.T) {
	gen := NewGenerator(nil, testLogger())

	broken := func(_ context.Context, _, _ string) (bool, error) {
		return false, assert.AnError
	}

	_, err := gen.Generate(context.Background(), "", "test", 5, broken)
	require.Error(t, err)
	require.ErrorIs(t, err, assert.AnError)
}

func TestUserDialInCode(t *testing.T) {
	store := &fakeDialInStore{}
	gen := NewGenerator(store, testLogger())

	code, err := gen.UserDialInCode(context.Background(), "wr-1", "profile-1", "1234567890")
	require.NoError(t, err)
	require.Len(t, code, 15)
	assert.Equal(t, "1234567890", code[:10])
	assert.Equal(t, 1, store.calls)
}

func TestUserDialInCodeExhaustsWhenAllTaken(t *testing.T) {
	gen := NewGenerator(&alwaysTakenStore{}, testLogger())

	_, err := gen.UserDialInCode(context.Background(), "wr-1", "profile-1", "1234567890")
	require.Error(t, err)
	assert.Equal(t, apperr.KindLimitExceeded, apperr.KindOf(err))
}

type alwaysTakenStore struct{}

func (alwaysTakenStore) AccessRequestByDialInCode(_ context.Context, _, _ string) (*entity.AccessRequest, error) {
	return &entity.AccessRequest{AccessRequestId: "existing"}, nil
}
