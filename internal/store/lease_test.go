package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLease(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ttl := 2 * time.Minute

	ok, err := s.AcquireLease(ctx, "reconciler", "a", t0, ttl)
	require.NoError(t, err)
	assert.True(t, ok, "free lease is acquired")

	ok, err = s.AcquireLease(ctx, "reconciler", "b", t0.Add(time.Minute), ttl)
	require.NoError(t, err)
	assert.False(t, ok, "held lease is not stolen")

	ok, err = s.AcquireLease(ctx, "reconciler", "a", t0.Add(time.Minute), ttl)
	require.NoError(t, err)
	assert.True(t, ok, "holder renews")

	holder, expires, found, err := s.LeaseHolder(ctx, "reconciler")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", holder)
	assert.True(t, expires.Equal(t0.Add(3*time.Minute)))

	ok, err = s.AcquireLease(ctx, "reconciler", "b", t0.Add(3*time.Minute), ttl)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease is taken over")
}

func TestReleaseLease(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AcquireLease(ctx, "reconciler", "a", t0, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.ReleaseLease(ctx, "reconciler", "b"))
	_, _, found, err := s.LeaseHolder(ctx, "reconciler")
	require.NoError(t, err)
	assert.True(t, found, "only the holder can release")

	require.NoError(t, s.ReleaseLease(ctx, "reconciler", "a"))
	_, _, found, err = s.LeaseHolder(ctx, "reconciler")
	require.NoError(t, err)
	assert.False(t, found)
}
