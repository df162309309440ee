package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore()

	v, err := cs.Get(ctx, "summary", "nobody")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(cs.Set(ctx, "summary", "some-user", "cached-blob", time.Hour))
	v, err = cs.Get(ctx, "summary", "some-user")
	assert.NoError(err)
	assert.Equal("cached-blob", v)

	assert.NoError(cs.Purge(ctx, "summary", "some-user"))
	v, err = cs.Get(ctx, "summary", "some-user")
	assert.NoError(err)
	assert.Equal("", v)
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cs.SetClock(func() time.Time { return now })

	assert.NoError(SetMarker(ctx, cs, "ran-recently", "cleanup", 10*time.Minute))
	ok, err := HasMarker(ctx, cs, "ran-recently", "cleanup")
	assert.NoError(err)
	assert.True(ok)

	now = now.Add(11 * time.Minute)
	ok, err = HasMarker(ctx, cs, "ran-recently", "cleanup")
	assert.NoError(err)
	assert.False(ok)
}
