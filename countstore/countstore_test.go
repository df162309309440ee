package countstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/winnowbot/winnow/status"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.Get(ctx, status.StatusBanned)
	assert.NoError(err)
	assert.Equal(int64(0), c)

	assert.NoError(cs.IncrementBy(ctx, status.StatusBanned, 1))
	assert.NoError(cs.IncrementBy(ctx, status.StatusBanned, 1))
	assert.NoError(cs.IncrementBy(ctx, status.StatusPending, 1))
	assert.NoError(cs.IncrementBy(ctx, status.StatusPending, -1))

	c, err = cs.Get(ctx, status.StatusBanned)
	assert.NoError(err)
	assert.Equal(int64(2), c)

	c, err = cs.Get(ctx, status.StatusPending)
	assert.NoError(err)
	assert.Equal(int64(0), c)

	all, err := cs.All(ctx)
	assert.NoError(err)
	assert.Equal(int64(2), all[status.StatusBanned])

	assert.NoError(cs.Set(ctx, status.StatusBanned, 7))
	c, err = cs.Get(ctx, status.StatusBanned)
	assert.NoError(err)
	assert.Equal(int64(7), c)
}
