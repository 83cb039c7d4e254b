package meta

import (
	"context"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestBeginIsIdempotent(t *testing.T) {
	ctx := Begin(context.Background())
	assert.Equal(t, ctx, Begin(ctx))
}

func TestValuesWithoutBegin(t *testing.T) {
	ctx := context.Background()
	WithValue(ctx, "k", "v")
	assert.Nil(t, Value(ctx, "k"))
	assert.Equal(t, "-", RequestID(ctx))
}

func TestRequestIDVisibleToChildren(t *testing.T) {
	ctx := Begin(context.Background())
	child, cancel := context.WithCancel(ctx)
	defer cancel()

	WithRequestID(child, "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "req-1", RequestID(child))
}
