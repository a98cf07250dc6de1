package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinscope/coinscope/internal/queue"
)

func TestRegistryGetUnknownName(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("no-such-job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-job")
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("do-thing", func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
		called = true
		return "ok", nil
	})

	h, err := r.Get("do-thing")
	require.NoError(t, err)

	out, err := h(context.Background(), &queue.Job{Name: "do-thing"}, func(int) {})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.True(t, called)
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) { return nil, nil }
	r.Register("zebra", noop)
	r.Register("alpha", noop)
	r.Register("mid", noop)

	assert.Equal(t, []string{"alpha", "mid", "zebra"}, r.Names())
}
