package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCannedResponse(t *testing.T) {
	m := NewMock("test-model")
	m.AddResponse("ping", "pong")

	got, err := m.Complete(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}

func TestMockFallback(t *testing.T) {
	m := NewMock("test-model")
	m.SetFallback(func(prompt string) (string, error) {
		return "fallback:" + prompt, nil
	})

	got, err := m.Complete(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "fallback:anything", got)
}

func TestMockDefaultEcho(t *testing.T) {
	m := NewMock("test-model")
	got, err := m.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, got, "hello")
}

func TestMockCanceledContext(t *testing.T) {
	m := NewMock("test-model")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Complete(ctx, "ping")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestMockExpiredDeadline(t *testing.T) {
	m := NewMock("test-model")
	ctx, cancel := context.WithTimeout(context.Background(), -time.Nanosecond)
	defer cancel()

	_, err := m.Complete(ctx, "ping")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestThrottledPassesThrough(t *testing.T) {
	m := NewMock("test-model")
	m.AddResponse("ping", "pong")
	th := NewThrottled(m, 1000)

	got, err := th.Complete(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
	assert.Equal(t, m.Info(), th.Info())
}

func TestThrottledContextExpiry(t *testing.T) {
	m := NewMock("test-model")
	// Limiter with a very low rate: the second call cannot get a slot
	// before the context deadline.
	th := NewThrottled(m, 0.001)

	_, err := th.Complete(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = th.Complete(ctx, "second")
	assert.ErrorIs(t, err, ErrTimeout)
}
