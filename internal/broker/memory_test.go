package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rezkam/torque/internal/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PushThenPop(t *testing.T) {
	b := broker.NewMemory(1)
	require.NoError(t, b.Push(context.Background(), "task-1:0"))

	instruction, ok, err := b.PopBlocking(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "task-1:0", instruction)
}

func TestMemory_PopBlocking_TimesOutWhenEmpty(t *testing.T) {
	b := broker.NewMemory(1)

	_, ok, err := b.PopBlocking(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Push_DropsWhenFull(t *testing.T) {
	b := broker.NewMemory(1)
	require.NoError(t, b.Push(context.Background(), "task-1:0"))
	require.NoError(t, b.Push(context.Background(), "task-2:0"), "push must not error or block on a full queue")

	instruction, ok, err := b.PopBlocking(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "task-1:0", instruction, "the dropped push must be the second one, not the first")
}

func TestMemory_PopBlocking_RespectsContextCancellation(t *testing.T) {
	b := broker.NewMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := b.PopBlocking(ctx, time.Second)
	assert.False(t, ok)
	assert.Error(t, err)
}
