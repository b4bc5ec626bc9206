package duescanner_test

import (
	"context"
	"testing"
	"time"

	"github.com/rezkam/torque/internal/broker"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/duescanner"
	"github.com/rezkam/torque/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func TestScanner_RePushesDueTasks(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Insert(context.Background(), domain.Task{
		ID: "task-1", ApplicationID: "app-1", URL: "http://example.invalid",
		Timeout: 5, Due: time.Now().UTC().Add(-time.Minute),
	}))

	b := broker.NewMemory(4)
	sc := duescanner.New(s, b, duescanner.Config{Interval: 10 * time.Millisecond, BatchSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc.Start(ctx)
	defer sc.Stop()

	instruction, ok, err := b.PopBlocking(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "task-1:0", instruction)
}

func TestScanner_IgnoresNotYetDueTasks(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Insert(context.Background(), domain.Task{
		ID: "task-1", ApplicationID: "app-1", URL: "http://example.invalid",
		Timeout: 5, Due: time.Now().UTC().Add(time.Hour),
	}))

	b := broker.NewMemory(4)
	sc := duescanner.New(s, b, duescanner.Config{Interval: 10 * time.Millisecond, BatchSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc.Start(ctx)
	defer sc.Stop()

	_, ok, err := b.PopBlocking(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}
