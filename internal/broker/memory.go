package broker

import (
	"context"
	"log/slog"
	"time"
)

// Memory is a buffered-channel Broker for tests and single-process
// deployments. Push never blocks: a full channel means a slow or stuck
// worker pool, and dropping the push in favor of the due scanner's recovery
// pass is preferable to blocking the HTTP request that triggered it.
type Memory struct {
	ch chan string
}

// NewMemory returns a Memory broker with the given channel capacity.
func NewMemory(capacity int) *Memory {
	return &Memory{ch: make(chan string, capacity)}
}

func (m *Memory) Push(ctx context.Context, instruction string) error {
	select {
	case m.ch <- instruction:
		return nil
	default:
		slog.WarnContext(ctx, "dropped instruction, broker queue full", slog.String("instruction", instruction))
		return nil
	}
}

func (m *Memory) PopBlocking(ctx context.Context, timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case instruction := <-m.ch:
		return instruction, true, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}
