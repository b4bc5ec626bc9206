// Package broker delivers "<task id>:<retry count>" instructions from the
// enqueue endpoint to the worker pool. It is a fast path, not the system of
// record: a dropped or unreceived instruction is always recoverable because
// the due scanner periodically re-pushes anything still pending and due in
// store.Store.
package broker

import (
	"context"
	"time"
)

// Broker is the instruction hand-off between the HTTP enqueue endpoint (and
// the due scanner) and the worker pool.
type Broker interface {
	// Push enqueues instruction. Implementations should not block the
	// caller indefinitely; a full or unavailable broker is expected to be
	// logged and dropped, trusting the due scanner to recover it.
	Push(ctx context.Context, instruction string) error

	// PopBlocking waits up to timeout for an instruction. ok is false
	// (with a nil error) on a plain timeout, which the worker pool's
	// adaptive poller treats as "queue empty" rather than an error.
	PopBlocking(ctx context.Context, timeout time.Duration) (instruction string, ok bool, err error)
}
