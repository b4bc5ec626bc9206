// Package workerpool runs a bounded set of goroutines that pull
// instructions off a broker and hand them to a performer.Performer,
// adaptively slowing its own polling when the broker goes quiet or starts
// erroring so an idle queue doesn't spin a tight loop against it.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rezkam/torque/internal/broker"
	"github.com/rezkam/torque/internal/performer"
	"github.com/rezkam/torque/internal/store"
)

// Config tunes the pool's concurrency and its adaptive polling backoff.
type Config struct {
	// MaxTasks is the number of concurrent webhook calls the pool runs.
	MaxTasks int

	// MinDelay is the poll delay used right after an instruction was
	// received, and the floor the backoff never shrinks below.
	MinDelay time.Duration

	// MaxEmptyDelay is the ceiling the backoff grows to while the broker
	// keeps timing out with nothing to deliver.
	MaxEmptyDelay time.Duration

	// MaxErrorDelay is the ceiling the backoff grows to while the broker
	// itself is erroring (e.g. a database connectivity blip).
	MaxErrorDelay time.Duration

	// EmptyMultiplier scales the backoff up on each empty poll.
	EmptyMultiplier float64

	// ErrorMultiplier scales the backoff up on each broker error.
	ErrorMultiplier float64

	// FinishOnEmpty makes Run return (true, nil) once the broker has gone
	// quiet and Store reports no pending tasks left, instead of polling
	// forever. Used by one-shot worker invocations (e.g. a cron-triggered
	// drain) as opposed to a long-running daemon.
	FinishOnEmpty bool
}

// Pool dispatches instructions from a broker to a bounded set of performer
// goroutines.
type Pool struct {
	broker    broker.Broker
	performer *performer.Performer
	store     store.Store
	cfg       Config
}

// New returns a Pool wiring b, p, and s together under cfg.
func New(b broker.Broker, p *performer.Performer, s store.Store, cfg Config) *Pool {
	return &Pool{broker: b, performer: p, store: s, cfg: cfg}
}

// Run dispatches instructions until ctx is cancelled, or, when
// FinishOnEmpty is set, until the broker and the store both agree there is
// nothing left pending. drained is true only in the latter case; a false
// return with a nil error means ctx was cancelled (ordinary shutdown). A
// non-nil error is returned only with FinishOnEmpty set, when a broker poll
// or the store's pending count fails; otherwise broker errors only slow
// the polling down.
func (p *Pool) Run(ctx context.Context) (drained bool, err error) {
	flag := performer.NewControlFlag(ctx)
	dispatch := make(chan string, p.cfg.MaxTasks)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var active int
	done := make(chan struct{})
	for i := 0; i < p.cfg.MaxTasks; i++ {
		active++
		go func() {
			defer func() { done <- struct{}{} }()
			p.work(workerCtx, dispatch, flag)
		}()
	}

	drained, err = p.poll(ctx, dispatch)

	flag.Clear()
	close(dispatch)
	for i := 0; i < active; i++ {
		<-done
	}

	return drained, err
}

// work pulls instructions off dispatch until it is closed, handing each one
// to the performer. A closed dispatch channel is the ordinary,
// non-error shutdown signal for a worker goroutine.
func (p *Pool) work(ctx context.Context, dispatch <-chan string, flag *performer.ControlFlag) {
	for instruction := range dispatch {
		if err := p.performer.Perform(ctx, instruction, flag); err != nil {
			slog.ErrorContext(ctx, "performing instruction failed", slog.String("instruction", instruction), slog.String("error", err.Error()))
		}
	}
}

// poll is the adaptive-backoff supervisor: it pops instructions off the
// broker one at a time and feeds them to dispatch, slowing down while the
// broker is empty or erroring and resetting to MinDelay the moment work
// shows up again.
func (p *Pool) poll(ctx context.Context, dispatch chan<- string) (drained bool, err error) {
	delay := p.cfg.MinDelay

	clamp := func(d, ceiling time.Duration) time.Duration {
		if d < p.cfg.MinDelay {
			return p.cfg.MinDelay
		}
		if d > ceiling {
			return ceiling
		}
		return d
	}

	for {
		select {
		case <-ctx.Done():
			return false, nil
		default:
		}

		instruction, ok, popErr := p.broker.PopBlocking(ctx, delay)
		switch {
		case popErr != nil && errors.Is(popErr, context.Canceled):
			return false, nil
		case popErr != nil:
			slog.WarnContext(ctx, "broker poll failed", slog.String("error", popErr.Error()))
			if p.cfg.FinishOnEmpty && ctx.Err() == nil {
				return false, fmt.Errorf("polling broker: %w", popErr)
			}
			delay = clamp(time.Duration(float64(delay)*p.cfg.ErrorMultiplier), p.cfg.MaxErrorDelay)
			continue
		case ok:
			delay = p.cfg.MinDelay
			select {
			case dispatch <- instruction:
			case <-ctx.Done():
				return false, nil
			}
		default: // empty poll
			if p.cfg.FinishOnEmpty {
				pending, countErr := p.store.CountPending(ctx)
				if countErr != nil {
					return false, fmt.Errorf("counting pending tasks: %w", countErr)
				}
				if pending == 0 {
					return true, nil
				}
			}
			delay = clamp(time.Duration(float64(delay)*p.cfg.EmptyMultiplier), p.cfg.MaxEmptyDelay)
		}
	}
}
