// Package duescanner is the safety net behind the broker: it periodically
// re-pushes any pending task whose due date has passed, recovering
// instructions the broker lost (a crash between Insert and Push, a dropped
// Postgres NOTIFY) without which such a task would simply wait forever.
package duescanner

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rezkam/torque/internal/broker"
	"github.com/rezkam/torque/internal/store"
)

// Config controls how often the scanner runs and how many tasks it
// re-pushes per pass.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// Scanner runs Config.Interval-spaced scans of the store for due, pending
// tasks and re-pushes each as an instruction.
type Scanner struct {
	store  store.Store
	broker broker.Broker
	cfg    Config

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// New returns a Scanner that reads from s and re-pushes to b.
func New(s store.Store, b broker.Broker, cfg Config) *Scanner {
	return &Scanner{store: s, broker: b, cfg: cfg}
}

// Start begins scanning on a ticker until ctx is cancelled or Stop is called.
func (sc *Scanner) Start(ctx context.Context) {
	sc.ticker = time.NewTicker(sc.cfg.Interval)
	sc.done = make(chan struct{})

	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		for {
			select {
			case <-sc.ticker.C:
				sc.scanOnce(ctx)
			case <-ctx.Done():
				return
			case <-sc.done:
				return
			}
		}
	}()
}

// Stop halts the scanning goroutine and waits for it to exit.
func (sc *Scanner) Stop() {
	sc.ticker.Stop()
	close(sc.done)
	sc.wg.Wait()
}

func (sc *Scanner) scanOnce(ctx context.Context) {
	tasks, err := sc.store.ScanDue(ctx, time.Now().UTC(), sc.cfg.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "due scan failed", slog.String("error", err.Error()))
		return
	}

	for _, task := range tasks {
		instruction := task.ID + ":" + strconv.Itoa(task.RetryCount)
		if err := sc.broker.Push(ctx, instruction); err != nil {
			slog.WarnContext(ctx, "failed to re-push due task", slog.String("task_id", task.ID), slog.String("error", err.Error()))
		}
	}

	if len(tasks) > 0 {
		slog.InfoContext(ctx, "due scan re-pushed tasks", slog.Int("count", len(tasks)))
	}
}
