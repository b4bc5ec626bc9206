// Package performer issues the webhook call a task instruction names and
// drives the resulting outcome back through the lifecycle manager.
package performer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rezkam/torque/internal/lifecycle"
)

// completeStatusCeiling and failStatusCeiling bound the three-way split of an HTTP
// response into complete / fail / reschedule. They mirror the original
// implementation's asymmetric boundary verbatim: 201 still completes a
// task (some webhooks reply 201 Created to a POST) while 202 already
// counts as a failure, not a success. This looks off balance but is
// intentional and preserved rather than "fixed" into a rounder 199/299 split.
const (
	completeStatusCeiling = 201
	failStatusCeiling     = 499
)

// Performer issues the HTTP call named by a "<task id>:<retry count>"
// instruction and reports its outcome to the lifecycle manager.
type Performer struct {
	manager *lifecycle.Manager
	client  *http.Client
}

// New returns a Performer that acquires tasks through manager and issues
// webhook calls with client.
func New(manager *lifecycle.Manager, client *http.Client) *Performer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Performer{manager: manager, client: client}
}

// Perform parses instruction, acquires the named task, issues its webhook
// call, and commits the resulting transition. A malformed instruction or a
// lost acquire race is logged and treated as a no-op, not an error: both
// are expected outcomes of a broker that is allowed to redeliver.
func (p *Performer) Perform(ctx context.Context, instruction string, flag *ControlFlag) error {
	id, retryCount, err := parseInstruction(instruction)
	if err != nil {
		slog.WarnContext(ctx, "dropping malformed instruction", slog.String("instruction", instruction), slog.String("error", err.Error()))
		return nil
	}

	snapshot, ok, err := p.manager.Acquire(ctx, id, retryCount)
	if err != nil {
		return fmt.Errorf("acquiring task %s: %w", id, err)
	}
	if !ok {
		slog.DebugContext(ctx, "acquire missed, task already progressed", slog.String("task_id", id))
		return nil
	}

	req, cancel, err := p.buildRequest(ctx, snapshot)
	if err != nil {
		// A task whose own data can't build a valid request will never
		// succeed no matter how many times it is retried.
		return snapshot.Fail(ctx)
	}
	defer cancel()

	resp, respErr := p.doWithControlFlag(req, flag)

	switch {
	case respErr == nil && resp.StatusCode <= completeStatusCeiling:
		return snapshot.Complete(ctx)
	case respErr == nil && resp.StatusCode <= failStatusCeiling:
		return snapshot.Fail(ctx)
	default:
		return snapshot.Reschedule(ctx)
	}
}

// doWithControlFlag races the outgoing HTTP call against the shutdown
// signal. If both become ready around the same time, the response that has
// already arrived wins: evaluating it lets a task complete or fail on its
// true outcome instead of being rescheduled just because the pool happened
// to be shutting down at that instant, which would otherwise re-deliver a
// webhook that actually already succeeded.
func (p *Performer) doWithControlFlag(req *http.Request, flag *ControlFlag) (*http.Response, error) {
	type result struct {
		resp *http.Response
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := p.client.Do(req)
		resultCh <- result{resp: resp, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.resp, r.err
	case <-flag.Done():
		select {
		case r := <-resultCh:
			return r.resp, r.err
		default:
			return nil, fmt.Errorf("aborted: %w", req.Context().Err())
		}
	}
}

func (p *Performer) buildRequest(ctx context.Context, snapshot lifecycle.Snapshot) (*http.Request, context.CancelFunc, error) {
	timeout := time.Duration(snapshot.Timeout) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, snapshot.URL, bytes.NewReader(snapshot.Body))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("building request: %w", err)
	}

	contentType := snapshot.Enctype
	if snapshot.Charset != "" {
		contentType = fmt.Sprintf("%s; charset=%s", snapshot.Enctype, snapshot.Charset)
	}
	req.Header.Set("Content-Type", contentType)

	for k, v := range snapshot.Headers {
		req.Header.Set(k, v)
	}

	return req, cancel, nil
}

func parseInstruction(instruction string) (id string, retryCount int, err error) {
	idPart, retryPart, found := strings.Cut(instruction, ":")
	if !found {
		return "", 0, fmt.Errorf("instruction %q missing ':' separator", instruction)
	}

	retryCount, err = strconv.Atoi(retryPart)
	if err != nil {
		return "", 0, fmt.Errorf("instruction %q has non-integer retry count: %w", instruction, err)
	}

	return idPart, retryCount, nil
}
