package executor

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// HandlerFunc is the in-process state machine body: it receives the raw
// execution input document and returns the raw output document.
type HandlerFunc func(ctx context.Context, input string) (string, error)

// Local runs executions in-process by calling a Go handler as the state
// machine. Handler errors of type *ExecutionError become FAILED results
// with the given error name and cause; *StatusCodeError values pass through
// as transport errors; any other error becomes a FAILED result with a
// generic task failure name. Context expiry produces a TIMED_OUT result.
type Local struct {
	name    string
	handler HandlerFunc
}

// NewLocal returns a local executor named like the state machine it stands
// in for.
func NewLocal(name string, handler HandlerFunc) *Local {
	return &Local{name: name, handler: handler}
}

// StartSyncExecution runs the handler synchronously and wraps its outcome
// in the shared result envelope.
func (l *Local) StartSyncExecution(ctx context.Context, in Input) (*Result, error) {
	if l.handler == nil {
		return nil, errors.New("local executor: handler is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	arn := fmt.Sprintf("arn:aws:states:local:000000000000:express:%s:%s", l.name, newExecutionID())

	output, err := l.handler(ctx, in.Input)
	if err != nil {
		var statusErr *StatusCodeError
		if errors.As(err, &statusErr) {
			return nil, statusErr
		}

		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			return &Result{ExecutionARN: arn, Status: StatusFailed, Error: execErr.Name, Cause: execErr.Cause}, nil
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Result{ExecutionARN: arn, Status: StatusTimedOut, Error: "States.Timeout", Cause: err.Error()}, nil
		}

		return &Result{ExecutionARN: arn, Status: StatusFailed, Error: "States.TaskFailed", Cause: err.Error()}, nil
	}

	return &Result{ExecutionARN: arn, Status: StatusSucceeded, Output: output}, nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newExecutionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}
