// Package executor starts synchronous state machine executions. It defines
// the invocation envelope shared by all backends, an AWS Step Functions
// implementation over aws-sdk-go-v2, and an in-process implementation for
// tests, examples, and offline gateway runs.
package executor

import (
	"context"
	"fmt"
)

// Status is the terminal status of a synchronous execution.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusTimedOut  Status = "TIMED_OUT"
)

// Input is the invocation envelope produced by the request mapping template.
type Input struct {
	StateMachineARN string
	Input           string
	Name            string
}

// Result mirrors the synchronous execution result envelope. Error and Cause
// are populated only for failed executions; Output carries the raw JSON
// output of succeeded ones.
type Result struct {
	ExecutionARN string
	Status       Status
	Output       string
	Error        string
	Cause        string
}

// SyncExecutor starts one synchronous execution and waits for its terminal
// result. A non-nil error reports a transport or platform level failure; a
// failed execution is reported through the Result status instead.
type SyncExecutor interface {
	StartSyncExecution(ctx context.Context, in Input) (*Result, error)
}

// StatusCodeError is a transport-level platform error carrying the HTTP
// status the platform reported, such as a 4xx rejection of the request or a
// 5xx service fault. The response classifier matches its Signal against the
// configured selection patterns.
type StatusCodeError struct {
	Code    int
	Message string
}

func (e *StatusCodeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Message)
}

// Signal returns the raw status signal matched by selection patterns.
func (e *StatusCodeError) Signal() string {
	return fmt.Sprintf("%d", e.Code)
}

// ExecutionError lets in-process handlers report a failed run with an
// explicit error name and cause, mirroring how state machines fail on the
// platform. It is translated into a FAILED result, never surfaced as a Go
// error by the local executor.
type ExecutionError struct {
	Name  string
	Cause string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %s: %s", e.Name, e.Cause)
}
