package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flowgate/flowgate/executor"
)

// Func represents a health check that returns an error when the resource is unavailable.
type Func func(ctx context.Context) error

// PingFunc represents a health check that returns an error when the resource is unavailable.
type PingFunc func(ctx context.Context) error

// HTTPDoer represents the subset of *http.Client required by the HTTP probe helper.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewPingProbe wraps a PingFunc with standardised error handling suitable for gateway status probes.
func NewPingProbe(name string, fn PingFunc) Func {
	return func(ctx context.Context) error {
		if fn == nil {
			return nilComponentError(name, "ping function")
		}
		ctx = contextOrBackground(ctx)

		if err := fn(ctx); err != nil {
			return fmt.Errorf("%s probe failed: %w", name, err)
		}
		return nil
	}
}

// heartbeatInput is the execution input sent by executor probes. State
// machines are expected to treat it as a no-op run.
const heartbeatInput = `{"heartbeat":true}`

// NewExecutorProbe creates a Func that starts a heartbeat execution against the
// backend. The probe succeeds only when the execution reaches the SUCCEEDED
// terminal status; transport errors, failed runs, and timed out runs all mark
// the backend unavailable.
func NewExecutorProbe(name string, exec executor.SyncExecutor, stateMachineARN string) Func {
	return func(ctx context.Context) error {
		if exec == nil {
			return nilComponentError(name, "executor")
		}
		ctx = contextOrBackground(ctx)

		res, err := exec.StartSyncExecution(ctx, executor.Input{
			StateMachineARN: stateMachineARN,
			Input:           heartbeatInput,
		})
		if err != nil {
			return fmt.Errorf("%s probe failed: %w", name, err)
		}
		if res.Status != executor.StatusSucceeded {
			return fmt.Errorf("%s probe failed: heartbeat execution ended %s: %s", name, res.Status, res.Error)
		}
		return nil
	}
}

// NewHTTPProbe creates a Func that performs an HTTP request against the supplied endpoint.
// The probe succeeds when the response status code is within the 2xx range.
func NewHTTPProbe(name, method, target string, client HTTPDoer, opts ...HTTPProbeOption) Func {
	return func(ctx context.Context) error {
		trimmedTarget := strings.TrimSpace(target)
		if trimmedTarget == "" {
			return fmt.Errorf("%s probe: target URL is required", name)
		}

		verb := strings.ToUpper(strings.TrimSpace(method))
		if verb == "" {
			verb = http.MethodGet
		}

		ctx = contextOrBackground(ctx)

		req, err := http.NewRequestWithContext(ctx, verb, trimmedTarget, nil)
		if err != nil {
			return fmt.Errorf("%s probe: failed to build request: %w", name, err)
		}

		cfg := buildHTTPProbeConfig(client, opts...)

		if err := cfg.applyMutators(req); err != nil {
			return fmt.Errorf("%s probe: request mutation failed: %w", name, err)
		}

		resp, err := cfg.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s probe request failed: %w", name, err)
		}
		defer resp.Body.Close()

		if err := cfg.validateResponse(resp); err != nil {
			return fmt.Errorf("%s probe: %w", name, err)
		}

		if cfg.drainResponse {
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				return fmt.Errorf("%s probe: failed to drain response body: %w", name, err)
			}
		}
		return nil
	}
}
