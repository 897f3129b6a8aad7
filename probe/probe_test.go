package probe_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowgate/flowgate/executor"
	"github.com/flowgate/flowgate/probe"
)

func TestNewPingProbe(t *testing.T) {
	t.Run("nil function", func(t *testing.T) {
		probeFunc := probe.NewPingProbe("backend", nil)
		if err := probeFunc(context.Background()); err == nil {
			t.Fatal("expected error when ping function is nil")
		}
	})

	t.Run("success", func(t *testing.T) {
		called := false
		probeFunc := probe.NewPingProbe("backend", func(ctx context.Context) error {
			if ctx == nil {
				t.Fatal("expected non-nil context")
			}
			called = true
			return nil
		})

		if err := probeFunc(context.Background()); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if !called {
			t.Fatal("expected ping function to be called")
		}
	})

	t.Run("failure", func(t *testing.T) {
		sentinel := errors.New("boom")
		probeFunc := probe.NewPingProbe("backend", func(ctx context.Context) error {
			return sentinel
		})
		err := probeFunc(context.Background())
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected error to wrap sentinel, got %v", err)
		}
	})
}

func TestNewExecutorProbe(t *testing.T) {
	const arn = "arn:aws:states:eu-west-1:111122223333:stateMachine:Heartbeat"

	t.Run("nil executor", func(t *testing.T) {
		probeFunc := probe.NewExecutorProbe("states", nil, arn)
		if err := probeFunc(context.Background()); err == nil {
			t.Fatal("expected error when executor is nil")
		}
	})

	t.Run("succeeded execution passes", func(t *testing.T) {
		var gotInput string
		exec := executor.NewLocal("Heartbeat", func(ctx context.Context, input string) (string, error) {
			gotInput = input
			return `{"ok":true}`, nil
		})

		probeFunc := probe.NewExecutorProbe("states", exec, arn)
		if err := probeFunc(context.Background()); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if gotInput == "" {
			t.Fatal("expected a heartbeat input to be sent")
		}
	})

	t.Run("failed execution fails the probe", func(t *testing.T) {
		exec := executor.NewLocal("Heartbeat", func(ctx context.Context, input string) (string, error) {
			return "", &executor.ExecutionError{Name: "States.TaskFailed", Cause: "worker crashed"}
		})

		probeFunc := probe.NewExecutorProbe("states", exec, arn)
		if err := probeFunc(context.Background()); err == nil {
			t.Fatal("expected error when execution fails")
		}
	})

	t.Run("transport error fails the probe", func(t *testing.T) {
		exec := executor.NewLocal("Heartbeat", func(ctx context.Context, input string) (string, error) {
			return "", &executor.StatusCodeError{Code: 503, Message: "connection refused"}
		})

		probeFunc := probe.NewExecutorProbe("states", exec, arn)
		if err := probeFunc(context.Background()); err == nil {
			t.Fatal("expected error when the backend is unreachable")
		}
	})
}

func ExampleNewPingProbe() {
	probeFunc := probe.NewPingProbe("noop", func(ctx context.Context) error {
		return nil
	})
	fmt.Println(probeFunc(context.Background()))
	// Output: <nil>
}

func ExampleNewExecutorProbe() {
	exec := executor.NewLocal("Heartbeat", func(ctx context.Context, input string) (string, error) {
		return `{"ok":true}`, nil
	})

	probeFunc := probe.NewExecutorProbe("states", exec, "arn:aws:states:eu-west-1:111122223333:stateMachine:Heartbeat")
	fmt.Println(probeFunc(context.Background()))
	// Output: <nil>
}

func ExampleNewHTTPProbe_defaultClient() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	probeFunc := probe.NewHTTPProbe("docs", http.MethodGet, ts.URL, nil)
	fmt.Println(probeFunc(context.Background()))
	// Output: <nil>
}

func ExampleNewHTTPProbe() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	}))
	defer server.Close()

	probeFunc := probe.NewHTTPProbe("docs", http.MethodGet, server.URL, server.Client())
	fmt.Println(probeFunc(context.Background()))
	// Output: <nil>
}

func ExampleNewHTTPProbe_withOptions() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer demo" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("X-Version", "123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	probeFunc := probe.NewHTTPProbe(
		"docs",
		http.MethodGet,
		server.URL,
		nil,
		probe.WithHTTPRequestMutator(func(req *http.Request) error {
			req.Header.Set("Authorization", "Bearer demo")
			return nil
		}),
		probe.WithHTTPAllowedStatuses(http.StatusAccepted),
		probe.WithHTTPResponseValidator(func(resp *http.Response) error {
			if resp.Header.Get("X-Version") == "" {
				return errors.New("missing version header")
			}
			return nil
		}),
	)

	fmt.Println(probeFunc(context.Background()))
	// Output: <nil>
}
