package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flowgate/flowgate/executor"
	"github.com/flowgate/flowgate/gateway"
	"github.com/flowgate/flowgate/jsonutil"
	"github.com/flowgate/flowgate/restapi"
	"github.com/flowgate/flowgate/statemachine"
)

const testARN = "arn:aws:states:eu-west-1:111122223333:stateMachine:OrderFlow"

func newTestAPI(t *testing.T, opts ...restapi.Option) *restapi.API {
	t.Helper()
	handle := statemachine.NewDirect("OrderFlow", testARN)
	api, err := restapi.New(handle, opts...)
	if err != nil {
		t.Fatalf("restapi.New: %v", err)
	}
	return api
}

func newTestServer(t *testing.T, handler executor.HandlerFunc, opts ...gateway.Option) *http.ServeMux {
	t.Helper()
	api := newTestAPI(t)
	exec := executor.NewLocal("OrderFlow", handler)
	mux, err := gateway.NewServer(api, exec, opts...)
	if err != nil {
		t.Fatalf("gateway.NewServer: %v", err)
	}
	return mux
}

func doRequest(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestServerTranslatesRequests(t *testing.T) {
	t.Run("wraps the request body into execution input", func(t *testing.T) {
		var gotInput string
		mux := newTestServer(t, func(ctx context.Context, input string) (string, error) {
			gotInput = input
			return `{"ok":true}`, nil
		})

		rec := doRequest(mux, http.MethodPost, "/orders", `{"id":1}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotInput != `{"id":1}` {
			t.Fatalf("expected execution input %q, got %q", `{"id":1}`, gotInput)
		}
		if got := rec.Body.String(); got != `{"ok":true}` {
			t.Fatalf("expected output passthrough, got %q", got)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected application/json, got %q", ct)
		}
	})

	t.Run("empty body becomes an empty document", func(t *testing.T) {
		var gotInput string
		mux := newTestServer(t, func(ctx context.Context, input string) (string, error) {
			gotInput = input
			return `{"ok":true}`, nil
		})

		rec := doRequest(mux, http.MethodGet, "/orders", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotInput != `{}` {
			t.Fatalf("expected empty document input, got %q", gotInput)
		}
	})

	t.Run("failed execution maps to 500 with error and cause", func(t *testing.T) {
		mux := newTestServer(t, func(ctx context.Context, input string) (string, error) {
			return "", &executor.ExecutionError{Name: "States.Timeout", Cause: "deadline exceeded"}
		})

		rec := doRequest(mux, http.MethodPost, "/orders", `{"id":1}`)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
		}

		var payload struct {
			Error string `json:"error"`
			Cause string `json:"cause"`
		}
		if err := jsonutil.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("unmarshal failure payload: %v", err)
		}
		if payload.Error != "States.Timeout" || payload.Cause != "deadline exceeded" {
			t.Fatalf("unexpected failure payload: %+v", payload)
		}
	})

	t.Run("client transport errors map to 400", func(t *testing.T) {
		mux := newTestServer(t, func(ctx context.Context, input string) (string, error) {
			return "", &executor.StatusCodeError{Code: 404, Message: "no such state machine"}
		})

		rec := doRequest(mux, http.MethodPost, "/orders", `{"id":1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := rec.Body.String(); got != `{"error": "Bad input!"}` {
			t.Fatalf("unexpected client error body: %q", got)
		}
	})

	t.Run("server transport errors map to the 500 fragment", func(t *testing.T) {
		mux := newTestServer(t, func(ctx context.Context, input string) (string, error) {
			return "", &executor.StatusCodeError{Code: 503, Message: "overloaded"}
		})

		rec := doRequest(mux, http.MethodPost, "/orders", `{"id":1}`)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := rec.Body.String(); got != `"error": overloaded` {
			t.Fatalf("unexpected server error body: %q", got)
		}
	})

	t.Run("invalid JSON body is rejected", func(t *testing.T) {
		mux := newTestServer(t, func(ctx context.Context, input string) (string, error) {
			t.Error("handler must not run for invalid input")
			return "", nil
		})

		rec := doRequest(mux, http.MethodPost, "/orders", `not json`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("expected problem document, got %q", ct)
		}
	})

	t.Run("unreachable backend yields 502 problem", func(t *testing.T) {
		api := newTestAPI(t)
		exec := executor.NewLocal("OrderFlow", nil)
		mux, err := gateway.NewServer(api, exec)
		if err != nil {
			t.Fatalf("gateway.NewServer: %v", err)
		}

		rec := doRequest(mux, http.MethodPost, "/orders", `{"id":1}`)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("expected problem document, got %q", ct)
		}
	})
}

func TestServerBuiltinEndpoints(t *testing.T) {
	handler := func(ctx context.Context, input string) (string, error) {
		return `{"ok":true}`, nil
	}

	t.Run("status reports healthy", func(t *testing.T) {
		mux := newTestServer(t, handler)

		rec := doRequest(mux, http.MethodGet, gateway.StatusPath, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "HEALTHY") {
			t.Fatalf("expected HEALTHY status, got %q", rec.Body.String())
		}
	})

	t.Run("failing readiness check reports unavailable", func(t *testing.T) {
		mux := newTestServer(t, handler, gateway.WithReadinessChecks(func(ctx context.Context) error {
			return errors.New("backend down")
		}))

		rec := doRequest(mux, http.MethodGet, gateway.StatusPath, "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("openapi document is served", func(t *testing.T) {
		mux := newTestServer(t, handler)

		rec := doRequest(mux, http.MethodGet, gateway.OpenAPIPath, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected application/json, got %q", ct)
		}
		if !strings.Contains(rec.Body.String(), "x-amazon-apigateway-integration") {
			t.Fatal("expected exported integration extensions in the document")
		}
	})

	t.Run("docs viewer is served", func(t *testing.T) {
		mux := newTestServer(t, handler)

		rec := doRequest(mux, http.MethodGet, gateway.DocsPath, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "elements-api") {
			t.Fatal("expected embedded docs viewer markup")
		}
	})
}

func TestServerCORS(t *testing.T) {
	handler := func(ctx context.Context, input string) (string, error) {
		return `{"ok":true}`, nil
	}
	corsOpts := restapi.CORSOptions{
		Origins: []string{"https://app.example.com"},
		Methods: []string{"GET", "POST", "OPTIONS"},
		Headers: []string{"Content-Type"},
	}

	newCORSServer := func(t *testing.T) *http.ServeMux {
		t.Helper()
		api := newTestAPI(t, restapi.WithCORS(corsOpts))
		mux, err := gateway.NewServer(api, executor.NewLocal("OrderFlow", handler))
		if err != nil {
			t.Fatalf("gateway.NewServer: %v", err)
		}
		return mux
	}

	t.Run("preflight is answered", func(t *testing.T) {
		mux := newCORSServer(t)

		req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Fatalf("expected origin echo, got %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
			t.Fatalf("expected allowed methods, got %q", got)
		}
	})

	t.Run("disallowed origin gets no grant", func(t *testing.T) {
		mux := newCORSServer(t)

		req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("expected no origin grant, got %q", got)
		}
	})

	t.Run("execution still works with the fallback templates", func(t *testing.T) {
		mux := newCORSServer(t)

		rec := doRequest(mux, http.MethodPost, "/orders", `{"id":1}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := rec.Body.String(); got != `{"ok":true}` {
			t.Fatalf("expected output passthrough, got %q", got)
		}
	})
}
