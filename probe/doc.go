// Package probe converts executor heartbeats, HTTP endpoints, and custom
// ping functions into readiness helpers for the gateway status endpoint.
// See ExampleNewPingProbe, ExampleNewHTTPProbe, and
// ExampleNewHTTPProbe_withOptions for quick-start patterns.
package probe
