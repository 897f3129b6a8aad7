// Package gateway runs a composed REST API locally, executing bound
// integrations exactly as the platform would: it renders the request
// mapping template, starts a synchronous execution, classifies the outcome
// against the ordered response rules, and renders the matching response
// template, honoring status overrides.
//
// NewServer wires the handler with request logging, CORS preflight from the
// composer's options, timeouts, optional OpenAPI request validation, and
// the built-in /__gateway endpoints for status, the exported document, and
// an HTML viewer. Failures outside the template pipeline are reported as
// application/problem+json documents with ULID trace identifiers.
package gateway
