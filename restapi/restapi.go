// Package restapi composes a REST API fronting one synchronous state
// machine: it constructs the execution role and grant registry once, wires
// the translation integration as the API's default integration, and
// attaches an explicit catch-all method with a fixed method-response
// contract. The composed API can be exported as an OpenAPI document with
// API Gateway integration extensions and served locally by the gateway
// package.
package restapi

import (
	"errors"
	"fmt"

	"github.com/flowgate/flowgate/iampolicy"
	"github.com/flowgate/flowgate/integration"
	"github.com/flowgate/flowgate/mapping"
	"github.com/flowgate/flowgate/statemachine"
)

// ErrIntegrationConflict reports that a caller supplied a default
// integration override alongside the state machine integration the
// composer builds itself. The two configuration sources are mutually
// exclusive; construction aborts before any grant is registered.
var ErrIntegrationConflict = errors.New("default integration cannot be overridden for a state machine API")

// MethodAny marks the catch-all method matching every HTTP verb.
const MethodAny = "ANY"

// Response body models advertised by method-response contracts.
const (
	ModelEmpty = "Empty"
	ModelError = "Error"
)

// MethodResponse is one (status code, body model) pair advertised by an
// exposed HTTP method, independent of the actual runtime response.
type MethodResponse struct {
	StatusCode string
	Model      string
}

// CatchAllResponses returns the fixed contract of the catch-all method:
// success with an empty body shape, client error, and server error.
func CatchAllResponses() []MethodResponse {
	return []MethodResponse{
		{StatusCode: "200", Model: ModelEmpty},
		{StatusCode: "400", Model: ModelError},
		{StatusCode: "500", Model: ModelError},
	}
}

// CORSOptions declares the cross-origin preflight contract of the API.
// Supplying it switches the composer to CORS mode.
type CORSOptions struct {
	Origins          []string
	Methods          []string
	Headers          []string
	AllowCredentials bool
}

// Option configures New.
type Option func(*config)

type config struct {
	name               string
	cors               *CORSOptions
	requestContext     mapping.RequestContext
	defaultIntegration *integration.Integration
	methods            []methodSpec
}

type methodSpec struct {
	httpMethod string
	path       string
	responses  []MethodResponse
}

// WithName sets the API name used for the exported document and the
// execution role.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithCORS enables CORS mode with the given preflight options.
func WithCORS(opts CORSOptions) Option {
	return func(c *config) {
		copied := opts
		copied.Origins = cloneStrings(opts.Origins)
		copied.Methods = cloneStrings(opts.Methods)
		copied.Headers = cloneStrings(opts.Headers)
		c.cors = &copied
	}
}

// WithRequestContext forwards the selected request context attributes to
// every execution started through the API.
func WithRequestContext(ctx mapping.RequestContext) Option {
	return func(c *config) {
		c.requestContext = ctx
	}
}

// WithDefaultIntegration supplies a default integration override. The
// composer rejects it: the state machine integration it constructs is the
// only supported default.
func WithDefaultIntegration(ig *integration.Integration) Option {
	return func(c *config) {
		c.defaultIntegration = ig
	}
}

// WithMethod attaches an additional explicit method at path. When no
// responses are given the catch-all contract is advertised.
func WithMethod(httpMethod, path string, responses ...MethodResponse) Option {
	return func(c *config) {
		if len(responses) == 0 {
			responses = CatchAllResponses()
		}
		c.methods = append(c.methods, methodSpec{httpMethod: httpMethod, path: path, responses: responses})
	}
}

// BoundMethod is one finalized method attachment.
type BoundMethod struct {
	HTTPMethod string
	Path       string
	Responses  []MethodResponse
	Config     integration.Config
}

// API is the composed REST API.
type API struct {
	name    string
	handle  *statemachine.Handle
	role    *iampolicy.ExecutionRole
	cors    *CORSOptions
	integ   *integration.Integration
	methods []BoundMethod
}

// New composes an API for the handle. Proxy mode is unsupported for this
// backend class and forced off. Construction fails fast with
// ErrIntegrationConflict before the execution role is created when a
// default integration override was supplied.
func New(handle *statemachine.Handle, opts ...Option) (*API, error) {
	if handle == nil {
		return nil, errors.New("restapi: state machine handle is required")
	}

	cfg := &config{name: "SyncExecutionApi"}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	if cfg.defaultIntegration != nil {
		return nil, ErrIntegrationConflict
	}

	role := iampolicy.NewExecutionRole(cfg.name + "-invoke-role")
	ig := integration.StartSyncExecution(handle, integration.Options{
		Proxy:           false,
		CORSEnabled:     cfg.cors != nil,
		CredentialsRole: role.Principal(),
		RequestContext:  cfg.requestContext,
	})

	api := &API{
		name:   cfg.name,
		handle: handle,
		role:   role,
		cors:   cfg.cors,
		integ:  ig,
	}

	if err := api.attach(MethodAny, "/", CatchAllResponses()); err != nil {
		return nil, err
	}
	for _, spec := range cfg.methods {
		if err := api.attach(spec.httpMethod, spec.path, spec.responses); err != nil {
			return nil, err
		}
	}
	return api, nil
}

func (a *API) attach(httpMethod, path string, responses []MethodResponse) error {
	cfg, err := a.integ.Bind(&methodBinder{method: httpMethod, role: a.role})
	if err != nil {
		return fmt.Errorf("attach %s %s: %w", httpMethod, path, err)
	}
	a.methods = append(a.methods, BoundMethod{
		HTTPMethod: httpMethod,
		Path:       path,
		Responses:  responses,
		Config:     cfg,
	})
	return nil
}

// methodBinder adapts one method attachment to the integration's binder
// contract.
type methodBinder struct {
	method string
	role   *iampolicy.ExecutionRole
}

func (b *methodBinder) HTTPMethod() string         { return b.method }
func (b *methodBinder) Principal() string          { return b.role.Principal() }
func (b *methodBinder) Grants() iampolicy.Registry { return b.role }

// Name returns the API name.
func (a *API) Name() string {
	return a.name
}

// Handle returns the bound state machine handle.
func (a *API) Handle() *statemachine.Handle {
	return a.handle
}

// Role returns the execution role carrying the accumulated grants.
func (a *API) Role() *iampolicy.ExecutionRole {
	return a.role
}

// CORS returns the preflight options, nil when CORS mode is off.
func (a *API) CORS() *CORSOptions {
	return a.cors
}

// DefaultIntegration returns the integration serving every method.
func (a *API) DefaultIntegration() *integration.Integration {
	return a.integ
}

// Methods returns the finalized method attachments in declaration order;
// the catch-all comes first.
func (a *API) Methods() []BoundMethod {
	out := make([]BoundMethod, len(a.methods))
	copy(out, a.methods)
	return out
}

// CatchAll returns the catch-all attachment.
func (a *API) CatchAll() BoundMethod {
	return a.methods[0]
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	cloned := make([]string, len(values))
	copy(cloned, values)
	return cloned
}
