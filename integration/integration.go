// Package integration composes the translation adapter that binds one HTTP
// method to one synchronous state machine: the request mapping templates,
// the ordered response classification rules, the narrow invocation grant,
// and the deployment fingerprint that forces a redeploy when the bound
// machine's identity changes.
package integration

import (
	"errors"
	"fmt"

	"github.com/flowgate/flowgate/iampolicy"
	"github.com/flowgate/flowgate/jsonutil"
	"github.com/flowgate/flowgate/mapping"
	"github.com/flowgate/flowgate/statemachine"
	"github.com/flowgate/flowgate/token"
)

const (
	// ServiceName is the AWS service the integration invokes.
	ServiceName = "states"
	// ActionName is the service action started per request.
	ActionName = "StartSyncExecution"
	// PassthroughNever rejects any request the templates do not cover; the
	// backend must never receive an untransformed payload when not
	// proxying.
	PassthroughNever = "NEVER"
	// integrationHTTPMethod is the verb of the service invocation itself,
	// independent of the front-end method being bound.
	integrationHTTPMethod = "POST"
)

// Options configures an integration. The value is copied at construction
// and never mutated afterwards.
type Options struct {
	// Proxy forwards the raw HTTP payload untransformed instead of using
	// generated templates.
	Proxy bool
	// CORSEnabled skips the default template and response rule set so
	// cross-origin preflight handling can be declared separately.
	CORSEnabled bool
	// CredentialsRole is the authorization role the front end presents
	// when invoking the backend.
	CredentialsRole string
	// RequestContext selects request context attributes forwarded to the
	// execution input.
	RequestContext mapping.RequestContext
}

// Config is the finalized integration configuration returned by Bind.
// DeploymentToken is empty when the bound machine's identity is still an
// unresolved placeholder; consumers must not compare placeholder values
// across builds.
type Config struct {
	Proxy                 bool              `json:"proxy"`
	Service               string            `json:"service"`
	Action                string            `json:"action"`
	IntegrationHTTPMethod string            `json:"integrationHttpMethod"`
	URI                   string            `json:"uri"`
	RequestTemplates      map[string]string `json:"requestTemplates,omitempty"`
	IntegrationResponses  []mapping.Rule    `json:"integrationResponses,omitempty"`
	PassthroughBehavior   string            `json:"passthroughBehavior,omitempty"`
	CredentialsRole       string            `json:"credentialsRole,omitempty"`
	DeploymentToken       string            `json:"deploymentToken,omitempty"`
}

// Binder supplies the method-side collaborators an integration needs to
// finalize one binding: the front-end verb, the principal invoking the
// backend, and the grant registry to register the invocation permission in.
type Binder interface {
	HTTPMethod() string
	Principal() string
	Grants() iampolicy.Registry
}

// Integration is the adapter bound to one state machine handle. Templates
// and response rules are built once at construction and are independent of
// any request payload.
type Integration struct {
	handle           *statemachine.Handle
	opts             Options
	requestTemplates map[string]string
	responses        []mapping.Rule
	passthrough      string
}

// StartSyncExecution builds an integration for the handle. The finalized
// option set is computed up front: in CORS mode the caller-supplied options
// pass through unmodified with no injected templates, otherwise the default
// template and rule set are attached with passthrough disabled.
func StartSyncExecution(handle *statemachine.Handle, opts Options) *Integration {
	ig := &Integration{handle: handle, opts: opts}
	if opts.CORSEnabled {
		return ig
	}

	ig.requestTemplates = mapping.RequestTemplates(handle, opts.RequestContext)
	ig.responses = mapping.Rules()
	ig.passthrough = PassthroughNever
	return ig
}

// Handle returns the bound state machine handle.
func (ig *Integration) Handle() *statemachine.Handle {
	return ig.handle
}

// Options returns the options the integration was constructed with.
func (ig *Integration) Options() Options {
	return ig.opts
}

// RequestTemplates returns the request mapping template set, nil in CORS
// mode.
func (ig *Integration) RequestTemplates() map[string]string {
	return ig.requestTemplates
}

// Responses returns the ordered response classification rules, nil in CORS
// mode.
func (ig *Integration) Responses() []mapping.Rule {
	return ig.responses
}

// URI returns the service-integration URI invoking the synchronous start
// action in the handle's region.
func (ig *Integration) URI() string {
	return fmt.Sprintf("arn:aws:apigateway:%s:%s:action/%s", ig.handle.Region(), ServiceName, ActionName)
}

// Bind finalizes the integration for one HTTP method: it registers the
// narrow invocation grant for the binder's principal and computes the
// deployment fingerprint. Binding the same integration to several methods
// is safe; the grant registry is additive and idempotent.
func (ig *Integration) Bind(b Binder) (Config, error) {
	if b == nil {
		return Config{}, errors.New("integration: binder is required")
	}

	if err := iampolicy.GrantStartSyncExecution(b.Grants(), b.Principal(), ig.handle); err != nil {
		return Config{}, fmt.Errorf("bind %s: %w", b.HTTPMethod(), err)
	}

	deploymentToken, err := ig.deploymentToken()
	if err != nil {
		return Config{}, fmt.Errorf("bind %s: %w", b.HTTPMethod(), err)
	}

	return Config{
		Proxy:                 ig.opts.Proxy,
		Service:               ServiceName,
		Action:                ActionName,
		IntegrationHTTPMethod: integrationHTTPMethod,
		URI:                   ig.URI(),
		RequestTemplates:      ig.requestTemplates,
		IntegrationResponses:  ig.responses,
		PassthroughBehavior:   ig.passthrough,
		CredentialsRole:       ig.opts.CredentialsRole,
		DeploymentToken:       deploymentToken,
	}, nil
}

// deploymentToken fingerprints the bound machine for the consuming
// deployment system. Unresolved names yield no token: placeholders are not
// comparable across builds and must not produce redeploy signals.
func (ig *Integration) deploymentToken() (string, error) {
	name := ig.handle.DeploymentName()
	if token.Unresolved(name) {
		return "", nil
	}

	data, err := jsonutil.Marshal(struct {
		Name string `json:"name"`
	}{Name: name})
	if err != nil {
		return "", fmt.Errorf("serialize deployment token: %w", err)
	}
	return string(data), nil
}
