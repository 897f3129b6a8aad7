package mapping

import (
	"strings"

	"github.com/flowgate/flowgate/statemachine"
)

// ContentTypeJSON is the only content type the default template set covers.
const ContentTypeJSON = "application/json"

// The backend expects the raw HTTP body escaped into a JSON string literal
// so malformed or hostile bodies cannot break out of the invocation
// envelope.
const (
	requestTemplateHead        = `{"input": "$util.escapeJavaScript($input.json('$'))", "stateMachineArn": "`
	requestTemplateContextHead = `{"input": "{\"body\": $util.escapeJavaScript($input.json('$')), \"requestContext\": `
	requestTemplateTail        = `"}`
)

// RequestContext selects which API Gateway request context attributes are
// forwarded to the state machine. When any attribute is enabled the
// execution input becomes a two-field envelope carrying the escaped body and
// the selected context members; when none is, the plain body envelope is
// emitted unchanged.
type RequestContext struct {
	AccountID                     bool
	APIID                         bool
	APIKey                        bool
	AuthorizerPrincipalID         bool
	Caller                        bool
	CognitoAuthenticationProvider bool
	CognitoAuthenticationType     bool
	CognitoIdentityID             bool
	CognitoIdentityPoolID         bool
	HTTPMethod                    bool
	Stage                         bool
	SourceIP                      bool
	User                          bool
	UserAgent                     bool
	UserARN                       bool
	RequestID                     bool
	ResourceID                    bool
	ResourcePath                  bool
}

// contextAttribute pairs an output field name with the context variable it
// reads. Declaration order fixes the field order in the generated envelope.
type contextAttribute struct {
	field    string
	variable string
	enabled  func(RequestContext) bool
}

var contextAttributes = []contextAttribute{
	{"accountId", "$context.identity.accountId", func(c RequestContext) bool { return c.AccountID }},
	{"apiId", "$context.apiId", func(c RequestContext) bool { return c.APIID }},
	{"apiKey", "$context.identity.apiKey", func(c RequestContext) bool { return c.APIKey }},
	{"authorizerPrincipalId", "$context.authorizer.principalId", func(c RequestContext) bool { return c.AuthorizerPrincipalID }},
	{"caller", "$context.identity.caller", func(c RequestContext) bool { return c.Caller }},
	{"cognitoAuthenticationProvider", "$context.identity.cognitoAuthenticationProvider", func(c RequestContext) bool { return c.CognitoAuthenticationProvider }},
	{"cognitoAuthenticationType", "$context.identity.cognitoAuthenticationType", func(c RequestContext) bool { return c.CognitoAuthenticationType }},
	{"cognitoIdentityId", "$context.identity.cognitoIdentityId", func(c RequestContext) bool { return c.CognitoIdentityID }},
	{"cognitoIdentityPoolId", "$context.identity.cognitoIdentityPoolId", func(c RequestContext) bool { return c.CognitoIdentityPoolID }},
	{"httpMethod", "$context.httpMethod", func(c RequestContext) bool { return c.HTTPMethod }},
	{"stage", "$context.stage", func(c RequestContext) bool { return c.Stage }},
	{"sourceIp", "$context.identity.sourceIp", func(c RequestContext) bool { return c.SourceIP }},
	{"user", "$context.identity.user", func(c RequestContext) bool { return c.User }},
	{"userAgent", "$context.identity.userAgent", func(c RequestContext) bool { return c.UserAgent }},
	{"userArn", "$context.identity.userArn", func(c RequestContext) bool { return c.UserARN }},
	{"requestId", "$context.requestId", func(c RequestContext) bool { return c.RequestID }},
	{"resourceId", "$context.resourceId", func(c RequestContext) bool { return c.ResourceID }},
	{"resourcePath", "$context.resourcePath", func(c RequestContext) bool { return c.ResourcePath }},
}

// Enabled reports whether any context attribute has been selected.
func (c RequestContext) Enabled() bool {
	for _, attr := range contextAttributes {
		if attr.enabled(c) {
			return true
		}
	}
	return false
}

// RequestTemplates builds the request mapping template set for the handle:
// one entry for application/json wrapping the escaped request body and the
// resolved invocation identity into the backend's execution envelope. A
// handle identity that is still a placeholder is embedded as-is; template
// generation does not validate it.
func RequestTemplates(handle *statemachine.Handle, ctx RequestContext) map[string]string {
	var b strings.Builder
	if ctx.Enabled() {
		b.WriteString(requestTemplateContextHead)
		b.WriteString(contextEnvelope(ctx))
		b.WriteString(`}", "stateMachineArn": "`)
	} else {
		b.WriteString(requestTemplateHead)
	}
	b.WriteString(handle.ARN())
	b.WriteString(requestTemplateTail)

	return map[string]string{ContentTypeJSON: b.String()}
}

// contextEnvelope renders the selected attributes as a JSON object literal
// with escaped quotes, since the whole envelope sits inside the quoted
// input string of the outer template.
func contextEnvelope(ctx RequestContext) string {
	var b strings.Builder
	b.WriteString("{")
	first := true
	for _, attr := range contextAttributes {
		if !attr.enabled(ctx) {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(`\"`)
		b.WriteString(attr.field)
		b.WriteString(`\": \"`)
		b.WriteString(attr.variable)
		b.WriteString(`\"`)
	}
	b.WriteString("}")
	return b.String()
}
