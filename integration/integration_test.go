package integration_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/flowgate/flowgate/iampolicy"
	"github.com/flowgate/flowgate/integration"
	"github.com/flowgate/flowgate/mapping"
	"github.com/flowgate/flowgate/statemachine"
	"github.com/flowgate/flowgate/token"
)

const orderFlowARN = "arn:aws:states:eu-west-1:123456789012:stateMachine:OrderFlow"

type stubBinder struct {
	method    string
	principal string
	grants    *iampolicy.PolicyBuilder
}

func (b *stubBinder) HTTPMethod() string         { return b.method }
func (b *stubBinder) Principal() string          { return b.principal }
func (b *stubBinder) Grants() iampolicy.Registry { return b.grants }

func newStubBinder(method string) *stubBinder {
	return &stubBinder{method: method, principal: "api-role", grants: iampolicy.NewPolicyBuilder()}
}

func TestBindConfig(t *testing.T) {
	handle := statemachine.NewDirect("OrderFlow", orderFlowARN)
	ig := integration.StartSyncExecution(handle, integration.Options{CredentialsRole: "api-role"})

	binder := newStubBinder("POST")
	cfg, err := ig.Bind(binder)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	if cfg.Proxy {
		t.Fatal("proxy must default to false")
	}
	if cfg.Service != "states" || cfg.Action != "StartSyncExecution" {
		t.Fatalf("unexpected invocation envelope: %s %s", cfg.Service, cfg.Action)
	}
	if cfg.IntegrationHTTPMethod != "POST" {
		t.Fatalf("unexpected integration method: %s", cfg.IntegrationHTTPMethod)
	}
	if cfg.URI != "arn:aws:apigateway:eu-west-1:states:action/StartSyncExecution" {
		t.Fatalf("unexpected uri: %s", cfg.URI)
	}
	if cfg.PassthroughBehavior != integration.PassthroughNever {
		t.Fatalf("unexpected passthrough behavior: %s", cfg.PassthroughBehavior)
	}
	if cfg.CredentialsRole != "api-role" {
		t.Fatalf("unexpected credentials role: %s", cfg.CredentialsRole)
	}
	if len(cfg.RequestTemplates) != 1 {
		t.Fatalf("expected one request template, got %d", len(cfg.RequestTemplates))
	}
	if len(cfg.IntegrationResponses) != 3 {
		t.Fatalf("expected three response rules, got %d", len(cfg.IntegrationResponses))
	}
	if cfg.IntegrationResponses[0].SelectionPattern != "" {
		t.Fatal("success rule must be declared first")
	}
	if cfg.DeploymentToken != `{"name":"OrderFlow"}` {
		t.Fatalf("unexpected deployment token: %s", cfg.DeploymentToken)
	}
}

func TestBindRegistersNarrowGrant(t *testing.T) {
	handle := statemachine.NewDirect("OrderFlow", orderFlowARN)
	ig := integration.StartSyncExecution(handle, integration.Options{})

	binder := newStubBinder("POST")
	if _, err := ig.Bind(binder); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	doc := binder.grants.Document("api-role")
	if len(doc.Statement) != 1 {
		t.Fatalf("expected one grant statement, got %d", len(doc.Statement))
	}
	stmt := doc.Statement[0]
	if stmt.Action[0] != iampolicy.ActionStartSyncExecution || stmt.Resource[0] != orderFlowARN {
		t.Fatalf("grant is not scoped to the one action and resource: %+v", stmt)
	}
}

func TestBindIsIdempotentAcrossMethods(t *testing.T) {
	handle := statemachine.NewDirect("OrderFlow", orderFlowARN)
	ig := integration.StartSyncExecution(handle, integration.Options{})

	binder := newStubBinder("GET")
	for _, method := range []string{"GET", "POST", "DELETE"} {
		binder.method = method
		if _, err := ig.Bind(binder); err != nil {
			t.Fatalf("bind %s failed: %v", method, err)
		}
	}

	if binder.grants.Len() != 1 {
		t.Fatalf("repeated binds must not double-register permissions, got %d grants", binder.grants.Len())
	}
}

func TestBindUnresolvedIdentityOmitsToken(t *testing.T) {
	handle := statemachine.NewDirect(token.Placeholder("OrderFlowName"), token.Placeholder("OrderFlowArn"))
	ig := integration.StartSyncExecution(handle, integration.Options{})

	cfg, err := ig.Bind(newStubBinder("ANY"))
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if cfg.DeploymentToken != "" {
		t.Fatalf("unresolved identity must omit the deployment token, got %s", cfg.DeploymentToken)
	}
}

func TestBindImportedHandleUsesFallbackName(t *testing.T) {
	handle := statemachine.NewImported(orderFlowARN, "c8f2a91b04")
	ig := integration.StartSyncExecution(handle, integration.Options{})

	cfg, err := ig.Bind(newStubBinder("ANY"))
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if cfg.DeploymentToken != `{"name":"StateMachine-c8f2a91b"}` {
		t.Fatalf("unexpected deployment token: %s", cfg.DeploymentToken)
	}
}

func TestCORSEnabledSkipsDefaultTemplates(t *testing.T) {
	handle := statemachine.NewDirect("OrderFlow", orderFlowARN)
	ig := integration.StartSyncExecution(handle, integration.Options{CORSEnabled: true})

	if ig.RequestTemplates() != nil {
		t.Fatal("CORS mode must not inject request templates")
	}
	if ig.Responses() != nil {
		t.Fatal("CORS mode must not inject response rules")
	}

	cfg, err := ig.Bind(newStubBinder("OPTIONS"))
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if cfg.RequestTemplates != nil || cfg.IntegrationResponses != nil || cfg.PassthroughBehavior != "" {
		t.Fatalf("CORS mode config must pass caller options through unmodified: %+v", cfg)
	}
}

func TestRequestContextTemplates(t *testing.T) {
	handle := statemachine.NewDirect("OrderFlow", orderFlowARN)
	ig := integration.StartSyncExecution(handle, integration.Options{
		RequestContext: mapping.RequestContext{RequestID: true},
	})

	tmpl := ig.RequestTemplates()[mapping.ContentTypeJSON]
	if want := `\"requestId\": \"$context.requestId\"`; !strings.Contains(tmpl, want) {
		t.Fatalf("expected template to carry the request id attribute:\n%s", tmpl)
	}
}

func TestUnresolvedRegionURI(t *testing.T) {
	handle := statemachine.NewDirect("OrderFlow", token.Placeholder("OrderFlowArn"))
	ig := integration.StartSyncExecution(handle, integration.Options{})

	want := "arn:aws:apigateway:" + token.Placeholder("AWS::Region") + ":states:action/StartSyncExecution"
	if got := ig.URI(); got != want {
		t.Fatalf("unexpected uri: %s", got)
	}
}

func ExampleIntegration_Bind() {
	handle := statemachine.NewDirect("OrderFlow", "arn:aws:states:eu-west-1:123456789012:stateMachine:OrderFlow")
	ig := integration.StartSyncExecution(handle, integration.Options{})

	cfg, _ := ig.Bind(newStubBinder("ANY"))
	fmt.Println(cfg.Service)
	fmt.Println(cfg.Action)
	fmt.Println(cfg.DeploymentToken)
	// Output:
	// states
	// StartSyncExecution
	// {"name":"OrderFlow"}
}
