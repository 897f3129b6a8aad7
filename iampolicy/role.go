package iampolicy

import (
	"github.com/flowgate/flowgate/jsonutil"
)

// apiGatewayService is the service principal allowed to assume execution
// roles created by this package.
const apiGatewayService = "apigateway.amazonaws.com"

// ExecutionRole is the API-serving principal: a role assumable by the API
// Gateway service whose inline policy is the accumulated grant set. It
// implements Registry so integrations can register grants directly against
// the role.
type ExecutionRole struct {
	name    string
	builder *PolicyBuilder
}

// NewExecutionRole returns a role with the given name and an empty grant
// set.
func NewExecutionRole(name string) *ExecutionRole {
	return &ExecutionRole{name: name, builder: NewPolicyBuilder()}
}

// Name returns the role name.
func (r *ExecutionRole) Name() string {
	return r.name
}

// Principal returns the identity string grants are registered under.
func (r *ExecutionRole) Principal() string {
	return r.name
}

// Grant registers a grant for the role itself.
func (r *ExecutionRole) Grant(principal, action, resource string) error {
	return r.builder.Grant(principal, action, resource)
}

// TrustDocument returns the assume-role policy allowing the API Gateway
// service to assume this role.
func (r *ExecutionRole) TrustDocument() Document {
	return Document{
		Version: PolicyVersion,
		Statement: []Statement{{
			Effect:    "Allow",
			Principal: &ServicePrincipal{Service: apiGatewayService},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
}

// InlineDocument returns the accumulated grant set as a policy document.
func (r *ExecutionRole) InlineDocument() Document {
	return r.builder.Document(r.name)
}

// roleExport is the JSON shape of an exported role.
type roleExport struct {
	RoleName                 string   `json:"roleName"`
	AssumeRolePolicyDocument Document `json:"assumeRolePolicyDocument"`
	PolicyDocument           Document `json:"policyDocument"`
}

// ExportJSON serialises the role with its trust and inline policy documents
// for consumption by the surrounding provisioning system.
func (r *ExecutionRole) ExportJSON() ([]byte, error) {
	return jsonutil.Marshal(roleExport{
		RoleName:                 r.name,
		AssumeRolePolicyDocument: r.TrustDocument(),
		PolicyDocument:           r.InlineDocument(),
	})
}
