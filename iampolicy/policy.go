// Package iampolicy computes the authorization contract the API-serving
// principal needs to invoke one synchronous state machine. Grants are
// narrow by construction: one action on one resource identity, never a
// wildcard. The package models policy documents as plain structs so the
// accumulated grant set can be exported as standard IAM JSON; attaching the
// documents to real infrastructure is left to the surrounding system.
package iampolicy

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/flowgate/flowgate/statemachine"
)

// ActionStartSyncExecution is the single action the front end is granted on
// the bound state machine.
const ActionStartSyncExecution = "states:StartSyncExecution"

// PolicyVersion is the IAM policy language version emitted in documents.
const PolicyVersion = "2012-10-17"

// ErrWildcardGrant rejects grants that would widen access beyond one action
// on one resource.
var ErrWildcardGrant = errors.New("wildcard grants are not allowed")

// Registry is the authorization-grant store collaborators register grants
// into. Implementations must be additive and idempotent: registering the
// same (principal, action, resource) triple repeatedly holds exactly one
// grant.
type Registry interface {
	Grant(principal, action, resource string) error
}

// ServicePrincipal names an AWS service allowed to assume a role.
type ServicePrincipal struct {
	Service string `json:"Service"`
}

// Statement is one IAM policy statement.
type Statement struct {
	Effect    string            `json:"Effect"`
	Principal *ServicePrincipal `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

// Document is an IAM policy document.
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

type grantKey struct {
	principal string
	action    string
	resource  string
}

// PolicyBuilder is an in-memory Registry. Repeated identical grants collapse
// into one statement; distinct grants keep their registration order.
type PolicyBuilder struct {
	mu    sync.Mutex
	seen  map[grantKey]struct{}
	order []grantKey
}

// NewPolicyBuilder returns an empty builder.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{seen: make(map[grantKey]struct{})}
}

// Grant registers an allow grant for the principal. Empty fields and
// wildcard actions or resources are rejected.
func (b *PolicyBuilder) Grant(principal, action, resource string) error {
	if principal == "" || action == "" || resource == "" {
		return fmt.Errorf("grant requires principal, action, and resource (got %q, %q, %q)", principal, action, resource)
	}
	if strings.Contains(action, "*") || strings.Contains(resource, "*") {
		return fmt.Errorf("%w: %s on %s", ErrWildcardGrant, action, resource)
	}

	key := grantKey{principal: principal, action: action, resource: resource}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.seen[key]; ok {
		return nil
	}
	b.seen[key] = struct{}{}
	b.order = append(b.order, key)
	return nil
}

// Document collects the grants registered for principal into a policy
// document, in registration order.
func (b *PolicyBuilder) Document(principal string) Document {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc := Document{Version: PolicyVersion}
	for _, key := range b.order {
		if key.principal != principal {
			continue
		}
		doc.Statement = append(doc.Statement, Statement{
			Effect:   "Allow",
			Action:   []string{key.action},
			Resource: []string{key.resource},
		})
	}
	return doc
}

// Len reports the number of distinct grants held by the builder.
func (b *PolicyBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// GrantStartSyncExecution registers the narrow invocation grant the front
// end needs for the handle: exactly ActionStartSyncExecution on exactly the
// handle's invocation ARN.
func GrantStartSyncExecution(reg Registry, principal string, handle *statemachine.Handle) error {
	if reg == nil {
		return errors.New("grant registry is required")
	}
	if handle == nil {
		return errors.New("state machine handle is required")
	}
	if err := reg.Grant(principal, ActionStartSyncExecution, handle.ARN()); err != nil {
		return fmt.Errorf("grant %s on %s: %w", ActionStartSyncExecution, handle.ARN(), err)
	}
	return nil
}
