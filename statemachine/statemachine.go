// Package statemachine models handles onto synchronous Step Functions state
// machines as seen by the rest of the module. A handle is a value object: it
// identifies the execution target, it is never mutated, and it is referenced
// (not owned) by the integrations bound to it.
//
// Handles come in two explicit variants, resolved once at construction:
// a direct handle describes a state machine declared by the same
// configuration that binds it, while an imported handle references a machine
// that already exists elsewhere and is only known by its ARN. The variant
// drives the deployment naming fallback and is never re-derived through type
// inspection.
package statemachine

import (
	"strings"

	"github.com/flowgate/flowgate/token"
)

// fallbackPrefix is prepended to the owning address when an imported handle
// has to synthesise a deployment name.
const fallbackPrefix = "StateMachine-"

// fallbackSeedLen limits how much of the owning address participates in the
// synthesised name.
const fallbackSeedLen = 8

type kind int

const (
	kindDirect kind = iota
	kindImported
)

// Handle identifies one synchronous state machine. The zero value is not
// useful; construct handles with NewDirect or NewImported.
type Handle struct {
	kind    kind
	name    string
	arn     string
	address string
}

// NewDirect returns a handle for a state machine declared by the calling
// configuration. The name is the declared machine name and the ARN may still
// be an unresolved placeholder at configuration time.
func NewDirect(name, arn string) *Handle {
	return &Handle{kind: kindDirect, name: name, arn: arn}
}

// NewImported returns a handle referencing a state machine that exists
// outside the calling configuration. The stack address identifies the owning
// deployment unit and is used only as a fallback naming seed; imported
// handles carry no declared name of their own.
func NewImported(arn, stackAddress string) *Handle {
	return &Handle{kind: kindImported, arn: arn, address: stackAddress}
}

// ARN returns the invocation ARN. The value may be an unresolved placeholder
// until the surrounding infrastructure resolves it.
func (h *Handle) ARN() string {
	return h.arn
}

// Name returns the declared machine name for direct handles and the empty
// string for imported ones.
func (h *Handle) Name() string {
	return h.name
}

// Imported reports whether the handle references an externally owned state
// machine rather than one declared alongside it.
func (h *Handle) Imported() bool {
	return h.kind == kindImported
}

// StackAddress returns the owning deployment unit's address string. It is
// meaningful only for imported handles.
func (h *Handle) StackAddress() string {
	return h.address
}

// DeploymentName returns the name used to fingerprint the handle for the
// consuming deployment system. Direct handles use their declared name;
// imported handles synthesise one from the owning address. The result may be
// an unresolved placeholder, in which case callers must not treat it as
// comparable across builds.
func (h *Handle) DeploymentName() string {
	if h.kind == kindDirect {
		return h.name
	}

	seed := h.address
	if len(seed) > fallbackSeedLen {
		seed = seed[:fallbackSeedLen]
	}
	return fallbackPrefix + seed
}

// Region extracts the region segment from the handle's ARN. When the ARN is
// still an unresolved placeholder, or not a well-formed ARN, a region
// placeholder is returned so the value stays recognisably symbolic.
func (h *Handle) Region() string {
	if token.Unresolved(h.arn) {
		return token.Placeholder("AWS::Region")
	}

	parts := strings.Split(h.arn, ":")
	if len(parts) < 4 || parts[3] == "" {
		return token.Placeholder("AWS::Region")
	}
	return parts[3]
}
