package tool

import (
	"context"
	"sync"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// Policy decides whether principal may invoke the named tool.
type Policy interface {
	Allowed(principal string, id ToolId) bool
}

// AllowList is a Policy backed by a static per-principal allow-set.
type AllowList struct {
	mu      sync.RWMutex
	allowed map[string]map[string]struct{}
}

// NewAllowList constructs an AllowList policy.
func NewAllowList() *AllowList {
	return &AllowList{allowed: make(map[string]map[string]struct{})}
}

// Grant permits principal to call id.
func (a *AllowList) Grant(principal string, id ToolId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.allowed[principal] == nil {
		a.allowed[principal] = make(map[string]struct{})
	}
	a.allowed[principal][id.String()] = struct{}{}
}

// Revoke withdraws principal's permission to call id.
func (a *AllowList) Revoke(principal string, id ToolId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.allowed[principal], id.String())
}

// Allowed reports whether principal may call id.
func (a *AllowList) Allowed(principal string, id ToolId) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.allowed[principal][id.String()]
	return ok
}

var _ Policy = (*AllowList)(nil)

// SecureRegistry wraps a base Registry with a Policy check. Denied
// calls return errorsx.ToolError{Kind: ToolAccessDenied} without
// invoking the underlying tool.
type SecureRegistry struct {
	base   *Registry
	policy Policy
}

// NewSecureRegistry constructs a SecureRegistry over base, gated by policy.
func NewSecureRegistry(base *Registry, policy Policy) *SecureRegistry {
	return &SecureRegistry{base: base, policy: policy}
}

// TryDispatch checks the policy for principal before delegating to the
// base registry.
func (s *SecureRegistry) TryDispatch(ctx context.Context, principal string, call Call) (Result, error) {
	if !s.policy.Allowed(principal, call.Name) {
		return Result{}, &errorsx.ToolError{Kind: errorsx.ToolAccessDenied, Name: call.Name.String(), Principal: principal}
	}
	return s.base.TryDispatch(ctx, call)
}
