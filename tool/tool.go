// Package tool defines the callable-unit contract: a named,
// synchronous Tool with string input and a structured ExecutionResult,
// a lookup Registry, and a capability-gated SecureRegistry wrapper.
package tool

import (
	"context"
	"regexp"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// idPattern constrains ToolId to the identifier shape the rest of the
// runtime assumes (used, for example, as an A2A skill id and an MCP
// tool name): lowercase alphanumerics, dot, underscore, and hyphen.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ToolId is a validated tool name.
type ToolId struct {
	name string
}

// NewToolId validates name and returns a ToolId, or a ToolError with
// Kind ToolInvalidInput if name is not a well-formed identifier.
func NewToolId(name string) (ToolId, error) {
	if !idPattern.MatchString(name) {
		return ToolId{}, &errorsx.ToolError{Kind: errorsx.ToolInvalidInput, Name: name, Reason: "tool id must match [a-z0-9][a-z0-9._-]*"}
	}
	return ToolId{name: name}, nil
}

// String returns the validated name.
func (t ToolId) String() string { return t.name }

// Call is a request to invoke a tool with string input.
type Call struct {
	Name  ToolId
	Input string
}

// Result is a sum over Success and Failure outcomes. Use NewSuccess /
// NewFailure to construct one; IsSuccess / Output / Reason to inspect
// it. Neither inspector panics regardless of which variant is held.
type Result struct {
	ok        bool
	output    string
	reason    string
	retryHint string
}

// NewSuccess builds a successful Result carrying output.
func NewSuccess(output string) Result { return Result{ok: true, output: output} }

// NewFailure builds a failed Result carrying reason and an optional
// retry hint (an example payload the caller can use to retry with
// corrected input).
func NewFailure(reason string, retryHint string) Result {
	return Result{ok: false, reason: reason, retryHint: retryHint}
}

// IsSuccess reports whether the result is a Success.
func (r Result) IsSuccess() bool { return r.ok }

// Output returns the success output, or "" if the result is a Failure.
func (r Result) Output() string { return r.output }

// Reason returns the failure reason, or "" if the result is a Success.
func (r Result) Reason() string { return r.reason }

// RetryHint returns the failure retry hint, or "" if none was set or
// the result is a Success.
func (r Result) RetryHint() string { return r.retryHint }

// Tool is a named, synchronous callable exposed to agents.
type Tool interface {
	Name() ToolId
	Call(ctx context.Context, input string) Result
}

// Func adapts a plain function to the Tool interface.
type Func struct {
	ID ToolId
	Fn func(ctx context.Context, input string) Result
}

// Name returns the tool's id.
func (f Func) Name() ToolId { return f.ID }

// Call invokes the wrapped function.
func (f Func) Call(ctx context.Context, input string) Result { return f.Fn(ctx, input) }

var _ Tool = Func{}
