package tool

import (
	"context"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// Registry maps ToolId to a shared Tool handle. Tools are assumed safe
// for concurrent invocation; the Registry itself is a
// read-biased map guarded by sync.RWMutex.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	schema map[string]*jsonschema.Schema
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, replacing any existing tool with the
// same id.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name().String()] = t
}

// RegisterWithSchema adds t and an input JSON Schema validated against
// every TryDispatch call for that tool (Dispatch does not validate).
// schemaJSON is a JSON Schema
// document; an invalid document causes this to return an error instead
// of registering anything.
func (r *Registry) RegisterWithSchema(t Tool, schemaJSON []byte) error {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytesReader(schemaJSON))
	if err != nil {
		return &errorsx.ToolError{Kind: errorsx.ToolInvalidInput, Name: t.Name().String(), Reason: "invalid schema document: " + err.Error()}
	}
	const resourceURL = "mem://tool-schema"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return &errorsx.ToolError{Kind: errorsx.ToolInvalidInput, Name: t.Name().String(), Reason: "invalid schema: " + err.Error()}
	}
	sch, err := compiler.Compile(resourceURL)
	if err != nil {
		return &errorsx.ToolError{Kind: errorsx.ToolInvalidInput, Name: t.Name().String(), Reason: "schema compile failed: " + err.Error()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name().String()] = t
	if r.schema == nil {
		r.schema = make(map[string]*jsonschema.Schema)
	}
	r.schema[t.Name().String()] = sch
	return nil
}

// Dispatch invokes the named tool with input. It returns (nil, false)
// when the tool is unknown, matching the Option-returning contract in
// use TryDispatch for a structured error instead.
func (r *Registry) Dispatch(ctx context.Context, call Call) (*Result, bool) {
	r.mu.RLock()
	t, ok := r.tools[call.Name.String()]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	res := t.Call(ctx, call.Input)
	return &res, true
}

// TryDispatch invokes the named tool with input, returning a structured
// ToolError{Kind: ToolNotFound} when the tool is unknown.
func (r *Registry) TryDispatch(ctx context.Context, call Call) (Result, error) {
	r.mu.RLock()
	t, ok := r.tools[call.Name.String()]
	sch := r.schema[call.Name.String()]
	r.mu.RUnlock()
	if !ok {
		return Result{}, &errorsx.ToolError{Kind: errorsx.ToolNotFound, Name: call.Name.String()}
	}
	if sch != nil {
		inst, err := jsonschema.UnmarshalJSON(stringReader(call.Input))
		if err != nil {
			return Result{}, &errorsx.ToolError{Kind: errorsx.ToolInvalidInput, Name: call.Name.String(), Input: call.Input, Reason: "input is not valid JSON: " + err.Error()}
		}
		if err := sch.Validate(inst); err != nil {
			return Result{}, &errorsx.ToolError{Kind: errorsx.ToolInvalidInput, Name: call.Name.String(), Input: call.Input, Reason: err.Error()}
		}
	}
	return t.Call(ctx, call.Input), nil
}

// Lookup returns the tool registered under id, if any.
func (r *Registry) Lookup(id ToolId) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id.String()]
	return t, ok
}

// Names returns the ids of every registered tool.
func (r *Registry) Names() []ToolId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolId, 0, len(r.tools))
	for name := range r.tools {
		id, _ := NewToolId(name)
		out = append(out, id)
	}
	return out
}
