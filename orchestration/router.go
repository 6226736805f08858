package orchestration

import (
	"context"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/unified"
)

// RoutingPredicate decides whether msg should be routed to the rule's
// target agent.
type RoutingPredicate func(msg unified.Message) bool

// RoutingRule pairs a predicate with the agent id it routes to.
type RoutingRule struct {
	Predicate RoutingPredicate
	AgentID   string
}

// RouterAgent evaluates an ordered list of RoutingRules against each
// incoming message, dispatching to the first match. Agents
// are looked up by id through a caller-supplied resolver, so the same
// router can front a discovery.Provider or a fixed map.
type RouterAgent struct {
	info     unified.AgentInfo
	rules    []RoutingRule
	resolve  func(agentID string) (unified.UnifiedAgent, bool)
	defaultT string
	hasDef   bool
}

// NewRouterAgent builds a RouterAgent advertised under info, resolving
// routed-to agent ids via resolve.
func NewRouterAgent(info unified.AgentInfo, resolve func(agentID string) (unified.UnifiedAgent, bool), rules ...RoutingRule) *RouterAgent {
	return &RouterAgent{info: info, rules: rules, resolve: resolve}
}

// WithDefault sets the agent id used when no rule matches, returning r
// for chaining.
func (r *RouterAgent) WithDefault(agentID string) *RouterAgent {
	r.defaultT = agentID
	r.hasDef = true
	return r
}

var _ unified.UnifiedAgent = (*RouterAgent)(nil)

// Info returns the router's own advertised identity.
func (r *RouterAgent) Info(ctx context.Context) (unified.AgentInfo, error) {
	return r.info, nil
}

// SendMessage routes msg to the first matching rule's agent, or the
// default if set, or fails with AgentInvalidRequest if neither applies.
func (r *RouterAgent) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	target, err := r.route(msg)
	if err != nil {
		return unified.Task{}, err
	}
	agent, ok := r.resolve(target)
	if !ok {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentNotFound, Protocol: "router", Reason: target}
	}
	return agent.SendMessage(ctx, msg)
}

func (r *RouterAgent) route(msg unified.Message) (string, error) {
	for _, rule := range r.rules {
		if rule.Predicate(msg) {
			return rule.AgentID, nil
		}
	}
	if r.hasDef {
		return r.defaultT, nil
	}
	return "", &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Protocol: "router", Reason: "no routing rule matched and no default is set"}
}

// GetTask and CancelTask have no router-local meaning: a router does
// not retain task identity across a call, it only dispatches. Callers
// that need to track a routed task should do so against the resolved
// target agent directly.
func (r *RouterAgent) GetTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "router", Reason: id}
}

func (r *RouterAgent) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "router", Reason: id}
}

// Stream routes to the target agent and proxies its stream directly,
// unlike SequentialPipeline/ParallelAgent — routing adds no
// aggregation, so per-event fidelity is preserved.
func (r *RouterAgent) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	target, err := r.route(msg)
	if err != nil {
		return nil, err
	}
	agent, ok := r.resolve(target)
	if !ok {
		return nil, &errorsx.AgentError{Kind: errorsx.AgentNotFound, Protocol: "router", Reason: target}
	}
	return agent.Stream(ctx, msg)
}

// CapabilityBasedSupervisor routes messages to whichever registered
// agent advertises a required Capability, rather than by predicate.
// Capability lookups are resolved once, at construction,
// from the supplied AgentInfo list — callers backed by a live registry
// should rebuild the supervisor when membership changes.
type CapabilityBasedSupervisor struct {
	router *RouterAgent
}

// NewCapabilityBasedSupervisor builds a router that dispatches any
// message requesting capability (found via msg.Metadata["capability"])
// to the first agent in infos whose Capabilities include it.
func NewCapabilityBasedSupervisor(info unified.AgentInfo, infos []unified.AgentInfo, resolve func(agentID string) (unified.UnifiedAgent, bool)) *CapabilityBasedSupervisor {
	var rules []RoutingRule
	for _, candidate := range infos {
		candidate := candidate
		for _, capability := range candidate.Capabilities {
			capName := capability.Name
			rules = append(rules, RoutingRule{
				AgentID: candidate.ID,
				Predicate: func(msg unified.Message) bool {
					want, _ := msg.Metadata["capability"].(string)
					return want == capName
				},
			})
		}
	}
	return &CapabilityBasedSupervisor{router: NewRouterAgent(info, resolve, rules...)}
}

var _ unified.UnifiedAgent = (*CapabilityBasedSupervisor)(nil)

func (c *CapabilityBasedSupervisor) Info(ctx context.Context) (unified.AgentInfo, error) {
	return c.router.Info(ctx)
}

func (c *CapabilityBasedSupervisor) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	return c.router.SendMessage(ctx, msg)
}

func (c *CapabilityBasedSupervisor) GetTask(ctx context.Context, id string) (unified.Task, error) {
	return c.router.GetTask(ctx, id)
}

func (c *CapabilityBasedSupervisor) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	return c.router.CancelTask(ctx, id)
}

func (c *CapabilityBasedSupervisor) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	return c.router.Stream(ctx, msg)
}
