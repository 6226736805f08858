package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/unified"
)

// Gateway dispatches a message to the agent registered under a given
// id, regardless of which protocol that agent actually speaks — A2A
// peer agents, bridged tool-servers, or natively unified agents are
// all reached the same way once registered.
// Outbound calls are wrapped in a per-agent circuit breaker so a
// misbehaving downstream agent cannot cascade failures through the
// gateway.
type Gateway struct {
	mu      sync.RWMutex
	agents  map[string]unified.UnifiedAgent
	infos   map[string]unified.AgentInfo
	circuit map[string]*gobreaker.CircuitBreaker[unified.Task]
}

// NewGateway builds an empty Gateway.
func NewGateway() *Gateway {
	return &Gateway{
		agents:  make(map[string]unified.UnifiedAgent),
		infos:   make(map[string]unified.AgentInfo),
		circuit: make(map[string]*gobreaker.CircuitBreaker[unified.Task]),
	}
}

// Register associates id with agent, regardless of agent's declared
// Protocol — it may be a native unified.UnifiedAgent, an a2a.Client,
// or a ToolServerAsAgent bridge.
func (g *Gateway) Register(id string, info unified.AgentInfo, agent unified.UnifiedAgent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.agents[id] = agent
	g.infos[id] = info
	g.circuit[id] = gobreaker.NewCircuitBreaker[unified.Task](gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Deregister removes an agent registration.
func (g *Gateway) Deregister(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.agents, id)
	delete(g.infos, id)
	delete(g.circuit, id)
}

// Lookup returns the AgentInfo registered under id.
func (g *Gateway) Lookup(id string) (unified.AgentInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	info, ok := g.infos[id]
	return info, ok
}

// Dispatch routes msg to the agent registered under id, through that
// agent's circuit breaker.
func (g *Gateway) Dispatch(ctx context.Context, id string, msg unified.Message) (unified.Task, error) {
	g.mu.RLock()
	agent, ok := g.agents[id]
	cb := g.circuit[id]
	g.mu.RUnlock()
	if !ok {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentNotFound, Reason: id}
	}

	result, err := cb.Execute(func() (unified.Task, error) {
		return agent.SendMessage(ctx, msg)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "gateway", Reason: err.Error(), Cause: err}
		}
		return unified.Task{}, err
	}
	return result, nil
}
