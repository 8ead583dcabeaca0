package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	mcpTypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/shyam-habarakada/agent-md/internal/bus"
	"github.com/shyam-habarakada/agent-md/internal/invoker"
	"github.com/shyam-habarakada/agent-md/internal/manifest"
)

// ServerName and ServerVersion identify the bridge to clients.
const (
	ServerName    = "agent-md-bridge"
	ServerVersion = "0.2.0"
)

// ExecutionTarget is the live page the bridge is attached to: it knows the
// active origin and hands out the page's action registry scoped to a
// contract.
type ExecutionTarget interface {
	Origin(ctx context.Context) (string, bool)
	Registry(contract *manifest.Contract) invoker.ActionRegistry
}

// Stats counts dispatcher activity for the debug API.
type Stats struct {
	RequestsTotal    int64
	RequestsError    int64
	ToolCallsTotal   int64
	ToolCallsSuccess int64
	ToolCallsError   int64
	LastRequest      time.Time
	LastError        string
}

// Dispatcher implements the JSON-RPC method surface on top of the contract
// resolver, schema builder and action invoker. It is stateless across calls
// except for the contract cache it is composed with; concurrent requests
// are safe and independent.
type Dispatcher struct {
	prefix    string
	resolver  *manifest.Resolver
	invoker   *invoker.Invoker
	target    ExecutionTarget
	eventBus  *bus.EventBus
	logger    *logrus.Logger
	sessionID string

	statsMu sync.Mutex
	stats   Stats
}

// NewDispatcher wires the dispatcher to its collaborators. eventBus may be
// nil when no telemetry surface is wanted.
func NewDispatcher(prefix string, resolver *manifest.Resolver, inv *invoker.Invoker, target ExecutionTarget, eventBus *bus.EventBus, logger *logrus.Logger) *Dispatcher {
	if prefix == "" {
		prefix = DefaultToolPrefix
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Dispatcher{
		prefix:    prefix,
		resolver:  resolver,
		invoker:   inv,
		target:    target,
		eventBus:  eventBus,
		logger:    logger,
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the id minted for this dispatcher's lifetime.
func (d *Dispatcher) SessionID() string {
	return d.sessionID
}

// Invalidate drops all cached contracts; the next tools/list re-fetches.
func (d *Dispatcher) Invalidate() {
	d.resolver.Invalidate()
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() map[string]interface{} {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()

	return map[string]interface{}{
		"session_id":         d.sessionID,
		"requests_total":     d.stats.RequestsTotal,
		"requests_error":     d.stats.RequestsError,
		"tool_calls_total":   d.stats.ToolCallsTotal,
		"tool_calls_success": d.stats.ToolCallsSuccess,
		"tool_calls_error":   d.stats.ToolCallsError,
		"last_request":       d.stats.LastRequest,
		"last_error":         d.stats.LastError,
	}
}

// Handle routes one request to its method handler and returns the response,
// or nil for notifications. A panic inside tools/list or tools/call becomes
// a JSON-RPC internal error instead of crossing the transport boundary.
func (d *Dispatcher) Handle(ctx context.Context, req *Request) (resp *Response) {
	if strings.HasPrefix(req.Method, "notifications/") {
		return nil
	}

	d.statsMu.Lock()
	d.stats.RequestsTotal++
	d.stats.LastRequest = time.Now()
	d.statsMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("Panic handling %s: %v", req.Method, r)
			resp = NewErrorResponse(req.ID, ErrCodeInternal, "%v", r)
		}
		if resp != nil && resp.Error != nil {
			d.statsMu.Lock()
			d.stats.RequestsError++
			d.stats.LastError = resp.Error.Message
			d.statsMu.Unlock()
		}
	}()

	switch req.Method {
	case MethodInitialize:
		return d.handleInitialize(req)
	case MethodListTools:
		return d.handleListTools(ctx, req)
	case MethodToolCall:
		return d.handleToolCall(ctx, req)
	default:
		d.logger.Warnf("Unknown method: %s", req.Method)
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, "method not found: %s", req.Method)
	}
}

// handleInitialize returns the fixed capabilities record. The client's
// declared protocol version is accepted as-is; no negotiation happens here.
func (d *Dispatcher) handleInitialize(req *Request) *Response {
	return NewResponse(req.ID, map[string]interface{}{
		"protocolVersion": mcpTypes.LATEST_PROTOCOL_VERSION,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": mcpTypes.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		"sessionId": d.sessionID,
	})
}

// ListTools projects the active origin's contract into tools. No resolvable
// contract means an empty tool list, never an error. origin is empty when no
// execution target is attached.
func (d *Dispatcher) ListTools(ctx context.Context) ([]mcpTypes.Tool, string) {
	tools := make([]mcpTypes.Tool, 0)

	origin, ok := d.target.Origin(ctx)
	if !ok {
		d.logger.Debug("No active origin; returning empty tool list")
		return tools, ""
	}

	contract, ok := d.resolver.Resolve(ctx, origin)
	if !ok {
		if d.eventBus != nil {
			d.eventBus.PublishAsync(bus.EventContractMiss, map[string]interface{}{"origin": origin})
		}
		return tools, origin
	}

	for _, action := range contract.Actions {
		tools = append(tools, BuildTool(contract, action, d.prefix))
	}

	if d.eventBus != nil {
		d.eventBus.PublishContractLoaded(origin, contract.AppName, len(contract.Actions))
	}

	d.logger.Debugf("Listing %d tools for %s", len(tools), origin)
	return tools, origin
}

func (d *Dispatcher) handleListTools(ctx context.Context, req *Request) *Response {
	tools, _ := d.ListTools(ctx)
	return NewResponse(req.ID, map[string]interface{}{"tools": tools})
}

// handleToolCall strips the tool-name prefix to recover the action name and
// delegates to the invoker exactly once. A failing action sets isError on
// the result payload; that is distinct from a JSON-RPC error, which is
// reserved for protocol-level problems.
func (d *Dispatcher) handleToolCall(ctx context.Context, req *Request) *Response {
	var params CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "invalid tools/call params: %v", err)
	}
	if params.Name == "" {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "missing tool name")
	}

	action := strings.TrimPrefix(params.Name, d.prefix+"_")

	d.statsMu.Lock()
	d.stats.ToolCallsTotal++
	d.statsMu.Unlock()

	origin, _ := d.target.Origin(ctx)
	contract, _ := d.resolver.Resolve(ctx, origin)
	registry := d.target.Registry(contract)

	result := d.invoker.Invoke(ctx, registry, action, params.Arguments)

	d.statsMu.Lock()
	if result.OK {
		d.stats.ToolCallsSuccess++
	} else {
		d.stats.ToolCallsError++
		d.stats.LastError = result.Error
	}
	d.statsMu.Unlock()

	if d.eventBus != nil {
		d.eventBus.PublishToolResult(origin, params.Name, result.OK, result.Error)
	}

	text, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInternal, "failed to encode result: %v", err)
	}

	return NewResponse(req.ID, mcpTypes.CallToolResult{
		Content: []mcpTypes.Content{mcpTypes.NewTextContent(string(text))},
		IsError: !result.OK,
	})
}
