package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/shyam-habarakada/agent-md/internal/invoker"
	"github.com/shyam-habarakada/agent-md/internal/manifest"
)

// Relay method names carried over the inner channel.
const (
	methodPageOrigin   = "page/origin"
	methodActionInvoke = "actions/invoke"
)

// PageTarget is the live page behind the relay: it answers which origin is
// active and exposes the page's action registry, scoped to a contract's
// declared action names.
type PageTarget struct {
	conn   *Conn
	logger *logrus.Logger

	mu            sync.RWMutex
	defaultOrigin string
}

// NewPageTarget creates a target over an established relay connection.
// defaultOrigin is used when the relay cannot report the active tab's
// origin, e.g. while disconnected.
func NewPageTarget(conn *Conn, defaultOrigin string, logger *logrus.Logger) *PageTarget {
	if logger == nil {
		logger = logrus.New()
	}
	return &PageTarget{
		conn:          conn,
		defaultOrigin: defaultOrigin,
		logger:        logger,
	}
}

// SetOrigin changes the fallback origin, e.g. when the hosting session
// switches the bridge to a different application.
func (t *PageTarget) SetOrigin(origin string) {
	t.mu.Lock()
	t.defaultOrigin = origin
	t.mu.Unlock()
}

// Origin resolves the active execution target's origin. The relay is asked
// first; a disconnected or unresponsive relay falls back to the configured
// origin. ok is false only when neither source yields one.
func (t *PageTarget) Origin(ctx context.Context) (string, bool) {
	if t.conn != nil && t.conn.Connected() {
		raw, err := t.conn.Call(ctx, methodPageOrigin, nil)
		if err == nil {
			var payload struct {
				Origin string `json:"origin"`
			}
			if jsonErr := json.Unmarshal(raw, &payload); jsonErr == nil && payload.Origin != "" {
				return payload.Origin, true
			}
		} else {
			t.logger.Debugf("Relay origin lookup failed: %v", err)
		}
	}

	t.mu.RLock()
	origin := t.defaultOrigin
	t.mu.RUnlock()
	return origin, origin != ""
}

// Registry returns the page's action registry restricted to the actions the
// contract declares. Names outside the contract never reach the page; this
// is the name-based allow-list, and the only sandboxing the bridge does.
func (t *PageTarget) Registry(contract *manifest.Contract) invoker.ActionRegistry {
	if t.conn == nil || !t.conn.Connected() {
		return nil
	}

	allowed := make(map[string]bool)
	if contract != nil {
		for _, action := range contract.Actions {
			allowed[action.Name] = true
		}
	}

	return &pageRegistry{conn: t.conn, allowed: allowed}
}

// pageRegistry resolves contract-declared actions to relay calls.
type pageRegistry struct {
	conn    *Conn
	allowed map[string]bool
}

func (r *pageRegistry) Resolve(name string) (invoker.ActionFunc, bool) {
	if !r.allowed[name] {
		return nil, false
	}

	fn := func(ctx context.Context, args map[string]interface{}) (invoker.Result, error) {
		raw, err := r.conn.Call(ctx, methodActionInvoke, map[string]interface{}{
			"name":      name,
			"arguments": args,
		})
		if err != nil {
			return invoker.Result{}, err
		}

		var result invoker.Result
		if err := json.Unmarshal(raw, &result); err != nil {
			return invoker.Result{}, err
		}
		return result, nil
	}
	return fn, true
}
