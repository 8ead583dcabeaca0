// Package invoker executes declared actions inside the live execution
// context and normalizes every failure into a payload-level result. Nothing
// in this package returns a Go error for a missing or failing action; the
// calling agent sees {ok:false, error} as an ordinary tool result and
// decides how to react.
package invoker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Result is the tagged object every action resolves to: ok, an error message
// when ok is false, and any additional fields the action returned. It
// marshals flat, so {ok:true, id:"t1"} round-trips unchanged.
type Result struct {
	OK     bool
	Error  string
	Fields map[string]interface{}
}

// Failure builds an {ok:false, error} result.
func Failure(format string, args ...interface{}) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// MarshalJSON flattens the result into a single object.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["ok"] = r.OK
	if r.Error != "" {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits ok/error back out of a flat object.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ok, _ := raw["ok"].(bool)
	errMsg, _ := raw["error"].(string)
	delete(raw, "ok")
	delete(raw, "error")

	r.OK = ok
	r.Error = errMsg
	r.Fields = raw
	return nil
}

// ActionFunc is one callable action in the execution context. It receives a
// single plain-object argument and resolves to a tagged Result; a returned
// error means the call itself blew up (as opposed to the action reporting
// ok:false) and is converted at the invocation boundary.
type ActionFunc func(ctx context.Context, args map[string]interface{}) (Result, error)

// ActionRegistry is the capability interface the execution context exposes:
// named async operations returning a tagged result. The browser relay
// implements it for a live page; tests substitute an in-process map.
type ActionRegistry interface {
	Resolve(name string) (ActionFunc, bool)
}

// Invoker resolves an action in a registry and invokes it exactly once.
// Actions run caller-authored logic in a live, stateful page, so there is no
// implicit retry and no mutual exclusion between concurrent invocations;
// ordering is the action implementation's problem.
type Invoker struct {
	logger *logrus.Logger
}

// New creates an Invoker.
func New(logger *logrus.Logger) *Invoker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Invoker{logger: logger}
}

// Invoke runs the named action with args against the given registry.
// Preconditions are checked in order and each produces {ok:false, error}
// without an error return: the registry must be present, and the action must
// resolve within it. A panic inside the action is caught and converted the
// same way.
func (inv *Invoker) Invoke(ctx context.Context, registry ActionRegistry, action string, args map[string]interface{}) (result Result) {
	if registry == nil {
		return Failure("no action registry available in execution context")
	}

	fn, ok := registry.Resolve(action)
	if !ok || fn == nil {
		return Failure("unknown action: %s", action)
	}

	defer func() {
		if r := recover(); r != nil {
			inv.logger.Errorf("Action %s panicked: %v", action, r)
			result = Failure("action %s failed: %v", action, r)
		}
	}()

	if args == nil {
		args = map[string]interface{}{}
	}

	inv.logger.Debugf("Invoking action %s", action)
	res, err := fn(ctx, args)
	if err != nil {
		return Failure("%v", err)
	}

	return res
}
