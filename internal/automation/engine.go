//go:build !no_automation

package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"matter-rainmaker/internal/matter"
)

// ErrScriptVeto is returned from PreUpdate when a script rejects an update.
var ErrScriptVeto = errors.New("rejected by script")

// callTimeout bounds a single pre_update or post_update call.
const callTimeout = 2 * time.Second

// scriptVM is a loaded Lua state for a single script.
type scriptVM struct {
	id     string
	name   string
	state  *lua.LState
	pre    *lua.LFunction
	post   *lua.LFunction
	ctx    context.Context
	cancel context.CancelFunc
}

// Engine runs policy scripts as Matter update hooks. A script may define
//
//	function pre_update(ev)  -- return nil, a new value, or false, "reason"
//	function post_update(ev)
//
// with ev = {endpoint, cluster, attribute, value, origin}. Scripts run in ID
// order and each sees the value as transformed by the previous ones.
type Engine struct {
	node    *matter.Node
	manager *Manager
	logger  *slog.Logger

	// mu serialises all Lua access.
	mu     sync.Mutex
	vms    []*scriptVM
	errors map[string]string
}

// NewEngine creates a new automation engine. Register it with
// node.AddHooks before Start.
func NewEngine(node *matter.Node, mgr *Manager, logger *slog.Logger) *Engine {
	return &Engine{
		node:    node,
		manager: mgr,
		logger:  logger.With("component", "automation"),
		errors:  make(map[string]string),
	}
}

// Start loads all enabled scripts. A script that fails to load is skipped.
func (e *Engine) Start() {
	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}
	e.logger.Info("automation engine started", "scripts", len(e.vms))
}

// Stop closes all Lua states.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, vm := range e.vms {
		vm.cancel()
		vm.state.Close()
	}
	e.vms = nil
	e.logger.Info("automation engine stopped")
}

// ReloadScript stops the old state (if any) and loads the script again.
func (e *Engine) ReloadScript(id string) error {
	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("get script: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopScript(id)
	if !s.Meta.Enabled {
		return nil
	}
	return e.startScript(s)
}

// StopScript unloads a running script.
func (e *Engine) StopScript(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopScript(id)
}

// Scripts reports every script on disk with its engine state.
func (e *Engine) Scripts() ([]ScriptStatus, error) {
	scripts, err := e.manager.List()
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ScriptStatus, 0, len(scripts))
	for _, s := range scripts {
		st := ScriptStatus{ID: s.ID, Name: s.Meta.Name, Enabled: s.Meta.Enabled, Error: e.errors[s.ID]}
		if vm := e.find(s.ID); vm != nil {
			st.Running = true
			st.PreUpdate = vm.pre != nil
			st.PostUpdate = vm.post != nil
		}
		out = append(out, st)
	}
	return out, nil
}

// stopScript must be called with e.mu held.
func (e *Engine) stopScript(id string) {
	for i, vm := range e.vms {
		if vm.id == id {
			vm.cancel()
			vm.state.Close()
			e.vms = append(e.vms[:i], e.vms[i+1:]...)
			e.logger.Info("script stopped", "id", id)
			return
		}
	}
}

func (e *Engine) find(id string) *scriptVM {
	for _, vm := range e.vms {
		if vm.id == id {
			return vm
		}
	}
	return nil
}

// startScript must be called with e.mu held.
func (e *Engine) startScript(s *Script) error {
	L := newSandbox()
	ctx, cancel := context.WithCancel(context.Background())
	vm := &scriptVM{id: s.ID, name: s.Meta.Name, state: L, ctx: ctx, cancel: cancel}

	registerMatterModule(L, vm, e, nil)
	registerSystemModule(L, e, nil)

	if err := L.DoString(s.LuaCode); err != nil {
		cancel()
		L.Close()
		e.errors[s.ID] = err.Error()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}
	delete(e.errors, s.ID)
	vm.pre, _ = L.GetGlobal("pre_update").(*lua.LFunction)
	vm.post, _ = L.GetGlobal("post_update").(*lua.LFunction)

	// keep ID order
	i := 0
	for i < len(e.vms) && e.vms[i].id < s.ID {
		i++
	}
	e.vms = append(e.vms, nil)
	copy(e.vms[i+1:], e.vms[i:])
	e.vms[i] = vm

	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name, "pre_update", vm.pre != nil, "post_update", vm.post != nil)
	return nil
}

// newSandbox returns a Lua state without access to the host.
func newSandbox() *lua.LState {
	L := lua.NewState()
	for _, name := range []string{"os", "io", "loadfile", "dofile", "require", "load", "loadstring", "debug", "package"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func (e *Engine) PreUpdate(ctx context.Context, ref matter.AttributeRef, v matter.Value, origin matter.Origin) (matter.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, vm := range e.vms {
		if vm.pre == nil {
			continue
		}
		ret, reason, err := e.call(ctx, vm, vm.pre, 2, eventTable(vm.state, ref, v, origin))
		if err != nil {
			e.logger.Error("pre_update error", "script", vm.id, "attr", ref.String(), "err", err)
			continue
		}
		switch {
		case ret == lua.LNil:
		case ret == lua.LFalse && reason != lua.LNil:
			e.logger.Info("update rejected by script", "script", vm.id, "attr", ref.String(), "reason", reason.String())
			return matter.Invalid(), fmt.Errorf("%w %s: %s", ErrScriptVeto, vm.id, reason.String())
		default:
			nv, err := luaToValue(v.Type, ret)
			if err != nil {
				e.logger.Warn("pre_update returned unusable value", "script", vm.id, "attr", ref.String(), "err", err)
				continue
			}
			v = nv
		}
	}
	return v, nil
}

func (e *Engine) PostUpdate(ctx context.Context, ref matter.AttributeRef, v matter.Value, origin matter.Origin) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, vm := range e.vms {
		if vm.post == nil {
			continue
		}
		if _, _, err := e.call(ctx, vm, vm.post, 0, eventTable(vm.state, ref, v, origin)); err != nil {
			e.logger.Error("post_update error", "script", vm.id, "attr", ref.String(), "err", err)
		}
	}
}

// call runs fn with a deadline and returns up to two results. Must be called
// with e.mu held.
func (e *Engine) call(ctx context.Context, vm *scriptVM, fn *lua.LFunction, nret int, args ...lua.LValue) (lua.LValue, lua.LValue, error) {
	L := vm.state
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	L.SetContext(cctx)
	defer L.RemoveContext()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		if strings.Contains(err.Error(), "context deadline exceeded") {
			return lua.LNil, lua.LNil, fmt.Errorf("timeout (%s)", callTimeout)
		}
		return lua.LNil, lua.LNil, err
	}
	if nret == 0 {
		return lua.LNil, lua.LNil, nil
	}
	first, second := L.Get(-nret), lua.LValue(lua.LNil)
	if nret > 1 {
		second = L.Get(-nret + 1)
	}
	L.Pop(nret)
	return first, second, nil
}

// eventTable builds the ev argument of the hook functions.
func eventTable(L *lua.LState, ref matter.AttributeRef, v matter.Value, origin matter.Origin) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("endpoint", lua.LNumber(ref.Endpoint))
	t.RawSetString("cluster", lua.LNumber(ref.Cluster))
	t.RawSetString("attribute", lua.LNumber(ref.Attribute))
	t.RawSetString("value", valueToLua(v))
	t.RawSetString("origin", lua.LString(origin.String()))
	return t
}

// RunLuaCode executes code in a temporary sandboxed state and captures its
// log output. If the code defines pre_update it is called once with a sample
// OnOff event.
func (e *Engine) RunLuaCode(code string) *RunResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	L := newSandbox()
	defer L.Close()
	L.SetContext(ctx)

	var (
		logs  []string
		logMu sync.Mutex
	)
	capture := func(msg string) {
		logMu.Lock()
		logs = append(logs, msg)
		logMu.Unlock()
	}
	vm := &scriptVM{id: "run", state: L, ctx: ctx, cancel: cancel}
	registerMatterModule(L, vm, e, capture)
	registerSystemModule(L, e, capture)

	fail := func(err error) *RunResult {
		msg := err.Error()
		if strings.Contains(msg, "context deadline exceeded") {
			msg = "timeout (5s)"
		}
		return &RunResult{OK: false, Error: msg, Logs: logs, Duration: time.Since(start).String()}
	}

	if err := L.DoString(code); err != nil {
		return fail(err)
	}
	if pre, ok := L.GetGlobal("pre_update").(*lua.LFunction); ok {
		ref := matter.AttributeRef{Endpoint: 1, Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff}
		if err := L.CallByParam(lua.P{Fn: pre, NRet: 0, Protect: true}, eventTable(L, ref, matter.Bool(true), matter.OriginLocal)); err != nil {
			return fail(err)
		}
	}
	return &RunResult{OK: true, Logs: logs, Duration: time.Since(start).String()}
}
