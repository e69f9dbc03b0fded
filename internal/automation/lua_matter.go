//go:build !no_automation

package automation

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"matter-rainmaker/internal/matter"
)

// registerMatterModule registers the `matter` global table:
//
//	matter.log(msg)
//	matter.get(endpoint, cluster, attribute)        -> value or nil
//	matter.set(endpoint, cluster, attribute, value) -> true or false, err
//	matter.after(seconds, fn)
//
// set is applied asynchronously with local origin since hooks run inside an
// update. When capture is set (one-shot runs) log lines are captured, set
// only validates, and after does not schedule.
func registerMatterModule(L *lua.LState, vm *scriptVM, e *Engine, capture func(string)) {
	mod := L.NewTable()

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		if capture != nil {
			capture(msg)
			return 0
		}
		e.logger.Info("script log", "script", vm.id, "msg", msg)
		return 0
	}))

	mod.RawSetString("get", L.NewFunction(func(L *lua.LState) int {
		ref := checkRef(L)
		v, err := e.node.Get(ref)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(valueToLua(v))
		return 1
	}))

	mod.RawSetString("set", L.NewFunction(func(L *lua.LState) int {
		ref := checkRef(L)
		a, err := e.node.Attribute(ref)
		if err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		v, err := luaToValue(a.Type(), L.CheckAny(4))
		if err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		if capture != nil {
			capture(fmt.Sprintf("set %s = %v", ref, v.Any()))
			L.Push(lua.LTrue)
			return 1
		}
		go func() {
			if err := e.node.Update(vm.ctx, ref, v, matter.OriginLocal); err != nil {
				e.logger.Warn("script set failed", "script", vm.id, "attr", ref.String(), "err", err)
			}
		}()
		L.Push(lua.LTrue)
		return 1
	}))

	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		secs := float64(L.CheckNumber(1))
		fn := L.CheckFunction(2)
		if capture != nil {
			capture(fmt.Sprintf("after %gs scheduled", secs))
			return 0
		}
		time.AfterFunc(time.Duration(secs*float64(time.Second)), func() {
			e.runDeferred(vm, fn)
		})
		return 0
	}))

	L.SetGlobal("matter", mod)
}

// runDeferred calls fn unless the script was stopped in the meantime.
func (e *Engine) runDeferred(vm *scriptVM, fn *lua.LFunction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if vm.ctx.Err() != nil {
		return
	}
	if _, _, err := e.call(context.Background(), vm, fn, 0); err != nil {
		e.logger.Error("deferred call error", "script", vm.id, "err", err)
	}
}

func checkRef(L *lua.LState) matter.AttributeRef {
	return matter.AttributeRef{
		Endpoint:  uint16(L.CheckInt(1)),
		Cluster:   uint32(L.CheckInt(2)),
		Attribute: uint32(L.CheckInt(3)),
	}
}

func valueToLua(v matter.Value) lua.LValue {
	switch v.Type {
	case matter.TypeInvalid:
		return lua.LNil
	case matter.TypeBool:
		return lua.LBool(v.Bool)
	case matter.TypeString:
		return lua.LString(v.Str)
	}
	f, _ := v.Float64()
	return lua.LNumber(f)
}

func luaToValue(t matter.ValueType, lv lua.LValue) (matter.Value, error) {
	switch x := lv.(type) {
	case lua.LBool:
		return matter.Coerce(t, bool(x))
	case lua.LNumber:
		return matter.Coerce(t, float64(x))
	case lua.LString:
		return matter.Coerce(t, string(x))
	}
	return matter.Invalid(), fmt.Errorf("unsupported lua type %s", lv.Type())
}
