//go:build !no_automation

package automation

import (
	"time"

	lua "github.com/yuin/gopher-lua"
)

const maxHandlersPerScript = 100

// registerMatterModule registers the `matter` global table in a Lua state.
func registerMatterModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()
	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int { return matterOn(L, vm) }))
	mod.RawSetString("read", L.NewFunction(func(L *lua.LState) int { return matterRead(L, e) }))
	mod.RawSetString("write", L.NewFunction(func(L *lua.LState) int { return matterWrite(L, vm, e) }))
	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int { return matterAfter(L, vm, e) }))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int { return matterLog(L, vm, e) }))
	mod.RawSetString("time_between", L.NewFunction(func(L *lua.LState) int { return matterTimeBetween(L, e) }))
	L.SetGlobal("matter", mod)
}

// matter.on(type, [filter], callback)
//
// type is an event type ("attribute", "identify", "lifecycle",
// "sensor_error") or "*". filter keys are matched against the event fields.
func matterOn(L *lua.LState, vm *scriptVM) int {
	eventType := L.CheckString(1)
	var (
		filterTable *lua.LTable
		fn          *lua.LFunction
	)
	if L.GetTop() >= 3 {
		filterTable = L.OptTable(2, nil)
		fn = L.CheckFunction(3)
	} else {
		fn = L.CheckFunction(2)
	}

	h := luaEventHandler{eventType: eventType, fn: fn}
	if filterTable != nil {
		h.filter = make(map[string]lua.LValue)
		filterTable.ForEach(func(k, v lua.LValue) {
			if key, ok := k.(lua.LString); ok {
				h.filter[string(key)] = v
			}
		})
	}

	vm.mu.Lock()
	if len(vm.handlers) >= maxHandlersPerScript {
		vm.mu.Unlock()
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	vm.mu.Unlock()
	return 0
}

// matter.read(endpoint, cluster, attribute) -> value | nil, err
func matterRead(L *lua.LState, e *Engine) int {
	ep, cluster, attr := checkPath(L)
	v, err := e.attrs.ReadValue(ep, cluster, attr)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(goToLua(L, v))
	return 1
}

// matter.write(endpoint, cluster, attribute, value) -> true | false, err
//
// The write is a local update: the node reports it like a sensor reading.
func matterWrite(L *lua.LState, vm *scriptVM, e *Engine) int {
	ep, cluster, attr := checkPath(L)
	val := luaToGo(L.CheckAny(4))
	if err := e.attrs.UpdateValue(ep, cluster, attr, val); err != nil {
		e.logger.Warn("script write failed", "id", vm.id, "endpoint", ep, "cluster", cluster, "attribute", attr, "err", err)
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func checkPath(L *lua.LState) (uint16, uint32, uint32) {
	ep := L.CheckInt(1)
	if ep < 0 || ep > 0xFFFF {
		L.ArgError(1, "endpoint out of range")
	}
	cluster := L.CheckInt64(2)
	if cluster < 0 || cluster > 0xFFFFFFFF {
		L.ArgError(2, "cluster out of range")
	}
	attr := L.CheckInt64(3)
	if attr < 0 || attr > 0xFFFFFFFF {
		L.ArgError(3, "attribute out of range")
	}
	return uint16(ep), uint32(cluster), uint32(attr)
}

// matter.after(seconds, callback)
func matterAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "id", vm.id, "err", err)
			}
		}:
		case <-vm.ctx.Done():
		default:
			e.logger.Warn("after: command queue full", "id", vm.id)
		}
	}()
	return 0
}

// matter.log(msg)
func matterLog(L *lua.LState, vm *scriptVM, e *Engine) int {
	msg := L.CheckString(1)
	if vm.logf != nil {
		vm.logf(msg)
	}
	e.logger.Info("script log", "id", vm.id, "msg", msg)
	return 0
}

// matter.time_between(from_hour, to_hour) reports whether the current hour
// lies in [from, to), wrapping past midnight when from > to.
func matterTimeBetween(L *lua.LState, e *Engine) int {
	from := L.CheckInt(1)
	to := L.CheckInt(2)
	hour := e.now().Hour()

	var in bool
	if from <= to {
		in = hour >= from && hour < to
	} else {
		in = hour >= from || hour < to
	}
	L.Push(lua.LBool(in))
	return 1
}
