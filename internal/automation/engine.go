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

	"matter-sensor-node/internal/events"

	lua "github.com/yuin/gopher-lua"
)

const (
	commandQueueSize = 64
	runTimeout       = 5 * time.Second
)

// Attributes is the node surface scripts read and write through.
type Attributes interface {
	ReadValue(endpointID uint16, clusterID, attrID uint32) (any, error)
	UpdateValue(endpointID uint16, clusterID, attrID uint32, v any) error
}

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Handlers int      `json:"handlers"`
	Duration string   `json:"duration"`
}

// luaEventHandler is a callback registered with matter.on.
type luaEventHandler struct {
	eventType string
	filter    map[string]lua.LValue
	fn        *lua.LFunction
}

// scriptVM is a running Lua VM for a single script. All access to state
// goes through commands, drained by the VM goroutine.
type scriptVM struct {
	id       string
	state    *lua.LState
	commands chan func(*lua.LState)
	handlers []luaEventHandler
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex // protects handlers

	// logf receives matter.log output; nil logs through the engine logger.
	logf func(msg string)
}

// Engine runs one sandboxed Lua VM per enabled script and dispatches bus
// events to the handlers they register.
type Engine struct {
	attrs   Attributes
	bus     *events.Bus
	manager *Manager
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	vms   map[string]*scriptVM
	unsub func()
}

// NewEngine creates an automation engine.
func NewEngine(attrs Attributes, bus *events.Bus, mgr *Manager, logger *slog.Logger) *Engine {
	return &Engine{
		attrs:   attrs,
		bus:     bus,
		manager: mgr,
		logger:  logger.With("component", "automation"),
		now:     time.Now,
		vms:     make(map[string]*scriptVM),
	}
}

// Start subscribes to the bus and starts every enabled script.
func (e *Engine) Start() {
	e.unsub = e.bus.OnAll(e.dispatchEvent)

	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}
	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}
	e.logger.Info("automation engine started", "scripts", e.Running())
}

// Stop cancels all VMs and unsubscribes from the bus.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, vm := range e.vms {
		vm.cancel()
		delete(e.vms, id)
	}
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	e.logger.Info("automation engine stopped")
}

// Running returns the number of running script VMs.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.vms)
}

// ReloadScript stops the script's VM, if any, and starts it again when it
// is enabled.
func (e *Engine) ReloadScript(id string) error {
	e.stopScript(id)

	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("get script: %w", err)
	}
	if !s.Meta.Enabled {
		return nil
	}
	return e.startScript(s)
}

// StopScript stops a running script VM.
func (e *Engine) StopScript(id string) {
	e.stopScript(id)
}

// RunScript executes a stored script once in a temporary VM.
func (e *Engine) RunScript(id string) *RunResult {
	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{Error: err.Error(), Duration: "0s"}
	}
	return e.RunLuaCode(s.LuaCode)
}

// RunLuaCode executes code in a temporary sandboxed VM with a timeout and
// captures its matter.log output. Handlers registered by the code are counted
// but never called.
func (e *Engine) RunLuaCode(code string) *RunResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	var (
		logs  []string
		logMu sync.Mutex
	)
	vm := e.newVM("run", ctx, cancel)
	defer vm.state.Close()
	vm.state.SetContext(ctx)
	vm.logf = func(msg string) {
		logMu.Lock()
		logs = append(logs, msg)
		logMu.Unlock()
	}

	err := vm.state.DoString(code)
	res := &RunResult{Duration: time.Since(start).String()}
	logMu.Lock()
	res.Logs = append([]string(nil), logs...)
	logMu.Unlock()
	vm.mu.Lock()
	res.Handlers = len(vm.handlers)
	vm.mu.Unlock()

	if err != nil {
		res.Error = err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || strings.Contains(res.Error, "context deadline exceeded") {
			res.Error = fmt.Sprintf("timeout (%s)", runTimeout)
		}
		e.logger.Warn("script run failed", "err", res.Error)
		return res
	}
	res.OK = true
	return res
}

// newVM builds a sandboxed Lua state with the matter module registered.
func (e *Engine) newVM(id string, ctx context.Context, cancel context.CancelFunc) *scriptVM {
	L := lua.NewState()
	for _, name := range []string{"os", "io", "loadfile", "dofile", "require", "load", "debug", "package"} {
		L.SetGlobal(name, lua.LNil)
	}

	vm := &scriptVM{
		id:       id,
		state:    L,
		commands: make(chan func(*lua.LState), commandQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	registerMatterModule(L, vm, e)
	return vm
}

func (e *Engine) stopScript(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if vm, ok := e.vms[id]; ok {
		vm.cancel()
		delete(e.vms, id)
		e.logger.Info("script stopped", "id", id)
	}
}

func (e *Engine) startScript(s *Script) error {
	ctx, cancel := context.WithCancel(context.Background())
	vm := e.newVM(s.ID, ctx, cancel)
	L := vm.state

	if err := L.DoString(s.LuaCode); err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}

	e.mu.Lock()
	if old, ok := e.vms[s.ID]; ok {
		old.cancel()
	}
	e.vms[s.ID] = vm
	e.mu.Unlock()

	go func() {
		defer L.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case fn := <-vm.commands:
				fn(L)
			}
		}
	}()

	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name)
	return nil
}

// dispatchEvent queues every matching handler call on its VM. It never
// blocks: a full queue drops the call.
func (e *Engine) dispatchEvent(event events.Event) {
	e.mu.Lock()
	vms := make([]*scriptVM, 0, len(e.vms))
	for _, vm := range e.vms {
		vms = append(vms, vm)
	}
	e.mu.Unlock()

	fields := eventFields(event)
	for _, vm := range vms {
		vm.mu.Lock()
		handlers := append([]luaEventHandler(nil), vm.handlers...)
		vm.mu.Unlock()

		for _, h := range handlers {
			if !matchesHandler(h, event.Type, fields) {
				continue
			}
			fn := h.fn
			if vm.ctx.Err() != nil {
				break
			}
			select {
			case vm.commands <- func(L *lua.LState) { e.callHandler(L, vm, fn, event.Type, fields) }:
			default:
				e.logger.Warn("script command queue full, dropping event", "id", vm.id, "type", event.Type)
			}
		}
	}
}

// eventFields flattens event data into the fields of the Lua event table.
func eventFields(event events.Event) map[string]any {
	switch d := event.Data.(type) {
	case events.AttributeData:
		return map[string]any{
			"kind":         d.Kind,
			"endpoint":     d.EndpointID,
			"cluster_id":   d.ClusterID,
			"cluster":      d.Cluster,
			"attribute_id": d.AttributeID,
			"attribute":    d.Attribute,
			"value":        d.Value,
		}
	case events.IdentifyData:
		return map[string]any{"count": d.Count}
	case events.LifecycleData:
		return map[string]any{"event": d.Event, "fabric_index": d.FabricIndex, "fabrics": d.Fabrics}
	case events.SensorErrorData:
		return map[string]any{"error": d.Error, "attempts": d.Attempts}
	case map[string]any:
		return d
	}
	return map[string]any{}
}

// matchesHandler checks the event type and every filter key. A numeric filter
// compares against the <key>_id field when present, so {cluster = 0x0006}
// and {cluster = "OnOff"} select the same events. Strings compare
// case-insensitively.
func matchesHandler(h luaEventHandler, eventType string, fields map[string]any) bool {
	if h.eventType != "*" && h.eventType != eventType {
		return false
	}
	for key, want := range h.filter {
		switch w := want.(type) {
		case lua.LNumber:
			got, ok := fields[key+"_id"]
			if !ok {
				got, ok = fields[key]
			}
			if !ok {
				return false
			}
			n, ok := toNumber(got)
			if !ok || n != float64(w) {
				return false
			}
		case lua.LString:
			got, ok := fields[key].(string)
			if !ok || !strings.EqualFold(got, string(w)) {
				return false
			}
		case lua.LBool:
			got, ok := fields[key].(bool)
			if !ok || got != bool(w) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (e *Engine) callHandler(L *lua.LState, vm *scriptVM, fn *lua.LFunction, eventType string, fields map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("lua handler panic", "id", vm.id, "err", r)
		}
	}()

	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(eventType))
	for k, v := range fields {
		tbl.RawSetString(k, goToLua(L, v))
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, tbl); err != nil {
		e.logger.Error("lua handler error", "id", vm.id, "err", err)
	}
}

// goToLua converts a Go value to a Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case map[string]any:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	}
	if n, ok := toNumber(v); ok {
		return lua.LNumber(n)
	}
	return lua.LString(fmt.Sprintf("%v", v))
}

// luaToGo converts a Lua argument to the Go value attribute encoding accepts.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	}
	return nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
