//go:build !no_automation

package automation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"matter-sensor-node/internal/events"

	lua "github.com/yuin/gopher-lua"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type write struct {
	endpoint      uint16
	cluster, attr uint32
	value         any
}

// fakeAttributes serves reads from a map and records writes.
type fakeAttributes struct {
	mu     sync.Mutex
	values map[string]any
	writes []write
}

func path(ep uint16, cluster, attr uint32) string {
	return fmt.Sprintf("%d/%d/%d", ep, cluster, attr)
}

func (f *fakeAttributes) ReadValue(ep uint16, cluster, attr uint32) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[path(ep, cluster, attr)]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func (f *fakeAttributes) UpdateValue(ep uint16, cluster, attr uint32, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[path(ep, cluster, attr)]; !ok {
		return errors.New("not found")
	}
	f.values[path(ep, cluster, attr)] = v
	f.writes = append(f.writes, write{ep, cluster, attr, v})
	return nil
}

func (f *fakeAttributes) Writes() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

func newTestEngine(t *testing.T) (*Engine, *fakeAttributes, *events.Bus, *Manager) {
	t.Helper()
	attrs := &fakeAttributes{values: map[string]any{
		path(1, 0x0402, 0x0000): int16(2150),
		path(4, 0x0006, 0x0000): false,
		path(4, 0x0008, 0x0000): uint8(254),
	}}
	bus := events.NewBus(testLogger())
	mgr := newTestManager(t)
	e := NewEngine(attrs, bus, mgr, testLogger())
	t.Cleanup(e.Stop)
	return e, attrs, bus, mgr
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestEngineHandlerWritesOnMatchingEvent(t *testing.T) {
	e, attrs, bus, mgr := newTestEngine(t)
	_, err := mgr.Save(&Script{
		ID:   "heat",
		Meta: ScriptMeta{Name: "Heat warning", Enabled: true},
		LuaCode: `
matter.on("attribute", {cluster = "TemperatureMeasurement", kind = "post_update"}, function(ev)
  if ev.value > 3000 then
    matter.write(4, 0x0006, 0, true)
  end
end)`,
	})
	if err != nil {
		t.Fatal(err)
	}
	e.Start()
	if e.Running() != 1 {
		t.Fatalf("running = %d, want 1", e.Running())
	}

	emit := func(kind string, cluster string, value int16) {
		bus.Emit(events.Event{Type: events.TypeAttribute, Data: events.AttributeData{
			Kind: kind, EndpointID: 1, ClusterID: 0x0402, Cluster: cluster, Attribute: "MeasuredValue", Value: value,
		}})
	}
	emit("pre_update", "TemperatureMeasurement", 3500)
	emit("post_update", "RelativeHumidityMeasurement", 3500)
	emit("post_update", "TemperatureMeasurement", 2000)
	emit("post_update", "TemperatureMeasurement", 3100)

	waitFor(t, func() bool { return len(attrs.Writes()) > 0 })
	time.Sleep(20 * time.Millisecond)
	writes := attrs.Writes()
	if len(writes) != 1 {
		t.Fatalf("writes = %v, want exactly one", writes)
	}
	if w := writes[0]; w.endpoint != 4 || w.cluster != 0x0006 || w.attr != 0 || w.value != true {
		t.Errorf("write = %+v", w)
	}
}

func TestEngineSkipsDisabledAndBrokenScripts(t *testing.T) {
	e, _, _, mgr := newTestEngine(t)
	mgr.Save(&Script{ID: "off", Meta: ScriptMeta{Name: "off"}, LuaCode: `matter.log("x")`})
	mgr.Save(&Script{ID: "broken", Meta: ScriptMeta{Name: "broken", Enabled: true}, LuaCode: `this is not lua`})
	mgr.Save(&Script{ID: "ok", Meta: ScriptMeta{Name: "ok", Enabled: true}, LuaCode: `matter.log("hello")`})

	e.Start()
	if e.Running() != 1 {
		t.Errorf("running = %d, want 1", e.Running())
	}
}

func TestEngineReloadAndStopScript(t *testing.T) {
	e, _, _, mgr := newTestEngine(t)
	e.Start()

	s, err := mgr.Save(&Script{Meta: ScriptMeta{Name: "Late", Enabled: true}, LuaCode: `matter.log("late")`})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.ReloadScript(s.ID); err != nil {
		t.Fatal(err)
	}
	if e.Running() != 1 {
		t.Fatalf("running after reload = %d, want 1", e.Running())
	}

	s.Meta.Enabled = false
	mgr.Save(s)
	if err := e.ReloadScript(s.ID); err != nil {
		t.Fatal(err)
	}
	if e.Running() != 0 {
		t.Errorf("running after disabling = %d, want 0", e.Running())
	}

	if err := e.ReloadScript("missing"); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("reload missing err = %v, want ErrScriptNotFound", err)
	}
}

func TestEngineAfterRunsCallback(t *testing.T) {
	e, attrs, _, mgr := newTestEngine(t)
	mgr.Save(&Script{ID: "later", Meta: ScriptMeta{Name: "later", Enabled: true}, LuaCode: `
matter.after(0.01, function()
  matter.write(4, 0x0008, 0, 10)
end)`})
	e.Start()

	waitFor(t, func() bool { return len(attrs.Writes()) == 1 })
	if w := attrs.Writes()[0]; w.value != float64(10) {
		t.Errorf("value = %v (%T), want float64 10", w.value, w.value)
	}
}

func TestRunLuaCode(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	tests := []struct {
		name     string
		code     string
		ok       bool
		logs     []string
		handlers int
		errPart  string
	}{
		{"read", `local v = matter.read(1, 0x0402, 0); matter.log("t=" .. v)`, true, []string{"t=2150"}, 0, ""},
		{"read missing", `local v, err = matter.read(9, 1, 1); matter.log(tostring(v) .. " " .. err)`, true, []string{"nil not found"}, 0, ""},
		{"write result", `local ok, err = matter.write(9, 1, 1, 5); matter.log(tostring(ok))`, true, []string{"false"}, 0, ""},
		{"handlers counted", `matter.on("identify", function(ev) end); matter.on("attribute", {endpoint = 1}, function(ev) end)`, true, nil, 2, ""},
		{"sandbox", `matter.log(tostring(os) .. tostring(io) .. tostring(require) .. tostring(load))`, true, []string{"nilnilnilnil"}, 0, ""},
		{"syntax", `matter.log(`, false, nil, 0, ""},
		{"endpoint range", `matter.read(70000, 1, 1)`, false, nil, 0, "endpoint out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.RunLuaCode(tt.code)
			if res.OK != tt.ok {
				t.Fatalf("ok = %v, want %v (err %q)", res.OK, tt.ok, res.Error)
			}
			if tt.errPart != "" && !strings.Contains(res.Error, tt.errPart) {
				t.Errorf("error = %q, want it to contain %q", res.Error, tt.errPart)
			}
			if strings.Join(res.Logs, "|") != strings.Join(tt.logs, "|") {
				t.Errorf("logs = %q, want %q", res.Logs, tt.logs)
			}
			if res.Handlers != tt.handlers {
				t.Errorf("handlers = %d, want %d", res.Handlers, tt.handlers)
			}
		})
	}
}

func TestRunLuaCodeTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("slow")
	}
	e, _, _, _ := newTestEngine(t)
	res := e.RunLuaCode(`while true do end`)
	if res.OK || !strings.HasPrefix(res.Error, "timeout") {
		t.Errorf("result = %+v, want timeout", res)
	}
}

func TestTimeBetween(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.now = func() time.Time { return time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC) }

	tests := []struct {
		from, to int
		want     string
	}{
		{8, 22, "false"},
		{22, 6, "true"},
		{23, 24, "true"},
		{0, 23, "false"},
	}
	for _, tt := range tests {
		code := fmt.Sprintf(`matter.log(tostring(matter.time_between(%d, %d)))`, tt.from, tt.to)
		res := e.RunLuaCode(code)
		if !res.OK || len(res.Logs) != 1 || res.Logs[0] != tt.want {
			t.Errorf("time_between(%d, %d) = %+v, want %s", tt.from, tt.to, res, tt.want)
		}
	}
}

func TestMatchesHandler(t *testing.T) {
	attr := map[string]any{
		"kind":         "post_update",
		"endpoint":     uint16(4),
		"cluster_id":   uint32(0x0006),
		"cluster":      "OnOff",
		"attribute_id": uint32(0),
		"attribute":    "OnOff",
		"value":        true,
	}
	tests := []struct {
		name    string
		handler luaEventHandler
		evType  string
		want    bool
	}{
		{"no filter", luaEventHandler{eventType: "attribute"}, "attribute", true},
		{"wildcard type", luaEventHandler{eventType: "*"}, "attribute", true},
		{"wrong type", luaEventHandler{eventType: "identify"}, "attribute", false},
		{"cluster by id", luaEventHandler{eventType: "attribute", filter: map[string]lua.LValue{"cluster": lua.LNumber(6)}}, "attribute", true},
		{"cluster by name", luaEventHandler{eventType: "attribute", filter: map[string]lua.LValue{"cluster": lua.LString("onoff")}}, "attribute", true},
		{"endpoint mismatch", luaEventHandler{eventType: "attribute", filter: map[string]lua.LValue{"endpoint": lua.LNumber(1)}}, "attribute", false},
		{"value bool", luaEventHandler{eventType: "attribute", filter: map[string]lua.LValue{"value": lua.LTrue}}, "attribute", true},
		{"unknown key", luaEventHandler{eventType: "attribute", filter: map[string]lua.LValue{"ieee": lua.LString("x")}}, "attribute", false},
		{"table filter value", luaEventHandler{eventType: "attribute", filter: map[string]lua.LValue{"kind": &lua.LTable{}}}, "attribute", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesHandler(tt.handler, tt.evType, attr); got != tt.want {
				t.Errorf("matchesHandler() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventFields(t *testing.T) {
	f := eventFields(events.Event{Type: events.TypeLifecycle, Data: events.LifecycleData{Event: "commissioning_complete", FabricIndex: 1, Fabrics: 1}})
	if f["event"] != "commissioning_complete" || f["fabrics"] != 1 {
		t.Errorf("lifecycle fields = %v", f)
	}
	f = eventFields(events.Event{Type: events.TypeSensorError, Data: events.SensorErrorData{Error: "timeout", Attempts: 3}})
	if f["error"] != "timeout" || f["attempts"] != 3 {
		t.Errorf("sensor_error fields = %v", f)
	}
	if f := eventFields(events.Event{Type: "x", Data: 42}); len(f) != 0 {
		t.Errorf("unknown data fields = %v, want empty", f)
	}
}

func TestGoToLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		val  any
		want lua.LValueType
	}{
		{"nil", nil, lua.LTNil},
		{"bool", true, lua.LTBool},
		{"string", "hello", lua.LTString},
		{"bytes", []byte("ab"), lua.LTString},
		{"int16", int16(-40), lua.LTNumber},
		{"uint8", uint8(255), lua.LTNumber},
		{"uint32", uint32(100000), lua.LTNumber},
		{"float32", float32(1.5), lua.LTNumber},
		{"map", map[string]any{"a": 1}, lua.LTTable},
		{"slice", []any{1, 2, 3}, lua.LTTable},
		{"unknown", struct{}{}, lua.LTString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := goToLua(L, tt.val); got.Type() != tt.want {
				t.Errorf("goToLua(%v) type = %v, want %v", tt.val, got.Type(), tt.want)
			}
		})
	}

	if v := goToLua(L, int16(-40)); v != lua.LNumber(-40) {
		t.Errorf("goToLua(int16(-40)) = %v", v)
	}
}
