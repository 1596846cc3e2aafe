//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"matter-sensor-node/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testDevice = DeviceInfo{
	NodeID:       "6f1c2d3e-0000-4000-8000-000000000001",
	Name:         "Kitchen Sensor",
	Manufacturer: "Espressif",
	Model:        "BME280 Node",
	Temperature:  true,
	Humidity:     true,
	Pressure:     true,
	Light:        true,
}

const testNodeID = "matter_6f1c2d3e000040008000000000000001"

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeClient records publishes; every other method panics through the nil
// embedded interface.
type fakeClient struct {
	pahomqtt.Client
	mu         sync.Mutex
	published  []published
	subscribed []string
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := payload.([]byte)
	c.published = append(c.published, published{topic, b, retained})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	return doneToken{}
}

func (c *fakeClient) last(topic string) (published, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.published) - 1; i >= 0; i-- {
		if c.published[i].topic == topic {
			return c.published[i], true
		}
	}
	return published{}, false
}

type fakeLight struct {
	calls []string
}

func (l *fakeLight) rec(s string) error {
	l.calls = append(l.calls, s)
	return nil
}

func (l *fakeLight) SetOn(on bool) error {
	if on {
		return l.rec("on")
	}
	return l.rec("off")
}

func (l *fakeLight) SetLevel(level uint8) error {
	return l.rec(fmt.Sprintf("level:%d", level))
}

func (l *fakeLight) SetHueSaturation(hue, sat uint8) error {
	return l.rec("hs")
}

func (l *fakeLight) SetColorTemperature(mireds uint16) error {
	return l.rec("ct")
}

func newTestBridge(light LightController) (*Bridge, *fakeClient, *events.Bus) {
	bus := events.NewBus(testLogger())
	b := newBridge("matter", testDevice, bus, light, testLogger())
	fc := &fakeClient{}
	b.client = fc
	return b, fc, bus
}

func TestDiscoveryTemperatureSensor(t *testing.T) {
	msgs := buildDiscovery(testDevice, "matter")
	if len(msgs) == 0 {
		t.Fatal("expected discovery messages")
	}

	var tempMsg *discoveryMsg
	for i := range msgs {
		if msgs[i].Topic == "homeassistant/sensor/"+testNodeID+"/temperature/config" {
			tempMsg = &msgs[i]
			break
		}
	}
	if tempMsg == nil {
		t.Fatal("temperature discovery not found")
	}

	var payload haDiscovery
	if err := json.Unmarshal(tempMsg.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Name != "Kitchen Sensor Temperature" {
		t.Errorf("name = %q, want %q", payload.Name, "Kitchen Sensor Temperature")
	}
	if payload.UniqueID != testNodeID+"_temperature" {
		t.Errorf("unique_id = %q", payload.UniqueID)
	}
	if payload.UnitOfMeasurement != "°C" {
		t.Errorf("unit = %q", payload.UnitOfMeasurement)
	}
	if payload.StateTopic != "matter/"+testDevice.NodeID+"/state" {
		t.Errorf("state_topic = %q", payload.StateTopic)
	}
	if payload.AvailabilityTopic != "matter/"+testDevice.NodeID+"/availability" {
		t.Errorf("availability_topic = %q", payload.AvailabilityTopic)
	}

	topics := extractTopics(msgs)
	for _, obj := range []string{"humidity", "pressure", "fabrics"} {
		if !topics["homeassistant/sensor/"+testNodeID+"/"+obj+"/config"] {
			t.Errorf("%s discovery missing", obj)
		}
	}
}

func TestDiscoveryLight(t *testing.T) {
	msgs := buildDiscovery(testDevice, "matter")
	for _, m := range msgs {
		if m.Topic != "homeassistant/light/"+testNodeID+"/light/config" {
			continue
		}
		var payload haDiscovery
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			t.Fatal(err)
		}
		if want := "matter/" + testDevice.NodeID + "/light/set"; payload.CommandTopic != want {
			t.Errorf("command_topic = %q, want %q", payload.CommandTopic, want)
		}
		if payload.Schema != "json" || payload.BrightnessScale != 254 {
			t.Errorf("schema = %q, brightness_scale = %d", payload.Schema, payload.BrightnessScale)
		}
		return
	}
	t.Fatal("light discovery not found")
}

func TestDiscoveryWithoutLight(t *testing.T) {
	dev := testDevice
	dev.Light = false
	if extractTopics(buildDiscovery(dev, "matter"))["homeassistant/light/"+testNodeID+"/light/config"] {
		t.Error("light discovery published for a node without light")
	}
	if len(buildDiscovery(DeviceInfo{}, "matter")) != 0 {
		t.Error("discovery published without node id")
	}
}

func TestDeviceDisplayName(t *testing.T) {
	tests := []struct {
		name string
		dev  DeviceInfo
		want string
	}{
		{"name", DeviceInfo{Name: "Kitchen", Manufacturer: "Espressif", Model: "C6"}, "Kitchen"},
		{"manufacturer and model", DeviceInfo{Manufacturer: "Espressif", Model: "C6"}, "Espressif C6"},
		{"model only", DeviceInfo{Model: "C6"}, "C6"},
		{"node id fallback", DeviceInfo{NodeID: "abc"}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviceDisplayName(tt.dev); got != tt.want {
				t.Errorf("deviceDisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapAttributeToProperty(t *testing.T) {
	tests := []struct {
		cluster, attr uint32
		value         any
		wantProp      string
		wantValue     any
	}{
		{0x0402, 0x0000, int16(2550), "temperature", 25.5},
		{0x0402, 0x0000, nil, "temperature", nil},
		{0x0405, 0x0000, uint16(4025), "humidity", 40.25},
		{0x0403, 0x0000, int16(1013), "pressure", 1013.0},
		{0x0006, 0x0000, true, "state", "ON"},
		{0x0006, 0x0000, false, "state", "OFF"},
		{0x0008, 0x0000, uint8(127), "brightness", 127},
		{0x0300, 0x0000, uint8(127), "color.h", 180},
		{0x0300, 0x0001, uint8(254), "color.s", 100},
		{0x0300, 0x0007, uint16(250), "color_temp", 250},
		{0x0300, 0x0008, uint8(2), "color_mode", "color_temp"},
		{0x0028, 0x0005, "label", "", nil},
	}
	for _, tt := range tests {
		prop, val := mapAttributeToProperty(tt.cluster, tt.attr, tt.value)
		if prop != tt.wantProp || val != tt.wantValue {
			t.Errorf("mapAttributeToProperty(0x%04X, 0x%04X, %v) = %q, %v; want %q, %v",
				tt.cluster, tt.attr, tt.value, prop, val, tt.wantProp, tt.wantValue)
		}
	}
}

func TestRemoveDiscovery(t *testing.T) {
	msgs := buildRemoveDiscovery(testDevice)
	if len(msgs) != 5 {
		t.Fatalf("removal messages = %d, want 5", len(msgs))
	}
	for _, m := range msgs {
		if m.Payload != nil {
			t.Errorf("removal message should have nil payload, got %q for %s", m.Payload, m.Topic)
		}
	}
	if msgs := buildRemoveDiscovery(testDevice, "light", "bogus"); len(msgs) != 1 {
		t.Errorf("selective removal = %d messages, want 1", len(msgs))
	}
}

func TestBridgePublishesStateOnPostUpdate(t *testing.T) {
	b, fc, bus := newTestBridge(nil)
	b.Start()

	bus.Emit(events.Event{Type: events.TypeAttribute, Data: events.AttributeData{
		Kind: "pre_update", ClusterID: 0x0402, Value: int16(100),
	}})
	if _, ok := fc.last(b.stateTopic()); ok {
		t.Fatal("state published on pre_update")
	}

	bus.Emit(events.Event{Type: events.TypeAttribute, Data: events.AttributeData{
		Kind: "post_update", ClusterID: 0x0402, Value: int16(2150),
	}})
	bus.Emit(events.Event{Type: events.TypeAttribute, Data: events.AttributeData{
		Kind: "post_update", ClusterID: 0x0300, AttributeID: 0x0000, Value: uint8(127),
	}})

	msg, ok := fc.last(b.stateTopic())
	if !ok {
		t.Fatal("no state published")
	}
	if !msg.retained {
		t.Error("state not retained")
	}
	var state struct {
		Temperature float64        `json:"temperature"`
		Color       map[string]int `json:"color"`
	}
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.Temperature != 21.5 {
		t.Errorf("temperature = %v, want 21.5", state.Temperature)
	}
	if state.Color["h"] != 180 {
		t.Errorf("color.h = %d, want 180", state.Color["h"])
	}
}

func TestBridgeSensorErrorAndLifecycle(t *testing.T) {
	b, fc, bus := newTestBridge(nil)
	b.Start()

	bus.Emit(events.Event{Type: events.TypeSensorError, Data: events.SensorErrorData{Error: "timeout", Attempts: 3}})
	msg, ok := fc.last(b.baseTopic() + "/error")
	if !ok || msg.retained {
		t.Fatalf("error message = %+v, %v", msg, ok)
	}

	bus.Emit(events.Event{Type: events.TypeLifecycle, Data: events.LifecycleData{Event: "commissioning_complete", Fabrics: 1}})
	msg, ok = fc.last(b.stateTopic())
	if !ok {
		t.Fatal("no state after lifecycle event")
	}
	var state map[string]any
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatal(err)
	}
	if state["fabrics"] != 1.0 {
		t.Errorf("fabrics = %v, want 1", state["fabrics"])
	}
}

func TestBridgeOnConnect(t *testing.T) {
	b, fc, _ := newTestBridge(&fakeLight{})
	b.onConnect()

	if msg, ok := fc.last(b.availabilityTopic()); !ok || string(msg.payload) != "online" {
		t.Errorf("availability = %q, %v", msg.payload, ok)
	}
	if _, ok := fc.last("homeassistant/light/" + testNodeID + "/light/config"); !ok {
		t.Error("light discovery not published")
	}
	if len(fc.subscribed) != 1 || fc.subscribed[0] != b.commandTopic() {
		t.Errorf("subscribed = %v", fc.subscribed)
	}
}

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{"on", `{"state":"ON"}`, []string{"on"}},
		{"off ignores brightness", `{"state":"OFF","brightness":10}`, []string{"off"}},
		{"brightness clamps", `{"state":"ON","brightness":300}`, []string{"on", "level:254"}},
		{"brightness floor", `{"brightness":0}`, []string{"level:1"}},
		{"color", `{"color":{"h":180,"s":50}}`, []string{"hs"}},
		{"color temp", `{"color_temp":370}`, []string{"ct"}},
		{"invalid json", `{`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			light := &fakeLight{}
			b, _, _ := newTestBridge(light)
			b.handleCommand([]byte(tt.payload))
			if len(light.calls) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", light.calls, tt.want)
			}
			for i := range tt.want {
				if light.calls[i] != tt.want[i] {
					t.Errorf("call %d = %q, want %q", i, light.calls[i], tt.want[i])
				}
			}
		})
	}
}

func TestMustJSON(t *testing.T) {
	result := mustJSON(map[string]string{"hello": "world"})
	var parsed map[string]string
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("mustJSON output not valid JSON: %v", err)
	}
	if parsed["hello"] != "world" {
		t.Errorf("parsed value = %q", parsed["hello"])
	}
}

func extractTopics(msgs []discoveryMsg) map[string]bool {
	topics := make(map[string]bool)
	for _, m := range msgs {
		topics[m.Topic] = true
	}
	return topics
}
