//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"matter-sensor-node/internal/events"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// LightController applies light commands received over MQTT.
type LightController interface {
	SetOn(on bool) error
	SetLevel(level uint8) error
	SetHueSaturation(hue, saturation uint8) error
	SetColorTemperature(mireds uint16) error
}

// Bridge publishes node state to MQTT with HA autodiscovery and accepts
// light commands.
type Bridge struct {
	client pahomqtt.Client
	bus    *events.Bus
	light  LightController
	dev    DeviceInfo
	prefix string
	logger *slog.Logger
	unsub  func()

	mu    sync.Mutex
	state map[string]any
}

// NewBridge creates and connects an MQTT bridge. light may be nil.
func NewBridge(cfg Config, dev DeviceInfo, bus *events.Bus, light LightController, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(cfg.TopicPrefix, dev, bus, light, logger)

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("matter-sensor-node-" + shortID(dev.NodeID)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(b.availabilityTopic(), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

func newBridge(prefix string, dev DeviceInfo, bus *events.Bus, light LightController, logger *slog.Logger) *Bridge {
	return &Bridge{
		bus:    bus,
		light:  light,
		dev:    dev,
		prefix: prefix,
		logger: logger.With("component", "mqtt"),
		state:  make(map[string]any),
	}
}

// Start subscribes to node events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.bus.OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix, "node", b.dev.NodeID)
}

// Stop publishes offline availability, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publish(b.availabilityTopic(), []byte("offline"), true)
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) onConnect() {
	b.publish(b.availabilityTopic(), []byte("online"), true)
	for _, msg := range buildDiscovery(b.dev, b.prefix) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	if !b.dev.Light {
		for _, msg := range buildRemoveDiscovery(b.dev, "light") {
			b.publish(msg.Topic, msg.Payload, true)
		}
	}
	if b.light != nil {
		b.client.Subscribe(b.commandTopic(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
			b.handleCommand(msg.Payload())
		})
	}
	b.mu.Lock()
	hasState := len(b.state) > 0
	payload := mustJSON(b.state)
	b.mu.Unlock()
	if hasState {
		b.publish(b.stateTopic(), payload, true)
	}
}

func (b *Bridge) handleEvent(event events.Event) {
	switch event.Type {
	case events.TypeAttribute:
		data, ok := event.Data.(events.AttributeData)
		if !ok || data.Kind != "post_update" {
			return
		}
		b.handleAttribute(data)
	case events.TypeLifecycle:
		data, ok := event.Data.(events.LifecycleData)
		if !ok {
			return
		}
		b.updateAndPublishState(map[string]any{"fabrics": data.Fabrics})
	case events.TypeSensorError:
		data, ok := event.Data.(events.SensorErrorData)
		if !ok {
			return
		}
		b.publish(b.baseTopic()+"/error", mustJSON(data), false)
	}
}

func (b *Bridge) handleAttribute(data events.AttributeData) {
	prop, value := mapAttributeToProperty(data.ClusterID, data.AttributeID, data.Value)
	if prop == "" {
		return
	}
	b.updateAndPublishState(map[string]any{prop: value})
}

func (b *Bridge) updateAndPublishState(props map[string]any) {
	b.mu.Lock()
	for k, v := range props {
		if k == "color.h" || k == "color.s" {
			color, _ := b.state["color"].(map[string]any)
			if color == nil {
				color = make(map[string]any)
				b.state["color"] = color
			}
			color[strings.TrimPrefix(k, "color.")] = v
			continue
		}
		b.state[k] = v
	}
	b.state["last_seen"] = time.Now().Format(time.RFC3339)
	payload := mustJSON(b.state)
	b.mu.Unlock()

	b.publish(b.stateTopic(), payload, true)
}

// lightCommand is the HA JSON-schema light command.
type lightCommand struct {
	State      string   `json:"state"`
	Brightness *float64 `json:"brightness"`
	ColorTemp  *float64 `json:"color_temp"`
	Color      *struct {
		H float64 `json:"h"`
		S float64 `json:"s"`
	} `json:"color"`
}

func (b *Bridge) handleCommand(payload []byte) {
	if b.light == nil {
		return
	}
	var cmd lightCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("invalid command JSON", "err", err)
		return
	}

	switch strings.ToUpper(cmd.State) {
	case "ON":
		b.check("on", b.light.SetOn(true))
	case "OFF":
		b.check("off", b.light.SetOn(false))
		return
	case "":
	default:
		b.logger.Warn("unknown light state", "state", cmd.State)
	}

	if cmd.Brightness != nil {
		b.check("brightness", b.light.SetLevel(clampLevel(*cmd.Brightness)))
	}
	if cmd.Color != nil {
		hue := uint8(clamp(cmd.Color.H, 0, 360) * 254 / 360)
		sat := uint8(clamp(cmd.Color.S, 0, 100) * 254 / 100)
		b.check("color", b.light.SetHueSaturation(hue, sat))
	} else if cmd.ColorTemp != nil && *cmd.ColorTemp >= 1 {
		b.check("color_temp", b.light.SetColorTemperature(uint16(clamp(*cmd.ColorTemp, 1, 65279))))
	}
}

func (b *Bridge) check(what string, err error) {
	if err != nil {
		b.logger.Warn(what+" command failed", "err", err)
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	if b.client == nil {
		return
	}
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func (b *Bridge) baseTopic() string         { return b.prefix + "/" + b.dev.NodeID }
func (b *Bridge) stateTopic() string        { return b.baseTopic() + "/state" }
func (b *Bridge) availabilityTopic() string { return b.baseTopic() + "/availability" }
func (b *Bridge) commandTopic() string      { return b.baseTopic() + "/light/set" }

// mapAttributeToProperty maps a node attribute to a state property and its
// HA-facing value. An empty name means the attribute is not published.
func mapAttributeToProperty(clusterID, attrID uint32, value any) (string, any) {
	n, isNum := toFloat64(value)
	switch {
	case clusterID == 0x0402 && attrID == 0x0000:
		if !isNum {
			return "temperature", nil
		}
		return "temperature", n / 100
	case clusterID == 0x0405 && attrID == 0x0000:
		if !isNum {
			return "humidity", nil
		}
		return "humidity", n / 100
	case clusterID == 0x0403 && attrID == 0x0000:
		if !isNum {
			return "pressure", nil
		}
		return "pressure", n
	case clusterID == 0x0006 && attrID == 0x0000:
		on, _ := value.(bool)
		if on {
			return "state", "ON"
		}
		return "state", "OFF"
	case clusterID == 0x0008 && attrID == 0x0000:
		if !isNum {
			return "brightness", nil
		}
		return "brightness", int(n)
	case clusterID == 0x0300 && attrID == 0x0000:
		return "color.h", int(n) * 360 / 254
	case clusterID == 0x0300 && attrID == 0x0001:
		return "color.s", int(n) * 100 / 254
	case clusterID == 0x0300 && attrID == 0x0007:
		return "color_temp", int(n)
	case clusterID == 0x0300 && attrID == 0x0008:
		switch int(n) {
		case 0:
			return "color_mode", "hs"
		case 2:
			return "color_mode", "color_temp"
		}
		return "color_mode", "xy"
	}
	return "", nil
}

func clampLevel(v float64) uint8 {
	return uint8(clamp(v, 1, 254))
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
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
	default:
		return 0, false
	}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
