//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"
)

// DeviceInfo describes the node and which entities it exposes.
type DeviceInfo struct {
	NodeID       string
	Name         string
	Manufacturer string
	Model        string
	Temperature  bool
	Humidity     bool
	Pressure     bool
	Light        bool
}

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/sensor/matter_<id>/temperature/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	AvailabilityTopic   string   `json:"availability_topic"`
	ValueTemplate       string   `json:"value_template,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	BrightnessScale     int      `json:"brightness_scale,omitempty"`
	SupportedColorModes []string `json:"supported_color_modes,omitempty"`
	MinMireds           int      `json:"min_mireds,omitempty"`
	MaxMireds           int      `json:"max_mireds,omitempty"`
	Schema              string   `json:"schema,omitempty"`
	Device              haDevice `json:"device"`
}

// deviceDisplayName returns a display name for the node.
func deviceDisplayName(dev DeviceInfo) string {
	if dev.Name != "" {
		return dev.Name
	}
	if dev.Manufacturer != "" && dev.Model != "" {
		return dev.Manufacturer + " " + dev.Model
	}
	if dev.Model != "" {
		return dev.Model
	}
	return dev.NodeID
}

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(dev DeviceInfo) string {
	return "matter_" + strings.ReplaceAll(dev.NodeID, "-", "")
}

// buildDiscovery generates HA discovery messages for the node's entities.
func buildDiscovery(dev DeviceInfo, prefix string) []discoveryMsg {
	if dev.NodeID == "" {
		return nil
	}

	base := prefix + "/" + dev.NodeID
	avail := base + "/availability"
	stateTopic := base + "/state"
	nodeID := deviceIdentifier(dev)
	displayName := deviceDisplayName(dev)

	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: dev.Manufacturer,
		Model:        dev.Model,
		Name:         displayName,
	}

	var msgs []discoveryMsg
	if dev.Light {
		msgs = append(msgs, buildLight(nodeID, displayName, stateTopic, avail, base+"/light/set", haDev))
	}
	if dev.Temperature {
		msgs = append(msgs, buildSensor(nodeID, displayName, stateTopic, avail, haDev,
			"temperature", "Temperature", "temperature", "°C", "measurement",
			"{{ value_json.temperature }}"))
	}
	if dev.Humidity {
		msgs = append(msgs, buildSensor(nodeID, displayName, stateTopic, avail, haDev,
			"humidity", "Humidity", "humidity", "%", "measurement",
			"{{ value_json.humidity }}"))
	}
	if dev.Pressure {
		msgs = append(msgs, buildSensor(nodeID, displayName, stateTopic, avail, haDev,
			"pressure", "Pressure", "pressure", "hPa", "measurement",
			"{{ value_json.pressure }}"))
	}

	// Commissioned fabric count for every node.
	msgs = append(msgs, buildSensor(nodeID, displayName, stateTopic, avail, haDev,
		"fabrics", "Fabrics", "", "", "measurement",
		"{{ value_json.fabrics | default(0) }}"))

	return msgs
}

func buildSensor(nodeID, displayName, stateTopic, avail string, haDev haDevice,
	objectID, suffix, deviceClass, unit, stateClass, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("homeassistant/sensor/%s/%s/config", nodeID, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     valueTmpl,
		UnitOfMeasurement: unit,
		DeviceClass:       deviceClass,
		StateClass:        stateClass,
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildLight(nodeID, displayName, stateTopic, avail, cmdTopic string, haDev haDevice) discoveryMsg {
	topic := fmt.Sprintf("homeassistant/light/%s/light/config", nodeID)
	payload := haDiscovery{
		Name:                displayName + " Light",
		UniqueID:            nodeID + "_light",
		StateTopic:          stateTopic,
		CommandTopic:        cmdTopic,
		AvailabilityTopic:   avail,
		SupportedColorModes: []string{"hs", "color_temp"},
		BrightnessScale:     254,
		MinMireds:           100,
		MaxMireds:           1000,
		Schema:              "json",
		Device:              haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

// buildRemoveDiscovery generates empty retained messages that remove the
// given object IDs from HA. No IDs removes every entity the node can expose.
func buildRemoveDiscovery(dev DeviceInfo, objectIDs ...string) []discoveryMsg {
	nodeID := deviceIdentifier(dev)
	components := map[string]string{
		"light":       "light",
		"temperature": "sensor",
		"humidity":    "sensor",
		"pressure":    "sensor",
		"fabrics":     "sensor",
	}
	if len(objectIDs) == 0 {
		objectIDs = []string{"light", "temperature", "humidity", "pressure", "fabrics"}
	}

	var msgs []discoveryMsg
	for _, obj := range objectIDs {
		comp, ok := components[obj]
		if !ok {
			continue
		}
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/%s/%s/%s/config", comp, nodeID, obj),
			Payload: nil, // empty retained = delete
		})
	}
	return msgs
}
