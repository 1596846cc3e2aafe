package matter

import (
	"testing"

	"matter-sensor-node/internal/substrate"
)

func TestClusterAsMatchesExactID(t *testing.T) {
	ids := []uint32{0x0000, 0x0003, 0x0006, 0x0008, 0x0028, 0x0300, 0x0402, 0x0403, 0x0405, 0x0406, 0xFFFF, substrate.InvalidClusterID}
	for _, raw := range ids {
		f := &fakeSubstrate{clusterIDs: map[substrate.ClusterHandle]uint32{1: raw}}
		c := Cluster{sub: f, handle: 1}

		if _, ok := ClusterAs[Temperature](c); ok != (raw == 0x0402) {
			t.Errorf("ClusterAs[Temperature](0x%04X) = %v", raw, ok)
		}
		if _, ok := ClusterAs[Pressure](c); ok != (raw == 0x0403) {
			t.Errorf("ClusterAs[Pressure](0x%04X) = %v", raw, ok)
		}
		if _, ok := ClusterAs[Humidity](c); ok != (raw == 0x0405) {
			t.Errorf("ClusterAs[Humidity](0x%04X) = %v", raw, ok)
		}
		if _, ok := ClusterAs[Identify](c); ok != (raw == 0x0003) {
			t.Errorf("ClusterAs[Identify](0x%04X) = %v", raw, ok)
		}
		if _, ok := ClusterAs[OnOff](c); ok != (raw == 0x0006) {
			t.Errorf("ClusterAs[OnOff](0x%04X) = %v", raw, ok)
		}
		if _, ok := ClusterAs[LevelControl](c); ok != (raw == 0x0008) {
			t.Errorf("ClusterAs[LevelControl](0x%04X) = %v", raw, ok)
		}
		if _, ok := ClusterAs[ColorControl](c); ok != (raw == 0x0300) {
			t.Errorf("ClusterAs[ColorControl](0x%04X) = %v", raw, ok)
		}
	}
}

func TestClusterAsKeepsHandle(t *testing.T) {
	f := &fakeSubstrate{clusterIDs: map[substrate.ClusterHandle]uint32{7: 0x0402}}
	temp, ok := ClusterAs[Temperature](Cluster{sub: f, handle: 7})
	if !ok {
		t.Fatal("ClusterAs[Temperature] failed")
	}
	if temp.Handle() != 7 {
		t.Errorf("handle = %d, want 7", temp.Handle())
	}
}

func TestClusterAsNilView(t *testing.T) {
	if _, ok := ClusterAs[Temperature](Cluster{}); ok {
		t.Error("zero Cluster downcast succeeded")
	}
}

func deviceTypes(ids ...uint32) fakeDeviceTypes {
	var d fakeDeviceTypes
	d.count = uint8(copy(d.ids[:], ids))
	return d
}

func TestEndpointAs(t *testing.T) {
	const temp = 0x0302
	tests := []struct {
		name  string
		types fakeDeviceTypes
		want  bool
	}{
		{"empty", deviceTypes(), false},
		{"only", deviceTypes(temp), true},
		{"first", deviceTypes(temp, 0x0016), true},
		{"last", deviceTypes(0x0016, 0x0305, 0x0307, temp), true},
		{"full buffer", deviceTypes(1, 2, 3, 4, 5, 6, 7, temp), true},
		{"absent", deviceTypes(0x0016, 0x0305, 0x0307, 0x010D), false},
		{"near miss", deviceTypes(temp+1, temp-1), false},
		{"stale beyond count", fakeDeviceTypes{ids: [substrate.MaxDeviceTypes]uint32{0x0016, temp}, count: 1}, false},
		{"zero count", fakeDeviceTypes{ids: [substrate.MaxDeviceTypes]uint32{temp}, count: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSubstrate{deviceTypes: map[substrate.EndpointHandle]fakeDeviceTypes{1: tt.types}}
			ep := Endpoint{sub: f, handle: 1}
			got, ok := EndpointAs[TemperatureSensor](ep)
			if ok != tt.want {
				t.Fatalf("EndpointAs[TemperatureSensor] = %v, want %v", ok, tt.want)
			}
			if ok && got.Handle() != 1 {
				t.Errorf("handle = %d, want 1", got.Handle())
			}
		})
	}
}

func TestEndpointAsEveryKind(t *testing.T) {
	f := &fakeSubstrate{deviceTypes: map[substrate.EndpointHandle]fakeDeviceTypes{
		1: deviceTypes(0x0305, 0x0307),
	}}
	ep := Endpoint{sub: f, handle: 1}

	if _, ok := EndpointAs[PressureSensor](ep); !ok {
		t.Error("pressure sensor not found")
	}
	if _, ok := EndpointAs[HumiditySensor](ep); !ok {
		t.Error("humidity sensor not found")
	}
	if _, ok := EndpointAs[TemperatureSensor](ep); ok {
		t.Error("temperature sensor found")
	}
	if _, ok := EndpointAs[ColorLight](ep); ok {
		t.Error("color light found")
	}
	if _, ok := EndpointAs[RootNodeEndpoint](ep); ok {
		t.Error("root node found")
	}
}

func TestEndpointAsToleratesBadCount(t *testing.T) {
	f := &fakeSubstrate{deviceTypes: map[substrate.EndpointHandle]fakeDeviceTypes{
		1: {ids: [substrate.MaxDeviceTypes]uint32{0x0016}, count: 200},
	}}
	if _, ok := EndpointAs[RootNodeEndpoint](Endpoint{sub: f, handle: 1}); !ok {
		t.Error("root node not found")
	}
	if _, ok := EndpointAs[ColorLight](Endpoint{sub: f, handle: 1}); ok {
		t.Error("color light found")
	}
	if _, ok := EndpointAs[TemperatureSensor](Endpoint{}); ok {
		t.Error("zero Endpoint downcast succeeded")
	}
}

func TestClusterOfNeverFails(t *testing.T) {
	node, _ := newTestNode(t)
	temp, err := NewExtendedTemperature(node)
	if err != nil {
		t.Fatal(err)
	}

	// The temperature endpoint has no OnOff cluster.
	onOff := ClusterOf(temp.View(), OnOffClusterID)
	if !onOff.IsNil() {
		t.Error("ClusterOf returned a live OnOff cluster")
	}
	if _, err := onOff.OnOff().On(); err == nil {
		t.Error("reading through a nil cluster succeeded")
	}

	if ClusterOf(Endpoint{}, TemperatureClusterID).ID() != substrate.InvalidClusterID {
		t.Error("ClusterOf on a zero endpoint has a valid id")
	}
}

func TestDownCastOnRealEndpoints(t *testing.T) {
	node, _ := newTestNode(t)
	light, err := NewExtendedColorLight(node)
	if err != nil {
		t.Fatal(err)
	}
	hum, err := NewExtendedHumidity(node)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := EndpointAs[ColorLight](light.View()); !ok {
		t.Error("light endpoint is not a ColorLight")
	}
	if _, ok := EndpointAs[ColorLight](hum.View()); ok {
		t.Error("humidity endpoint is a ColorLight")
	}
	if _, ok := EndpointAs[RootNodeEndpoint](node.Root()); !ok {
		t.Error("root endpoint is not a RootNodeEndpoint")
	}

	h, ok := EndpointAs[HumiditySensor](hum.View())
	if !ok {
		t.Fatal("humidity endpoint is not a HumiditySensor")
	}
	if _, ok := ClusterAs[Humidity](h.Humidity().Cluster); !ok {
		t.Error("humidity cluster does not downcast to Humidity")
	}
	if _, ok := ClusterAs[Temperature](h.Humidity().Cluster); ok {
		t.Error("humidity cluster downcasts to Temperature")
	}
}
