package datamodel

import (
	"log/slog"
	"os"
	"testing"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := newTestRegistry()
	r.Register(ClusterDef{
		ID:   0x0006,
		Name: "On/Off",
		Attributes: []AttributeDef{
			{ID: 0, Name: "OnOff", Type: ValBool, Access: AccessRead},
		},
	})

	got := r.Get(0x0006)
	if got == nil {
		t.Fatal("cluster not found")
	}
	if got.Name != "On/Off" {
		t.Errorf("name = %q, want %q", got.Name, "On/Off")
	}

	// Returned copies must not alias registry state.
	got.Attributes[0].Name = "mutated"
	if r.Get(0x0006).Attributes[0].Name != "OnOff" {
		t.Error("Get returned an aliased definition")
	}
}

func TestRegistryMerge(t *testing.T) {
	r := newTestRegistry()
	r.Register(ClusterDef{
		ID:         0x0006,
		Name:       "On/Off",
		Attributes: []AttributeDef{{ID: 0, Name: "OnOff", Type: ValBool}},
	})
	r.Register(ClusterDef{
		ID: 0x0006,
		Attributes: []AttributeDef{
			{ID: 0, Name: "Duplicate", Type: ValBool},
			{ID: 0x4003, Name: "StartUpOnOff", Type: ValNullableUint8},
		},
	})

	got := r.Get(0x0006)
	if len(got.Attributes) != 2 {
		t.Fatalf("after merge: attrs = %d, want 2", len(got.Attributes))
	}
	if got.FindAttribute(0).Name != "OnOff" {
		t.Error("merge replaced an existing attribute")
	}
	if r.AttributeName(0x0006, 0x4003) != "StartUpOnOff" {
		t.Error("merged attribute not found")
	}
}

func TestRegistryNamesFallBackToHex(t *testing.T) {
	r := newTestRegistry()
	if got := r.ClusterName(0x0402); got != "0x0402" {
		t.Errorf("ClusterName = %q", got)
	}
	if got := r.AttributeName(0x0402, 0x0010); got != "0x0010" {
		t.Errorf("AttributeName = %q", got)
	}
	if _, ok := r.AttributeType(0x0402, 0); ok {
		t.Error("AttributeType found an unregistered attribute")
	}
}

func TestRegistryDeviceTypes(t *testing.T) {
	r := newTestRegistry()
	r.RegisterDeviceType(DeviceTypeDef{ID: 0x0302, Name: "Temperature Sensor", Clusters: []uint32{0x0003, 0x0402}})

	d := r.DeviceType(0x0302)
	if d == nil {
		t.Fatal("device type not found")
	}
	d.Clusters[0] = 0xFFFF
	if r.DeviceType(0x0302).Clusters[0] != 0x0003 {
		t.Error("DeviceType returned an aliased slice")
	}
	if r.DeviceType(0x9999) != nil {
		t.Error("unexpected device type")
	}
}

func TestRegistryAllSorted(t *testing.T) {
	r := newTestRegistry()
	r.Register(ClusterDef{ID: 3, Name: "C"})
	r.Register(ClusterDef{ID: 1, Name: "A"})
	r.Register(ClusterDef{ID: 2, Name: "B"})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("got %d clusters, want 3", len(all))
	}
	for i, c := range all {
		if c.ID != uint32(i+1) {
			t.Errorf("all[%d].ID = %d, want %d", i, c.ID, i+1)
		}
	}
}
