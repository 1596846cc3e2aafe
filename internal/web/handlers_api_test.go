package web

import (
	"net/http"
	"testing"

	"matter-sensor-node/internal/substrate"
)

func TestNodeSnapshot(t *testing.T) {
	f := newFixture(t, true)
	snap := decode[substrate.NodeSnapshot](t, f.do(t, "GET", "/api/node", nil))
	if !snap.Started || !snap.CommissioningOpen {
		t.Errorf("started = %v, commissioning_open = %v, want both true", snap.Started, snap.CommissioningOpen)
	}
	if len(snap.Endpoints) != 2 {
		t.Fatalf("endpoints = %d, want root + light", len(snap.Endpoints))
	}
	if snap.Endpoints[1].ID != f.light.ID() {
		t.Errorf("endpoint[1] id = %d, want %d", snap.Endpoints[1].ID, f.light.ID())
	}
}

func TestWriteAttribute(t *testing.T) {
	f := newFixture(t, true)
	ep := f.light.ID()

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"on", writeAttributeRequest{Endpoint: ep, Cluster: 0x0006, Attribute: 0x0000, Value: true}, http.StatusOK},
		{"level", writeAttributeRequest{Endpoint: ep, Cluster: 0x0008, Attribute: 0x0000, Value: 100}, http.StatusOK},
		{"wrong type", writeAttributeRequest{Endpoint: ep, Cluster: 0x0006, Attribute: 0x0000, Value: "yes"}, http.StatusBadRequest},
		{"overflow", writeAttributeRequest{Endpoint: ep, Cluster: 0x0008, Attribute: 0x0000, Value: 300}, http.StatusBadRequest},
		{"read-only", writeAttributeRequest{Endpoint: ep, Cluster: 0x0008, Attribute: 0x0002, Value: 5}, http.StatusForbidden},
		{"unknown attribute", writeAttributeRequest{Endpoint: ep, Cluster: 0x0006, Attribute: 0x7777, Value: 1}, http.StatusNotFound},
		{"unknown endpoint", writeAttributeRequest{Endpoint: 9, Cluster: 0x0006, Attribute: 0x0000, Value: true}, http.StatusNotFound},
		{"bad json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "POST", "/api/attributes", tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}

	on, err := f.node.ReadValue(ep, 0x0006, 0x0000)
	if err != nil || on != true {
		t.Errorf("on_off = %v, %v, want true", on, err)
	}
	level, err := f.node.ReadValue(ep, 0x0008, 0x0000)
	if err != nil || level != uint8(100) {
		t.Errorf("current_level = %v, %v, want 100", level, err)
	}
}

func TestWriteBeforeStartConflicts(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, "POST", "/api/attributes", writeAttributeRequest{Endpoint: f.light.ID(), Cluster: 0x0006, Value: true})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestIdentify(t *testing.T) {
	f := newFixture(t, true)
	calls := make(chan struct{}, 4)
	f.node.SetIdentifyHandler(func() { calls <- struct{}{} })

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"default start", "/api/endpoints/1/identify", nil, http.StatusOK},
		{"effect", "/api/endpoints/1/identify", identifyRequest{Action: "effect", Effect: 1}, http.StatusOK},
		{"bad action", "/api/endpoints/1/identify", identifyRequest{Action: "blink"}, http.StatusBadRequest},
		{"bad id", "/api/endpoints/abc/identify", nil, http.StatusBadRequest},
		{"unknown endpoint", "/api/endpoints/9/identify", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "POST", tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestCommissioningFlow(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, "POST", "/api/fabrics", commissionRequest{Label: "home"})
	if w.Code != http.StatusCreated {
		t.Fatalf("commission status = %d (%s)", w.Code, w.Body.String())
	}
	res := decode[map[string]any](t, w)
	if res["fabric_index"] != float64(1) {
		t.Errorf("fabric_index = %v, want 1", res["fabric_index"])
	}

	if w := f.do(t, "POST", "/api/fabrics", nil); w.Code != http.StatusConflict {
		t.Errorf("commission with closed window status = %d, want 409", w.Code)
	}
	if w := f.do(t, "POST", "/api/commissioning/window", nil); w.Code != http.StatusOK {
		t.Fatalf("open window status = %d", w.Code)
	}
	if w := f.do(t, "POST", "/api/fabrics", nil); w.Code != http.StatusCreated {
		t.Errorf("second commission status = %d, want 201", w.Code)
	}
	if n := f.emu.FabricCount(); n != 2 {
		t.Errorf("fabrics = %d, want 2", n)
	}

	if w := f.do(t, "DELETE", "/api/fabrics/1", nil); w.Code != http.StatusOK {
		t.Errorf("remove status = %d (%s)", w.Code, w.Body.String())
	}
	if w := f.do(t, "DELETE", "/api/fabrics/1", nil); w.Code != http.StatusNotFound {
		t.Errorf("remove again status = %d, want 404", w.Code)
	}
	if w := f.do(t, "DELETE", "/api/fabrics/300", nil); w.Code != http.StatusBadRequest {
		t.Errorf("remove out of range status = %d, want 400", w.Code)
	}
}
