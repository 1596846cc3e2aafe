package matter

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"matter-sensor-node/internal/datamodel"
	"matter-sensor-node/internal/datamodel/clusters"
	"matter-sensor-node/internal/substrate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEmulator(t *testing.T) *substrate.Emulator {
	t.Helper()
	reg := datamodel.NewRegistry(testLogger())
	clusters.RegisterStandard(reg)
	emu, err := substrate.NewEmulator(reg, substrate.WithLogger(testLogger()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(emu.Stop)
	return emu
}

func newTestNode(t *testing.T) (*Node, *substrate.Emulator) {
	t.Helper()
	emu := newTestEmulator(t)
	node, err := NewNode(emu, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return node, emu
}

func syncEmulator(t *testing.T, emu *substrate.Emulator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := emu.Sync(ctx); err != nil {
		t.Fatal(err)
	}
}

// eventLog collects attribute events delivered on the substrate goroutine.
type eventLog struct {
	mu     sync.Mutex
	events []AttributeEvent
}

func (l *eventLog) add(ev AttributeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []AttributeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AttributeEvent(nil), l.events...)
}

// fakeSubstrate answers device-type and cluster-id queries from tables.
// Every other method panics through the nil embedded interface.
type fakeSubstrate struct {
	substrate.Substrate
	deviceTypes map[substrate.EndpointHandle]fakeDeviceTypes
	clusterIDs  map[substrate.ClusterHandle]uint32
}

type fakeDeviceTypes struct {
	ids   [substrate.MaxDeviceTypes]uint32
	count uint8
}

func (f *fakeSubstrate) DeviceTypeIDs(h substrate.EndpointHandle) ([substrate.MaxDeviceTypes]uint32, uint8) {
	d := f.deviceTypes[h]
	return d.ids, d.count
}

func (f *fakeSubstrate) ClusterID(h substrate.ClusterHandle) uint32 {
	if id, ok := f.clusterIDs[h]; ok {
		return id
	}
	return substrate.InvalidClusterID
}

func (f *fakeSubstrate) Cluster(_ substrate.EndpointHandle, _ uint32) substrate.ClusterHandle {
	return 0
}

// recordingSubstrate records device-side attribute writes.
type recordingSubstrate struct {
	*substrate.Emulator
	mu     sync.Mutex
	writes []recordedWrite
}

type recordedWrite struct {
	endpointID uint16
	clusterID  uint32
	attrID     uint32
	val        substrate.AttrVal
}

func (r *recordingSubstrate) UpdateAttribute(endpointID uint16, clusterID, attrID uint32, val substrate.AttrVal) error {
	r.mu.Lock()
	r.writes = append(r.writes, recordedWrite{endpointID, clusterID, attrID, val.Clone()})
	r.mu.Unlock()
	return r.Emulator.UpdateAttribute(endpointID, clusterID, attrID, val)
}

func (r *recordingSubstrate) last(t *testing.T) recordedWrite {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.writes) == 0 {
		t.Fatal("no attribute writes recorded")
	}
	return r.writes[len(r.writes)-1]
}
