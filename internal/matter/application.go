package matter

import (
	"log/slog"
	"sync"

	"matter-sensor-node/internal/substrate"
)

// Application starts substrate processing for a node and handles device
// lifecycle events.
type Application struct {
	node   *Node
	logger *slog.Logger

	mu        sync.RWMutex
	lifecycle func(substrate.DeviceEvent)
}

func NewApplication(node *Node) *Application {
	return &Application{
		node:   node,
		logger: node.baseLog.With("component", "application"),
	}
}

// SetLifecycleHandler sets a function observing every device event.
func (a *Application) SetLifecycleHandler(fn func(substrate.DeviceEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lifecycle = fn
}

// Start registers the lifecycle callback and starts the substrate.
func (a *Application) Start() {
	if err := a.node.sub.Start(a.handleDeviceEvent); err != nil {
		a.logger.Error("start substrate", "err", err)
		return
	}
	a.logger.Info("application started", "endpoints", len(a.node.Endpoints()))
}

func (a *Application) handleDeviceEvent(ev *substrate.DeviceEvent) {
	if ev == nil {
		return
	}
	a.logger.Info("device event", "type", ev.Type, "fabric", ev.FabricIndex)
	switch ev.Type {
	case substrate.DeviceEventFabricRemoved:
		a.recommission()
	}

	a.mu.RLock()
	fn := a.lifecycle
	a.mu.RUnlock()
	if fn != nil {
		fn(*ev)
	}
}

// recommission reopens the commissioning window once the last fabric is gone.
func (a *Application) recommission() {
	if n := a.node.sub.FabricCount(); n > 0 {
		a.logger.Debug("fabrics remain, not recommissioning", "fabrics", n)
		return
	}
	if err := a.node.sub.OpenCommissioningWindow(); err != nil {
		a.logger.Error("reopen commissioning window", "err", err)
		return
	}
	a.logger.Info("last fabric removed, commissioning window reopened")
}
