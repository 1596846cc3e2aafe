// Package discovery advertises the node as a commissionable Matter device
// over mDNS/DNS-SD.
package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"matter-sensor-node/internal/substrate"
)

const (
	ServiceType = "_matterc._udp"
	Domain      = "local."
	DefaultPort = 5540

	maxInstanceLen = 63
)

// TXT record keys.
const (
	TXTKeyDiscriminator = "D"
	TXTKeyCommissioning = "CM"
	TXTKeyVendorProduct = "VP"
	TXTKeyDeviceName    = "DN"
)

type server interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
	s, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Advertiser implements substrate.Advertiser with zeroconf.
type Advertiser struct {
	iface    string
	register registerFunc
	logger   *slog.Logger

	mu     sync.Mutex
	server server
}

// NewAdvertiser creates an advertiser. An empty iface advertises on all
// interfaces.
func NewAdvertiser(iface string, logger *slog.Logger) *Advertiser {
	return &Advertiser{
		iface:    iface,
		register: zeroconfRegister,
		logger:   logger.With("component", "mdns"),
	}
}

// Advertise registers the commissionable service, replacing any previous
// registration.
func (a *Advertiser) Advertise(info substrate.CommissionableInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instance := info.Instance
	if len(instance) > maxInstanceLen {
		instance = instance[:maxInstanceLen]
	}
	port := info.Port
	if port == 0 {
		port = DefaultPort
	}

	srv, err := a.register(instance, ServiceType, Domain, port, EncodeTXT(info), a.interfaces())
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}
	a.server = srv
	a.logger.Info("advertising commissionable node", "instance", instance, "port", port, "discriminator", info.Discriminator)
	return nil
}

// Withdraw stops advertising.
func (a *Advertiser) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Info("commissionable advertisement withdrawn")
	}
}

func (a *Advertiser) interfaces() []net.Interface {
	if a.iface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.iface)
	if err != nil {
		a.logger.Warn("interface not found, advertising on all", "iface", a.iface, "err", err)
		return nil
	}
	return []net.Interface{*iface}
}

// EncodeTXT builds the sorted TXT strings for info.
func EncodeTXT(info substrate.CommissionableInfo) []string {
	txt := map[string]string{
		TXTKeyDiscriminator: strconv.FormatUint(uint64(info.Discriminator), 10),
		TXTKeyCommissioning: "1",
		TXTKeyVendorProduct: fmt.Sprintf("%d+%d", info.VendorID, info.ProductID),
	}
	if info.DeviceName != "" {
		txt[TXTKeyDeviceName] = info.DeviceName
	}
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
