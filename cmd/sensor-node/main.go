package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"matter-sensor-node/internal/datamodel"
	"matter-sensor-node/internal/datamodel/clusters"
	"matter-sensor-node/internal/discovery"
	"matter-sensor-node/internal/events"
	"matter-sensor-node/internal/led"
	"matter-sensor-node/internal/lightcontrol"
	"matter-sensor-node/internal/matter"
	"matter-sensor-node/internal/poller"
	"matter-sensor-node/internal/sensor"
	"matter-sensor-node/internal/store"
	"matter-sensor-node/internal/substrate"
	"matter-sensor-node/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Node struct {
		Name          string `yaml:"name"`
		Vendor        string `yaml:"vendor"`
		VendorID      uint16 `yaml:"vendor_id"`
		ProductID     uint16 `yaml:"product_id"`
		Discriminator uint16 `yaml:"discriminator"`
		Passcode      uint32 `yaml:"passcode"`
		Port          int    `yaml:"port"`
	} `yaml:"node"`
	Sensor struct {
		Type     string        `yaml:"type"` // "serial" or "simulated"
		Port     string        `yaml:"port"`
		Baud     int           `yaml:"baud"`
		Interval time.Duration `yaml:"interval"`
		Retries  int           `yaml:"retries"`
	} `yaml:"sensor"`
	Light struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"light"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Discovery struct {
		Enabled   bool   `yaml:"enabled"`
		Interface string `yaml:"interface"`
	} `yaml:"discovery"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ScriptsDir string `yaml:"scripts_dir"`
}

// Setup passcodes a commissioner must reject.
var invalidPasscodes = map[uint32]bool{
	0: true, 11111111: true, 22222222: true, 33333333: true, 44444444: true,
	55555555: true, 66666666: true, 77777777: true, 88888888: true,
	99999999: true, 12345678: true, 87654321: true,
}

func (c *Config) validate() error {
	if c.Node.Discriminator > 0x0FFF {
		return fmt.Errorf("node.discriminator must be 0-4095, got %d", c.Node.Discriminator)
	}
	if c.Node.Passcode > 99999998 || invalidPasscodes[c.Node.Passcode] {
		return fmt.Errorf("node.passcode %d is not a valid setup passcode", c.Node.Passcode)
	}
	if c.Node.Port <= 0 || c.Node.Port > 65535 {
		return fmt.Errorf("node.port must be 1-65535, got %d", c.Node.Port)
	}
	switch c.Sensor.Type {
	case "serial":
		if c.Sensor.Port == "" {
			return fmt.Errorf("sensor.port is required for a serial sensor")
		}
	case "simulated":
	default:
		return fmt.Errorf("unknown sensor.type: %q (supported: serial, simulated)", c.Sensor.Type)
	}
	if c.Sensor.Interval < 100*time.Millisecond {
		return fmt.Errorf("sensor.interval must be at least 100ms, got %s", c.Sensor.Interval)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("matter-sensor-node starting", "version", version)

	registry := datamodel.NewRegistry(logger)
	clusters.RegisterStandard(registry)
	logger.Info("data model initialized", "clusters", len(registry.All()))

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	identity, err := db.NodeIdentity()
	if err != nil {
		logger.Error("load node identity", "err", err)
		os.Exit(1)
	}

	emuOpts := []substrate.Option{
		substrate.WithLogger(logger),
		substrate.WithStore(db),
		substrate.WithNodeInfo(nodeInfo(cfg, identity)),
	}
	if cfg.Discovery.Enabled {
		emuOpts = append(emuOpts, substrate.WithAdvertiser(discovery.NewAdvertiser(cfg.Discovery.Interface, logger)))
	}
	emu, err := substrate.NewEmulator(registry, emuOpts...)
	if err != nil {
		logger.Error("create substrate", "err", err)
		os.Exit(1)
	}

	node, err := matter.NewNode(emu, logger)
	if err != nil {
		logger.Error("create node", "err", err)
		os.Exit(1)
	}

	eps, light, err := addEndpoints(node, cfg.Light.Enabled)
	if err != nil {
		logger.Error("create endpoints", "err", err)
		os.Exit(1)
	}

	bus := events.NewBus(logger)
	forwardNodeEvents(node, registry, bus)

	if light != nil {
		ctrl := lightcontrol.New(led.New(led.NewLogDriver(logger), logger), logger)
		ctrl.Attach(light)
	}

	app := matter.NewApplication(node)
	app.SetLifecycleHandler(func(ev substrate.DeviceEvent) {
		bus.Emit(events.Event{Type: events.TypeLifecycle, Data: events.LifecycleData{
			Event:       ev.Type.String(),
			FabricIndex: ev.FabricIndex,
			Fabrics:     emu.FabricCount(),
		}})
	})
	app.Start()
	logger.Info("node ready",
		"unique_id", identity.UniqueID,
		"discriminator", cfg.Node.Discriminator,
		"passcode", cfg.Node.Passcode,
		"fabrics", emu.FabricCount())

	src, err := createSensor(cfg, logger)
	if err != nil {
		logger.Error("create sensor", "err", err)
		emu.Stop()
		os.Exit(1)
	}
	pollCtx, stopPolling := context.WithCancel(context.Background())
	p := poller.New(src, eps, poller.Config{
		Interval: cfg.Sensor.Interval,
		Retries:  cfg.Sensor.Retries,
	}, bus, logger)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		p.Run(pollCtx)
	}()

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(node, bus, cfg, logger)

	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))
	webOpts = append(webOpts, autoWebOpts...)
	webServer := web.NewServer(emu, registry, bus, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(bus, light, deviceName(cfg), identity.UniqueID, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	stopPolling()
	<-pollDone
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	emu.Stop()
	if c, ok := src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("close sensor", "err", err)
		}
	}

	logger.Info("goodbye")
}

func nodeInfo(cfg *Config, identity *store.NodeIdentity) substrate.NodeInfo {
	serial := strings.ReplaceAll(identity.UniqueID, "-", "")
	if len(serial) > 16 {
		serial = serial[:16]
	}
	return substrate.NodeInfo{
		VendorName:    cfg.Node.Vendor,
		VendorID:      cfg.Node.VendorID,
		ProductName:   "Sensor Node",
		ProductID:     cfg.Node.ProductID,
		NodeLabel:     cfg.Node.Name,
		SerialNumber:  strings.ToUpper(serial),
		UniqueID:      identity.UniqueID,
		Discriminator: cfg.Node.Discriminator,
		Port:          cfg.Node.Port,
	}
}

func deviceName(cfg *Config) string {
	if cfg.Node.Name != "" {
		return cfg.Node.Name
	}
	return "Sensor Node"
}

// addEndpoints creates the three measurement endpoints and, when enabled,
// the color light, in that order.
func addEndpoints(node *matter.Node, withLight bool) (poller.Endpoints, *matter.ExtendedColorLight, error) {
	var eps poller.Endpoints
	var err error
	if eps.Temperature, err = matter.NewExtendedTemperature(node); err != nil {
		return eps, nil, fmt.Errorf("temperature endpoint: %w", err)
	}
	node.AddEndpoint(eps.Temperature)
	if eps.Humidity, err = matter.NewExtendedHumidity(node); err != nil {
		return eps, nil, fmt.Errorf("humidity endpoint: %w", err)
	}
	node.AddEndpoint(eps.Humidity)
	if eps.Pressure, err = matter.NewExtendedPressure(node); err != nil {
		return eps, nil, fmt.Errorf("pressure endpoint: %w", err)
	}
	node.AddEndpoint(eps.Pressure)

	if !withLight {
		return eps, nil, nil
	}
	light, err := matter.NewExtendedColorLight(node)
	if err != nil {
		return eps, nil, fmt.Errorf("light endpoint: %w", err)
	}
	node.AddEndpoint(light)
	return eps, light, nil
}

// forwardNodeEvents publishes attribute and identify callbacks on the bus.
func forwardNodeEvents(node *matter.Node, registry *datamodel.Registry, bus *events.Bus) {
	node.SetAttributeHandler(func(ev matter.AttributeEvent) {
		bus.Emit(events.Event{Type: events.TypeAttribute, Data: attributeData(ev, registry)})
	})

	var identifies atomic.Uint64
	node.SetIdentifyHandler(func() {
		bus.Emit(events.Event{Type: events.TypeIdentify, Data: events.IdentifyData{Count: identifies.Add(1)}})
	})
}

func attributeData(ev matter.AttributeEvent, registry *datamodel.Registry) events.AttributeData {
	clusterID := ev.Cluster.ID()
	d := events.AttributeData{
		Kind:        ev.Kind.String(),
		EndpointID:  ev.Endpoint.ID(),
		ClusterID:   clusterID,
		Cluster:     registry.ClusterName(clusterID),
		AttributeID: ev.AttributeID,
		Attribute:   registry.AttributeName(clusterID, ev.AttributeID),
	}
	if ev.Value != nil {
		if v, err := ev.Value.Value(); err == nil {
			d.Value = v
		}
	}
	return d
}

func createSensor(cfg *Config, logger *slog.Logger) (sensor.Sensor, error) {
	switch cfg.Sensor.Type {
	case "serial":
		logger.Info("using serial BME280", "port", cfg.Sensor.Port, "baud", cfg.Sensor.Baud)
		return sensor.NewSerialBME280(cfg.Sensor.Port, cfg.Sensor.Baud, logger)
	case "simulated":
		logger.Info("using simulated sensor")
		return sensor.NewSimulated(), nil
	default:
		return nil, fmt.Errorf("unknown sensor type: %q (supported: serial, simulated)", cfg.Sensor.Type)
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Node.Vendor == "" {
		cfg.Node.Vendor = "matter-sensor-node"
	}
	if cfg.Node.VendorID == 0 {
		cfg.Node.VendorID = 0xFFF1
	}
	if cfg.Node.ProductID == 0 {
		cfg.Node.ProductID = 0x8000
	}
	if cfg.Node.Discriminator == 0 {
		cfg.Node.Discriminator = 3840
	}
	if cfg.Node.Passcode == 0 {
		cfg.Node.Passcode = 20202021
	}
	if cfg.Node.Port == 0 {
		cfg.Node.Port = discovery.DefaultPort
	}
	if cfg.Sensor.Type == "" {
		cfg.Sensor.Type = "simulated"
	}
	if cfg.Sensor.Baud == 0 {
		cfg.Sensor.Baud = 115200
	}
	if cfg.Sensor.Interval == 0 {
		cfg.Sensor.Interval = 2 * time.Second
	}
	if cfg.Sensor.Retries == 0 {
		cfg.Sensor.Retries = 3
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "sensor-node.db"
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "matter"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
