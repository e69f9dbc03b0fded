package rainmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrParamNotFound  = errors.New("param not found")
	ErrReadOnly       = errors.New("param is read-only")
	ErrNoCallback     = errors.New("device has no write callback")
	ErrInvalidValue   = errors.New("invalid value")
	ErrDuplicate      = errors.New("duplicate name")
)

func typeMismatch(p *Param, v Value) error {
	return fmt.Errorf("%w: %s is %s, got %s", ErrInvalidValue, p.name, p.valueType, v.Type)
}

// ConfigVersion is the node config schema version reported in Config.
const ConfigVersion = "2020-03-20"

// Reporter delivers parameter reports, {device: {param: value}}, to the cloud.
type Reporter interface {
	Report(ctx context.Context, params map[string]map[string]any) error
}

// WriteObserver is told about every write handled by HandleWrite; err is nil
// for accepted writes.
type WriteObserver func(device, param string, v Value, src WriteSource, err error)

// Info describes the node.
type Info struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Model     string `json:"model,omitempty"`
	FWVersion string `json:"fw_version"`
}

// Node is the root of the RainMaker device tree.
type Node struct {
	id     string
	info   Info
	logger *slog.Logger

	mu       sync.RWMutex
	devices  []*Device
	reporter Reporter
	observer WriteObserver
}

// NewNode creates an empty node. reporter may be nil; reports are then dropped.
func NewNode(id string, info Info, reporter Reporter, logger *slog.Logger) *Node {
	return &Node{
		id:       id,
		info:     info,
		reporter: reporter,
		logger:   logger.With("component", "rainmaker"),
	}
}

func (n *Node) ID() string { return n.id }
func (n *Node) Info() Info { return n.info }

// SetReporter replaces the reporter.
func (n *Node) SetReporter(r Reporter) {
	n.mu.Lock()
	n.reporter = r
	n.mu.Unlock()
}

// SetWriteObserver registers fn to be told about handled writes.
func (n *Node) SetWriteObserver(fn WriteObserver) {
	n.mu.Lock()
	n.observer = fn
	n.mu.Unlock()
}

// AddDevice adds d to the node. Names are unique per node.
func (n *Node) AddDevice(d *Device) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.devices {
		if existing.name == d.name {
			return fmt.Errorf("%w: device %s", ErrDuplicate, d.name)
		}
	}
	d.node = n
	n.devices = append(n.devices, d)
	n.logger.Debug("device added", "device", d.name, "type", d.typ)
	return nil
}

// Devices returns the devices in creation order.
func (n *Node) Devices() []*Device {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Device(nil), n.devices...)
}

// DeviceByName returns the named device, or nil.
func (n *Node) DeviceByName(name string) *Device {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, d := range n.devices {
		if d.name == name {
			return d
		}
	}
	return nil
}

func (n *Node) report(ctx context.Context, params map[string]map[string]any) error {
	n.mu.RLock()
	r := n.reporter
	n.mu.RUnlock()
	if r == nil {
		return nil
	}
	if err := r.Report(ctx, params); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// HandleWrite applies an external write of {device: {param: value}}. Each
// parameter goes through its device's write callback; accepted values are
// stored and reported back as acknowledged in a single report. The returned
// error joins every rejected write.
func (n *Node) HandleWrite(ctx context.Context, payload map[string]map[string]any, src WriteSource) error {
	var errs []error
	accepted := make(map[string]map[string]any)

	for _, devName := range sortedKeys(payload) {
		for _, paramName := range sortedKeys(payload[devName]) {
			v, err := n.write(ctx, devName, paramName, payload[devName][paramName], src)
			n.notify(devName, paramName, v, src, err)
			if err != nil {
				n.logger.Warn("write rejected", "device", devName, "param", paramName, "source", src.String(), "err", err)
				errs = append(errs, fmt.Errorf("%s.%s: %w", devName, paramName, err))
				continue
			}
			if accepted[devName] == nil {
				accepted[devName] = make(map[string]any)
			}
			accepted[devName][paramName] = v
		}
	}

	if len(accepted) > 0 {
		if err := n.report(ctx, accepted); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Node) write(ctx context.Context, devName, paramName string, raw any, src WriteSource) (Value, error) {
	d := n.DeviceByName(devName)
	if d == nil {
		return Invalid(), ErrDeviceNotFound
	}
	p := d.ParamByName(paramName)
	if p == nil {
		return Invalid(), ErrParamNotFound
	}
	if !p.IsWritable() {
		return Invalid(), ErrReadOnly
	}
	v, err := FromJSON(p.valueType, raw)
	if err != nil {
		return Invalid(), err
	}
	cb := d.callback()
	if cb == nil {
		return v, ErrNoCallback
	}
	applied, err := cb(ctx, d, p, v, WriteContext{Source: src})
	if err != nil {
		return v, err
	}
	if applied.IsValid() && applied != v {
		if applied.Type != p.valueType {
			return v, typeMismatch(p, applied)
		}
		n.logger.Debug("write adjusted by device", "device", devName, "param", paramName, "requested", v.String(), "applied", applied.String())
		v = applied
	}
	p.set(v)
	n.logger.Info("param written", "device", devName, "param", paramName, "value", v.String(), "source", src.String())
	return v, nil
}

func (n *Node) notify(device, param string, v Value, src WriteSource, err error) {
	n.mu.RLock()
	fn := n.observer
	n.mu.RUnlock()
	if fn != nil {
		fn(device, param, v, src, err)
	}
}

// ReportPending reports every parameter updated with Update since the last
// report.
func (n *Node) ReportPending(ctx context.Context) error {
	batch := make(map[string]map[string]any)
	for _, d := range n.Devices() {
		for _, p := range d.Params() {
			if v, ok := p.takePending(); ok {
				if batch[d.name] == nil {
					batch[d.name] = make(map[string]any)
				}
				batch[d.name][p.name] = v
			}
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return n.report(ctx, batch)
}

// Params returns the current value of every parameter as {device: {param: value}}.
func (n *Node) Params() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, d := range n.Devices() {
		m := make(map[string]any)
		for _, p := range d.Params() {
			m[p.name] = p.Value()
		}
		out[d.name] = m
	}
	return out
}

// NodeConfig is the JSON node description published to the cloud.
type NodeConfig struct {
	NodeID        string         `json:"node_id"`
	ConfigVersion string         `json:"config_version"`
	Info          Info           `json:"info"`
	Devices       []DeviceConfig `json:"devices"`
}

type DeviceConfig struct {
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Primary string        `json:"primary,omitempty"`
	Params  []ParamConfig `json:"params"`
}

type ParamConfig struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	DataType   string   `json:"data_type"`
	Properties []string `json:"properties"`
	UIType     string   `json:"ui_type,omitempty"`
	Bounds     *Bounds  `json:"bounds,omitempty"`
}

// Config describes the node, its devices and their parameters.
func (n *Node) Config() NodeConfig {
	cfg := NodeConfig{
		NodeID:        n.id,
		ConfigVersion: ConfigVersion,
		Info:          n.info,
		Devices:       []DeviceConfig{},
	}
	for _, d := range n.Devices() {
		dc := DeviceConfig{Name: d.name, Type: d.typ, Params: []ParamConfig{}}
		if p := d.Primary(); p != nil {
			dc.Primary = p.name
		}
		for _, p := range d.Params() {
			dc.Params = append(dc.Params, ParamConfig{
				Name:       p.name,
				Type:       p.typ,
				DataType:   p.valueType.DataType(),
				Properties: propNames(p.props),
				UIType:     p.uiType,
				Bounds:     p.Bounds(),
			})
		}
		cfg.Devices = append(cfg.Devices, dc)
	}
	return cfg
}

// ConfigJSON returns Config encoded as JSON.
func (n *Node) ConfigJSON() ([]byte, error) {
	return json.Marshal(n.Config())
}

func propNames(props uint8) []string {
	names := []string{}
	if props&PropRead != 0 {
		names = append(names, "read")
	}
	if props&PropWrite != 0 {
		names = append(names, "write")
	}
	if props&PropTimeSeries != 0 {
		names = append(names, "time_series")
	}
	if props&PropPersist != 0 {
		names = append(names, "persist")
	}
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
