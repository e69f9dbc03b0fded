// Package app wires the Matter node, the light driver, persistence, the
// RainMaker node and the bridge into one running device.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"matter-rainmaker/internal/bridge"
	"matter-rainmaker/internal/driver"
	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/matter/clusters"
	"matter-rainmaker/internal/rainmaker"
	"matter-rainmaker/internal/store"
)

// Config holds the device configuration.
type Config struct {
	// NodeID overrides the persisted or generated RainMaker node ID.
	NodeID     string
	Info       rainmaker.Info
	DeviceName string
	Light      matter.LightConfig
	// Store is optional; without it nothing survives a restart.
	Store store.Store
	// Policy, when set, is called with the new node. Its hooks run before
	// all others, so a veto or rewrite happens before the driver sees it.
	Policy func(*matter.Node) matter.Hooks
}

// App is one running light: the Matter node and its RainMaker mirror.
type App struct {
	logger  *slog.Logger
	events  *EventBus
	matter  *matter.Node
	rmaker  *rainmaker.Node
	bridge  *bridge.Bridge
	light   *driver.Light
	store   store.Store
	lightEP uint16

	mu       sync.RWMutex
	reporter rainmaker.Reporter
}

// New builds the device. The bridge is ready when New returns.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	if cfg.DeviceName == "" {
		cfg.DeviceName = "Matter Light"
	}
	a := &App{
		logger: logger.With("component", "app"),
		events: NewEventBus(logger.With("component", "events")),
		store:  cfg.Store,
	}

	node, err := matter.NewNode(clusters.NewRegistry(logger), logger)
	if err != nil {
		return nil, fmt.Errorf("create matter node: %w", err)
	}
	a.matter = node
	if cfg.Policy != nil {
		if h := cfg.Policy(node); h != nil {
			node.AddHooks(h)
		}
	}

	ep, err := matter.CreateColorTemperatureLight(node, cfg.Light)
	if err != nil {
		return nil, err
	}
	a.lightEP = ep.ID()

	a.light = driver.New(logger)
	a.light.SetButtonEndpoint(a.lightEP)
	node.AddHooks(a.light)

	if a.store != nil {
		node.AddHooks(store.NewHooks(a.store, node, logger))
		n, err := store.Restore(ctx, node, a.store, a.logger)
		if err != nil {
			return nil, fmt.Errorf("restore attributes: %w", err)
		}
		a.logger.Info("attributes restored", "count", n)
	}

	nodeID, err := a.resolveNodeID(cfg.NodeID)
	if err != nil {
		return nil, err
	}
	a.rmaker = rainmaker.NewNode(nodeID, cfg.Info, &appReporter{app: a}, logger)
	a.rmaker.SetWriteObserver(a.observeWrite)

	a.bridge = bridge.New(node, a.rmaker, logger)
	if err := a.bridge.BindEndpoint(a.lightEP, cfg.DeviceName); err != nil {
		return nil, err
	}
	if err := a.bridge.Synthesize(ctx); err != nil {
		return nil, err
	}
	node.AddHooks(a.bridge)
	node.AddHooks(eventHooks{a.events})

	rootRef := matter.AttributeRef{Endpoint: 0, Cluster: matter.ClusterRainMaker, Attribute: matter.AttrRainMakerNodeID}
	if err := node.Update(ctx, rootRef, matter.String(nodeID), matter.OriginLocal); err != nil {
		return nil, fmt.Errorf("set node id attribute: %w", err)
	}

	if err := a.light.SetDefaults(ctx, node, a.lightEP); err != nil {
		return nil, err
	}
	a.bridge.SetReady()
	a.logger.Info("node ready", "node_id", nodeID, "device", cfg.DeviceName, "endpoint", a.lightEP)
	return a, nil
}

// resolveNodeID picks the configured ID, then the persisted one, and
// otherwise generates and persists a new one.
func (a *App) resolveNodeID(configured string) (string, error) {
	if a.store == nil {
		if configured != "" {
			return configured, nil
		}
		return uuid.NewString(), nil
	}

	info, err := a.store.GetNodeInfo()
	switch {
	case errors.Is(err, store.ErrNotFound):
		info = &store.NodeInfo{CreatedAt: time.Now()}
	case err != nil:
		return "", fmt.Errorf("load node info: %w", err)
	}
	if configured != "" {
		info.NodeID = configured
	}
	if info.NodeID == "" {
		info.NodeID = uuid.NewString()
		a.logger.Info("generated node id", "node_id", info.NodeID)
	}
	info.Boots++
	if err := a.store.SaveNodeInfo(info); err != nil {
		return "", fmt.Errorf("save node info: %w", err)
	}
	return info.NodeID, nil
}

func (a *App) Matter() *matter.Node       { return a.matter }
func (a *App) RainMaker() *rainmaker.Node { return a.rmaker }
func (a *App) Bridge() *bridge.Bridge     { return a.bridge }
func (a *App) Events() *EventBus          { return a.events }
func (a *App) Light() *driver.Light       { return a.light }
func (a *App) LightEndpoint() uint16      { return a.lightEP }

// SetReporter sets the transport parameter reports are delivered to. Reports
// are published on the event bus either way.
func (a *App) SetReporter(r rainmaker.Reporter) {
	a.mu.Lock()
	a.reporter = r
	a.mu.Unlock()
}

// Toggle flips the light as the physical button does.
func (a *App) Toggle(ctx context.Context) error {
	return a.light.Toggle(ctx, a.matter)
}

func (a *App) observeWrite(device, param string, v rainmaker.Value, src rainmaker.WriteSource, err error) {
	w := ParamWrite{Device: device, Param: param, Value: v.Any(), Source: src.String()}
	if err != nil {
		w.Error = err.Error()
		a.events.Emit(Event{Type: EventWriteRejected, Data: w})
		return
	}
	a.events.Emit(Event{Type: EventParamWrite, Data: w})
}

// appReporter publishes reports on the bus and forwards them to the
// configured transport.
type appReporter struct{ app *App }

func (r *appReporter) Report(ctx context.Context, params map[string]map[string]any) error {
	a := r.app
	a.events.Emit(Event{Type: EventParamReport, Data: params})

	a.mu.RLock()
	next := a.reporter
	a.mu.RUnlock()
	if next == nil {
		return nil
	}
	return next.Report(ctx, params)
}

// eventHooks publishes committed attribute updates.
type eventHooks struct{ events *EventBus }

func (h eventHooks) PreUpdate(_ context.Context, _ matter.AttributeRef, v matter.Value, _ matter.Origin) (matter.Value, error) {
	return v, nil
}

func (h eventHooks) PostUpdate(_ context.Context, ref matter.AttributeRef, v matter.Value, origin matter.Origin) {
	h.events.Emit(Event{Type: EventAttributeUpdate, Data: AttributeUpdate{
		Endpoint:  ref.Endpoint,
		Cluster:   ref.Cluster,
		Attribute: ref.Attribute,
		Value:     v.Any(),
		Origin:    origin.String(),
	}})
}
